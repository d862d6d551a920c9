package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/cache"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/service"
	fakes "github.com/spec-kit/identity-service/internal/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app       *fiber.App
	redis     *miniredis.Miniredis
	publisher *fakes.Publisher
	brokerErr error
}

func newTestServer(t *testing.T, mw MiddlewareConfig) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisCache := cache.NewRedisCache(client)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "identity-service",
		Audience: "identity-clients",
		TTL:      15 * time.Minute,
	})
	srv := &testServer{redis: mr, publisher: &fakes.Publisher{}}

	credentials := service.NewCredentialService(service.CredentialDependencies{
		Identities: fakes.NewIdentityStore(),
		Cache:      redisCache,
		Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:     tokens,
		Logger:     logger,
	})
	resources := service.NewResourceService(service.ResourceDependencies{
		Resources: fakes.NewResourceStore(),
		Cache:     redisCache,
		Publisher: srv.publisher,
		Logger:    logger,
	})

	validator := handlers.NewValidator()
	app := fiber.New()
	mw.Logger = logger
	RegisterMiddlewares(app, mw)
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("identity-service", "test", map[string]handlers.Pinger{
			"redis":  pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
			"broker": pingFunc(func(context.Context) error { return srv.brokerErr }),
		}),
		Auth:           handlers.NewAuthHandler(credentials, validator),
		Resources:      handlers.NewResourcesHandler(resources, validator),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	srv.app = app
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	if _, isProblem := out["code"]; isProblem {
		assert.Equal(t, problemContentType, resp.Header.Get(fiber.HeaderContentType))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "pa55word", "role": string(role),
	}, "")
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email": email, "password": "pa55word",
	}, "")
	require.Equal(t, http.StatusOK, status)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	token := s.login(t, "Reader@Example.com", domain.RoleReadUser)

	status, body := s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reader@example.com", body["email"])
	assert.Equal(t, "ReadUser", body["role"])

	status, body = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "reader@example.com", "password": "another1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CONFLICT", body["code"])

	status, body = s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email": "reader@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	status, _ = s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email": "nobody@example.com", "password": "pa55word",
	}, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, body := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "123", "role": "Root",
	}, "")
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	details, _ := body["details"].(map[string]any)
	assert.Equal(t, "email", details["email"])
	assert.Equal(t, "min", details["password"])
	assert.Equal(t, "oneof", details["role"])
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	s.login(t, "reset@example.com", domain.RoleReadUser)

	status, _ := s.do(t, http.MethodPost, "/api/auth/password/reset-request", map[string]string{
		"email": "reset@example.com", "newPassword": "brand-new",
	}, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email": "reset@example.com", "password": "brand-new",
	}, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/password/reset-request", map[string]string{
		"email": "ghost@example.com", "newPassword": "brand-new",
	}, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminUserEndpoints(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	admin := s.login(t, "admin@example.com", domain.RoleAdmin)
	writer := s.login(t, "writer@example.com", domain.RoleWriteUser)

	status, _ := s.do(t, http.MethodGet, "/api/auth/users/writer@example.com", nil, writer)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodGet, "/api/auth/users/writer@example.com", nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "WriteUser", body["role"])
	assert.True(t, s.redis.Exists(cache.Key(domain.KindIdentity, "email", "writer@example.com")))

	status, _ = s.do(t, http.MethodDelete, "/api/auth/users/writer@example.com", nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, s.redis.Exists(cache.Key(domain.KindIdentity, "email", "writer@example.com")))

	status, _ = s.do(t, http.MethodGet, "/api/auth/users/writer@example.com", nil, admin)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestResourceLifecycle(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	reader := s.login(t, "reader@example.com", domain.RoleReadUser)
	writer := s.login(t, "writer@example.com", domain.RoleWriteUser)
	admin := s.login(t, "admin@example.com", domain.RoleAdmin)

	status, _ := s.do(t, http.MethodPost, "/api/v1/resources", map[string]string{"name": "widget"}, reader)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/api/v1/resources", map[string]string{"name": "widget"}, writer)
	require.Equal(t, http.StatusOK, status)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	path := "/api/v1/resources/" + id

	status, body = s.do(t, http.MethodGet, path, nil, reader)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "widget", body["name"])
	assert.True(t, s.redis.Exists(cache.Key(domain.KindResource, "id", id)))

	status, _ = s.do(t, http.MethodPut, path, map[string]string{
		"id": "00000000-0000-4000-8000-000000000001", "name": "renamed",
	}, writer)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPut, path, map[string]string{"id": id, "name": "renamed"}, writer)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, s.redis.Exists(cache.Key(domain.KindResource, "id", id)))

	status, _ = s.do(t, http.MethodDelete, path, nil, writer)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodDelete, path, nil, admin)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, path, nil, reader)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, path, body["instance"])
	assert.NotEmpty(t, body["traceId"])

	status, _ = s.do(t, http.MethodDelete, path, nil, admin)
	assert.Equal(t, http.StatusNotFound, status)

	var types []events.EventType
	for _, e := range s.publisher.Events() {
		assert.Equal(t, id, e.EntityID)
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{events.EventCreated, events.EventUpdated, events.EventDeleted}, types)
}

func TestResourceRejectsMalformedID(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	reader := s.login(t, "reader@example.com", domain.RoleReadUser)

	status, body := s.do(t, http.MethodGet, "/api/v1/resources/not-a-uuid", nil, reader)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestListResources(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	writer := s.login(t, "writer@example.com", domain.RoleWriteUser)
	for _, name := range []string{"a", "b"} {
		status, _ := s.do(t, http.MethodPost, "/api/v1/resources", map[string]string{"name": name}, writer)
		require.Equal(t, http.StatusOK, status)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+writer)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, body := s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, status)

	s.brokerErr = errors.New("broker down")
	status, body = s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	deps, _ := body["dependencies"].(map[string]any)
	assert.Equal(t, "broker down", deps["broker"])
	assert.Equal(t, "ok", deps["redis"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, float64(http.StatusTooManyRequests), body["status"])

	status, _ = s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestPanicAndInternalDetailHidden(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, body := s.do(t, http.MethodGet, "/boom", nil, "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "An unexpected error occurred.", body["detail"])
}

func TestUnknownRouteIsProblem(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, body := s.do(t, http.MethodGet, "/api/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
