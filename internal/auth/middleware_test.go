package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/identity-service/internal/domain"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

func newGuardedApp(tm *TokenManager, policy Policy) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/guarded", mw.Handle, RequirePolicy(policy), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Email)
	})
	return app
}

func bearer(t *testing.T, tm *TokenManager, role domain.Role) string {
	t.Helper()
	issued, err := tm.Issue(domain.NewIdentity("id-1", "a@x.com", "hash", role))
	require.NoError(t, err)
	return "Bearer " + issued.AccessToken
}

func TestAuthMiddlewareAndPolicies(t *testing.T) {
	tm := newTestManager(time.Now())

	tests := []struct {
		name   string
		policy Policy
		header string
		want   int
	}{
		{"missing header", ReadPolicy, "", http.StatusUnauthorized},
		{"wrong scheme", ReadPolicy, "Basic abc", http.StatusUnauthorized},
		{"garbage token", ReadPolicy, "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"read user reads", ReadPolicy, bearer(t, tm, domain.RoleReadUser), http.StatusOK},
		{"read user cannot write", WritePolicy, bearer(t, tm, domain.RoleReadUser), http.StatusForbidden},
		{"write user writes", WritePolicy, bearer(t, tm, domain.RoleWriteUser), http.StatusOK},
		{"write user is not admin", AdminPolicy, bearer(t, tm, domain.RoleWriteUser), http.StatusForbidden},
		{"admin", AdminPolicy, bearer(t, tm, domain.RoleAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGuardedApp(tm, tt.policy)
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
