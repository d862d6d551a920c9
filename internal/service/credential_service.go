package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/cache"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// DefaultCacheTTL bounds staleness of cached projections.
const DefaultCacheTTL = 10 * time.Minute

// IdentityView is the cached, externally visible projection of an identity.
type IdentityView struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// CredentialService coordinates registration, authentication and password resets.
type CredentialService struct {
	identities repository.IdentityRepository
	hasher     auth.PasswordHasher
	tokens     auth.TokenIssuer
	cache      cacheAside
	logger     *zap.Logger
	newID      func() string
}

// CredentialDependencies bundles collaborators for the credential service.
type CredentialDependencies struct {
	Identities repository.IdentityRepository
	Cache      cache.Cache
	Hasher     auth.PasswordHasher
	Tokens     auth.TokenIssuer
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	CacheTTL   time.Duration
}

// NewCredentialService builds the service.
func NewCredentialService(deps CredentialDependencies) *CredentialService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CredentialService{
		identities: deps.Identities,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		cache:      cacheAside{cache: deps.Cache, ttl: ttl, logger: logger, metrics: deps.Metrics},
		logger:     logger,
		newID:      uuid.NewString,
	}
}

func identityKey(email string) string {
	return cache.Key(domain.KindIdentity, "email", domain.NormalizeEmail(email))
}

// Register creates a new identity. It fails with a conflict when the email is taken.
func (s *CredentialService) Register(ctx context.Context, email, password string, role domain.Role) (IdentityView, error) {
	email = domain.NormalizeEmail(email)
	if role == "" {
		role = domain.RoleReadUser
	}
	if err := validateCredentials(email, password); err != nil {
		return IdentityView{}, err
	}
	if !role.Valid() {
		return IdentityView{}, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	_, err := s.identities.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return IdentityView{}, emailTaken(email)
	case !errors.Is(err, repository.ErrNotFound):
		return IdentityView{}, apperrors.NewInfrastructure("store", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return IdentityView{}, apperrors.NewInternalError(err)
	}

	identity, err := s.identities.Create(ctx, domain.NewIdentity(s.newID(), email, hash, role))
	if errors.Is(err, repository.ErrDuplicate) {
		return IdentityView{}, emailTaken(email)
	}
	if err != nil {
		return IdentityView{}, apperrors.NewInfrastructure("store", err)
	}

	s.cache.invalidate(ctx, domain.KindIdentity, identityKey(email))
	s.logger.Info("identity registered", zap.String("identity_id", identity.ID), zap.String("role", string(identity.Role)))
	return viewOf(identity), nil
}

// Authenticate verifies credentials against the store and issues a token.
// It never consults the cache.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (auth.IssuedToken, error) {
	identity, err := s.lookup(ctx, email)
	if err != nil {
		return auth.IssuedToken{}, err
	}

	ok, err := s.hasher.Verify(identity.PasswordHash, password)
	if err != nil {
		return auth.IssuedToken{}, apperrors.NewInternalError(err)
	}
	if !ok {
		return auth.IssuedToken{}, apperrors.NewInvalidCredentials()
	}

	token, err := s.tokens.Issue(identity)
	if err != nil {
		return auth.IssuedToken{}, apperrors.NewInternalError(err)
	}
	return token, nil
}

// ResetPassword replaces the stored hash for email.
func (s *CredentialService) ResetPassword(ctx context.Context, email, newPassword string) (bool, error) {
	if err := validateCredentials(email, newPassword); err != nil {
		return false, err
	}
	identity, err := s.lookup(ctx, email)
	if err != nil {
		return false, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	if err := s.identities.Update(ctx, identity.WithPasswordHash(hash)); err != nil {
		return false, s.storeError(err, identity.Email)
	}

	s.cache.invalidate(ctx, domain.KindIdentity, identityKey(identity.Email))
	return true, nil
}

// DeleteByEmail removes the identity and its cached projection.
func (s *CredentialService) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	identity, err := s.lookup(ctx, email)
	if err != nil {
		return false, err
	}
	if err := s.identities.Delete(ctx, identity.ID); err != nil {
		return false, s.storeError(err, identity.Email)
	}

	s.cache.invalidate(ctx, domain.KindIdentity, identityKey(identity.Email))
	s.logger.Info("identity deleted", zap.String("identity_id", identity.ID))
	return true, nil
}

// GetByEmail returns the identity projection, served from cache when possible.
func (s *CredentialService) GetByEmail(ctx context.Context, email string) (IdentityView, error) {
	return readThrough(ctx, s.cache, domain.KindIdentity, identityKey(email), func(ctx context.Context) (IdentityView, error) {
		identity, err := s.lookup(ctx, email)
		if err != nil {
			return IdentityView{}, err
		}
		return viewOf(identity), nil
	})
}

func (s *CredentialService) lookup(ctx context.Context, email string) (domain.Identity, error) {
	identity, err := s.identities.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return domain.Identity{}, s.storeError(err, email)
	}
	return identity, nil
}

func (s *CredentialService) storeError(err error, email string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("identity", map[string]any{"email": domain.NormalizeEmail(email)})
	}
	return apperrors.NewInfrastructure("store", err)
}

func validateCredentials(email, password string) error {
	details := map[string]any{}
	if strings.TrimSpace(email) == "" {
		details["email"] = "required"
	}
	if password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid credentials payload", details)
	}
	return nil
}

func emailTaken(email string) error {
	return apperrors.NewConflict("email already registered", map[string]any{"email": email})
}

func viewOf(identity domain.Identity) IdentityView {
	return IdentityView{ID: identity.ID, Email: identity.Email, Role: identity.Role}
}
