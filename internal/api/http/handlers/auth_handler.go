package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// AuthHandler exposes credential endpoints.
type AuthHandler struct {
	credentials *service.CredentialService
	validator   *Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(credentials *service.CredentialService, validator *Validator) *AuthHandler {
	return &AuthHandler{credentials: credentials, validator: validator}
}

// Token handles POST /api/auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	token, err := h.credentials.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{AccessToken: token.AccessToken, ExpiresAt: token.ExpiresAt})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	if _, err := h.credentials.Register(c.UserContext(), req.Email, req.Password, domain.Role(req.Role)); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "User registration successful."})
}

// Me handles GET /api/auth/me and echoes the token's claims.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.IdentityResponse{
		ID:    principal.ID,
		Email: principal.Email,
		Role:  string(principal.Role),
	})
}

// ResetPassword handles POST /api/auth/password/reset-request.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	if _, err := h.credentials.ResetPassword(c.UserContext(), req.Email, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Password reset successful."})
}

// GetUser handles GET /api/auth/users/:email.
func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	view, err := h.credentials.GetByEmail(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(dto.IdentityResponse{ID: view.ID, Email: view.Email, Role: string(view.Role)})
}

// DeleteUser handles DELETE /api/auth/users/:email.
func (h *AuthHandler) DeleteUser(c *fiber.Ctx) error {
	if _, err := h.credentials.DeleteByEmail(c.UserContext(), c.Params("email")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "User deleted successfully."})
}
