package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/domain"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// Policy is a named set of roles allowed through a route.
type Policy struct {
	Name  string
	Roles []domain.Role
}

var (
	ReadPolicy  = Policy{Name: "read", Roles: []domain.Role{domain.RoleReadUser, domain.RoleWriteUser, domain.RoleAdmin}}
	WritePolicy = Policy{Name: "write", Roles: []domain.Role{domain.RoleWriteUser, domain.RoleAdmin}}
	AdminPolicy = Policy{Name: "admin", Roles: []domain.Role{domain.RoleAdmin}}
)

// Allows reports whether role satisfies the policy.
func (p Policy) Allows(role domain.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePolicy ensures the authenticated principal holds one of the policy roles.
func RequirePolicy(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.Allows(principal.Role) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
