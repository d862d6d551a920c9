package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Resources      *handlers.ResourcesHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves the Prometheus exposition. Optional.
	Metrics fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	api := app.Group("/api")
	bearer := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/token", cfg.Auth.Token)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/password/reset-request", cfg.Auth.ResetPassword)
	authGroup.Get("/me", bearer, cfg.Auth.Me)

	users := authGroup.Group("/users", bearer, auth.RequirePolicy(auth.AdminPolicy))
	users.Get("/:email", cfg.Auth.GetUser)
	users.Delete("/:email", cfg.Auth.DeleteUser)

	resources := api.Group("/v1/resources", bearer)
	resources.Get("", auth.RequirePolicy(auth.ReadPolicy), cfg.Resources.List)
	resources.Get("/:id", auth.RequirePolicy(auth.ReadPolicy), cfg.Resources.Get)
	resources.Post("", auth.RequirePolicy(auth.WritePolicy), cfg.Resources.Create)
	resources.Put("/:id", auth.RequirePolicy(auth.WritePolicy), cfg.Resources.Update)
	resources.Delete("/:id", auth.RequirePolicy(auth.AdminPolicy), cfg.Resources.Delete)
}
