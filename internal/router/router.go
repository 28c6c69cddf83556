package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-gate-api/internal/config"
	"github.com/noah-isme/gema-gate-api/internal/handler"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GateHandler         *handler.GateHandler
	ReleaseHandler      *handler.ReleaseHandler
	IdentityHandler     *handler.IdentityHandler
	LostFoundHandler    *handler.LostFoundHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	NodeID              string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.NodeID))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	operators := middleware.RequireRole(
		string(service.RoleGatekeeper),
		string(service.RoleStaff),
		string(service.RoleCoordinator),
	)

	if deps.GateHandler != nil {
		deps.GateHandler.Register(api.Group("/gate", jwtMiddleware, middleware.RequireSession(), operators))
	}

	if deps.ReleaseHandler != nil {
		deps.ReleaseHandler.Register(api.Group("/releases", jwtMiddleware, middleware.RequireSession(), operators))
	}

	if deps.IdentityHandler != nil {
		deps.IdentityHandler.Register(api.Group("/identity", jwtMiddleware, middleware.RequireSession(), operators))
	}

	if deps.LostFoundHandler != nil {
		deps.LostFoundHandler.Register(api.Group("/lost-found", jwtMiddleware, middleware.RequireSession(), operators))
	}

	if deps.NotificationHandler != nil {
		students := middleware.RequireRole(string(service.RoleStudent))
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware, middleware.RequireSession(), students))
	}
}
