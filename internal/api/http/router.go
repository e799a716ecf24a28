package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/developer-yasir/support-panel/internal/api/http/handlers"
	"github.com/developer-yasir/support-panel/internal/auth"
	"github.com/developer-yasir/support-panel/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// NewApp returns a fiber app configured for the API.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Get)
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	readers := auth.RequireSubject(domain.SubjectTypeDashboard, domain.SubjectTypeAgent)
	writers := auth.RequireSubject(domain.SubjectTypeAgent)

	tickets := api.Group("/tickets")
	tickets.Get("/stats", readers, cfg.Tickets.Stats)
	tickets.Get("/sla/summary", readers, cfg.Tickets.SLASummary)
	tickets.Get("/", readers, cfg.Tickets.ListTickets)
	tickets.Post("/", writers, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", readers, cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", readers, cfg.Tickets.History)
	tickets.Patch("/:id", writers, cfg.Tickets.UpdateTicket)
}
