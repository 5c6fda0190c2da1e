package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperplay/sticker-service/internal/api/http/handlers"
	"github.com/paperplay/sticker-service/internal/auth"
	"github.com/paperplay/sticker-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Viewer         *handlers.ViewerHandler
	Letters        *handlers.LettersHandler
	Requests       *handlers.RequestsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// AssetsDir is served under /assets when set.
	AssetsDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if cfg.AssetsDir != "" {
		app.Static("/assets", cfg.AssetsDir)
	}

	viewer := app.Group("/t", cfg.AuthMiddleware.Optional)
	viewer.Get("/:code", cfg.Viewer.Status)
	viewer.Post("/:code/video", cfg.Viewer.BindVideo)
	viewer.Post("/:code/content", cfg.Viewer.BindContent)

	app.Post("/letters", cfg.AuthMiddleware.Optional, cfg.Letters.Compose)

	requests := app.Group("/requests")
	requests.Post("", cfg.Requests.Submit)
	requests.Get("/:code", cfg.Requests.Status)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	admin.Post("/batches", cfg.Admin.IssueBatch)
	admin.Post("/tickets", cfg.Admin.CreateTicket)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Delete("/tickets", cfg.Admin.PurgeTickets)
	admin.Get("/tickets/:code", cfg.Admin.GetTicket)
	admin.Delete("/tickets/:code", cfg.Admin.DeleteTicket)
	admin.Delete("/tickets/:code/content", cfg.Admin.ClearContent)
	admin.Get("/orders", cfg.Admin.ListOrders)
	admin.Patch("/orders/:code/status", cfg.Admin.UpdateOrderStatus)
}
