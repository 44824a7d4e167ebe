// Package ops is the internal HTTP surface: liveness, readiness, metrics
// and a small status page. It listens on its own port and is never
// exposed to MCP clients; stdio stays the only protocol transport.
package ops

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tasklane/tasklane_server/internal/health"
	"github.com/tasklane/tasklane_server/pkg/events"
)

// New builds the ops fiber app. Lifecycle (listen, shutdown) belongs to
// the caller.
func New(monitor *health.Monitor, bus *events.Bus) *fiber.App {
	app := fiber.New()
	app.Use(recoverer.New())

	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get("/healthz", healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return monitor.Healthy() },
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/statusz", func(c fiber.Ctx) error {
		busStats := bus.Stats()
		return c.JSON(fiber.Map{
			"ready":    monitor.Healthy(),
			"services": monitor.Snapshot(),
			"bus": fiber.Map{
				"total_handlers": busStats.TotalHandlers,
				"per_kind":       busStats.PerKind,
			},
		})
	})

	return app
}
