package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var fiberProm *fiberprometheus.FiberPrometheus

// InitMetrics sets up the Prometheus HTTP metrics collector and registers the
// /metrics scrape endpoint on the app.
func InitMetrics(app *fiber.App) {
	fiberProm = fiberprometheus.New("newsdesk-api")
	fiberProm.RegisterAt(app, "/metrics")
}

// MetricsMiddleware returns the request instrumentation handler. InitMetrics
// must have been called first.
func MetricsMiddleware() fiber.Handler {
	if fiberProm == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return fiberProm.Middleware
}
