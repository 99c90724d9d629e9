package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is a dependency probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NamedCheck pairs a dependency with the key it is reported under.
type NamedCheck struct {
	Name    string
	Checker HealthChecker
}

func RegisterRoutes(app *fiber.App, checks []NamedCheck, lakefsHandler *LakeFSHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		for _, chk := range checks {
			results[chk.Name] = "ok"
			if chk.Checker == nil {
				results[chk.Name] = "disabled"
				continue
			}
			if err := chk.Checker.HealthCheck(healthCtx); err != nil {
				results[chk.Name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	})

	// API routes
	v1 := app.Group("/api/v1")
	v1.Post("/sessions", lakefsHandler.CreateSessionHandler)
	v1.Delete("/sessions/:clientId", lakefsHandler.RevokeSessionHandler)
	v1.Post("/login-information/validate", lakefsHandler.ValidateLoginInformationHandler)
}
