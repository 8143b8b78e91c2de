package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
)

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HandleCheckHealth answers GET /ping. It returns 503 while the database is down.
func HandleCheckHealth(store HealthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := store.HealthCheck(ctx); err != nil {
			return response.ServiceUnavailable(c, "Database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
