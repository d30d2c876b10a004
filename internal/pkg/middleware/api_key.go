package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
)

// RequireAdminKey authenticates machine callers (cron, ops scripts) via
// a static key header. Comparison is constant time.
func RequireAdminKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("ADMIN_API_KEY", "")
		if expected == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Admin key not configured"})
		}

		got := strings.TrimSpace(c.Get("X-Admin-Key"))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin key"})
		}
		return c.Next()
	}
}

// RequireAdminOrKey admits admin users and machine callers alike: a
// valid X-Admin-Key header passes, otherwise the caller must be a
// logged-in admin.
func RequireAdminOrKey() fiber.Handler {
	adminKey := RequireAdminKey()
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(c.Get("X-Admin-Key")) != "" {
			return adminKey(c)
		}
		return RequireAdmin(c)
	}
}
