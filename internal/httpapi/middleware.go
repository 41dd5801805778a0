package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"kidscanvas/internal/access"
)

// RequireServiceKey gates an internal endpoint behind a shared key passed
// via the X-Service-Key header, for the realtime gateway's event-relay
// poll.
func RequireServiceKey(serviceKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !access.AuthorizeServiceKey(c.Get("X-Service-Key"), serviceKey) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid service key")
		}
		return c.Next()
	}
}

// RequireServiceKeyOrRole gates an internal endpoint behind either the
// shared X-Service-Key header or a Bearer token whose subject holds one of
// roles, for callers (moderator/parent clients) that have no service key.
func RequireServiceKeyOrRole(serviceKey string, signer *access.Signer, roles ...access.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var subject *access.Subject
		if token := strings.TrimPrefix(c.Get("Authorization"), "Bearer "); token != "" {
			if decoded, err := signer.Decode(token); err == nil {
				subject = &decoded
			}
		}

		if err := access.AuthorizeServiceOrRole(c.Get("X-Service-Key"), serviceKey, subject, roles...); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid service key or token")
		}
		return c.Next()
	}
}
