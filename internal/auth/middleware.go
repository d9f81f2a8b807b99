package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/engine"
)

// AuthMiddleware rejects requests without a valid Bearer access token and
// stores the claims on the request. It runs before any admin handler, so an
// unauthenticated request never reaches the data layer.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireAdmin checks the authenticated token carries the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !claims.IsAdmin() {
			return engine.ForbiddenError("Admin access required")
		}
		return c.Next()
	}
}

func GetClaims(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals("claims").(*Claims)
	return claims
}
