package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"
)

// Locals keys set by AuthRequired.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// TokenValidator turns a bearer token into the caller's current claims.
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (*services.Claims, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(validator TokenValidator, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := validator.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			if !apperrors.Is(err, apperrors.KindUnauthorized) {
				return err
			}
			log.Debug("JWT validation failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// AdminRequired rejects callers without the admin role. It must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals(LocalRole).(string); role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// Actor returns the authenticated caller stored by AuthRequired.
func Actor(c *fiber.Ctx) services.Actor {
	userID, _ := c.Locals(LocalUserID).(string)
	role, _ := c.Locals(LocalRole).(string)
	return services.Actor{UserID: userID, Role: role}
}
