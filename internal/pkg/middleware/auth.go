package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/identity"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/usercontext"
)

// RequireBearer verifies the Authorization bearer token with verifier and
// stores the caller in the user context. Missing or invalid tokens get a JSON 401.
func RequireBearer(verifier identity.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthenticated",
				"message": "Missing bearer token",
			})
		}

		id, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnavailable) {
				log.Errorf("[Auth] Identity provider unavailable: %v", err)
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error":   "identity_unavailable",
					"message": "Could not verify credentials, try again later",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthenticated",
				"message": "Invalid or expired token",
			})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     id.UserID,
			Email:      id.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}
