package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-gate-api/internal/utils"
)

// RequireSession rejects requests whose token carries no operator name or unit.
// Nothing behind it runs without a complete session.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if OperatorName(c) == "" || Unit(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "operator session required", nil)
		}
		return c.Next()
	}
}

// OperatorName returns the display name of the authenticated operator.
func OperatorName(c *fiber.Ctx) string {
	return localString(c, LocalOperator)
}

// Unit returns the campus unit the operator is bound to.
func Unit(c *fiber.Ctx) string {
	return localString(c, LocalUnit)
}

// UserID returns the token subject.
func UserID(c *fiber.Ctx) string {
	return localString(c, LocalUserID)
}

// UserRole returns the normalised role claim.
func UserRole(c *fiber.Ctx) string {
	return normalizeRoleValue(c.Locals(LocalUserRole))
}

func localString(c *fiber.Ctx, key string) string {
	if value, ok := c.Locals(key).(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
