package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator is satisfied by *JWTService
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*TokenClaims, error)
}

const claimsKey = "claims"

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		claims, err := validator.ValidateAccessToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(claimsKey, claims)
		c.Locals("userID", claims.UserID)
		c.Locals("tenantID", claims.TenantID)
		c.Locals("role", claims.Role)
		c.Locals("user", &UserInfo{
			ID:       claims.UserID,
			Email:    claims.Email,
			Role:     claims.Role,
			TenantID: claims.TenantID,
		})

		return c.Next()
	}
}

// RequirePermission rejects callers whose token lacks any of the permissions
func RequirePermission(permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(claimsKey).(*TokenClaims)
		if !ok || claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		for _, permission := range permissions {
			if !claims.HasPermission(permission) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Insufficient permissions",
				})
			}
		}

		return c.Next()
	}
}

// TenantID returns the authenticated tenant of the request
func TenantID(c *fiber.Ctx) string {
	tenantID, _ := c.Locals("tenantID").(string)
	return tenantID
}

// UserID returns the authenticated user of the request
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(string)
	return userID
}
