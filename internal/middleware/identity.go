package middleware

import (
	"strings"

	"veristat/internal/config"
	"veristat/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the identity-provider role granting privileged operations.
const RoleAdmin = "admin"

var cfg *config.Config

// InitMiddleware initializes identity middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// IdentityRequired enforces a valid bearer token from the external identity
// provider. The core never issues tokens itself; it only verifies the shared
// HMAC signature and lifts the opaque subject and role into locals.
func IdentityRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return models.RespondWithAppError(c,
			models.NewUnauthorizedError("Authorization header required"))
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return models.RespondWithAppError(c,
			models.NewUnauthorizedError("Invalid authorization header format"))
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.IdentitySecret), nil
	})
	if err != nil || !token.Valid {
		return models.RespondWithAppError(c,
			models.NewUnauthorizedError("Invalid or expired token"))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.RespondWithAppError(c,
			models.NewUnauthorizedError("Invalid token claims"))
	}

	if cfg.IdentityIssuer != "" {
		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != cfg.IdentityIssuer {
			return models.RespondWithAppError(c,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
	}

	// The subject is the opaque user ID; it is stored verbatim and never
	// parsed beyond presence.
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.RespondWithAppError(c,
			models.NewUnauthorizedError("Invalid token structure - missing subject"))
	}

	c.Locals("userID", sub)
	if role, roleOk := claims["role"].(string); roleOk {
		c.Locals("role", role)
	}

	return c.Next()
}

// IsPrivileged reports whether the authenticated requester carries the admin
// role from the identity provider.
func IsPrivileged(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == RoleAdmin
}
