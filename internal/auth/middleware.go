package auth

import (
	"strings"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxUserNameKey = "user_name"
)

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Thiếu header Authorization")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Authorization phải có dạng 'Bearer <token>'")
	}
	return parts[1], nil
}

func setClaims(c *fiber.Ctx, claims *JWTCustomClaims) {
	c.Locals(CtxUserIDKey, claims.UserID)
	c.Locals(CtxUserRoleKey, claims.Role)
	c.Locals(CtxUserNameKey, claims.Name)
}

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c)
		if err != nil {
			return err
		}
		claims, err := ParseToken(cfg.JWTSecret, tokenStr)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Token không hợp lệ hoặc đã hết hạn")
		}
		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalJWT attaches the caller's identity when a token is sent and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		return JWTMiddleware(cfg)(c)
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Không xác định được quyền")
		}
		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Bạn không có quyền thực hiện thao tác này")
	}
}

// ActorFromCtx returns the authenticated caller for audit rows, or an anonymous actor.
func ActorFromCtx(c *fiber.Ctx) audit.Actor {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return audit.Actor{}
	}
	name, _ := c.Locals(CtxUserNameKey).(string)
	return audit.Actor{UserID: &id, UserName: name}
}
