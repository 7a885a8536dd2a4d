package middleware

import (
	"encoding/base64"
	"strings"

	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/pkg/logger"
	"github.com/glsbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"
)

const currentUserKey = "currentUser"

// AuthMiddleware resolves a user principal from a bearer token, the session
// cookie, or HTTP Basic credentials, in that order.
type AuthMiddleware struct {
	DB *gorm.DB
}

func NewAuthMiddleware(db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{DB: db}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "http://localhost:3001,http://127.0.0.1:3001",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	user := a.resolveUser(c)
	if user == nil {
		logger.Warn("auth_failed", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	c.Locals(currentUserKey, user)
	return c.Next()
}

func (a *AuthMiddleware) OptionalAuth(c *fiber.Ctx) error {
	if user := a.resolveUser(c); user != nil {
		c.Locals(currentUserKey, user)
	}
	return c.Next()
}

func (a *AuthMiddleware) resolveUser(c *fiber.Ctx) *models.User {
	authHeader := c.Get("Authorization")

	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return a.userFromToken(c, strings.TrimSpace(token))
	}

	if cookie := c.Cookies("token"); cookie != "" {
		return a.userFromToken(c, cookie)
	}

	if encoded, ok := strings.CutPrefix(authHeader, "Basic "); ok {
		return a.userFromBasic(c, encoded)
	}

	return nil
}

func (a *AuthMiddleware) userFromToken(c *fiber.Ctx, tokenString string) *models.User {
	claims, err := utils.ValidateToken(tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return nil
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("jwt_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID,
		})
		return nil
	}

	return &user
}

func (a *AuthMiddleware) userFromBasic(c *fiber.Ctx, encoded string) *models.User {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil
	}

	var user models.User
	if err := a.DB.First(&user, "username = ?", username).Error; err != nil {
		return nil
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		logger.Warn("basic_auth_invalid_password", map[string]interface{}{
			"ip":       c.IP(),
			"username": username,
		})
		return nil
	}

	return &user
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
