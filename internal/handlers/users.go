package handlers

import (
	"errors"
	"strings"

	"github.com/glsbox/backend/internal/middleware"
	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/internal/services"
	"github.com/glsbox/backend/pkg/logger"
	"github.com/glsbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB          *gorm.DB
	Permissions *services.PermissionService
}

func NewUsersHandler(db *gorm.DB, permissions *services.PermissionService) *UsersHandler {
	return &UsersHandler{DB: db, Permissions: permissions}
}

// userProjection hides contact fields unless their owner made them public or
// the viewer may edit the profile.
func (h *UsersHandler) userProjection(c *fiber.Ctx, user *models.User) fiber.Map {
	privileged := false
	if currentUser := middleware.GetCurrentUser(c); currentUser != nil {
		privileged = h.Permissions.EditingAllowed(c.Context(), currentUser.ID, user.ID)
	}

	projection := fiber.Map{
		"id":        user.ID,
		"username":  user.Username,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	}
	if user.PublicEmail || privileged {
		projection["email"] = user.Email
	}
	if user.PublicTelegram || privileged {
		projection["telegram"] = user.Telegram
	}
	if privileged {
		projection["publicEmail"] = user.PublicEmail
		projection["publicTelegram"] = user.PublicTelegram
	}
	return projection
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	return utils.JSON(c, fiber.StatusOK, h.userProjection(c, &user))
}

type updateUserRequest struct {
	Email          *string          `json:"email"`
	Telegram       *string          `json:"telegram"`
	PublicEmail    *bool            `json:"publicEmail"`
	PublicTelegram *bool            `json:"publicTelegram"`
	Password       *string          `json:"password"`
	Role           *models.UserRole `json:"role"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	if !h.Permissions.EditingAllowed(c.Context(), currentUser.ID, user.ID) {
		return utils.Error(c, fiber.StatusForbidden, "no permission to edit this user")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Telegram != nil {
		updates["telegram"] = strings.TrimPrefix(strings.TrimSpace(*req.Telegram), "@")
	}
	if req.PublicEmail != nil {
		updates["public_email"] = *req.PublicEmail
	}
	if req.PublicTelegram != nil {
		updates["public_telegram"] = *req.PublicTelegram
	}

	if req.Password != nil {
		if len(*req.Password) < 6 {
			return utils.Error(c, fiber.StatusBadRequest, "password must be at least 6 characters")
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
		}
		updates["password_hash"] = hash
	}

	if req.Role != nil && *req.Role != user.Role {
		if !req.Role.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		if currentUser.Role != models.UserRoleAdmin {
			return utils.Error(c, fiber.StatusForbidden, "only admins can change roles")
		}
		if user.Role == models.UserRoleAdmin {
			return utils.Error(c, fiber.StatusForbidden, "admin roles cannot be changed")
		}
		updates["role"] = *req.Role
	}

	if len(updates) > 0 {
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
		}
	}

	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	logger.InfoWithUser(currentUser.ID.String(), "user_updated", map[string]interface{}{
		"target_id": user.ID.String(),
	})

	return utils.JSON(c, fiber.StatusOK, h.userProjection(c, &user))
}

func (h *UsersHandler) ListShaders(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	privileged := false
	if currentUser := middleware.GetCurrentUser(c); currentUser != nil {
		privileged = h.Permissions.EditingAllowed(c.Context(), currentUser.ID, userID)
	}

	pagination := utils.ParsePagination(c)
	query := h.DB.Model(&models.Shader{}).Preload("Textures").Where("owner_id = ?", userID)
	if !privileged {
		query = query.Where("published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting shaders")
	}

	var shaders []models.Shader
	if err := utils.ApplyPagination(query.Order("created_at DESC"), pagination).Find(&shaders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shaders")
	}

	return utils.JSON(c, fiber.StatusOK, fiber.Map{
		"shaders": shaders,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

func (h *UsersHandler) ListComments(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	pagination := utils.ParsePagination(c)
	query := h.DB.Model(&models.Comment{}).Where("author_id = ?", userID)

	if raw := strings.TrimSpace(c.Query("shader")); raw != "" {
		shaderID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
		}
		query = query.Where("parent_shader = ?", shaderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting comments")
	}

	var comments []models.Comment
	if err := utils.ApplyPagination(query.Order("posted DESC, id DESC"), pagination).Find(&comments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing comments")
	}

	return utils.JSON(c, fiber.StatusOK, fiber.Map{
		"comments": comments,
		"total":    total,
		"page":     pagination.Page,
		"limit":    pagination.Limit,
	})
}

func (h *UsersHandler) CommentedShaders(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	pagination := utils.ParsePagination(c)
	commented := h.DB.Model(&models.Comment{}).
		Select("parent_shader").
		Where("author_id = ?", userID)

	query := h.DB.Model(&models.Shader{}).Preload("Textures").
		Where("id IN (?)", commented).
		Where("published = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting shaders")
	}

	var shaders []models.Shader
	if err := utils.ApplyPagination(query.Order("created_at DESC"), pagination).Find(&shaders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shaders")
	}

	return utils.JSON(c, fiber.StatusOK, fiber.Map{
		"shaders": shaders,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}
