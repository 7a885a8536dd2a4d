package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/glsbox/backend/internal/middleware"
	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/internal/services"
	"github.com/glsbox/backend/internal/storage"
	"github.com/glsbox/backend/pkg/logger"
	"github.com/glsbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	previewFolder = "previews"
	textureFolder = "textures"
)

type ShadersHandler struct {
	DB          *gorm.DB
	Store       storage.ObjectStore
	Permissions *services.PermissionService
}

func NewShadersHandler(db *gorm.DB, store storage.ObjectStore, permissions *services.PermissionService) *ShadersHandler {
	return &ShadersHandler{DB: db, Store: store, Permissions: permissions}
}

// textureOption is one entry of the textureOptions form field. File names a
// sibling multipart file field carrying the image. On update an entry with
// an id updates or deletes that texture; an entry without an id creates one.
type textureOption struct {
	ID     *uuid.UUID          `json:"id"`
	Name   string              `json:"name"`
	Kind   *models.TextureKind `json:"kind"`
	File   string              `json:"file"`
	Delete bool                `json:"delete"`
}

func parseTextureOptions(c *fiber.Ctx) ([]textureOption, error) {
	raw := strings.TrimSpace(c.FormValue("textureOptions"))
	if raw == "" {
		return nil, nil
	}

	var options []textureOption
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, errors.New("invalid textureOptions")
	}
	return options, nil
}

func (h *ShadersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	options, err := parseTextureOptions(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	for _, option := range options {
		if option.ID != nil || option.Delete {
			return utils.Error(c, fiber.StatusBadRequest, "textureOptions must only create textures here")
		}
		if strings.TrimSpace(option.Name) == "" || option.File == "" {
			return utils.Error(c, fiber.StatusBadRequest, "texture name and file are required")
		}
		if option.Kind != nil && !option.Kind.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid texture kind")
		}
	}

	shader := models.Shader{
		OwnerID:     currentUser.ID,
		Name:        name,
		Description: c.FormValue("description"),
		Code:        c.FormValue("code"),
		Textures:    []models.ShaderTexture{},
	}

	ftx := storage.NewFileTransaction(h.Store)

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shader).Error; err != nil {
			return err
		}

		if header, err := c.FormFile("preview"); err == nil {
			data, filename, contentType, err := readFormFile(header)
			if err != nil {
				return err
			}
			fdata, err := ftx.WriteFile(c.Context(), data, previewFolder, filename, contentType)
			if err != nil {
				return err
			}
			shader.PreviewURL = &fdata.URL
			shader.PreviewKey = &fdata.Key
			if err := tx.Model(&shader).Updates(map[string]interface{}{
				"preview_url": fdata.URL,
				"preview_key": fdata.Key,
			}).Error; err != nil {
				return err
			}
		}

		for _, option := range options {
			texture, err := h.createTexture(c, tx, ftx, shader.ID, option)
			if err != nil {
				return err
			}
			shader.Textures = append(shader.Textures, texture)
		}

		return nil
	})
	if err != nil {
		ftx.Rollback(c.Context())
		if vErr := (*validationError)(nil); errors.As(err, &vErr) {
			return utils.Error(c, fiber.StatusBadRequest, vErr.message)
		}
		logger.ErrorWithUser(currentUser.ID.String(), "shader_create_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating shader")
	}
	ftx.Commit(c.Context())

	logger.InfoWithUser(currentUser.ID.String(), "shader_created", map[string]interface{}{
		"shader_id": shader.ID.String(),
		"name":      shader.Name,
		"textures":  len(shader.Textures),
	})

	return utils.JSON(c, fiber.StatusCreated, shader)
}

func (h *ShadersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	shaderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var shader models.Shader
	if err := h.DB.First(&shader, "id = ?", shaderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	if !h.Permissions.EditingAllowed(c.Context(), currentUser.ID, shader.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "no permission to edit this shader")
	}

	options, err := parseTextureOptions(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	deletePreview := false
	if raw := strings.TrimSpace(c.FormValue("deletePreview")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid deletePreview")
		}
		deletePreview = parsed
	}

	updates := map[string]interface{}{}
	if form, err := c.MultipartForm(); err == nil {
		if values, ok := form.Value["name"]; ok && len(values) > 0 {
			name := strings.TrimSpace(values[0])
			if name == "" {
				return utils.Error(c, fiber.StatusBadRequest, "name must not be empty")
			}
			updates["name"] = name
		}
		if values, ok := form.Value["description"]; ok && len(values) > 0 {
			updates["description"] = values[0]
		}
		if values, ok := form.Value["code"]; ok && len(values) > 0 {
			updates["code"] = values[0]
		}
	}

	ftx := storage.NewFileTransaction(h.Store)

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		header, previewErr := c.FormFile("preview")

		// Both an explicit deletePreview and a replacement drop the old blob.
		if (deletePreview || previewErr == nil) && shader.PreviewKey != nil {
			ftx.RemoveFile(*shader.PreviewKey)
			updates["preview_url"] = nil
			updates["preview_key"] = nil
		}
		if previewErr == nil {
			data, filename, contentType, err := readFormFile(header)
			if err != nil {
				return err
			}
			fdata, err := ftx.WriteFile(c.Context(), data, previewFolder, filename, contentType)
			if err != nil {
				return err
			}
			updates["preview_url"] = fdata.URL
			updates["preview_key"] = fdata.Key
		}

		if len(updates) > 0 {
			if err := tx.Model(&shader).Updates(updates).Error; err != nil {
				return err
			}
		}

		for _, option := range options {
			if err := h.applyTextureOption(c, tx, ftx, &shader, option); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		ftx.Rollback(c.Context())
		if vErr := (*validationError)(nil); errors.As(err, &vErr) {
			return utils.Error(c, fiber.StatusBadRequest, vErr.message)
		}
		logger.ErrorWithUser(currentUser.ID.String(), "shader_update_failed", err, map[string]interface{}{
			"shader_id": shaderID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating shader")
	}
	ftx.Commit(c.Context())

	var updated models.Shader
	if err := h.DB.Preload("Textures").First(&updated, "id = ?", shaderID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	logger.InfoWithUser(currentUser.ID.String(), "shader_updated", map[string]interface{}{
		"shader_id": shaderID.String(),
	})

	return utils.JSON(c, fiber.StatusOK, updated)
}

func (h *ShadersHandler) Get(c *fiber.Ctx) error {
	shaderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var shader models.Shader
	if err := h.DB.Preload("Textures").First(&shader, "id = ?", shaderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	if !shader.Published {
		currentUser := middleware.GetCurrentUser(c)
		if currentUser == nil || !h.Permissions.EditingAllowed(c.Context(), currentUser.ID, shader.OwnerID) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
	}

	return utils.JSON(c, fiber.StatusOK, shader)
}

func (h *ShadersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	pagination := utils.ParsePagination(c)

	query := h.DB.Model(&models.Shader{}).Preload("Textures")

	ownerRaw := strings.TrimSpace(c.Query("owner"))
	if ownerRaw != "" {
		ownerID, err := parseUUID(ownerRaw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid owner id")
		}
		query = query.Where("owner_id = ?", ownerID)
		if currentUser == nil || currentUser.ID != ownerID {
			query = query.Where("published = ?", true)
		}
	} else {
		query = query.Where("published = ?", true)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
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

func (h *ShadersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	shaderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var shader models.Shader
	if err := h.DB.Preload("Textures").First(&shader, "id = ?", shaderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	if !h.Permissions.EditingAllowed(c.Context(), currentUser.ID, shader.OwnerID) {
		return utils.Error(c, fiber.StatusForbidden, "no permission to delete this shader")
	}

	ftx := storage.NewFileTransaction(h.Store)

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, texture := range shader.Textures {
			ftx.RemoveFile(texture.Key)
		}
		if shader.PreviewKey != nil {
			ftx.RemoveFile(*shader.PreviewKey)
		}

		if err := tx.Where("shader_id = ?", shader.ID).Delete(&models.ShaderTexture{}).Error; err != nil {
			return err
		}
		if err := tx.Where("shader_id = ?", shader.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_shader = ?", shader.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&shader).Error
	})
	if err != nil {
		ftx.Rollback(c.Context())
		logger.ErrorWithUser(currentUser.ID.String(), "shader_delete_failed", err, map[string]interface{}{
			"shader_id": shaderID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting shader")
	}
	ftx.Commit(c.Context())

	logger.InfoWithUser(currentUser.ID.String(), "shader_deleted", map[string]interface{}{
		"shader_id": shaderID.String(),
	})

	return utils.JSON(c, fiber.StatusOK, fiber.Map{})
}

type publishRequest struct {
	Published bool `json:"published"`
}

func (h *ShadersHandler) Publish(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	shaderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var shader models.Shader
	if err := h.DB.First(&shader, "id = ?", shaderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	if shader.OwnerID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the owner can publish a shader")
	}

	updates := map[string]interface{}{"published": req.Published}
	if req.Published && shader.PublishingDate == nil {
		updates["publishing_date"] = time.Now().UTC()
	}

	if err := h.DB.Model(&shader).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating shader")
	}

	logger.InfoWithUser(currentUser.ID.String(), "shader_publish_changed", map[string]interface{}{
		"shader_id": shader.ID.String(),
		"published": req.Published,
	})

	return utils.JSON(c, fiber.StatusOK, fiber.Map{})
}

type likeRequest struct {
	Liked bool `json:"liked"`
}

func (h *ShadersHandler) Like(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	shaderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var req likeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var shader models.Shader
	if err := h.DB.First(&shader, "id = ?", shaderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	var likeCount int64
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Like
		lookupErr := tx.First(&existing, "user_id = ? AND shader_id = ?", currentUser.ID, shader.ID).Error
		exists := lookupErr == nil
		if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}

		if req.Liked && !exists {
			if err := tx.Create(&models.Like{UserID: currentUser.ID, ShaderID: shader.ID}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Shader{}).Where("id = ?", shader.ID).
				Update("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
		}
		if !req.Liked && exists {
			if err := tx.Where("user_id = ? AND shader_id = ?", currentUser.ID, shader.ID).
				Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Shader{}).Where("id = ?", shader.ID).
				Update("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Shader{}).Where("id = ?", shader.ID).
			Select("like_count").Scan(&likeCount).Error
	})
	if err != nil {
		logger.ErrorWithUser(currentUser.ID.String(), "shader_like_failed", err, map[string]interface{}{
			"shader_id": shader.ID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating like")
	}

	return utils.JSON(c, fiber.StatusOK, fiber.Map{
		"liked":     req.Liked,
		"likeCount": likeCount,
	})
}

// validationError carries a client-facing message out of a db.Transaction
// closure so the handler can answer 400 instead of 500.
type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (h *ShadersHandler) createTexture(c *fiber.Ctx, tx *gorm.DB, ftx *storage.FileTransaction, shaderID uuid.UUID, option textureOption) (models.ShaderTexture, error) {
	header, err := c.FormFile(option.File)
	if err != nil {
		return models.ShaderTexture{}, &validationError{message: "missing texture file " + option.File}
	}

	data, filename, contentType, err := readFormFile(header)
	if err != nil {
		return models.ShaderTexture{}, err
	}

	fdata, err := ftx.WriteFile(c.Context(), data, textureFolder, filename, contentType)
	if err != nil {
		return models.ShaderTexture{}, err
	}

	kind := models.TextureKindNormal
	if option.Kind != nil {
		kind = *option.Kind
	}

	texture := models.ShaderTexture{
		ShaderID:    shaderID,
		Name:        strings.TrimSpace(option.Name),
		TextureKind: kind,
		URL:         fdata.URL,
		Key:         fdata.Key,
	}
	if err := tx.Create(&texture).Error; err != nil {
		return models.ShaderTexture{}, err
	}
	return texture, nil
}

func (h *ShadersHandler) applyTextureOption(c *fiber.Ctx, tx *gorm.DB, ftx *storage.FileTransaction, shader *models.Shader, option textureOption) error {
	if option.Kind != nil && !option.Kind.Valid() {
		return &validationError{message: "invalid texture kind"}
	}

	if option.ID == nil {
		if strings.TrimSpace(option.Name) == "" || option.File == "" {
			return &validationError{message: "texture name and file are required"}
		}
		_, err := h.createTexture(c, tx, ftx, shader.ID, option)
		return err
	}

	var texture models.ShaderTexture
	if err := tx.First(&texture, "id = ? AND shader_id = ?", *option.ID, shader.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &validationError{message: "texture not found"}
		}
		return err
	}

	if option.Delete {
		ftx.RemoveFile(texture.Key)
		return tx.Delete(&texture).Error
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(option.Name); name != "" {
		updates["name"] = name
	}
	if option.Kind != nil {
		updates["texture_kind"] = *option.Kind
	}

	if option.File != "" {
		header, err := c.FormFile(option.File)
		if err != nil {
			return &validationError{message: "missing texture file " + option.File}
		}
		data, filename, contentType, err := readFormFile(header)
		if err != nil {
			return err
		}
		fdata, err := ftx.WriteFile(c.Context(), data, textureFolder, filename, contentType)
		if err != nil {
			return err
		}
		ftx.RemoveFile(texture.Key)
		updates["url"] = fdata.URL
		updates["key"] = fdata.Key
	}

	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&texture).Updates(updates).Error
}
