package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/glsbox/backend/internal/middleware"
	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/internal/services"
	"github.com/glsbox/backend/pkg/logger"
	"github.com/glsbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentsHandler struct {
	DB       *gorm.DB
	Comments *services.CommentService
	Notify   *services.NotifyService
}

func NewCommentsHandler(db *gorm.DB, comments *services.CommentService, notify *services.NotifyService) *CommentsHandler {
	return &CommentsHandler{DB: db, Comments: comments, Notify: notify}
}

type createCommentRequest struct {
	ParentShader  uuid.UUID  `json:"parentShader"`
	ParentComment *uuid.UUID `json:"parentComment"`
	Text          string     `json:"text"`
}

func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return utils.Error(c, fiber.StatusBadRequest, "text is required")
	}
	if req.ParentShader == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "parentShader is required")
	}

	var shader models.Shader
	if err := h.DB.First(&shader, "id = ?", req.ParentShader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "shader not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}

	var parent *models.Comment
	if req.ParentComment != nil {
		var found models.Comment
		if err := h.DB.First(&found, "id = ?", *req.ParentComment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Error(c, fiber.StatusNotFound, "parent comment not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading parent comment")
		}
		if found.ParentShader != req.ParentShader {
			return utils.Error(c, fiber.StatusBadRequest, "parent comment belongs to a different shader")
		}
		parent = &found
	}

	comment := models.Comment{
		AuthorID:      currentUser.ID,
		Text:          req.Text,
		ParentShader:  req.ParentShader,
		ParentComment: req.ParentComment,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating comment")
	}

	logger.InfoWithUser(currentUser.ID.String(), "comment_created", map[string]interface{}{
		"comment_id": comment.ID.String(),
		"shader_id":  comment.ParentShader.String(),
	})

	if parent != nil && parent.AuthorID != currentUser.ID {
		h.notifyParentAuthor(parent.AuthorID, currentUser, comment)
	}

	return utils.JSON(c, fiber.StatusCreated, services.CommentNode{
		ID:            comment.ID,
		Author:        &models.UserSummary{ID: currentUser.ID, Username: currentUser.Username},
		Text:          comment.Text,
		ParentShader:  comment.ParentShader,
		ParentComment: comment.ParentComment,
		Posted:        comment.Posted,
		Children:      []services.CommentNode{},
	})
}

// notifyParentAuthor fires the Telegram reply notification without blocking
// the request.
func (h *CommentsHandler) notifyParentAuthor(parentAuthorID uuid.UUID, replyAuthor *models.User, comment models.Comment) {
	var parentAuthor models.User
	if err := h.DB.First(&parentAuthor, "id = ?", parentAuthorID).Error; err != nil {
		return
	}
	go h.Notify.NotifyReply(&parentAuthor, replyAuthor, &comment)
}

type updateCommentRequest struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

func (h *CommentsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not logged in")
	}

	var req updateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return utils.Error(c, fiber.StatusBadRequest, "text is required")
	}

	var comment models.Comment
	if err := h.DB.First(&comment, "id = ?", req.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "comment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading comment")
	}

	if comment.AuthorID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the author can edit a comment")
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&comment).Updates(map[string]interface{}{
		"text":        req.Text,
		"last_edited": now,
	}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating comment")
	}
	comment.Text = req.Text
	comment.LastEdited = &now

	return utils.JSON(c, fiber.StatusOK, services.CommentNode{
		ID:            comment.ID,
		Author:        &models.UserSummary{ID: currentUser.ID, Username: currentUser.Username},
		Text:          comment.Text,
		ParentShader:  comment.ParentShader,
		ParentComment: comment.ParentComment,
		Posted:        comment.Posted,
		LastEdited:    comment.LastEdited,
		Children:      []services.CommentNode{},
	})
}

func (h *CommentsHandler) GetTree(c *fiber.Ctx) error {
	shaderID, err := parseUUID(c.Params("shaderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid shader id")
	}

	var shaderCount int64
	if err := h.DB.Model(&models.Shader{}).Where("id = ?", shaderID).Count(&shaderCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shader")
	}
	if shaderCount == 0 {
		return utils.Error(c, fiber.StatusNotFound, "shader not found")
	}

	var commentID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("comment")); raw != "" {
		parsed, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid comment id")
		}
		commentID = &parsed
	}

	depth := services.DefaultCommentDepth
	if raw := strings.TrimSpace(c.Query("depth")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return utils.Error(c, fiber.StatusBadRequest, "invalid depth")
		}
		depth = parsed
	}

	tree, err := h.Comments.GetTree(c.Context(), shaderID, commentID, depth)
	if err != nil {
		if errors.Is(err, services.ErrCommentNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "comment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading comments")
	}

	return utils.JSON(c, fiber.StatusOK, tree)
}
