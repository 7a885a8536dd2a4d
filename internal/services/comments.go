package services

import (
	"context"
	"errors"
	"time"

	"github.com/glsbox/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCommentNotFound is returned when a requested comment id does not exist
// under the given shader.
var ErrCommentNotFound = errors.New("comment not found")

// DefaultCommentDepth bounds tree expansion when the client does not ask
// for a specific depth.
const DefaultCommentDepth = 10

// CommentNode is one comment joined with its author summary and its
// children expanded to the requested depth. ChildrenTruncated distinguishes
// "no replies" from "replies exist past the depth bound".
type CommentNode struct {
	ID                uuid.UUID           `json:"id"`
	Author            *models.UserSummary `json:"author,omitempty"`
	Text              string              `json:"text"`
	ParentShader      uuid.UUID           `json:"parentShader"`
	ParentComment     *uuid.UUID          `json:"parentComment,omitempty"`
	Posted            time.Time           `json:"posted"`
	LastEdited        *time.Time          `json:"lastEdited,omitempty"`
	Children          []CommentNode       `json:"children"`
	ChildrenTruncated bool                `json:"childrenTruncated,omitempty"`
}

// CommentRoot is the synthetic top node returned when no comment id is
// given: the shader's top-level comments without a comment of their own.
type CommentRoot struct {
	Root              bool          `json:"root"`
	Children          []CommentNode `json:"children"`
	ChildrenTruncated bool          `json:"childrenTruncated,omitempty"`
}

type CommentService struct {
	DB *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{DB: db}
}

// GetTree returns the comment forest of a shader as a CommentRoot, or the
// CommentNode subtree rooted at commentID when given. Depth bounds the
// expansion; levels past the bound are omitted and flagged as truncated.
func (s *CommentService) GetTree(ctx context.Context, shaderID uuid.UUID, commentID *uuid.UUID, depth int) (interface{}, error) {
	if depth <= 0 {
		depth = DefaultCommentDepth
	}

	if commentID == nil {
		children, truncated, err := s.expandChildren(ctx, shaderID, nil, depth)
		if err != nil {
			return nil, err
		}
		return CommentRoot{Root: true, Children: children, ChildrenTruncated: truncated}, nil
	}

	var comment models.Comment
	err := s.DB.WithContext(ctx).
		First(&comment, "id = ? AND parent_shader = ?", *commentID, shaderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	node, err := s.buildNode(ctx, comment, depth-1)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *CommentService) buildNode(ctx context.Context, comment models.Comment, depth int) (CommentNode, error) {
	node := CommentNode{
		ID:            comment.ID,
		Text:          comment.Text,
		ParentShader:  comment.ParentShader,
		ParentComment: comment.ParentComment,
		Posted:        comment.Posted,
		LastEdited:    comment.LastEdited,
		Children:      []CommentNode{},
	}

	var author models.User
	if err := s.DB.WithContext(ctx).Select("id", "username").First(&author, "id = ?", comment.AuthorID).Error; err == nil {
		node.Author = &models.UserSummary{ID: author.ID, Username: author.Username}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CommentNode{}, err
	}

	children, truncated, err := s.expandChildren(ctx, comment.ParentShader, &comment.ID, depth)
	if err != nil {
		return CommentNode{}, err
	}
	node.Children = children
	node.ChildrenTruncated = truncated

	return node, nil
}

// expandChildren fetches the comments directly under parentID (top level
// when nil) and recurses one depth level down per child. At depth zero no
// children are fetched; the returned flag reports whether any exist.
func (s *CommentService) expandChildren(ctx context.Context, shaderID uuid.UUID, parentID *uuid.UUID, depth int) ([]CommentNode, bool, error) {
	query := s.DB.WithContext(ctx).Where("parent_shader = ?", shaderID)
	if parentID == nil {
		query = query.Where("parent_comment IS NULL")
	} else {
		query = query.Where("parent_comment = ?", *parentID)
	}

	if depth <= 0 {
		var count int64
		if err := query.Model(&models.Comment{}).Count(&count).Error; err != nil {
			return nil, false, err
		}
		return []CommentNode{}, count > 0, nil
	}

	var comments []models.Comment
	if err := query.Order("posted ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, false, err
	}

	nodes := make([]CommentNode, 0, len(comments))
	for _, comment := range comments {
		node, err := s.buildNode(ctx, comment, depth-1)
		if err != nil {
			return nil, false, err
		}
		nodes = append(nodes, node)
	}

	return nodes, false, nil
}
