package models

import (
	"time"

	"github.com/google/uuid"
)

// Like is pure existence state: a row means "user likes shader". The
// composite unique index makes concurrent double-likes a constraint
// violation instead of a silent duplicate.
type Like struct {
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_user_shader_like;index"`
	ShaderID  uuid.UUID `json:"shaderID" gorm:"type:uuid;not null;uniqueIndex:idx_user_shader_like;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Like) TableName() string {
	return "likes"
}
