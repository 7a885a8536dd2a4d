package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID      uuid.UUID  `json:"author" gorm:"type:uuid;not null;index"`
	Text          string     `json:"text" gorm:"type:text;not null"`
	ParentShader  uuid.UUID  `json:"parentShader" gorm:"type:uuid;not null;index"`
	ParentComment *uuid.UUID `json:"parentComment,omitempty" gorm:"type:uuid;index"`
	Posted        time.Time  `json:"posted" gorm:"not null;autoCreateTime"`
	LastEdited    *time.Time `json:"lastEdited,omitempty"`

	Author User     `json:"-" gorm:"foreignKey:AuthorID;references:ID"`
	Shader Shader   `json:"-" gorm:"foreignKey:ParentShader;references:ID"`
	Parent *Comment `json:"-" gorm:"foreignKey:ParentComment;references:ID"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
