package models

import (
	"time"

	"github.com/google/uuid"
)

type Shader struct {
	BaseModel
	OwnerID        uuid.UUID  `json:"owner" gorm:"type:uuid;not null;index"`
	Name           string     `json:"name" gorm:"type:varchar(255);not null"`
	Description    string     `json:"description" gorm:"type:text;not null;default:''"`
	Code           string     `json:"code" gorm:"type:text;not null;default:''"`
	Published      bool       `json:"published" gorm:"not null;default:false;index"`
	PublishingDate *time.Time `json:"publishingDate,omitempty"`
	LikeCount      int64      `json:"likeCount" gorm:"not null;default:0"`
	PreviewURL     *string    `json:"previewUrl,omitempty" gorm:"type:text"`
	PreviewKey     *string    `json:"previewKey,omitempty" gorm:"type:text"`

	Owner    User            `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	Textures []ShaderTexture `json:"textures" gorm:"foreignKey:ShaderID"`
}
