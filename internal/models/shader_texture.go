package models

import "github.com/google/uuid"

// TextureKind mirrors the client-side enum: plain 2D texture, vertically
// flipped 2D texture, or a cubemap strip.
type TextureKind int

const (
	TextureKindNormal      TextureKind = 0
	TextureKindNormalVFlip TextureKind = 1
	TextureKindCubemap     TextureKind = 2
)

func (k TextureKind) Valid() bool {
	return k >= TextureKindNormal && k <= TextureKindCubemap
}

type ShaderTexture struct {
	BaseModel
	ShaderID    uuid.UUID   `json:"shaderId" gorm:"type:uuid;not null;index"`
	Name        string      `json:"name" gorm:"type:varchar(255);not null"`
	TextureKind TextureKind `json:"textureKind" gorm:"not null;default:0"`
	URL         string      `json:"url" gorm:"type:text;not null"`
	Key         string      `json:"key" gorm:"type:text;not null"`

	Shader Shader `json:"-" gorm:"foreignKey:ShaderID;references:ID"`
}
