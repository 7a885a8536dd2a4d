package models

import "github.com/google/uuid"

// UserRole is an ordered privilege level: a smaller ordinal means more
// privilege. Admin outranks Moderator outranks User.
type UserRole int

const (
	UserRoleAdmin     UserRole = 0
	UserRoleModerator UserRole = 1
	UserRoleUser      UserRole = 2
)

func (r UserRole) Valid() bool {
	return r >= UserRoleAdmin && r <= UserRoleUser
}

type User struct {
	BaseModel
	Username       string   `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash   string   `json:"-" gorm:"type:text;not null"`
	Role           UserRole `json:"role" gorm:"not null;default:2"`
	Email          *string  `json:"email,omitempty" gorm:"type:varchar(255)"`
	Telegram       *string  `json:"telegram,omitempty" gorm:"type:varchar(100);index"`
	PublicEmail    bool     `json:"publicEmail" gorm:"not null;default:false"`
	PublicTelegram bool     `json:"publicTelegram" gorm:"not null;default:false"`

	Shaders  []Shader  `json:"-" gorm:"foreignKey:OwnerID"`
	Comments []Comment `json:"-" gorm:"foreignKey:AuthorID"`
}

// UserSummary is the author projection embedded in comment payloads.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
