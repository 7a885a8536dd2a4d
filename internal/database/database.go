package database

import (
	"fmt"

	"github.com/glsbox/backend/internal/config"
	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Shader{},
		&models.ShaderTexture{},
		&models.Comment{},
		&models.Like{},
		&models.BotUser{},
	); err != nil {
		return err
	}

	// A reply must live under the same shader as its parent. The composite
	// foreign key makes that a store-level guarantee rather than a handler
	// convention; the unique constraint exists only to back the reference.
	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'comment_parent_same_shader'
  ) THEN
    ALTER TABLE comments
    ADD CONSTRAINT comments_id_parent_shader_key
    UNIQUE (id, parent_shader);

    ALTER TABLE comments
    ADD CONSTRAINT comment_parent_same_shader
    FOREIGN KEY (parent_comment, parent_shader)
    REFERENCES comments (id, parent_shader);
  END IF;
END $$;`

	return db.Exec(constraint).Error
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     "admin",
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
	}

	return db.Create(&admin).Error
}
