package services

import (
	"context"

	"github.com/glsbox/backend/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type PermissionService struct {
	DB *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{DB: db}
}

// EditingAllowed reports whether actor may mutate a resource owned by owner:
// true on identity, otherwise true iff the actor's role strictly outranks
// the owner's. A missing user on either side yields false, never an error.
func (p *PermissionService) EditingAllowed(ctx context.Context, actorID, ownerID uuid.UUID) bool {
	if actorID == ownerID {
		return true
	}

	var actor, owner models.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.DB.WithContext(gctx).Select("id", "role").First(&actor, "id = ?", actorID).Error
	})
	g.Go(func() error {
		return p.DB.WithContext(gctx).Select("id", "role").First(&owner, "id = ?", ownerID).Error
	})

	if err := g.Wait(); err != nil {
		return false
	}

	return actor.Role < owner.Role
}
