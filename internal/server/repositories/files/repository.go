package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/skybox/internal/server/models"
)

// Repository persists FileRecord metadata.
type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error)
	TogglePublic(ctx context.Context, id, ownerID string) (*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
	TouchAccessed(ctx context.Context, id string, at time.Time) error
	UsageByOwner(ctx context.Context, ownerID string) (count int64, sizeBytes int64, err error)
}
