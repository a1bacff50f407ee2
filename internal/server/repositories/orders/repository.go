package orders

import (
	"context"
	"time"

	"github.com/dmitrijs2005/skybox/internal/server/models"
)

// Repository persists payment orders.
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (*models.Order, error)
}
