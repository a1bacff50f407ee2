package ledgers

import (
	"context"

	"github.com/dmitrijs2005/skybox/internal/server/models"
)

// Repository persists per-owner credit ledgers. Every mutation is a single
// conditional statement so concurrent requests never lose updates.
type Repository interface {
	GetOrCreate(ctx context.Context, ownerID string, credits, limitBytes int64) (*models.CreditLedger, error)
	Get(ctx context.Context, ownerID string) (*models.CreditLedger, error)
	ConsumeUpload(ctx context.Context, ownerID string, sizeBytes int64) (*models.CreditLedger, error)
	ReleaseStorage(ctx context.Context, ownerID string, sizeBytes int64) (*models.CreditLedger, error)
	SetPlan(ctx context.Context, ownerID string, tier models.PlanTier, limitBytes int64) (*models.CreditLedger, error)
	GrantCredits(ctx context.Context, ownerID string, credits int64) (*models.CreditLedger, error)
}
