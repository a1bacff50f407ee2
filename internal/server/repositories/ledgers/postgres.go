// Package ledgers stores credit ledgers in PostgreSQL.
package ledgers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/server/models"
)

const ledgerColumns = `owner_id, credits_remaining, storage_used_bytes, storage_limit_bytes, plan_tier, version, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanLedger(row *sql.Row) (*models.CreditLedger, error) {
	var l models.CreditLedger
	err := row.Scan(&l.OwnerID, &l.CreditsRemaining, &l.StorageUsedBytes, &l.StorageLimitBytes,
		&l.PlanTier, &l.Version, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetOrCreate returns the owner's ledger, inserting a free-tier one first
// if none exists. Concurrent first calls converge on a single row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, ownerID string, credits, limitBytes int64) (*models.CreditLedger, error) {
	query := `
		INSERT INTO credit_ledgers (owner_id, credits_remaining, storage_used_bytes, storage_limit_bytes, plan_tier)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, ownerID, credits, limitBytes, models.PlanFree); err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	return r.Get(ctx, ownerID)
}

// Get returns the ledger or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*models.CreditLedger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM credit_ledgers WHERE owner_id=$1`

	l, err := scanLedger(r.db.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select ledger: %w", err)
	}
	return l, nil
}

// ConsumeUpload takes one credit and adds sizeBytes to used storage in one
// guarded statement. When the guard fails the ledger is re-read to report
// ErrInsufficientCredits or ErrQuotaExceeded.
func (r *PostgresRepository) ConsumeUpload(ctx context.Context, ownerID string, sizeBytes int64) (*models.CreditLedger, error) {
	query := `
		UPDATE credit_ledgers
		SET credits_remaining = credits_remaining - 1,
		    storage_used_bytes = storage_used_bytes + $2,
		    version = version + 1,
		    updated_at = now()
		WHERE owner_id = $1
		  AND credits_remaining >= 1
		  AND storage_used_bytes + $2 <= storage_limit_bytes
		RETURNING ` + ledgerColumns

	l, err := scanLedger(r.db.QueryRowContext(ctx, query, ownerID, sizeBytes))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume upload: %w", err)
	}

	current, err := r.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := current.CanUpload(sizeBytes); err != nil {
		return nil, err
	}
	// guard failed but the re-read passes: another writer changed the row in between
	return nil, common.ErrVersionConflict
}

// ReleaseStorage subtracts sizeBytes from used storage, floored at zero.
// Credits are never refunded.
func (r *PostgresRepository) ReleaseStorage(ctx context.Context, ownerID string, sizeBytes int64) (*models.CreditLedger, error) {
	query := `
		UPDATE credit_ledgers
		SET storage_used_bytes = GREATEST(storage_used_bytes - $2, 0),
		    version = version + 1,
		    updated_at = now()
		WHERE owner_id = $1
		RETURNING ` + ledgerColumns

	return r.update(ctx, "release storage", query, ownerID, sizeBytes)
}

// SetPlan changes the tier and its storage limit. Used bytes and credits are untouched.
func (r *PostgresRepository) SetPlan(ctx context.Context, ownerID string, tier models.PlanTier, limitBytes int64) (*models.CreditLedger, error) {
	query := `
		UPDATE credit_ledgers
		SET plan_tier = $2,
		    storage_limit_bytes = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE owner_id = $1
		RETURNING ` + ledgerColumns

	return r.update(ctx, "set plan", query, ownerID, tier, limitBytes)
}

// GrantCredits adds credits to the balance.
func (r *PostgresRepository) GrantCredits(ctx context.Context, ownerID string, credits int64) (*models.CreditLedger, error) {
	query := `
		UPDATE credit_ledgers
		SET credits_remaining = credits_remaining + $2,
		    version = version + 1,
		    updated_at = now()
		WHERE owner_id = $1
		RETURNING ` + ledgerColumns

	return r.update(ctx, "grant credits", query, ownerID, credits)
}

func (r *PostgresRepository) update(ctx context.Context, op, query string, args ...any) (*models.CreditLedger, error) {
	l, err := scanLedger(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return l, nil
}
