package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/server/models"
)

const fileColumns = `id, owner_id, object_key, display_name, size_bytes, content_type, is_public, uploaded_at, last_accessed_at`

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	var (
		f        models.FileRecord
		accessed sql.NullTime
	)
	err := row.Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.DisplayName, &f.SizeBytes,
		&f.ContentType, &f.IsPublic, &f.UploadedAt, &accessed)
	if err != nil {
		return nil, err
	}
	if accessed.Valid {
		t := accessed.Time
		f.LastAccessedAt = &t
	}
	return &f, nil
}

// Create inserts a new record. The object key must be unique.
func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) error {
	query := `
		INSERT INTO files (id, owner_id, object_key, display_name, size_bytes, content_type, is_public, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.OwnerID, file.ObjectKey, file.DisplayName, file.SizeBytes, file.ContentType, file.IsPublic, file.UploadedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the record or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// ListByOwner returns the owner's records, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id=$1 ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.FileRecord, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TogglePublic flips is_public in a single statement guarded by ownership.
// Returns common.ErrorNotFound when no row matches id and owner.
func (r *PostgresRepository) TogglePublic(ctx context.Context, id, ownerID string) (*models.FileRecord, error) {
	query := `UPDATE files SET is_public = NOT is_public WHERE id=$1 AND owner_id=$2 RETURNING ` + fileColumns

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to toggle visibility: %w", err)
	}
	return f, nil
}

// Delete removes the record. Exactly one row must be affected, otherwise
// common.ErrorNotFound is returned so callers never release quota twice.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", ra)
	}
}

// TouchAccessed records the last download time.
func (r *PostgresRepository) TouchAccessed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE files SET last_accessed_at=$2 WHERE id=$1`, id, at); err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	return nil
}

// UsageByOwner returns the number of live records and the sum of their sizes.
func (r *PostgresRepository) UsageByOwner(ctx context.Context, ownerID string) (int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id=$1`

	var count, size int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count, &size); err != nil {
		return 0, 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return count, size, nil
}
