// Package orders stores payment orders in PostgreSQL.
package orders

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

const orderColumns = `id, owner_id, plan_tier, amount_minor, currency, receipt, status, payment_id, created_at, paid_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanOrder(row *sql.Row) (*models.Order, error) {
	var (
		o         models.Order
		paymentID sql.NullString
		paidAt    sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OwnerID, &o.PlanTier, &o.AmountMinor, &o.Currency, &o.Receipt,
		&o.Status, &paymentID, &o.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	o.PaymentID = paymentID.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, nil
}

func (r *PostgresRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, owner_id, plan_tier, amount_minor, currency, receipt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, order.ID, order.OwnerID, order.PlanTier, order.AmountMinor,
		order.Currency, order.Receipt, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the order or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select order: %w", err)
	}
	return o, nil
}

// MarkPaid moves a created order to paid. An order that is not in the
// created state yields common.ErrVersionConflict, so a payment is applied once.
func (r *PostgresRepository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $2, payment_id = $3, paid_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + orderColumns

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id, models.OrderPaid, paymentID, at, models.OrderCreated))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return o, nil
}
