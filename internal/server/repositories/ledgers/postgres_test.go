package ledgers

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerCols = []string{"owner_id", "credits_remaining", "storage_used_bytes", "storage_limit_bytes", "plan_tier", "version", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func ledgerRow(credits, used, limit int64, tier string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(ledgerCols).AddRow("u1", credits, used, limit, tier, version, time.Now())
}

func TestGetOrCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO credit_ledgers.*ON CONFLICT \(owner_id\) DO NOTHING`).
		WithArgs("u1", int64(5), int64(1000), "free").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM credit_ledgers WHERE owner_id=\$1`).WithArgs("u1").
		WillReturnRows(ledgerRow(5, 0, 1000, "free", 1))

	l, err := repo.GetOrCreate(context.Background(), "u1", 5, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), l.CreditsRemaining)
	assert.Equal(t, models.PlanFree, l.PlanTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_InsertError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO credit_ledgers`).WillReturnError(errors.New("boom"))

	_, err := repo.GetOrCreate(context.Background(), "u1", 5, 1000)
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM credit_ledgers WHERE owner_id=\$1`).WithArgs("u1").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConsumeUpload_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE credit_ledgers.*credits_remaining >= 1.*storage_used_bytes \+ \$2 <= storage_limit_bytes.*RETURNING`).
		WithArgs("u1", int64(600)).
		WillReturnRows(ledgerRow(4, 600, 1000, "free", 2))

	l, err := repo.ConsumeUpload(context.Background(), "u1", 600)
	require.NoError(t, err)
	assert.Equal(t, int64(4), l.CreditsRemaining)
	assert.Equal(t, int64(600), l.StorageUsedBytes)
}

func TestConsumeUpload_GuardFailures(t *testing.T) {
	cases := []struct {
		name    string
		row     *sqlmock.Rows
		wantErr error
	}{
		{name: "no credits", row: ledgerRow(0, 0, 1000, "free", 3), wantErr: common.ErrInsufficientCredits},
		{name: "over quota", row: ledgerRow(4, 600, 1000, "free", 2), wantErr: common.ErrQuotaExceeded},
		{name: "raced", row: ledgerRow(4, 0, 1000, "free", 2), wantErr: common.ErrVersionConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)

			mock.ExpectQuery(`(?s)UPDATE credit_ledgers.*RETURNING`).WithArgs("u1", int64(600)).
				WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`FROM credit_ledgers WHERE owner_id=\$1`).WithArgs("u1").WillReturnRows(tc.row)

			_, err := repo.ConsumeUpload(context.Background(), "u1", 600)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConsumeUpload_MissingLedger(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE credit_ledgers`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM credit_ledgers WHERE owner_id`).WillReturnError(sql.ErrNoRows)

	_, err := repo.ConsumeUpload(context.Background(), "u1", 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConsumeUpload_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE credit_ledgers`).WillReturnError(errors.New("conn reset"))

	_, err := repo.ConsumeUpload(context.Background(), "u1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to consume upload")
}

func TestReleaseStorage(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)GREATEST\(storage_used_bytes - \$2, 0\)`).WithArgs("u1", int64(600)).
		WillReturnRows(ledgerRow(4, 0, 1000, "free", 3))

	l, err := repo.ReleaseStorage(context.Background(), "u1", 600)
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.StorageUsedBytes)
	assert.Equal(t, int64(4), l.CreditsRemaining)
}

func TestReleaseStorage_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`GREATEST`).WillReturnError(sql.ErrNoRows)

	_, err := repo.ReleaseStorage(context.Background(), "u1", 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetPlan(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SET plan_tier = \$2,\s+storage_limit_bytes = \$3`).
		WithArgs("u1", "premium", 10*common.GiB).
		WillReturnRows(ledgerRow(5, 100, 10*common.GiB, "premium", 4))

	l, err := repo.SetPlan(context.Background(), "u1", models.PlanPremium, 10*common.GiB)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPremium, l.PlanTier)
	assert.Equal(t, int64(100), l.StorageUsedBytes)
}

func TestGrantCredits(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`credits_remaining = credits_remaining \+ \$2`).WithArgs("u1", int64(500)).
		WillReturnRows(ledgerRow(505, 0, 1000, "premium", 5))

	l, err := repo.GrantCredits(context.Background(), "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(505), l.CreditsRemaining)
}

func TestGrantCredits_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`credits_remaining = credits_remaining`).WillReturnError(errors.New("boom"))

	_, err := repo.GrantCredits(context.Background(), "u1", 1)
	require.Error(t, err)
	assert.Equal(t, "failed to grant credits: boom", err.Error())
}
