package models

import (
	"time"

	"github.com/dmitrijs2005/skybox/internal/common"
)

// CreditLedger is the per-owner upload allowance and storage quota.
// It is the single source of truth for quota enforcement.
type CreditLedger struct {
	OwnerID           string    `json:"owner_id"`
	CreditsRemaining  int64     `json:"credits_remaining"`
	StorageUsedBytes  int64     `json:"storage_used_bytes"`
	StorageLimitBytes int64     `json:"storage_limit_bytes"`
	PlanTier          PlanTier  `json:"plan_tier"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StorageAvailableBytes is the remaining quota, never negative.
func (l *CreditLedger) StorageAvailableBytes() int64 {
	if free := l.StorageLimitBytes - l.StorageUsedBytes; free > 0 {
		return free
	}
	return 0
}

// CanUpload reports whether an upload of size bytes passes both checks.
func (l *CreditLedger) CanUpload(size int64) error {
	return l.CanUploadBatch(1, size)
}

// CanUploadBatch reports whether count uploads totalling size bytes fit in the
// remaining credits and quota.
func (l *CreditLedger) CanUploadBatch(count int, size int64) error {
	if l.CreditsRemaining < int64(count) {
		return common.ErrInsufficientCredits
	}
	if l.StorageUsedBytes+size > l.StorageLimitBytes {
		return common.ErrQuotaExceeded
	}
	return nil
}
