// Package models defines server-side data models persisted in the database.
package models

import "time"

// FileRecord describes one uploaded blob. The bytes live in object storage
// under ObjectKey; the record is only written after the object exists.
type FileRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	// ObjectKey is the object-storage key of the blob. Unique and immutable.
	ObjectKey   string `json:"object_key"`
	DisplayName string `json:"display_name"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	// IsPublic lets anyone download the file; toggled by the owner only.
	IsPublic   bool      `json:"is_public"`
	UploadedAt time.Time `json:"uploaded_at"`
	// LastAccessedAt is touched on download on a best-effort basis.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// CanRead reports whether requesterID may download the file.
func (f *FileRecord) CanRead(requesterID string) bool {
	return f.IsPublic || f.OwnerID == requesterID
}

// UsageReport compares the ledger's storage counter with the sum of the
// owner's live file sizes.
type UsageReport struct {
	OwnerID          string `json:"owner_id"`
	LedgerUsedBytes  int64  `json:"ledger_used_bytes"`
	RecordsUsedBytes int64  `json:"records_used_bytes"`
	FileCount        int64  `json:"file_count"`
}

// Consistent reports whether both counters agree.
func (r UsageReport) Consistent() bool {
	return r.LedgerUsedBytes == r.RecordsUsedBytes
}

// Drift is ledger minus records; positive means the ledger over-counts.
func (r UsageReport) Drift() int64 {
	return r.LedgerUsedBytes - r.RecordsUsedBytes
}
