// Package services contains server-side business logic. FileService keeps each
// owner's credit ledger in step with the blobs stored on their behalf.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/logging"
	"github.com/dmitrijs2005/skybox/internal/server/config"
	"github.com/dmitrijs2005/skybox/internal/server/models"
	"github.com/dmitrijs2005/skybox/internal/server/objectstore"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/repomanager"
)

const (
	defaultContentType = "application/octet-stream"
	commitAttempts     = 3
	cleanupTimeout     = 30 * time.Second
)

// seams for tests
var (
	newFileID = uuid.NewString
	nowFunc   = func() time.Time { return time.Now().UTC() }
)

// FileService coordinates the object store with file metadata and the credit ledger.
//
// Upload writes the object first and then commits the ledger charge together
// with the metadata row. Delete removes the object first and then the row
// together with the storage release. A crash between the two steps leaves an
// orphaned object, never a charge without a blob.
type FileService struct {
	tx             dbx.Transactor
	repomanager    repomanager.RepositoryManager
	store          objectstore.Store
	cache          *PublicCache
	logger         logging.Logger
	defaultCredits int64
	uploadTimeout  time.Duration
	storeTimeout   time.Duration
	presignTTL     time.Duration
	publicDomain   bool
}

// NewFileService constructs a FileService from repositories, the object store and server config.
func NewFileService(tx dbx.Transactor, m repomanager.RepositoryManager, store objectstore.Store, cfg *config.Config, logger logging.Logger) *FileService {
	return &FileService{
		tx:             tx,
		repomanager:    m,
		store:          store,
		cache:          NewPublicCache(cfg.PublicCacheSize, cfg.PublicCacheTTL),
		logger:         logger.With("module", "files"),
		defaultCredits: cfg.DefaultCredits,
		uploadTimeout:  cfg.UploadTimeout,
		storeTimeout:   cfg.StoreTimeout,
		presignTTL:     cfg.PresignTTL,
		publicDomain:   cfg.S3PublicDomain != "",
	}
}

// ObjectKey builds the storage key for a new upload of name by ownerID.
func ObjectKey(ownerID, name string) string {
	return "private/" + ownerID + "/" + uuid.NewString() + common.FileExtension(name)
}

func (s *FileService) ledger(ctx context.Context, db dbx.DBTX, ownerID string) (*models.CreditLedger, error) {
	free, err := models.LookupPlan(models.PlanFree)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Ledgers(db).GetOrCreate(ctx, ownerID, s.defaultCredits, free.StorageLimitBytes)
}

// UploadInput is one file of an upload request.
type UploadInput struct {
	Data        []byte
	DisplayName string
	ContentType string
	SizeBytes   int64
}

// validate checks the preconditions of a single upload and fills defaults.
func (in *UploadInput) validate() error {
	if in.SizeBytes <= 0 {
		return fmt.Errorf("%w: size must be positive", common.ErrorInvalidArgument)
	}
	if int64(len(in.Data)) != in.SizeBytes {
		return fmt.Errorf("%w: size %d does not match payload length %d", common.ErrorInvalidArgument, in.SizeBytes, len(in.Data))
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		return fmt.Errorf("%w: display name is required", common.ErrorInvalidArgument)
	}
	if in.ContentType == "" {
		in.ContentType = defaultContentType
	}
	return nil
}

func countUpload(err error, size int64) {
	uploadsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		uploadBytesTotal.Add(float64(size))
	}
}

// Upload stores data for ownerID and charges one credit plus sizeBytes of quota.
// Credit and quota checks run before anything is written.
func (s *FileService) Upload(ctx context.Context, ownerID string, data []byte, displayName, contentType string, sizeBytes int64) (rec *models.FileRecord, err error) {
	defer func() { countUpload(err, sizeBytes) }()

	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	in := UploadInput{Data: data, DisplayName: displayName, ContentType: contentType, SizeBytes: sizeBytes}
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := bounded(ctx, s.uploadTimeout)
	defer cancel()

	l, err := s.ledger(ctx, s.tx.DB(), ownerID)
	if err != nil {
		return nil, err
	}
	if err := l.CanUpload(sizeBytes); err != nil {
		return nil, err
	}

	return s.storeOne(ctx, ownerID, in)
}

// UploadFiles uploads several files for ownerID. The owner must hold a credit
// per file and quota for their combined size before anything is written.
// Files are then stored one by one; on the first failure the records already
// committed are returned together with the error. The returned ledger
// reflects the charges of a fully successful batch.
func (s *FileService) UploadFiles(ctx context.Context, ownerID string, inputs []UploadInput) ([]*models.FileRecord, *models.CreditLedger, error) {
	if ownerID == "" {
		return nil, nil, common.ErrorUnauthorized
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("%w: no files", common.ErrorInvalidArgument)
	}

	var total int64
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			countUpload(err, 0)
			return nil, nil, fmt.Errorf("file %d: %w", i, err)
		}
		total += inputs[i].SizeBytes
	}

	ctx, cancel := bounded(ctx, s.uploadTimeout)
	defer cancel()

	l, err := s.ledger(ctx, s.tx.DB(), ownerID)
	if err != nil {
		return nil, nil, err
	}
	if err := l.CanUploadBatch(len(inputs), total); err != nil {
		countUpload(err, 0)
		return nil, nil, err
	}

	records := make([]*models.FileRecord, 0, len(inputs))
	for i, in := range inputs {
		rec, err := s.storeOne(ctx, ownerID, in)
		countUpload(err, in.SizeBytes)
		if err != nil {
			s.logger.Warn(ctx, "batch upload stopped", "owner_id", ownerID, "index", i, "stored", len(records), "error", err)
			return records, nil, fmt.Errorf("file %d (%s): %w", i, in.DisplayName, err)
		}
		records = append(records, rec)
	}

	l, err = s.repomanager.Ledgers(s.tx.DB()).Get(ctx, ownerID)
	if err != nil {
		return records, nil, err
	}
	return records, l, nil
}

// bounded applies d to ctx; zero leaves ctx unbounded.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// storeOne writes one validated file and commits its charge and record.
func (s *FileService) storeOne(ctx context.Context, ownerID string, in UploadInput) (*models.FileRecord, error) {
	rec := &models.FileRecord{
		ID:          newFileID(),
		OwnerID:     ownerID,
		ObjectKey:   ObjectKey(ownerID, in.DisplayName),
		DisplayName: in.DisplayName,
		SizeBytes:   in.SizeBytes,
		ContentType: in.ContentType,
		UploadedAt:  nowFunc(),
	}

	if err := s.store.Upload(ctx, rec.ObjectKey, in.Data, in.ContentType); err != nil {
		return nil, err
	}

	err := s.commitUpload(ctx, rec)
	switch {
	case err == nil:
		s.logger.Info(ctx, "file uploaded", "file_id", rec.ID, "owner_id", ownerID, "size", rec.SizeBytes)
		return rec, nil
	case errors.Is(err, common.ErrInsufficientCredits),
		errors.Is(err, common.ErrQuotaExceeded),
		errors.Is(err, common.ErrVersionConflict):
		// lost the race for the ledger: the charge was never applied
		s.removeObject(ctx, rec.ObjectKey)
		return nil, err
	default:
		s.logger.Error(ctx, "upload commit failed, object orphaned", "object_key", rec.ObjectKey, "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
}

// commitUpload charges the ledger and inserts the record in one transaction.
func (s *FileService) commitUpload(ctx context.Context, rec *models.FileRecord) error {
	var err error
	for range commitAttempts {
		err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			if _, err := s.repomanager.Ledgers(tx).ConsumeUpload(ctx, rec.OwnerID, rec.SizeBytes); err != nil {
				return err
			}
			return s.repomanager.Files(tx).Create(ctx, rec)
		})
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func (s *FileService) removeObject(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error(ctx, "failed to remove uncommitted object", "object_key", key, "error", err)
	}
}

// getRecord loads a record by id. Ids that are not UUIDs cannot exist.
func (s *FileService) getRecord(ctx context.Context, fileID string) (*models.FileRecord, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Files(s.tx.DB()).GetByID(ctx, fileID)
}

// readable returns the record if requesterID may read it.
func (s *FileService) readable(ctx context.Context, requesterID, fileID string) (*models.FileRecord, error) {
	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !rec.CanRead(requesterID) {
		return nil, common.ErrorForbidden
	}
	return rec, nil
}

// missingObject records metadata that points at an absent object.
func (s *FileService) missingObject(ctx context.Context, rec *models.FileRecord) error {
	inconsistentStateTotal.Inc()
	s.logger.Error(ctx, "object missing for file record", "file_id", rec.ID, "object_key", rec.ObjectKey)
	return fmt.Errorf("%w: %w: object %s", common.ErrorNotFound, common.ErrInconsistentState, rec.ObjectKey)
}

// Download returns the record and its bytes. requesterID may be empty for
// anonymous access to public files.
func (s *FileService) Download(ctx context.Context, requesterID, fileID string) (rec *models.FileRecord, data []byte, err error) {
	defer func() { downloadsTotal.WithLabelValues(outcome(err)).Inc() }()

	rec, err = s.readable(ctx, requesterID, fileID)
	if err != nil {
		return nil, nil, err
	}

	getCtx, cancel := bounded(ctx, s.uploadTimeout)
	data, err = s.store.Get(getCtx, rec.ObjectKey)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, s.missingObject(ctx, rec)
		}
		return nil, nil, err
	}

	now := nowFunc()
	if err := s.repomanager.Files(s.tx.DB()).TouchAccessed(ctx, rec.ID, now); err != nil {
		s.logger.Warn(ctx, "failed to touch last access", "file_id", rec.ID, "error", err)
	} else {
		rec.LastAccessedAt = &now
	}

	return rec, data, nil
}

// Delete removes the object and then the record, releasing its storage.
// Credits are not refunded.
func (s *FileService) Delete(ctx context.Context, requesterID, fileID string) (err error) {
	defer func() { deletesTotal.WithLabelValues(outcome(err)).Inc() }()

	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return err
	}
	if rec.OwnerID != requesterID {
		return common.ErrorForbidden
	}

	delCtx, cancel := bounded(ctx, s.storeTimeout)
	err = s.store.Delete(delCtx, rec.ObjectKey)
	cancel()
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Delete(ctx, rec.ID); err != nil {
			return err
		}
		_, err := s.repomanager.Ledgers(tx).ReleaseStorage(ctx, rec.OwnerID, rec.SizeBytes)
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "no ledger to release storage from", "owner_id", rec.OwnerID)
			return nil
		}
		return err
	})
	s.cache.Delete(rec.ID)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "file deleted", "file_id", rec.ID, "owner_id", rec.OwnerID, "size", rec.SizeBytes)
	return nil
}

// TogglePublic flips the visibility of a file owned by requesterID.
func (s *FileService) TogglePublic(ctx context.Context, requesterID, fileID string) (*models.FileRecord, error) {
	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != requesterID {
		return nil, common.ErrorForbidden
	}

	updated, err := s.repomanager.Files(s.tx.DB()).TogglePublic(ctx, rec.ID, requesterID)
	s.cache.Delete(rec.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListFiles returns the owner's files, newest first.
func (s *FileService) ListFiles(ctx context.Context, ownerID string) ([]*models.FileRecord, error) {
	return s.repomanager.Files(s.tx.DB()).ListByOwner(ctx, ownerID)
}

// GetPublicFile returns metadata of a public file without authentication.
// Private and missing files both yield common.ErrorNotFound.
func (s *FileService) GetPublicFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	if rec, ok := s.cache.Get(fileID); ok {
		cp := *rec
		return &cp, nil
	}

	epoch := s.cache.Epoch()
	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !rec.IsPublic {
		return nil, common.ErrorNotFound
	}

	cp := *rec
	s.cache.Set(fileID, &cp, epoch)
	return rec, nil
}

// GetDownloadURL returns a link to the object after the same checks as Download.
// Public files use the public domain when one is configured.
func (s *FileService) GetDownloadURL(ctx context.Context, requesterID, fileID string) (string, error) {
	rec, err := s.readable(ctx, requesterID, fileID)
	if err != nil {
		return "", err
	}

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.store.Exists(ctx, rec.ObjectKey)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", s.missingObject(ctx, rec)
	}

	if rec.IsPublic && s.publicDomain {
		return s.store.PublicURL(rec.ObjectKey), nil
	}
	return s.store.PresignGet(ctx, rec.ObjectKey, s.presignTTL)
}

// GetCredits returns the owner's ledger, creating a free one on first use.
func (s *FileService) GetCredits(ctx context.Context, ownerID string) (*models.CreditLedger, error) {
	return s.ledger(ctx, s.tx.DB(), ownerID)
}

// CheckUsage compares the ledger's used bytes with the owner's live records.
// Drift is reported and logged, never repaired.
func (s *FileService) CheckUsage(ctx context.Context, ownerID string) (*models.UsageReport, error) {
	db := s.tx.DB()
	l, err := s.ledger(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	count, size, err := s.repomanager.Files(db).UsageByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	report := &models.UsageReport{
		OwnerID:          ownerID,
		LedgerUsedBytes:  l.StorageUsedBytes,
		RecordsUsedBytes: size,
		FileCount:        count,
	}
	if !report.Consistent() {
		s.logger.Warn(ctx, "ledger usage drift", "owner_id", ownerID, "drift", report.Drift())
	}
	return report, nil
}
