package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/server/models"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/files"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/ledgers"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/orders"
)

// memDB is an in-memory stand-in for the three tables. WithTx serializes
// transactions and restores a snapshot when fn fails.
type memDB struct {
	txMu sync.Mutex

	mu      sync.Mutex
	files   map[string]models.FileRecord
	ledgers map[string]models.CreditLedger
	orders  map[string]models.Order

	failFileCreate error
	failRelease    error
	txCount        int
	// afterGet runs once after the next successful GetByID, outside the lock.
	afterGet func()
}

func newMemDB() *memDB {
	return &memDB{
		files:   map[string]models.FileRecord{},
		ledgers: map[string]models.CreditLedger{},
		orders:  map[string]models.Order{},
	}
}

func (m *memDB) DB() dbx.DBTX { return nil }

func (m *memDB) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	m.txCount++
	filesSnap := make(map[string]models.FileRecord, len(m.files))
	for k, v := range m.files {
		filesSnap[k] = v
	}
	ledgersSnap := make(map[string]models.CreditLedger, len(m.ledgers))
	for k, v := range m.ledgers {
		ledgersSnap[k] = v
	}
	ordersSnap := make(map[string]models.Order, len(m.orders))
	for k, v := range m.orders {
		ordersSnap[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		m.mu.Lock()
		m.files, m.ledgers, m.orders = filesSnap, ledgersSnap, ordersSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) setLedger(l models.CreditLedger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[l.OwnerID] = l
}

func (m *memDB) getLedger(owner string) (models.CreditLedger, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[owner]
	return l, ok
}

func (m *memDB) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *memDB) liveBytes(owner string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, f := range m.files {
		if f.OwnerID == owner {
			sum += f.SizeBytes
		}
	}
	return sum
}

type memRepoManager struct {
	db *memDB
}

func (r *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (r *memRepoManager) Files(dbx.DBTX) files.Repository { return &memFiles{r.db} }
func (r *memRepoManager) Ledgers(dbx.DBTX) ledgers.Repository { return &memLedgers{r.db} }
func (r *memRepoManager) Orders(dbx.DBTX) orders.Repository { return &memOrders{r.db} }

type memFiles struct{ db *memDB }

func (f *memFiles) Create(_ context.Context, rec *models.FileRecord) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failFileCreate != nil {
		return f.db.failFileCreate
	}
	f.db.files[rec.ID] = *rec
	return nil
}

func (f *memFiles) GetByID(_ context.Context, id string) (*models.FileRecord, error) {
	f.db.mu.Lock()
	rec, ok := f.db.files[id]
	hook := f.db.afterGet
	if ok {
		f.db.afterGet = nil
	}
	f.db.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	if hook != nil {
		hook()
	}
	return &rec, nil
}

func (f *memFiles) ListByOwner(_ context.Context, owner string) ([]*models.FileRecord, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]*models.FileRecord, 0)
	for _, rec := range f.db.files {
		if rec.OwnerID == owner {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *memFiles) TogglePublic(_ context.Context, id, owner string) (*models.FileRecord, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	rec, ok := f.db.files[id]
	if !ok || rec.OwnerID != owner {
		return nil, common.ErrorNotFound
	}
	rec.IsPublic = !rec.IsPublic
	f.db.files[id] = rec
	return &rec, nil
}

func (f *memFiles) Delete(_ context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.db.files, id)
	return nil
}

func (f *memFiles) TouchAccessed(_ context.Context, id string, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	rec, ok := f.db.files[id]
	if ok {
		rec.LastAccessedAt = &at
		f.db.files[id] = rec
	}
	return nil
}

func (f *memFiles) UsageByOwner(_ context.Context, owner string) (int64, int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var count, sum int64
	for _, rec := range f.db.files {
		if rec.OwnerID == owner {
			count++
			sum += rec.SizeBytes
		}
	}
	return count, sum, nil
}

type memLedgers struct{ db *memDB }

func (l *memLedgers) GetOrCreate(_ context.Context, owner string, credits, limit int64) (*models.CreditLedger, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	led, ok := l.db.ledgers[owner]
	if !ok {
		led = models.CreditLedger{OwnerID: owner, CreditsRemaining: credits, StorageLimitBytes: limit, PlanTier: models.PlanFree, Version: 1}
		l.db.ledgers[owner] = led
	}
	return &led, nil
}

func (l *memLedgers) Get(_ context.Context, owner string) (*models.CreditLedger, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	led, ok := l.db.ledgers[owner]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &led, nil
}

func (l *memLedgers) mutate(owner string, fn func(*models.CreditLedger) error) (*models.CreditLedger, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	led, ok := l.db.ledgers[owner]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if err := fn(&led); err != nil {
		return nil, err
	}
	led.Version++
	l.db.ledgers[owner] = led
	return &led, nil
}

func (l *memLedgers) ConsumeUpload(_ context.Context, owner string, size int64) (*models.CreditLedger, error) {
	return l.mutate(owner, func(led *models.CreditLedger) error {
		if err := led.CanUpload(size); err != nil {
			return err
		}
		led.CreditsRemaining--
		led.StorageUsedBytes += size
		return nil
	})
}

func (l *memLedgers) ReleaseStorage(_ context.Context, owner string, size int64) (*models.CreditLedger, error) {
	return l.mutate(owner, func(led *models.CreditLedger) error {
		if l.db.failRelease != nil {
			return l.db.failRelease
		}
		led.StorageUsedBytes = max(led.StorageUsedBytes-size, 0)
		return nil
	})
}

func (l *memLedgers) SetPlan(_ context.Context, owner string, tier models.PlanTier, limit int64) (*models.CreditLedger, error) {
	return l.mutate(owner, func(led *models.CreditLedger) error {
		led.PlanTier = tier
		led.StorageLimitBytes = limit
		return nil
	})
}

func (l *memLedgers) GrantCredits(_ context.Context, owner string, credits int64) (*models.CreditLedger, error) {
	return l.mutate(owner, func(led *models.CreditLedger) error {
		led.CreditsRemaining += credits
		return nil
	})
}

type memOrders struct{ db *memDB }

func (o *memOrders) Create(_ context.Context, order *models.Order) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	o.db.orders[order.ID] = *order
	return nil
}

func (o *memOrders) GetByID(_ context.Context, id string) (*models.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &order, nil
}

func (o *memOrders) MarkPaid(_ context.Context, id, paymentID string, at time.Time) (*models.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[id]
	if !ok || order.Status != models.OrderCreated {
		return nil, common.ErrVersionConflict
	}
	order.Status = models.OrderPaid
	order.PaymentID = paymentID
	order.PaidAt = &at
	o.db.orders[id] = order
	return &order, nil
}

// memStore is an in-memory objectstore.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes int

	uploadErr error
	deleteErr error
	getErr    error
	// hang makes Delete and Exists wait for the caller's context.
	hang bool
	// afterUpload runs after a successful Upload; tests use it to interleave writers.
	afterUpload func()
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	if s.uploadErr != nil {
		s.mu.Unlock()
		return s.uploadErr
	}
	s.puts++
	s.objects[key] = append([]byte(nil), data...)
	hook := s.afterUpload
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return b, nil
}

func (s *memStore) wait(ctx context.Context) error {
	<-ctx.Done()
	return fmt.Errorf("%w: %w", common.ErrExternalStore, ctx.Err())
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	if s.hang {
		return s.wait(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes++
	delete(s.objects, key)
	return nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.hang {
		return false, s.wait(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key + "?ttl=" + ttl.String(), nil
}

func (s *memStore) PublicURL(key string) string {
	return "https://cdn.example/" + key
}

func (s *memStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
