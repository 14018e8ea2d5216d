//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// mockTxManager executes the callback immediately without a real transaction.
type mockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// memBatchRepo is a small in-memory catalog used by unit tests.
type memBatchRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{store: make(map[string]*model.Batch)}
}

func (m *memBatchRepo) add(b *model.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.store[b.ID] = &cp
}

func (m *memBatchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBatchRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.store {
		if b.Slug == slug {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// memOrderRepo implements the order ledger with the same atomic transition
// semantics as the Postgres repo: the created->paid/failed CAS happens under
// one lock, so concurrent confirmation tests exercise the real gate.
type memOrderRepo struct {
	mu         sync.Mutex
	byID       map[string]*model.Order
	byProvider map[string]string // provider_order_id -> id

	SaveFunc func(ctx context.Context, tx repository.Tx, o *model.Order) error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: make(map[string]*model.Order), byProvider: make(map[string]string)}
}

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byProvider[o.ProviderOrderID]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *o
	m.byID[o.ID] = &cp
	m.byProvider[o.ProviderOrderID] = o.ID
	return nil
}

func (m *memOrderRepo) FindByProviderOrderID(ctx context.Context, tx repository.Tx, providerOrderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byProvider[providerOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memOrderRepo) MarkPaidIfCreated(ctx context.Context, tx repository.Tx, id, providerPaymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusCreated {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.ProviderPaymentID = providerPaymentID
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderRepo) MarkFailedIfCreated(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusCreated {
		return false, nil
	}
	o.Status = model.OrderStatusFailed
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.byID {
		if o.Status == model.OrderStatusCreated && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memOrderRepo) get(id string) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.byID[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (m *memOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memGrantRepo enforces the same uniqueness the partial index provides:
// Create under lock rejects a second active grant for (user, batch).
type memGrantRepo struct {
	mu     sync.Mutex
	grants []*model.AccessGrant

	CreateFunc func(ctx context.Context, tx repository.Tx, g *model.AccessGrant) error
}

func newMemGrantRepo() *memGrantRepo { return &memGrantRepo{} }

func (m *memGrantRepo) Create(ctx context.Context, tx repository.Tx, g *model.AccessGrant) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, tx, g); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.grants {
		if existing.UserID == g.UserID && existing.BatchID == g.BatchID && existing.Status == model.GrantStatusActive {
			return domain.ErrAlreadyExists
		}
	}
	cp := *g
	m.grants = append(m.grants, &cp)
	return nil
}

func (m *memGrantRepo) FindActive(ctx context.Context, tx repository.Tx, userID, batchID string, now time.Time) (*model.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.UserID == userID && g.BatchID == batchID && g.Usable(now) {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memGrantRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AccessGrant
	for _, g := range m.grants {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGrantRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, g := range m.grants {
		if g.Status == model.GrantStatusActive && !g.ValidTill.After(now) {
			g.Status = model.GrantStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memGrantRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

// MockPaymentGateway records calls and returns deterministic provider ids.
type MockPaymentGateway struct {
	mu           sync.Mutex
	calls        int
	LastAmount   int64
	LastCurrency string
	LastReceipt  string

	CreateOrderFunc func(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
}

func (g *MockPaymentGateway) Name() string  { return "razorpay" }
func (g *MockPaymentGateway) KeyID() string { return "rzp_test_key" }

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.LastAmount = amountMinor
	g.LastCurrency = currency
	g.LastReceipt = receipt
	n := g.calls
	g.mu.Unlock()

	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, amountMinor, currency, receipt, notes)
	}
	return fmt.Sprintf("order_mock_%d", n), nil
}
