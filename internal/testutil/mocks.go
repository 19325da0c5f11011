package testutil

import (
	"context"
	"sync"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/outbox"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/google/uuid"
)

// --- Transaction Repository Mock ---

// MockTransactionRepository is a mock implementation of
// transaction.Repository backed by an ordered in-memory list.
type MockTransactionRepository struct {
	mu   sync.Mutex
	txns []*transaction.Transaction

	CreateFunc       func(ctx context.Context, t *transaction.Transaction) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	ListFunc         func(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error)
	LatestByTypeFunc func(ctx context.Context, orderID string, typ transaction.Type) (*transaction.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

// Add pre-populates the mock with a transaction.
func (m *MockTransactionRepository) Add(t *transaction.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns = append(m.txns, t)
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.Add(t)
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockTransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*transaction.Transaction
	for _, t := range m.txns {
		if f.OrderID != "" && t.OrderID != f.OrderID {
			continue
		}
		if f.Provider != nil && t.Provider != *f.Provider {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *MockTransactionRepository) LatestByType(ctx context.Context, orderID string, typ transaction.Type) (*transaction.Transaction, error) {
	if m.LatestByTypeFunc != nil {
		return m.LatestByTypeFunc(ctx, orderID, typ)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].OrderID == orderID && m.txns[i].Type == typ {
			return m.txns[i], nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

// All returns every stored transaction (test helper, no context needed).
func (m *MockTransactionRepository) All() []*transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*transaction.Transaction(nil), m.txns...)
}

// --- Transaction Manager Mock ---

// MockTransactionManager runs the callback without a real database
// transaction.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository records inserted entries and serves them back as
// pending.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending {
			pending = append(pending, e)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusPublished
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}

// Entries returns every inserted entry (test helper, no context needed).
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

// --- Step Locker Mock ---

// MockStepLocker runs the callback directly. Setting Held simulates a lock
// already taken by another request.
type MockStepLocker struct {
	mu   sync.Mutex
	Held map[string]bool

	locked []string
}

func NewMockStepLocker() *MockStepLocker {
	return &MockStepLocker{Held: make(map[string]bool)}
}

func (m *MockStepLocker) WithStepLock(ctx context.Context, orderID string, step transaction.Type, fn func(ctx context.Context) error) error {
	key := orderID + ":" + string(step)
	m.mu.Lock()
	if m.Held[key] {
		m.mu.Unlock()
		return domainErrors.ErrStepInProgress
	}
	m.locked = append(m.locked, key)
	m.mu.Unlock()
	return fn(ctx)
}

// LockedKeys returns the order:step keys locked so far, in order.
func (m *MockStepLocker) LockedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locked...)
}
