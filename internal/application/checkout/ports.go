package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/outbox"
	"github.com/commercekit/paygate/internal/domain/transaction"
)

// TransactionManager defines the interface for database transaction
// management. This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// StepLocker serializes lifecycle steps per order. WithStepLock runs fn while
// holding the lock for the order and step, and returns
// errors.ErrStepInProgress without running fn when another request holds it.
type StepLocker interface {
	WithStepLock(ctx context.Context, orderID string, step transaction.Type, fn func(ctx context.Context) error) error
}
