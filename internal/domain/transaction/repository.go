package transaction

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows transaction queries.
type ListFilter struct {
	OrderID  string
	Provider *string
	Type     *Type
	Limit    int
	Offset   int
}

// Repository persists transactions between lifecycle steps.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// List returns transactions ordered by creation time ascending, so the
	// lifecycle driver can replay an order's step history.
	List(ctx context.Context, f ListFilter) ([]*Transaction, error)
	// LatestByType returns the most recent transaction of the given type for
	// an order, or errors.ErrTransactionNotFound.
	LatestByType(ctx context.Context, orderID string, typ Type) (*Transaction, error)
}
