package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/transaction"
)

// ListTransactionsUseCase returns an order's step history.
type ListTransactionsUseCase struct {
	transactions transaction.Repository
}

// NewListTransactionsUseCase creates a new ListTransactionsUseCase.
func NewListTransactionsUseCase(transactions transaction.Repository) *ListTransactionsUseCase {
	return &ListTransactionsUseCase{transactions: transactions}
}

// Execute lists transactions for an order, oldest first.
func (uc *ListTransactionsUseCase) Execute(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	return uc.transactions.List(ctx, f)
}
