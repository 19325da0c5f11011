package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

// InitializePaymentRequest holds the input for starting a payment handshake.
type InitializePaymentRequest struct {
	OrderID   string
	Provider  gateway.ProviderKind
	Amount    money.Money
	Method    transaction.PaymentMethod
	ReturnURL string
	CancelURL string
}

// InitializePaymentUseCase runs the provider's client-side handshake: a
// client token for card providers, a redirect token and URL for wallets.
type InitializePaymentUseCase struct {
	registry     *gateway.Registry
	transactions transaction.Repository
	outbox       OutboxWriter
	txManager    TransactionManager
	locks        StepLocker
}

// NewInitializePaymentUseCase creates a new InitializePaymentUseCase.
func NewInitializePaymentUseCase(
	registry *gateway.Registry,
	transactions transaction.Repository,
	outbox OutboxWriter,
	txManager TransactionManager,
	locks StepLocker,
) *InitializePaymentUseCase {
	return &InitializePaymentUseCase{
		registry:     registry,
		transactions: transactions,
		outbox:       outbox,
		txManager:    txManager,
		locks:        locks,
	}
}

// Execute runs the initialize step for an order.
func (uc *InitializePaymentUseCase) Execute(ctx context.Context, req InitializePaymentRequest) (*transaction.Transaction, error) {
	g, breaker, err := uc.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}

	var result *transaction.Transaction
	err = uc.locks.WithStepLock(ctx, req.OrderID, transaction.TypeInit, func(ctx context.Context) error {
		tx, err := callGateway(ctx, breaker, func() (*transaction.Transaction, error) {
			return g.Initialize(ctx, gateway.InitializeRequest{
				OrderID:   req.OrderID,
				Amount:    req.Amount,
				Method:    req.Method,
				ReturnURL: req.ReturnURL,
				CancelURL: req.CancelURL,
			})
		})
		if err != nil {
			return err
		}
		if err := persistStep(ctx, uc.txManager, uc.transactions, uc.outbox, tx, "payment.initialized"); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
