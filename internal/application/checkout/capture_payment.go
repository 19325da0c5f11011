package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

// CapturePaymentRequest holds the input for settling a prior authorization.
// A zero Amount captures the authorized amount in full.
type CapturePaymentRequest struct {
	OrderID  string
	Provider gateway.ProviderKind
	Amount   money.Money
}

// CapturePaymentUseCase settles the order's most recent authorization.
type CapturePaymentUseCase struct {
	registry     *gateway.Registry
	transactions transaction.Repository
	outbox       OutboxWriter
	txManager    TransactionManager
	locks        StepLocker
}

// NewCapturePaymentUseCase creates a new CapturePaymentUseCase.
func NewCapturePaymentUseCase(
	registry *gateway.Registry,
	transactions transaction.Repository,
	outbox OutboxWriter,
	txManager TransactionManager,
	locks StepLocker,
) *CapturePaymentUseCase {
	return &CapturePaymentUseCase{
		registry:     registry,
		transactions: transactions,
		outbox:       outbox,
		txManager:    txManager,
		locks:        locks,
	}
}

// Execute runs the capture step for an order.
func (uc *CapturePaymentUseCase) Execute(ctx context.Context, req CapturePaymentRequest) (*transaction.Transaction, error) {
	g, breaker, err := uc.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	var result *transaction.Transaction
	err = uc.locks.WithStepLock(ctx, req.OrderID, transaction.TypeCapture, func(ctx context.Context) error {
		prior, err := uc.transactions.LatestByType(ctx, req.OrderID, transaction.TypeAuthorize)
		if err != nil {
			return err
		}

		amount := req.Amount
		if amount.Currency == "" {
			amount = prior.Amount
		}
		if err := amount.Validate(); err != nil {
			return err
		}

		tx, err := callGateway(ctx, breaker, func() (*transaction.Transaction, error) {
			return g.Capture(ctx, gateway.CaptureRequest{
				OrderID: req.OrderID,
				Amount:  amount,
				Prior:   prior,
			})
		})
		if err != nil {
			return err
		}
		if err := persistStep(ctx, uc.txManager, uc.transactions, uc.outbox, tx, "payment.captured"); err != nil {
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
