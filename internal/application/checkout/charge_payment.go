package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

// ChargePaymentUseCase authorizes and captures in a single provider call.
// It shares AuthorizePaymentRequest; only the submitted step differs.
type ChargePaymentUseCase struct {
	registry     *gateway.Registry
	transactions transaction.Repository
	outbox       OutboxWriter
	txManager    TransactionManager
	locks        StepLocker
}

// NewChargePaymentUseCase creates a new ChargePaymentUseCase.
func NewChargePaymentUseCase(
	registry *gateway.Registry,
	transactions transaction.Repository,
	outbox OutboxWriter,
	txManager TransactionManager,
	locks StepLocker,
) *ChargePaymentUseCase {
	return &ChargePaymentUseCase{
		registry:     registry,
		transactions: transactions,
		outbox:       outbox,
		txManager:    txManager,
		locks:        locks,
	}
}

// Execute runs the authorize-and-capture step for an order.
func (uc *ChargePaymentUseCase) Execute(ctx context.Context, req AuthorizePaymentRequest) (*transaction.Transaction, error) {
	g, breaker, err := uc.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}

	var result *transaction.Transaction
	err = uc.locks.WithStepLock(ctx, req.OrderID, transaction.TypeAuthorizeCapture, func(ctx context.Context) error {
		tx, err := callGateway(ctx, breaker, func() (*transaction.Transaction, error) {
			return g.AuthorizeAndCapture(ctx, gateway.PaymentRequest{
				OrderID:    req.OrderID,
				Amount:     req.Amount,
				Method:     req.Method,
				Instrument: req.Instrument,
			})
		})
		if err != nil {
			return err
		}
		if err := persistStep(ctx, uc.txManager, uc.transactions, uc.outbox, tx, "payment.charged"); err != nil {
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
