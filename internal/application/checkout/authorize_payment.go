package checkout

import (
	"context"

	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

// AuthorizePaymentRequest holds the input for the authorize and
// authorize-and-capture steps.
type AuthorizePaymentRequest struct {
	OrderID    string
	Provider   gateway.ProviderKind
	Amount     money.Money
	Method     transaction.PaymentMethod
	Instrument gateway.Instrument
}

// AuthorizePaymentUseCase places a hold on the customer's instrument without
// moving funds. Capture settles it later.
type AuthorizePaymentUseCase struct {
	registry     *gateway.Registry
	transactions transaction.Repository
	outbox       OutboxWriter
	txManager    TransactionManager
	locks        StepLocker
}

// NewAuthorizePaymentUseCase creates a new AuthorizePaymentUseCase.
func NewAuthorizePaymentUseCase(
	registry *gateway.Registry,
	transactions transaction.Repository,
	outbox OutboxWriter,
	txManager TransactionManager,
	locks StepLocker,
) *AuthorizePaymentUseCase {
	return &AuthorizePaymentUseCase{
		registry:     registry,
		transactions: transactions,
		outbox:       outbox,
		txManager:    txManager,
		locks:        locks,
	}
}

// Execute runs the authorize step for an order.
func (uc *AuthorizePaymentUseCase) Execute(ctx context.Context, req AuthorizePaymentRequest) (*transaction.Transaction, error) {
	g, breaker, err := uc.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}

	var result *transaction.Transaction
	err = uc.locks.WithStepLock(ctx, req.OrderID, transaction.TypeAuthorize, func(ctx context.Context) error {
		tx, err := callGateway(ctx, breaker, func() (*transaction.Transaction, error) {
			return g.Authorize(ctx, gateway.PaymentRequest{
				OrderID:    req.OrderID,
				Amount:     req.Amount,
				Method:     req.Method,
				Instrument: req.Instrument,
			})
		})
		if err != nil {
			return err
		}
		if err := persistStep(ctx, uc.txManager, uc.transactions, uc.outbox, tx, "payment.authorized"); err != nil {
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
