package checkout

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

// RefundPaymentRequest holds the input for returning captured funds. When
// Partial is false the captured amount is refunded in full and Amount is
// ignored.
type RefundPaymentRequest struct {
	OrderID  string
	Provider gateway.ProviderKind
	Partial  bool
	Amount   money.Money
}

// RefundPaymentUseCase refunds against the order's most recent capture,
// bounding the sum of all refunds by the captured amount.
type RefundPaymentUseCase struct {
	registry     *gateway.Registry
	transactions transaction.Repository
	outbox       OutboxWriter
	txManager    TransactionManager
	locks        StepLocker
}

// NewRefundPaymentUseCase creates a new RefundPaymentUseCase.
func NewRefundPaymentUseCase(
	registry *gateway.Registry,
	transactions transaction.Repository,
	outbox OutboxWriter,
	txManager TransactionManager,
	locks StepLocker,
) *RefundPaymentUseCase {
	return &RefundPaymentUseCase{
		registry:     registry,
		transactions: transactions,
		outbox:       outbox,
		txManager:    txManager,
		locks:        locks,
	}
}

// Execute runs the refund step for an order.
func (uc *RefundPaymentUseCase) Execute(ctx context.Context, req RefundPaymentRequest) (*transaction.Transaction, error) {
	g, breaker, err := uc.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	var result *transaction.Transaction
	err = uc.locks.WithStepLock(ctx, req.OrderID, transaction.TypeRefund, func(ctx context.Context) error {
		prior, err := uc.latestCapture(ctx, req.OrderID)
		if err != nil {
			return err
		}

		refundReq := gateway.RefundRequest{
			OrderID: req.OrderID,
			Partial: req.Partial,
			Amount:  req.Amount,
			Prior:   prior,
		}
		amount, err := gateway.RefundAmount(refundReq)
		if err != nil {
			return err
		}
		if err := uc.checkRefundBound(ctx, req.OrderID, prior.Amount, amount); err != nil {
			return err
		}

		tx, err := callGateway(ctx, breaker, func() (*transaction.Transaction, error) {
			return g.Refund(ctx, refundReq)
		})
		if err != nil {
			return err
		}
		if err := persistStep(ctx, uc.txManager, uc.transactions, uc.outbox, tx, "payment.refunded"); err != nil {
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

// latestCapture finds the transaction a refund targets: the most recent
// CAPTURE, or AUTHORIZE_CAPTURE for single-call charges.
func (uc *RefundPaymentUseCase) latestCapture(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	prior, err := uc.transactions.LatestByType(ctx, orderID, transaction.TypeCapture)
	if errors.Is(err, domainErrors.ErrTransactionNotFound) {
		prior, err = uc.transactions.LatestByType(ctx, orderID, transaction.TypeAuthorizeCapture)
	}
	return prior, err
}

// checkRefundBound rejects a refund that would push the total refunded past
// the captured amount.
func (uc *RefundPaymentUseCase) checkRefundBound(ctx context.Context, orderID string, captured, requested money.Money) error {
	typ := transaction.TypeRefund
	refunds, err := uc.transactions.List(ctx, transaction.ListFilter{OrderID: orderID, Type: &typ})
	if err != nil {
		return err
	}

	total := requested
	for _, r := range refunds {
		total, err = total.Add(r.Amount)
		if err != nil {
			return fmt.Errorf("sum refunds for order %s: %w", orderID, err)
		}
	}
	if total.GreaterThan(captured) {
		return fmt.Errorf("%w: refunded %s of captured %s", domainErrors.ErrRefundExceedsCaptured, total.Format(), captured.Format())
	}
	return nil
}
