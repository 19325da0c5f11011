package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/outbox"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
	"github.com/commercekit/paygate/pkg/retry"
)

// gatewayRetryConfig retries only transient failures. Declines, validation
// failures and open-breaker errors surface immediately.
func gatewayRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		RetryIf:      domainErrors.IsTransient,
	}
}

// callGateway runs one provider call under the provider's circuit breaker.
// Breaker rejections surface as the provider-unavailable sentinel so the HTTP
// layer answers 503 instead of a generic failure.
func callGateway(ctx context.Context, b *gateway.Breaker, call func() (*transaction.Transaction, error)) (*transaction.Transaction, error) {
	tx, err := retry.DoWithResult(ctx, gatewayRetryConfig(), func() (*transaction.Transaction, error) {
		return b.Execute(call)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker open", domainErrors.ErrProviderUnavailable)
	}
	return tx, err
}

// persistStep stores the transaction and its outbox event in one database
// transaction, so the event relay never publishes a step that was not saved.
func persistStep(
	ctx context.Context,
	tm TransactionManager,
	repo transaction.Repository,
	ob OutboxWriter,
	tx *transaction.Transaction,
	eventType string,
) error {
	return tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, tx); err != nil {
			return err
		}
		return ob.Insert(txCtx, outbox.NewEntry("payment_transaction", tx.ID, eventType, map[string]any{
			"transaction_id": tx.ID.String(),
			"order_id":       tx.OrderID,
			"provider":       tx.Provider,
			"type":           string(tx.Type),
			"amount":         tx.Amount.Format(),
			"currency":       tx.Amount.Currency,
		}))
	})
}
