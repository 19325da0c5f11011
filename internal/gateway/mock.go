package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/google/uuid"
)

// MockGateway is a configurable in-process gateway for tests and local
// development. Every operation succeeds with canned identifiers unless an
// error is injected.
type MockGateway struct {
	kind    ProviderKind
	latency time.Duration
	err     error
	details map[string]string
}

type MockGatewayOption func(*MockGateway)

// WithLatency delays every operation, for breaker and timeout tests.
func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

// WithError makes every operation fail with err.
func WithError(err error) MockGatewayOption {
	return func(g *MockGateway) { g.err = err }
}

// WithDetails adds extra details entries to every returned transaction.
func WithDetails(details map[string]string) MockGatewayOption {
	return func(g *MockGateway) { g.details = details }
}

func NewMockGateway(kind ProviderKind, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{kind: kind}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Kind() ProviderKind { return g.kind }

func (g *MockGateway) ValidateConfig() error { return nil }

func (g *MockGateway) wait(ctx context.Context) error {
	if g.latency == 0 {
		return g.err
	}
	select {
	case <-time.After(g.latency):
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *MockGateway) stamp(tx *transaction.Transaction) *transaction.Transaction {
	for k, v := range g.details {
		tx.WithDetail(k, v)
	}
	return tx
}

func mockID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:8])
}

func (g *MockGateway) Initialize(ctx context.Context, req InitializeRequest) (*transaction.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.stamp(transaction.New(req.OrderID, string(g.kind), transaction.TypeInit, req.Method, req.Amount).
		WithDetail(transaction.KeyClientToken, mockID("mock_token"))), nil
}

func (g *MockGateway) Authorize(ctx context.Context, req PaymentRequest) (*transaction.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	id := mockID("mock_auth")
	return g.stamp(transaction.New(req.OrderID, string(g.kind), transaction.TypeAuthorize, req.Method, req.Amount).
		WithDetail(transaction.KeyAuthorizationID, id).
		WithDetail(transaction.KeyGatewayTransactionID, id)), nil
}

func (g *MockGateway) AuthorizeAndCapture(ctx context.Context, req PaymentRequest) (*transaction.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.stamp(transaction.New(req.OrderID, string(g.kind), transaction.TypeAuthorizeCapture, req.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, mockID("mock_txn"))), nil
}

func (g *MockGateway) Capture(ctx context.Context, req CaptureRequest) (*transaction.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if _, err := req.Prior.RequireDetail(transaction.KeyAuthorizationID); err != nil {
		return nil, err
	}
	return g.stamp(transaction.New(req.OrderID, string(g.kind), transaction.TypeCapture, req.Prior.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, mockID("mock_txn"))), nil
}

func (g *MockGateway) Refund(ctx context.Context, req RefundRequest) (*transaction.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	amount, err := RefundAmount(req)
	if err != nil {
		return nil, err
	}
	settlementID, err := req.Prior.SettlementID()
	if err != nil {
		return nil, err
	}
	return g.stamp(transaction.New(req.OrderID, string(g.kind), transaction.TypeRefund, req.Prior.Method, amount).
		WithDetail(transaction.KeyGatewayTransactionID, settlementID).
		WithDetail(transaction.KeyRefundID, mockID("mock_refund"))), nil
}
