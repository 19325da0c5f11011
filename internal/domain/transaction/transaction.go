package transaction

import (
	"time"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/google/uuid"
)

// Type identifies which lifecycle step produced a transaction.
type Type string

const (
	TypeInit             Type = "INIT"
	TypeAuthorize        Type = "AUTHORIZE"
	TypeCapture          Type = "CAPTURE"
	TypeAuthorizeCapture Type = "AUTHORIZE_CAPTURE"
	TypeRefund           Type = "REFUND"
)

// PaymentMethod is the payment instrument category.
type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodRedirectWallet PaymentMethod = "redirect_wallet"
)

// Details keys are the wire contract between lifecycle steps. A later step
// reads exactly the key an earlier step wrote; the constants keep call sites
// from drifting apart. CLIENT_TOKEN and REDIRECT_TOKEN are never aliased
// with GATEWAY_TRANSACTION_ID: the former are caller-facing handshake
// artifacts, the latter is the provider's settlement identifier.
const (
	KeyGatewayTransactionID = "GATEWAY_TRANSACTION_ID"
	KeyAuthorizationID      = "AUTHORIZATION_ID"
	KeyPayerID              = "PAYER_ID"
	KeyPayerEmail           = "PAYER_EMAIL"
	KeyClientToken          = "CLIENT_TOKEN"
	KeyRedirectToken        = "REDIRECT_TOKEN"
	KeyRedirectURL          = "REDIRECT_URL"
	KeyCorrelationID        = "CORRELATION_ID"
	KeyRefundID             = "REFUND_ID"
	KeyAVSResult            = "AVS_RESULT"
	KeyCVCResult            = "CVC_RESULT"
)

// Transaction is the durable record of one completed lifecycle step. It is
// created by a gateway operation and never mutated after return; the caller
// persists it and feeds it back to the next step.
type Transaction struct {
	ID        uuid.UUID
	OrderID   string
	Provider  string
	Type      Type
	Method    PaymentMethod
	Amount    money.Money
	Details   map[string]string
	CreatedAt time.Time
}

// New creates a transaction for the given lifecycle step.
func New(orderID, provider string, typ Type, method PaymentMethod, amount money.Money) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		OrderID:   orderID,
		Provider:  provider,
		Type:      typ,
		Method:    method,
		Amount:    amount,
		Details:   make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}

// WithDetail sets a details entry and returns the transaction for chaining
// during construction.
func (t *Transaction) WithDetail(key, value string) *Transaction {
	t.Details[key] = value
	return t
}

// Detail returns the named details entry, or "" if absent.
func (t *Transaction) Detail(key string) string {
	return t.Details[key]
}

// RequireDetail returns the named details entry, or a ValidationError naming
// the missing key. Later lifecycle steps use this instead of indexing the map
// so a gap in the wire contract surfaces as a clear failure.
func (t *Transaction) RequireDetail(key string) (string, error) {
	v, ok := t.Details[key]
	if !ok || v == "" {
		return "", errors.MissingDetailError(key)
	}
	return v, nil
}

// SettlementID returns the identifier a refund must target: the capture's
// gateway transaction id.
func (t *Transaction) SettlementID() (string, error) {
	return t.RequireDetail(KeyGatewayTransactionID)
}
