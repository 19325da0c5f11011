package controller

import (
	"time"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string amounts, validation tags).
// Controllers convert these to application layer requests before calling
// business logic. Amounts travel as decimal strings so clients never round
// through float64.

// InitializePaymentRequest holds the input for starting a payment handshake.
type InitializePaymentRequest struct {
	Provider  string `json:"provider" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Currency  string `json:"currency" validate:"required,len=3"`
	Method    string `json:"method" validate:"required,oneof=card redirect_wallet"`
	ReturnURL string `json:"return_url,omitempty" validate:"omitempty,url"`
	CancelURL string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

// InstrumentRequest carries the customer's payment instrument reference.
type InstrumentRequest struct {
	Nonce   string `json:"nonce,omitempty"`
	Token   string `json:"token,omitempty"`
	PayerID string `json:"payer_id,omitempty"`
}

// AuthorizePaymentRequest holds the input for the authorize and charge steps.
type AuthorizePaymentRequest struct {
	Provider   string            `json:"provider" validate:"required"`
	Amount     string            `json:"amount" validate:"required"`
	Currency   string            `json:"currency" validate:"required,len=3"`
	Method     string            `json:"method" validate:"required,oneof=card redirect_wallet"`
	Instrument InstrumentRequest `json:"instrument"`
}

// CapturePaymentRequest holds the input for settling an authorization.
// Omitting amount captures the authorized amount in full.
type CapturePaymentRequest struct {
	Provider string `json:"provider" validate:"required"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// RefundPaymentRequest holds the input for returning captured funds. A full
// refund omits partial (or sets it false) and needs no amount.
type RefundPaymentRequest struct {
	Provider string `json:"provider" validate:"required"`
	Partial  bool   `json:"partial"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// --- Response DTOs ---

// TransactionResponse represents one lifecycle step in API responses.
type TransactionResponse struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"order_id"`
	Provider  string            `json:"provider"`
	Type      string            `json:"type"`
	Method    string            `json:"method"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	MessageKey    string `json:"message_key,omitempty"`
	Field         string `json:"field,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

// --- Conversion helpers ---

// FromTransaction converts a domain transaction to API response.
func FromTransaction(t *transaction.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:        t.ID.String(),
		OrderID:   t.OrderID,
		Provider:  t.Provider,
		Type:      string(t.Type),
		Method:    string(t.Method),
		Amount:    t.Amount.Format(),
		Currency:  t.Amount.Currency,
		Details:   t.Details,
		CreatedAt: t.CreatedAt,
	}
}

// parseAmount converts a request's amount/currency pair to domain money.
// Parse failures surface as a 400 rather than an opaque internal error.
func parseAmount(amount, currency string) (money.Money, error) {
	m, err := money.FromString(amount, currency)
	if err != nil {
		return money.Money{}, domainErrors.NewValidationError("invalid_amount", "amount", err.Error())
	}
	return m, nil
}
