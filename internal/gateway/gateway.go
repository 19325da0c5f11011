package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
)

// ProviderKind identifies one supported payment provider. The set is closed:
// the registry, config loader and HTTP layer all dispatch over these values.
type ProviderKind string

const (
	KindBraintree     ProviderKind = "braintree"
	KindPayPalExpress ProviderKind = "paypalexpress"
	KindPayPalRest    ProviderKind = "paypalrest"
	KindStripe        ProviderKind = "stripe"
)

// Kinds returns all supported provider kinds.
func Kinds() []ProviderKind {
	return []ProviderKind{KindBraintree, KindPayPalExpress, KindPayPalRest, KindStripe}
}

// ParseProviderKind validates a provider name from config or a request.
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBraintree, KindPayPalExpress, KindPayPalRest, KindStripe:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrProviderNotFound, s)
}

// Environment selects the provider endpoint set. Parsing is exact-match on
// the canonical tokens so a typo can never silently select production.
type Environment string

const (
	EnvSandbox    Environment = "SANDBOX"
	EnvProduction Environment = "PRODUCTION"
)

// ParseEnvironment parses an environment token, case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToUpper(strings.TrimSpace(s))) {
	case EnvSandbox:
		return EnvSandbox, nil
	case EnvProduction:
		return EnvProduction, nil
	}
	return "", fmt.Errorf("invalid environment %q: must be SANDBOX or PRODUCTION", s)
}

// Instrument is the caller-supplied reference to a payment method: a one-time
// nonce for card flows, or a previously issued token (plus payer id) for
// redirect-wallet flows. Never the raw instrument data.
type Instrument struct {
	Nonce   string
	Token   string
	PayerID string
}

// InitializeRequest starts the client-side handshake for providers that need
// one before payment details can be collected.
type InitializeRequest struct {
	OrderID   string
	Amount    money.Money
	Method    transaction.PaymentMethod
	ReturnURL string
	CancelURL string
}

// PaymentRequest carries the inputs for authorize and authorize-and-capture.
type PaymentRequest struct {
	OrderID    string
	Amount     money.Money
	Method     transaction.PaymentMethod
	Instrument Instrument
}

// CaptureRequest settles a prior authorization. Prior must be the AUTHORIZE
// transaction the same adapter returned earlier.
type CaptureRequest struct {
	OrderID string
	Amount  money.Money
	Prior   *transaction.Transaction
}

// RefundRequest returns funds from a prior CAPTURE or AUTHORIZE_CAPTURE
// transaction. When Partial is false the prior transaction's full amount is
// refunded and Amount is ignored.
type RefundRequest struct {
	OrderID string
	Partial bool
	Amount  money.Money
	Prior   *transaction.Transaction
}

// Gateway is the uniform contract every provider adapter implements. Callers
// never branch on provider identity; all provider-specific behavior lives
// behind this interface.
//
// Operations that a provider has no equivalent for return an error wrapping
// errors.ErrOperationNotSupported, never a nil transaction.
type Gateway interface {
	Kind() ProviderKind

	// ValidateConfig inspects the adapter's credentials against the
	// provider's required set, reporting every missing or blank field in a
	// single ConfigurationError. It performs no network calls.
	ValidateConfig() error

	Initialize(ctx context.Context, req InitializeRequest) (*transaction.Transaction, error)
	Authorize(ctx context.Context, req PaymentRequest) (*transaction.Transaction, error)
	AuthorizeAndCapture(ctx context.Context, req PaymentRequest) (*transaction.Transaction, error)
	Capture(ctx context.Context, req CaptureRequest) (*transaction.Transaction, error)
	Refund(ctx context.Context, req RefundRequest) (*transaction.Transaction, error)
}

// RefundAmount resolves the amount a refund request actually returns: the
// prior transaction's full amount unless Partial is set, in which case the
// requested amount is validated against the prior transaction.
func RefundAmount(req RefundRequest) (money.Money, error) {
	if req.Prior == nil {
		return money.Money{}, errors.NewValidationError("missing_prior", "prior", "refund requires the captured transaction")
	}
	if !req.Partial {
		return req.Prior.Amount, nil
	}
	if !req.Amount.IsPositive() {
		return money.Money{}, errors.NewValidationError("invalid_amount", "amount", "partial refund amount must be positive")
	}
	if req.Amount.Currency != req.Prior.Amount.Currency {
		return money.Money{}, errors.NewValidationError("currency_mismatch", "currency",
			fmt.Sprintf("refund currency %s does not match captured currency %s", req.Amount.Currency, req.Prior.Amount.Currency))
	}
	if req.Amount.GreaterThan(req.Prior.Amount) {
		return money.Money{}, fmt.Errorf("%w: refund %s of captured %s", errors.ErrRefundExceedsCaptured, req.Amount.Format(), req.Prior.Amount.Format())
	}
	return req.Amount, nil
}

// RequiredField records a blank credential during config validation.
func RequiredField(missing *[]string, name, value string) {
	if strings.TrimSpace(value) == "" {
		*missing = append(*missing, name)
	}
}
