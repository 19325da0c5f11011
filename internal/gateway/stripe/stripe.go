package stripe

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Config holds the Stripe credentials for one merchant.
type Config struct {
	Environment    gateway.Environment `mapstructure:"environment"`
	SecretKey      string              `mapstructure:"secret_key"`
	PublishableKey string              `mapstructure:"publishable_key"`
}

// Adapter drives Stripe through the official SDK. The client is built
// per-adapter with an explicit key; the SDK's package-global key is never set,
// so credentials cannot leak across merchants.
type Adapter struct {
	cfg Config
	api *client.API
}

// Option customizes the adapter, used by tests to point at a stub server.
type Option func(*Adapter)

// WithBackends overrides the SDK backends.
func WithBackends(backends *stripeapi.Backends) Option {
	return func(a *Adapter) {
		a.api = &client.API{}
		a.api.Init(a.cfg.SecretKey, backends)
	}
}

// New creates a Stripe adapter.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{cfg: cfg}
	a.api = &client.API{}
	a.api.Init(cfg.SecretKey, nil)
	for _, o := range opts {
		o(a)
	}
	return a
}

// Kind implements gateway.Gateway.
func (a *Adapter) Kind() gateway.ProviderKind { return gateway.KindStripe }

// ValidateConfig implements gateway.Gateway.
func (a *Adapter) ValidateConfig() error {
	var missing []string
	gateway.RequiredField(&missing, "secret_key", a.cfg.SecretKey)
	gateway.RequiredField(&missing, "publishable_key", a.cfg.PublishableKey)
	if len(missing) > 0 {
		return errors.NewConfigurationError(string(gateway.KindStripe), missing...)
	}
	return nil
}

// Initialize implements gateway.Gateway. Stripe collects card details through
// a client-side tokenization flow that needs no server handshake.
func (a *Adapter) Initialize(_ context.Context, _ gateway.InitializeRequest) (*transaction.Transaction, error) {
	return nil, fmt.Errorf("stripe initialize: %w", errors.ErrOperationNotSupported)
}

// Authorize implements gateway.Gateway. Funds are reserved with a manual
// capture method and settled later by Capture.
func (a *Adapter) Authorize(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.createIntent(ctx, req, transaction.TypeAuthorize, stripeapi.PaymentIntentCaptureMethodManual)
}

// AuthorizeAndCapture implements gateway.Gateway.
func (a *Adapter) AuthorizeAndCapture(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.createIntent(ctx, req, transaction.TypeAuthorizeCapture, stripeapi.PaymentIntentCaptureMethodAutomatic)
}

func (a *Adapter) createIntent(ctx context.Context, req gateway.PaymentRequest, typ transaction.Type, capture stripeapi.PaymentIntentCaptureMethod) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	if req.Instrument.Nonce == "" {
		return nil, errors.NewValidationError("missing_nonce", "nonce", "stripe requires a payment method nonce")
	}
	units, err := req.Amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	params := &stripeapi.PaymentIntentParams{
		Params:        stripeapi.Params{Context: ctx},
		Amount:        stripeapi.Int64(units),
		Currency:      stripeapi.String(strings.ToLower(req.Amount.Currency)),
		PaymentMethod: stripeapi.String(req.Instrument.Nonce),
		Confirm:       stripeapi.Bool(true),
		CaptureMethod: stripeapi.String(string(capture)),
	}
	params.AddMetadata("order_id", req.OrderID)

	pi, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, a.translate(err)
	}

	switch pi.Status {
	case stripeapi.PaymentIntentStatusSucceeded, stripeapi.PaymentIntentStatusRequiresCapture:
	case stripeapi.PaymentIntentStatusRequiresAction:
		return nil, errors.NewValidationError("requires_action", "nonce", "payment requires additional customer action")
	default:
		return nil, errors.NewProtocolError(string(gateway.KindStripe), fmt.Sprintf("unexpected intent status %q", pi.Status), nil)
	}
	if pi.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindStripe), "intent created without an id", nil)
	}

	tx := transaction.New(req.OrderID, string(gateway.KindStripe), typ, req.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, pi.ID)
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		tx.WithDetail(transaction.KeyAuthorizationID, pi.LatestCharge.ID)
	}
	return tx, nil
}

// Capture implements gateway.Gateway.
func (a *Adapter) Capture(ctx context.Context, req gateway.CaptureRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	if req.Prior == nil {
		return nil, errors.NewValidationError("missing_prior", "prior", "capture requires the authorize transaction")
	}
	intentID, err := req.Prior.RequireDetail(transaction.KeyGatewayTransactionID)
	if err != nil {
		return nil, err
	}
	units, err := req.Amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	pi, err := a.api.PaymentIntents.Capture(intentID, &stripeapi.PaymentIntentCaptureParams{
		Params:          stripeapi.Params{Context: ctx},
		AmountToCapture: stripeapi.Int64(units),
	})
	if err != nil {
		return nil, a.translate(err)
	}
	if pi.Status != stripeapi.PaymentIntentStatusSucceeded {
		return nil, errors.NewProtocolError(string(gateway.KindStripe), fmt.Sprintf("capture left intent in status %q", pi.Status), nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindStripe), transaction.TypeCapture, req.Prior.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, pi.ID), nil
}

// Refund implements gateway.Gateway.
func (a *Adapter) Refund(ctx context.Context, req gateway.RefundRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	amount, err := gateway.RefundAmount(req)
	if err != nil {
		return nil, err
	}
	intentID, err := req.Prior.SettlementID()
	if err != nil {
		return nil, err
	}
	units, err := amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	re, err := a.api.Refunds.New(&stripeapi.RefundParams{
		Params:        stripeapi.Params{Context: ctx},
		PaymentIntent: stripeapi.String(intentID),
		Amount:        stripeapi.Int64(units),
	})
	if err != nil {
		return nil, a.translate(err)
	}
	if re.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindStripe), "refund created without an id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindStripe), transaction.TypeRefund, req.Prior.Method, amount).
		WithDetail(transaction.KeyGatewayTransactionID, intentID).
		WithDetail(transaction.KeyRefundID, re.ID), nil
}

// declineReasons maps Stripe's card error vocabulary onto the normalized
// decline sub-categories. The decline_code is consulted first because it is
// more specific than the error code.
var declineReasons = map[string]errors.DeclineReason{
	"insufficient_funds":      errors.DeclineInsufficientFunds,
	"generic_decline":         errors.DeclineGeneric,
	"card_declined":           errors.DeclineGeneric,
	"do_not_honor":            errors.DeclineGeneric,
	"transaction_not_allowed": errors.DeclineGeneric,
	"incorrect_number":        errors.DeclineInvalidNumber,
	"invalid_number":          errors.DeclineInvalidNumber,
	"invalid_expiry_month":    errors.DeclineInvalidExpiry,
	"invalid_expiry_year":     errors.DeclineInvalidExpiry,
	"incorrect_cvc":           errors.DeclineInvalidCVC,
	"invalid_cvc":             errors.DeclineInvalidCVC,
	"expired_card":            errors.DeclineExpiredCard,
	"fraudulent":              errors.DeclineFraudSuspected,
	"lost_card":               errors.DeclineFraudSuspected,
	"stolen_card":             errors.DeclineFraudSuspected,
	"processing_error":        errors.DeclineProcessorError,
	"issuer_not_available":    errors.DeclineProcessorError,
}

// translate converts an SDK error into the closed taxonomy. Anything that is
// not a structured Stripe error is a transport failure and therefore
// transient.
func (a *Adapter) translate(err error) error {
	var sErr *stripeapi.Error
	if !stderrors.As(err, &sErr) {
		return errors.NewTransientError(string(gateway.KindStripe), err)
	}

	switch sErr.Type {
	case stripeapi.ErrorTypeCard:
		raw := string(sErr.DeclineCode)
		if raw == "" {
			raw = string(sErr.Code)
		}
		if reason, ok := declineReasons[raw]; ok {
			return errors.NewDeclineError(string(gateway.KindStripe), raw, reason)
		}
		if reason, ok := declineReasons[string(sErr.Code)]; ok {
			return errors.NewDeclineError(string(gateway.KindStripe), raw, reason)
		}
		// Unmapped card code: surface it, never drop it.
		return errors.NewValidationError("provider_rejected", "card", fmt.Sprintf("stripe rejected the card with code %q", raw))
	case stripeapi.ErrorTypeInvalidRequest:
		return errors.NewValidationError("provider_rejected", string(sErr.Param), sErr.Msg)
	case stripeapi.ErrorTypeAPI:
		return errors.NewTransientError(string(gateway.KindStripe), sErr)
	default:
		return errors.NewProtocolError(string(gateway.KindStripe), fmt.Sprintf("unexpected error type %q", sErr.Type), sErr)
	}
}
