package paypalexpress

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

const (
	sandboxEndpoint    = "https://api-3t.sandbox.paypal.com/2.0/"
	productionEndpoint = "https://api-3t.paypal.com/2.0/"

	sandboxRedirectURL    = "https://www.sandbox.paypal.com/checkoutnow?token="
	productionRedirectURL = "https://www.paypal.com/checkoutnow?token="

	apiVersion = "124.0"
)

// Config holds the PayPal Express Checkout API credentials.
type Config struct {
	Environment gateway.Environment `mapstructure:"environment"`
	Username    string              `mapstructure:"username"`
	Password    string              `mapstructure:"password"`
	Signature   string              `mapstructure:"signature"`
}

// Adapter drives PayPal Express Checkout over its SOAP API. The flow is
// two-phase: Initialize obtains a redirect token the storefront sends the
// customer to PayPal with; after approval, Authorize or AuthorizeAndCapture
// fetch the payer's details for that token and submit the payment. The
// redirect token and the resulting gateway transaction id are kept under
// distinct details keys because capture and refund need the transaction id,
// not the token.
type Adapter struct {
	cfg         Config
	httpClient  *http.Client
	endpoint    string
	redirectURL string
}

// Option customizes the adapter.
type Option func(*Adapter)

// WithEndpoint overrides the SOAP endpoint, used by tests.
func WithEndpoint(url string) Option {
	return func(a *Adapter) { a.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// New creates a PayPal Express Checkout adapter.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		endpoint:    sandboxEndpoint,
		redirectURL: sandboxRedirectURL,
	}
	if cfg.Environment == gateway.EnvProduction {
		a.endpoint = productionEndpoint
		a.redirectURL = productionRedirectURL
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Kind implements gateway.Gateway.
func (a *Adapter) Kind() gateway.ProviderKind { return gateway.KindPayPalExpress }

// ValidateConfig implements gateway.Gateway.
func (a *Adapter) ValidateConfig() error {
	var missing []string
	gateway.RequiredField(&missing, "username", a.cfg.Username)
	gateway.RequiredField(&missing, "password", a.cfg.Password)
	gateway.RequiredField(&missing, "signature", a.cfg.Signature)
	if len(missing) > 0 {
		return errors.NewConfigurationError(string(gateway.KindPayPalExpress), missing...)
	}
	return nil
}

// Initialize implements gateway.Gateway. It runs SetExpressCheckout and
// returns the redirect token plus the URL the storefront sends the customer to.
func (a *Adapter) Initialize(ctx context.Context, req gateway.InitializeRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	if req.ReturnURL == "" || req.CancelURL == "" {
		return nil, errors.NewValidationError("missing_redirect_urls", "return_url", "express checkout requires return and cancel URLs")
	}

	payload := setExpressCheckoutReq{
		Request: setExpressCheckoutRequest{
			Version: apiVersion,
			Details: setExpressCheckoutDetails{
				OrderTotal: amountOf(req.Amount),
				ReturnURL:  req.ReturnURL,
				CancelURL:  req.CancelURL,
				InvoiceID:  req.OrderID,
			},
		},
	}
	resp, err := a.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	out := resp.Body.SetExpressCheckout
	if out == nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "missing SetExpressCheckoutResponse", nil)
	}
	if err := a.checkAck(out.Ack, out.Errors); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "success ack without a token", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalExpress), transaction.TypeInit, req.Method, req.Amount).
		WithDetail(transaction.KeyRedirectToken, out.Token).
		WithDetail(transaction.KeyCorrelationID, out.CorrelationID).
		WithDetail(transaction.KeyRedirectURL, a.redirectURL+out.Token), nil
}

// Authorize implements gateway.Gateway.
func (a *Adapter) Authorize(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.pay(ctx, req, "Authorization", transaction.TypeAuthorize)
}

// AuthorizeAndCapture implements gateway.Gateway.
func (a *Adapter) AuthorizeAndCapture(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.pay(ctx, req, "Sale", transaction.TypeAuthorizeCapture)
}

func (a *Adapter) pay(ctx context.Context, req gateway.PaymentRequest, action string, typ transaction.Type) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	token := req.Instrument.Token
	if token == "" {
		return nil, errors.NewValidationError("missing_token", "token", "express checkout requires the redirect token from initialize")
	}

	payerID, payerEmail, correlationID, err := a.fetchPayer(ctx, token)
	if err != nil {
		return nil, err
	}
	if req.Instrument.PayerID != "" {
		payerID = req.Instrument.PayerID
	}
	if payerID == "" {
		return nil, errors.NewValidationError("missing_payer", "payer_id", "customer has not approved the checkout")
	}

	payload := doExpressCheckoutPaymentReq{
		Request: doExpressCheckoutPaymentRequest{
			Version: apiVersion,
			Details: doExpressCheckoutPaymentDetails{
				Token:         token,
				PayerID:       payerID,
				PaymentAction: action,
				OrderTotal:    amountOf(req.Amount),
				InvoiceID:     req.OrderID,
			},
		},
	}
	resp, err := a.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	out := resp.Body.DoExpressCheckoutPayment
	if out == nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "missing DoExpressCheckoutPaymentResponse", nil)
	}
	if err := a.checkAck(out.Ack, out.Errors); err != nil {
		return nil, err
	}
	if out.PaymentInfo.TransactionID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "success ack without a transaction id", nil)
	}

	tx := transaction.New(req.OrderID, string(gateway.KindPayPalExpress), typ, req.Method, req.Amount).
		WithDetail(transaction.KeyRedirectToken, token).
		WithDetail(transaction.KeyPayerID, payerID).
		WithDetail(transaction.KeyGatewayTransactionID, out.PaymentInfo.TransactionID).
		WithDetail(transaction.KeyCorrelationID, correlationID)
	if payerEmail != "" {
		tx.WithDetail(transaction.KeyPayerEmail, payerEmail)
	}
	if typ == transaction.TypeAuthorize {
		tx.WithDetail(transaction.KeyAuthorizationID, out.PaymentInfo.TransactionID)
	}
	return tx, nil
}

func (a *Adapter) fetchPayer(ctx context.Context, token string) (payerID, payerEmail, correlationID string, err error) {
	payload := getExpressCheckoutDetailsReq{
		Request: getExpressCheckoutDetailsRequest{Version: apiVersion, Token: token},
	}
	resp, err := a.call(ctx, payload)
	if err != nil {
		return "", "", "", err
	}
	out := resp.Body.GetExpressCheckoutDetails
	if out == nil {
		return "", "", "", errors.NewProtocolError(string(gateway.KindPayPalExpress), "missing GetExpressCheckoutDetailsResponse", nil)
	}
	if err := a.checkAck(out.Ack, out.Errors); err != nil {
		return "", "", "", err
	}
	return out.Details.PayerInfo.PayerID, out.Details.PayerInfo.Payer, out.CorrelationID, nil
}

// Capture implements gateway.Gateway. It settles a prior authorization via
// DoCapture using the gateway transaction id, never the redirect token.
func (a *Adapter) Capture(ctx context.Context, req gateway.CaptureRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	if req.Prior == nil {
		return nil, errors.NewValidationError("missing_prior", "prior", "capture requires the authorize transaction")
	}
	authID, err := req.Prior.RequireDetail(transaction.KeyGatewayTransactionID)
	if err != nil {
		return nil, err
	}

	payload := doCaptureReq{
		Request: doCaptureRequest{
			Version:         apiVersion,
			AuthorizationID: authID,
			Amount:          amountOf(req.Amount),
			CompleteType:    "Complete",
		},
	}
	resp, err := a.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	out := resp.Body.DoCapture
	if out == nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "missing DoCaptureResponse", nil)
	}
	if err := a.checkAck(out.Ack, out.Errors); err != nil {
		return nil, err
	}
	captureID := out.DoCaptureResponseDetails.PaymentInfo.TransactionID
	if captureID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "success ack without a capture transaction id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalExpress), transaction.TypeCapture, req.Prior.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, captureID).
		WithDetail(transaction.KeyAuthorizationID, authID), nil
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
	settlementID, err := req.Prior.SettlementID()
	if err != nil {
		return nil, err
	}

	refundType := "Full"
	payload := refundTransactionReq{
		Request: refundTransactionRequest{
			Version:       apiVersion,
			TransactionID: settlementID,
			RefundType:    refundType,
		},
	}
	if req.Partial {
		payload.Request.RefundType = "Partial"
		amt := amountOf(amount)
		payload.Request.Amount = &amt
	}
	resp, err := a.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	out := resp.Body.RefundTransaction
	if out == nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "missing RefundTransactionResponse", nil)
	}
	if err := a.checkAck(out.Ack, out.Errors); err != nil {
		return nil, err
	}
	if out.RefundTransactionID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "success ack without a refund transaction id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalExpress), transaction.TypeRefund, req.Prior.Method, amount).
		WithDetail(transaction.KeyGatewayTransactionID, settlementID).
		WithDetail(transaction.KeyRefundID, out.RefundTransactionID), nil
}

// declineCodes maps the PayPal error codes that represent a funding refusal
// rather than a request problem.
var declineCodes = map[string]errors.DeclineReason{
	"10417": errors.DeclineGeneric,
	"10422": errors.DeclineInsufficientFunds,
	"10486": errors.DeclineGeneric,
	"10606": errors.DeclineProcessorError,
	"11821": errors.DeclineFraudSuspected,
}

func (a *Adapter) checkAck(ack string, errs []apiError) error {
	switch ack {
	case "Success", "SuccessWithWarning":
		return nil
	case "Failure", "FailureWithWarning":
		if len(errs) == 0 {
			return errors.NewProtocolError(string(gateway.KindPayPalExpress), "failure ack without error details", nil)
		}
		first := errs[0]
		if reason, ok := declineCodes[first.ErrorCode]; ok {
			return errors.NewDeclineError(string(gateway.KindPayPalExpress), first.ErrorCode, reason)
		}
		return errors.NewValidationError("provider_rejected", "", fmt.Sprintf("paypal error %s: %s", first.ErrorCode, first.LongMessage))
	default:
		return errors.NewProtocolError(string(gateway.KindPayPalExpress), fmt.Sprintf("unexpected ack %q", ack), nil)
	}
}

func amountOf(m money.Money) amount {
	return amount{CurrencyID: m.Currency, Value: m.Format()}
}

// call sends one SOAP request and decodes the response envelope.
func (a *Adapter) call(ctx context.Context, payload any) (*responseEnvelope, error) {
	env := requestEnvelope{
		EnvNS: soapEnvNS,
		URN:   paypalURN,
		Header: requestHeader{
			Credentials: requesterCredentials{
				Credentials: credentials{
					Username:  a.cfg.Username,
					Password:  a.cfg.Password,
					Signature: a.cfg.Signature,
				},
			},
		},
		Body: requestBody{Payload: payload},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "encode envelope", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, &buf)
	if err != nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "build request", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransientError(string(gateway.KindPayPalExpress), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientError(string(gateway.KindPayPalExpress), err)
	}
	if resp.StatusCode >= 500 {
		return nil, errors.NewTransientError(string(gateway.KindPayPalExpress), fmt.Errorf("server error (status %d)", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var envelope responseEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalExpress), "decode envelope", err)
	}
	return &envelope, nil
}
