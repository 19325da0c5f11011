package braintree

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

const (
	sandboxBaseURL    = "https://api.sandbox.braintreegateway.com"
	productionBaseURL = "https://api.braintreegateway.com"
)

// Config holds the Braintree credentials for one merchant.
type Config struct {
	Environment     gateway.Environment `mapstructure:"environment"`
	MerchantID      string              `mapstructure:"merchant_id"`
	PublicKey       string              `mapstructure:"public_key"`
	PrivateKey      string              `mapstructure:"private_key"`
	TokenizationKey string              `mapstructure:"tokenization_key"`
}

// Adapter drives the Braintree gateway: a token-based card processor where
// the client tokenizes card data against a client token issued at Initialize,
// and the server charges the resulting payment-method nonce.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
}

// Option customizes the adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// New creates a Braintree adapter.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    sandboxBaseURL,
	}
	if cfg.Environment == gateway.EnvProduction {
		a.baseURL = productionBaseURL
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Kind implements gateway.Gateway.
func (a *Adapter) Kind() gateway.ProviderKind { return gateway.KindBraintree }

// ValidateConfig implements gateway.Gateway.
func (a *Adapter) ValidateConfig() error {
	var missing []string
	gateway.RequiredField(&missing, "merchant_id", a.cfg.MerchantID)
	gateway.RequiredField(&missing, "public_key", a.cfg.PublicKey)
	gateway.RequiredField(&missing, "private_key", a.cfg.PrivateKey)
	gateway.RequiredField(&missing, "tokenization_key", a.cfg.TokenizationKey)
	if len(missing) > 0 {
		return errors.NewConfigurationError(string(gateway.KindBraintree), missing...)
	}
	return nil
}

type clientTokenResponse struct {
	XMLName xml.Name `xml:"client-token"`
	Value   string   `xml:"value"`
}

type transactionRequest struct {
	XMLName             xml.Name `xml:"transaction"`
	Type                string   `xml:"type,omitempty"`
	AmountMinorUnits    int64    `xml:"amount-minor-units"`
	CurrencyISOCode     string   `xml:"currency-iso-code,omitempty"`
	OrderID             string   `xml:"order-id,omitempty"`
	PaymentMethodNonce  string   `xml:"payment-method-nonce,omitempty"`
	SubmitForSettlement *bool    `xml:"options>submit-for-settlement,omitempty"`
}

type transactionResponse struct {
	XMLName               xml.Name `xml:"transaction"`
	ID                    string   `xml:"id"`
	Status                string   `xml:"status"`
	ProcessorResponseCode string   `xml:"processor-response-code"`
	ProcessorResponseText string   `xml:"processor-response-text"`
	AVSResponseCode       string   `xml:"avs-response-code"`
	CVVResponseCode       string   `xml:"cvv-response-code"`
}

type apiErrorResponse struct {
	XMLName xml.Name `xml:"api-error-response"`
	Message string   `xml:"message"`
}

// Initialize implements gateway.Gateway. It issues the client token the
// browser or mobile SDK needs to tokenize card details.
func (a *Adapter) Initialize(ctx context.Context, req gateway.InitializeRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}

	var resp clientTokenResponse
	if err := a.post(ctx, http.MethodPost, a.merchantPath("client_token"), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Value == "" {
		return nil, errors.NewProtocolError(string(gateway.KindBraintree), "client token response without a value", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindBraintree), transaction.TypeInit, req.Method, req.Amount).
		WithDetail(transaction.KeyClientToken, resp.Value), nil
}

// Authorize implements gateway.Gateway.
func (a *Adapter) Authorize(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.sale(ctx, req, false)
}

// AuthorizeAndCapture implements gateway.Gateway.
func (a *Adapter) AuthorizeAndCapture(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	return a.sale(ctx, req, true)
}

func (a *Adapter) sale(ctx context.Context, req gateway.PaymentRequest, settle bool) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	if req.Instrument.Nonce == "" {
		return nil, errors.NewValidationError("missing_nonce", "nonce", "braintree requires a payment method nonce")
	}
	units, err := req.Amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	body := transactionRequest{
		Type:                "sale",
		AmountMinorUnits:    units,
		CurrencyISOCode:     req.Amount.Currency,
		OrderID:             req.OrderID,
		PaymentMethodNonce:  req.Instrument.Nonce,
		SubmitForSettlement: &settle,
	}
	var resp transactionResponse
	if err := a.post(ctx, http.MethodPost, a.merchantPath("transactions"), body, &resp); err != nil {
		return nil, err
	}

	wantStatus := "authorized"
	typ := transaction.TypeAuthorize
	if settle {
		wantStatus = "submitted_for_settlement"
		typ = transaction.TypeAuthorizeCapture
	}
	if err := a.checkStatus(resp, wantStatus); err != nil {
		return nil, err
	}

	tx := transaction.New(req.OrderID, string(gateway.KindBraintree), typ, req.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, resp.ID)
	if !settle {
		tx.WithDetail(transaction.KeyAuthorizationID, resp.ID)
	}
	if resp.AVSResponseCode != "" {
		tx.WithDetail(transaction.KeyAVSResult, resp.AVSResponseCode)
	}
	if resp.CVVResponseCode != "" {
		tx.WithDetail(transaction.KeyCVCResult, resp.CVVResponseCode)
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
	authID, err := req.Prior.RequireDetail(transaction.KeyAuthorizationID)
	if err != nil {
		return nil, err
	}
	units, err := req.Amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	body := transactionRequest{AmountMinorUnits: units}
	var resp transactionResponse
	path := a.merchantPath("transactions/" + authID + "/submit_for_settlement")
	if err := a.post(ctx, http.MethodPut, path, body, &resp); err != nil {
		return nil, err
	}
	if err := a.checkStatus(resp, "submitted_for_settlement"); err != nil {
		return nil, err
	}

	return transaction.New(req.OrderID, string(gateway.KindBraintree), transaction.TypeCapture, req.Prior.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, resp.ID), nil
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
	units, err := amount.MinorUnits()
	if err != nil {
		return nil, errors.NewValidationError("invalid_amount", "amount", err.Error())
	}

	body := transactionRequest{AmountMinorUnits: units}
	var resp transactionResponse
	path := a.merchantPath("transactions/" + settlementID + "/refund")
	if err := a.post(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindBraintree), "refund response without an id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindBraintree), transaction.TypeRefund, req.Prior.Method, amount).
		WithDetail(transaction.KeyGatewayTransactionID, settlementID).
		WithDetail(transaction.KeyRefundID, resp.ID), nil
}

// processorDeclines maps Braintree processor response codes (2xxx series)
// onto the normalized decline sub-categories.
var processorDeclines = map[string]errors.DeclineReason{
	"2000": errors.DeclineGeneric,
	"2001": errors.DeclineInsufficientFunds,
	"2002": errors.DeclineGeneric,
	"2003": errors.DeclineGeneric,
	"2004": errors.DeclineExpiredCard,
	"2005": errors.DeclineInvalidNumber,
	"2006": errors.DeclineInvalidExpiry,
	"2010": errors.DeclineInvalidCVC,
	"2036": errors.DeclineProcessorError,
	"2038": errors.DeclineGeneric,
	"2046": errors.DeclineGeneric,
	"2047": errors.DeclineFraudSuspected,
}

func (a *Adapter) checkStatus(resp transactionResponse, want string) error {
	switch resp.Status {
	case want:
		if resp.ID == "" {
			return errors.NewProtocolError(string(gateway.KindBraintree), fmt.Sprintf("status %q without a transaction id", resp.Status), nil)
		}
		return nil
	case "processor_declined":
		reason, ok := processorDeclines[resp.ProcessorResponseCode]
		if !ok {
			reason = errors.DeclineGeneric
		}
		return errors.NewDeclineError(string(gateway.KindBraintree), resp.ProcessorResponseCode, reason)
	case "gateway_rejected":
		return errors.NewDeclineError(string(gateway.KindBraintree), resp.Status, errors.DeclineFraudSuspected)
	default:
		return errors.NewProtocolError(string(gateway.KindBraintree), fmt.Sprintf("unexpected transaction status %q", resp.Status), nil)
	}
}

func (a *Adapter) merchantPath(suffix string) string {
	return "/merchants/" + a.cfg.MerchantID + "/" + suffix
}

// post sends one XML request and decodes the response into out. Transport
// failures and auth failures come back as TransientError, provider rejections
// as ValidationError, and unparseable bodies as ProtocolError.
func (a *Adapter) post(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		buf.WriteString(xml.Header)
		if err := xml.NewEncoder(&buf).Encode(body); err != nil {
			return errors.NewProtocolError(string(gateway.KindBraintree), "encode request", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &buf)
	if err != nil {
		return errors.NewProtocolError(string(gateway.KindBraintree), "build request", err)
	}
	req.SetBasicAuth(a.cfg.PublicKey, a.cfg.PrivateKey)
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.NewTransientError(string(gateway.KindBraintree), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransientError(string(gateway.KindBraintree), err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.NewTransientError(string(gateway.KindBraintree), fmt.Errorf("authentication failed (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500:
		return errors.NewTransientError(string(gateway.KindBraintree), fmt.Errorf("server error (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var apiErr apiErrorResponse
		if err := xml.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
			return errors.NewProtocolError(string(gateway.KindBraintree), "unparseable error response", err)
		}
		return errors.NewValidationError("provider_rejected", "", apiErr.Message)
	case resp.StatusCode >= 400:
		return errors.NewProtocolError(string(gateway.KindBraintree), fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := xml.Unmarshal(raw, out); err != nil {
		return errors.NewProtocolError(string(gateway.KindBraintree), "decode response", err)
	}
	return nil
}
