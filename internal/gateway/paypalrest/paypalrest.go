package paypalrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

const (
	sandboxBaseURL    = "https://api-m.sandbox.paypal.com"
	productionBaseURL = "https://api-m.paypal.com"
)

// Config holds the PayPal REST API credentials.
type Config struct {
	Environment gateway.Environment `mapstructure:"environment"`
	Client      string              `mapstructure:"client"`
	Secret      string              `mapstructure:"secret"`
}

// Adapter drives the PayPal REST wallet. Initialize creates an order and
// returns its id as the redirect token; after customer approval the order id
// is authorized or captured, and refunds target the capture id.
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

// New creates a PayPal REST adapter.
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
func (a *Adapter) Kind() gateway.ProviderKind { return gateway.KindPayPalRest }

// ValidateConfig implements gateway.Gateway.
func (a *Adapter) ValidateConfig() error {
	var missing []string
	gateway.RequiredField(&missing, "client", a.cfg.Client)
	gateway.RequiredField(&missing, "secret", a.cfg.Secret)
	if len(missing) > 0 {
		return errors.NewConfigurationError(string(gateway.KindPayPalRest), missing...)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type amountJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string     `json:"reference_id,omitempty"`
	InvoiceID   string     `json:"invoice_id,omitempty"`
	Amount      amountJSON `json:"amount"`
}

type orderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Links         []link `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Authorizations []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"authorizations"`
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// Initialize implements gateway.Gateway. It creates the order the customer
// approves in PayPal's UI and returns its id as the redirect token.
func (a *Adapter) Initialize(ctx context.Context, req gateway.InitializeRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}

	body := orderRequest{
		Intent: "AUTHORIZE",
		PurchaseUnits: []purchaseUnit{{
			InvoiceID: req.OrderID,
			Amount:    amountOf(req.Amount),
		}},
	}

	var resp orderResponse
	if err := a.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalRest), "order created without an id", nil)
	}

	tx := transaction.New(req.OrderID, string(gateway.KindPayPalRest), transaction.TypeInit, req.Method, req.Amount).
		WithDetail(transaction.KeyRedirectToken, resp.ID)
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			tx.WithDetail(transaction.KeyRedirectURL, l.Href)
			break
		}
	}
	return tx, nil
}

// Authorize implements gateway.Gateway.
func (a *Adapter) Authorize(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	orderID := req.Instrument.Token
	if orderID == "" {
		return nil, errors.NewValidationError("missing_token", "token", "paypal rest requires the order id from initialize")
	}

	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/authorize"
	if err := a.call(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	authID := ""
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Authorizations) > 0 {
		authID = resp.PurchaseUnits[0].Payments.Authorizations[0].ID
	}
	if authID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalRest), "authorize response without an authorization id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalRest), transaction.TypeAuthorize, req.Method, req.Amount).
		WithDetail(transaction.KeyRedirectToken, orderID).
		WithDetail(transaction.KeyAuthorizationID, authID), nil
}

// AuthorizeAndCapture implements gateway.Gateway.
func (a *Adapter) AuthorizeAndCapture(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	orderID := req.Instrument.Token
	if orderID == "" {
		return nil, errors.NewValidationError("missing_token", "token", "paypal rest requires the order id from initialize")
	}

	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := a.call(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	captureID := ""
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = resp.PurchaseUnits[0].Payments.Captures[0].ID
	}
	if captureID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalRest), "capture response without a capture id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalRest), transaction.TypeAuthorizeCapture, req.Method, req.Amount).
		WithDetail(transaction.KeyRedirectToken, orderID).
		WithDetail(transaction.KeyGatewayTransactionID, captureID), nil
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

	body := struct {
		Amount amountJSON `json:"amount"`
	}{Amount: amountOf(req.Amount)}

	var resp captureResponse
	path := "/v2/payments/authorizations/" + url.PathEscape(authID) + "/capture"
	if err := a.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalRest), "capture response without a capture id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalRest), transaction.TypeCapture, req.Prior.Method, req.Amount).
		WithDetail(transaction.KeyGatewayTransactionID, resp.ID).
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
	captureID, err := req.Prior.SettlementID()
	if err != nil {
		return nil, err
	}

	body := struct {
		Amount amountJSON `json:"amount"`
	}{Amount: amountOf(amount)}

	var resp captureResponse
	path := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := a.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.NewProtocolError(string(gateway.KindPayPalRest), "refund response without an id", nil)
	}

	return transaction.New(req.OrderID, string(gateway.KindPayPalRest), transaction.TypeRefund, req.Prior.Method, amount).
		WithDetail(transaction.KeyGatewayTransactionID, captureID).
		WithDetail(transaction.KeyRefundID, resp.ID), nil
}

// declineIssues maps PayPal order issues that represent funding refusals.
var declineIssues = map[string]errors.DeclineReason{
	"INSTRUMENT_DECLINED":   errors.DeclineGeneric,
	"INSUFFICIENT_FUNDS":    errors.DeclineInsufficientFunds,
	"PAYER_CANNOT_PAY":      errors.DeclineGeneric,
	"TRANSACTION_REFUSED":   errors.DeclineGeneric,
	"PAYER_ACTION_REQUIRED": errors.DeclineGeneric,
}

func amountOf(m money.Money) amountJSON {
	return amountJSON{CurrencyCode: m.Currency, Value: m.Format()}
}

// fetchToken obtains a bearer token with the client-credentials grant. The
// token is requested per call; the adapter holds no state between calls.
func (a *Adapter) fetchToken(ctx context.Context) (string, error) {
	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", errors.NewProtocolError(string(gateway.KindPayPalRest), "build token request", err)
	}
	req.SetBasicAuth(a.cfg.Client, a.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", errors.NewTransientError(string(gateway.KindPayPalRest), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewTransientError(string(gateway.KindPayPalRest), fmt.Errorf("token request failed (status %d)", resp.StatusCode))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", errors.NewProtocolError(string(gateway.KindPayPalRest), "decode token response", err)
	}
	if tok.AccessToken == "" {
		return "", errors.NewProtocolError(string(gateway.KindPayPalRest), "token response without an access token", nil)
	}
	return tok.AccessToken, nil
}

func (a *Adapter) call(ctx context.Context, method, path string, body, out any) error {
	token, err := a.fetchToken(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.NewProtocolError(string(gateway.KindPayPalRest), "encode request", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &buf)
	if err != nil {
		return errors.NewProtocolError(string(gateway.KindPayPalRest), "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.NewTransientError(string(gateway.KindPayPalRest), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransientError(string(gateway.KindPayPalRest), err)
	}

	switch {
	case resp.StatusCode >= 500:
		return errors.NewTransientError(string(gateway.KindPayPalRest), fmt.Errorf("server error (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.NewTransientError(string(gateway.KindPayPalRest), fmt.Errorf("bearer token rejected"))
	case resp.StatusCode >= 400:
		return a.translateAPIError(raw, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewProtocolError(string(gateway.KindPayPalRest), "decode response", err)
	}
	return nil
}

func (a *Adapter) translateAPIError(raw []byte, status int) error {
	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Name == "" {
		return errors.NewProtocolError(string(gateway.KindPayPalRest), fmt.Sprintf("unparseable error response (status %d)", status), err)
	}
	if len(apiErr.Details) > 0 {
		issue := apiErr.Details[0].Issue
		if reason, ok := declineIssues[issue]; ok {
			return errors.NewDeclineError(string(gateway.KindPayPalRest), issue, reason)
		}
		return errors.NewValidationError("provider_rejected", "", fmt.Sprintf("paypal %s: %s", apiErr.Name, issue))
	}
	return errors.NewValidationError("provider_rejected", "", fmt.Sprintf("paypal %s: %s", apiErr.Name, apiErr.Message))
}
