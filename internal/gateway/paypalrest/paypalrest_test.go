package paypalrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Environment: gateway.EnvSandbox,
		Client:      "client_1",
		Secret:      "secret_1",
	}
}

// testAdapter wires an adapter to a stub that serves the oauth token endpoint
// and delegates everything else to handler.
func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client_1", user)
		require.Equal(t, "secret_1", pass)
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "bearer_abc", TokenType: "Bearer", ExpiresIn: 32400})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer bearer_abc", r.Header.Get("Authorization"))
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(testConfig(), WithBaseURL(srv.URL))
}

func usd(s string) money.Money {
	m, err := money.FromString(s, "USD")
	if err != nil {
		panic(err)
	}
	return m
}

func TestValidateConfig_ReportsAllMissingFields(t *testing.T) {
	a := New(Config{Environment: gateway.EnvSandbox})

	err := a.ValidateConfig()
	require.Error(t, err)

	var cfgErr *domainErrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ElementsMatch(t, []string{"client", "secret"}, cfgErr.Missing)
}

func TestInitialize_CreatesOrderWithApprovalLink(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req orderRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "AUTHORIZE", req.Intent)
		require.Len(t, req.PurchaseUnits, 1)
		assert.Equal(t, "order-1", req.PurchaseUnits[0].InvoiceID)
		assert.Equal(t, "19.99", req.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "USD", req.PurchaseUnits[0].Amount.CurrencyCode)

		json.NewEncoder(w).Encode(orderResponse{
			ID:     "PP-ORDER-1",
			Status: "CREATED",
			Links: []link{
				{Href: "https://example.test/self", Rel: "self"},
				{Href: "https://example.test/approve?token=PP-ORDER-1", Rel: "approve"},
			},
		})
	})

	tx, err := a.Initialize(context.Background(), gateway.InitializeRequest{
		OrderID: "order-1",
		Amount:  usd("19.99"),
		Method:  transaction.MethodRedirectWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeInit, tx.Type)
	assert.Equal(t, "PP-ORDER-1", tx.Detail(transaction.KeyRedirectToken))
	assert.Equal(t, "https://example.test/approve?token=PP-ORDER-1", tx.Detail(transaction.KeyRedirectURL))
}

func TestInitialize_MissingOrderIDIsProtocolError(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{Status: "CREATED"})
	})

	_, err := a.Initialize(context.Background(), gateway.InitializeRequest{OrderID: "order-1", Amount: usd("1.00"), Method: transaction.MethodRedirectWallet})

	var pErr *domainErrors.ProtocolError
	assert.ErrorAs(t, err, &pErr)
}

func TestAuthorize_StoresAuthorizationID(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/PP-ORDER-1/authorize", r.URL.Path)

		w.Write([]byte(`{"id":"PP-ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"authorizations":[{"id":"AUTH-1","status":"CREATED"}]}}]}`))
	})

	tx, err := a.Authorize(context.Background(), gateway.PaymentRequest{
		OrderID:    "order-1",
		Amount:     usd("19.99"),
		Method:     transaction.MethodRedirectWallet,
		Instrument: gateway.Instrument{Token: "PP-ORDER-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeAuthorize, tx.Type)
	assert.Equal(t, "AUTH-1", tx.Detail(transaction.KeyAuthorizationID))
	assert.Equal(t, "PP-ORDER-1", tx.Detail(transaction.KeyRedirectToken))
}

func TestAuthorize_MissingToken(t *testing.T) {
	a := New(testConfig())

	_, err := a.Authorize(context.Background(), gateway.PaymentRequest{
		OrderID: "order-1",
		Amount:  usd("10.00"),
		Method:  transaction.MethodRedirectWallet,
	})

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "token", vErr.Field)
}

func TestAuthorizeAndCapture_StoresCaptureID(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/PP-ORDER-1/capture", r.URL.Path)
		w.Write([]byte(`{"id":"PP-ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED"}]}}]}`))
	})

	tx, err := a.AuthorizeAndCapture(context.Background(), gateway.PaymentRequest{
		OrderID:    "order-1",
		Amount:     usd("19.99"),
		Method:     transaction.MethodRedirectWallet,
		Instrument: gateway.Instrument{Token: "PP-ORDER-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeAuthorizeCapture, tx.Type)
	assert.Equal(t, "CAP-1", tx.Detail(transaction.KeyGatewayTransactionID))
}

func TestCapture_UsesAuthorizationID(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/payments/authorizations/AUTH-1/capture", r.URL.Path)

		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Amount amountJSON `json:"amount"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "19.99", req.Amount.Value)

		json.NewEncoder(w).Encode(captureResponse{ID: "CAP-1", Status: "COMPLETED"})
	})

	prior := transaction.New("order-1", "paypalrest", transaction.TypeAuthorize, transaction.MethodRedirectWallet, usd("19.99")).
		WithDetail(transaction.KeyRedirectToken, "PP-ORDER-1").
		WithDetail(transaction.KeyAuthorizationID, "AUTH-1")

	tx, err := a.Capture(context.Background(), gateway.CaptureRequest{OrderID: "order-1", Amount: usd("19.99"), Prior: prior})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeCapture, tx.Type)
	assert.Equal(t, "CAP-1", tx.Detail(transaction.KeyGatewayTransactionID))
}

func TestCapture_MissingAuthorizationID(t *testing.T) {
	a := New(testConfig())
	prior := transaction.New("order-1", "paypalrest", transaction.TypeAuthorize, transaction.MethodRedirectWallet, usd("19.99")).
		WithDetail(transaction.KeyRedirectToken, "PP-ORDER-1")

	_, err := a.Capture(context.Background(), gateway.CaptureRequest{OrderID: "order-1", Amount: usd("19.99"), Prior: prior})

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, transaction.KeyAuthorizationID, vErr.Field)
}

func TestRefund_PartialAndFull(t *testing.T) {
	var gotValue string
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/payments/captures/CAP-1/refund", r.URL.Path)

		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Amount amountJSON `json:"amount"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		gotValue = req.Amount.Value

		json.NewEncoder(w).Encode(captureResponse{ID: "REF-1", Status: "COMPLETED"})
	})

	prior := transaction.New("order-1", "paypalrest", transaction.TypeCapture, transaction.MethodRedirectWallet, usd("20.00")).
		WithDetail(transaction.KeyGatewayTransactionID, "CAP-1")

	tx, err := a.Refund(context.Background(), gateway.RefundRequest{OrderID: "order-1", Partial: true, Amount: usd("5.00"), Prior: prior})
	require.NoError(t, err)
	assert.Equal(t, "5.00", gotValue)
	assert.Equal(t, "REF-1", tx.Detail(transaction.KeyRefundID))

	tx, err = a.Refund(context.Background(), gateway.RefundRequest{OrderID: "order-1", Partial: false, Amount: usd("5.00"), Prior: prior})
	require.NoError(t, err)
	assert.Equal(t, "20.00", gotValue)
	assert.Equal(t, "20.00", tx.Amount.Format())
}

func TestInstrumentDeclinedIsDecline(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.","details":[{"issue":"INSTRUMENT_DECLINED","description":"The instrument presented was declined."}]}`))
	})

	_, err := a.AuthorizeAndCapture(context.Background(), gateway.PaymentRequest{
		OrderID:    "order-1",
		Amount:     usd("10.00"),
		Method:     transaction.MethodRedirectWallet,
		Instrument: gateway.Instrument{Token: "PP-ORDER-1"},
	})

	var dErr *domainErrors.DeclineError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "INSTRUMENT_DECLINED", dErr.RawCode)
	assert.Equal(t, domainErrors.DeclineGeneric, dErr.Reason)
}

func TestUnmappedIssueIsValidation(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`))
	})

	_, err := a.Authorize(context.Background(), gateway.PaymentRequest{
		OrderID:    "order-1",
		Amount:     usd("10.00"),
		Method:     transaction.MethodRedirectWallet,
		Instrument: gateway.Instrument{Token: "PP-ORDER-1"},
	})

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "provider_rejected", vErr.Code)
	assert.Contains(t, err.Error(), "ORDER_NOT_APPROVED")
}

func TestTokenRejectionIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	a := New(testConfig(), WithBaseURL(srv.URL))

	_, err := a.Initialize(context.Background(), gateway.InitializeRequest{OrderID: "order-1", Amount: usd("1.00"), Method: transaction.MethodRedirectWallet})
	assert.True(t, domainErrors.IsTransient(err), "got %v", err)
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	a := New(testConfig(), WithBaseURL(srv.URL))

	_, err := a.Initialize(context.Background(), gateway.InitializeRequest{OrderID: "order-1", Amount: usd("1.00"), Method: transaction.MethodRedirectWallet})
	assert.True(t, domainErrors.IsTransient(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := a.Initialize(context.Background(), gateway.InitializeRequest{OrderID: "order-1", Amount: usd("1.00"), Method: transaction.MethodRedirectWallet})
	assert.True(t, domainErrors.IsTransient(err))
}
