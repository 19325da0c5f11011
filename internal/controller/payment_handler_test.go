package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commercekit/paygate/internal/application/checkout"
	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
	"github.com/commercekit/paygate/internal/testutil"
	"github.com/go-chi/chi/v5"
)

type handlerFixture struct {
	handler *PaymentController
	repo    *testutil.MockTransactionRepository
	router  *chi.Mux
}

func newHandlerFixture(gateways ...gateway.Gateway) *handlerFixture {
	registry := gateway.NewRegistry(gateways...)
	repo := testutil.NewMockTransactionRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	txManager := testutil.NewMockTransactionManager()
	locks := testutil.NewMockStepLocker()

	handler := NewPaymentController(
		checkout.NewInitializePaymentUseCase(registry, repo, outboxRepo, txManager, locks),
		checkout.NewAuthorizePaymentUseCase(registry, repo, outboxRepo, txManager, locks),
		checkout.NewChargePaymentUseCase(registry, repo, outboxRepo, txManager, locks),
		checkout.NewCapturePaymentUseCase(registry, repo, outboxRepo, txManager, locks),
		checkout.NewRefundPaymentUseCase(registry, repo, outboxRepo, txManager, locks),
		checkout.NewListTransactionsUseCase(repo),
	)

	router := chi.NewRouter()
	router.Route("/api/v1/orders/{orderID}", func(r chi.Router) {
		r.Get("/transactions", handler.ListTransactions)
		r.Post("/payment/initialize", handler.InitializePayment)
		r.Post("/payment/authorize", handler.AuthorizePayment)
		r.Post("/payment/charge", handler.ChargePayment)
		r.Post("/payment/capture", handler.CapturePayment)
		r.Post("/payment/refund", handler.RefundPayment)
	})

	return &handlerFixture{handler: handler, repo: repo, router: router}
}

func (f *handlerFixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentController_ChargePayment(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider:   "stripe",
		Amount:     "19.99",
		Currency:   "USD",
		Method:     "card",
		Instrument: InstrumentRequest{Token: "tok_visa"},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp TransactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID != "order-1" {
		t.Errorf("expected order_id order-1, got %s", resp.OrderID)
	}
	if resp.Type != string(transaction.TypeAuthorizeCapture) {
		t.Errorf("expected type %s, got %s", transaction.TypeAuthorizeCapture, resp.Type)
	}
	if resp.Amount != "19.99" {
		t.Errorf("expected amount 19.99, got %s", resp.Amount)
	}
	if resp.Details[transaction.KeyGatewayTransactionID] == "" {
		t.Error("expected gateway transaction id in details")
	}

	if got := len(f.repo.All()); got != 1 {
		t.Errorf("expected 1 persisted transaction, got %d", got)
	}
}

func TestPaymentController_InitializePayment(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindBraintree))

	rec := f.post(t, "/api/v1/orders/order-1/payment/initialize", InitializePaymentRequest{
		Provider: "braintree",
		Amount:   "10.00",
		Currency: "USD",
		Method:   "card",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp TransactionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Details[transaction.KeyClientToken] == "" {
		t.Error("expected client token in details")
	}
}

func TestPaymentController_UnknownProvider(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider: "adyen",
		Amount:   "19.99",
		Currency: "USD",
		Method:   "card",
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNotFound, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "provider_not_found" {
		t.Errorf("expected code provider_not_found, got %s", resp.Code)
	}
}

func TestPaymentController_InvalidAmount(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider: "stripe",
		Amount:   "nineteen",
		Currency: "USD",
		Method:   "card",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestPaymentController_MissingProvider(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Amount:   "19.99",
		Currency: "USD",
		Method:   "card",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "validation_error" {
		t.Errorf("expected code validation_error, got %s", resp.Code)
	}
}

func TestPaymentController_Decline(t *testing.T) {
	declined := domainErrors.NewDeclineError("stripe", "card_declined", domainErrors.DeclineInsufficientFunds)
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe, gateway.WithError(declined)))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider: "stripe",
		Amount:   "19.99",
		Currency: "USD",
		Method:   "card",
	})

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status %d, got %d: %s", http.StatusPaymentRequired, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.DeclineReason != "insufficient_funds" {
		t.Errorf("expected decline reason insufficient_funds, got %s", resp.DeclineReason)
	}
	if resp.MessageKey != "payment.decline.insufficient_funds" {
		t.Errorf("unexpected message key %s", resp.MessageKey)
	}

	if got := len(f.repo.All()); got != 0 {
		t.Errorf("expected no persisted transactions after decline, got %d", got)
	}
}

func TestPaymentController_CaptureWithoutAuthorize(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/capture", CapturePaymentRequest{
		Provider: "stripe",
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNotFound, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "transaction_not_found" {
		t.Errorf("expected code transaction_not_found, got %s", resp.Code)
	}
}

func TestPaymentController_AuthorizeThenCapture(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/authorize", AuthorizePaymentRequest{
		Provider:   "stripe",
		Amount:     "50.00",
		Currency:   "USD",
		Method:     "card",
		Instrument: InstrumentRequest{Token: "tok_visa"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("authorize: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.post(t, "/api/v1/orders/order-1/payment/capture", CapturePaymentRequest{
		Provider: "stripe",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("capture: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp TransactionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Type != string(transaction.TypeCapture) {
		t.Errorf("expected type %s, got %s", transaction.TypeCapture, resp.Type)
	}
	if resp.Amount != "50.00" {
		t.Errorf("expected full capture of 50.00, got %s", resp.Amount)
	}
}

func TestPaymentController_RefundPartial(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider:   "stripe",
		Amount:     "50.00",
		Currency:   "USD",
		Method:     "card",
		Instrument: InstrumentRequest{Token: "tok_visa"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("charge: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.post(t, "/api/v1/orders/order-1/payment/refund", RefundPaymentRequest{
		Provider: "stripe",
		Partial:  true,
		Amount:   "20.00",
		Currency: "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("refund: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp TransactionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Type != string(transaction.TypeRefund) {
		t.Errorf("expected type %s, got %s", transaction.TypeRefund, resp.Type)
	}
	if resp.Amount != "20.00" {
		t.Errorf("expected refund of 20.00, got %s", resp.Amount)
	}
}

func TestPaymentController_RefundExceedsCaptured(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider:   "stripe",
		Amount:     "50.00",
		Currency:   "USD",
		Method:     "card",
		Instrument: InstrumentRequest{Token: "tok_visa"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("charge: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.post(t, "/api/v1/orders/order-1/payment/refund", RefundPaymentRequest{
		Provider: "stripe",
		Partial:  true,
		Amount:   "60.00",
		Currency: "USD",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "refund_exceeds_captured" {
		t.Errorf("expected code refund_exceeds_captured, got %s", resp.Code)
	}
}

func TestPaymentController_RefundCurrencyMismatch(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	rec := f.post(t, "/api/v1/orders/order-1/payment/charge", AuthorizePaymentRequest{
		Provider:   "stripe",
		Amount:     "20.00",
		Currency:   "USD",
		Method:     "card",
		Instrument: InstrumentRequest{Token: "tok_visa"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("charge: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	// A refund in another currency must never reach the provider, even when
	// the foreign amount compares as larger than the captured one.
	rec = f.post(t, "/api/v1/orders/order-1/payment/refund", RefundPaymentRequest{
		Provider: "stripe",
		Partial:  true,
		Amount:   "5000.00",
		Currency: "EUR",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "validation_error" {
		t.Errorf("expected code validation_error, got %s", resp.Code)
	}
	if resp.Field != "currency" {
		t.Errorf("expected field currency, got %s", resp.Field)
	}
	if got := len(f.repo.All()); got != 1 {
		t.Errorf("expected only the charge to be persisted, got %d transactions", got)
	}
}

func TestPaymentController_ListTransactions(t *testing.T) {
	f := newHandlerFixture(gateway.NewMockGateway(gateway.KindStripe))

	f.repo.Add(testutil.NewTestTransaction("order-1", "stripe", transaction.TypeAuthorize, "50.00", "USD"))
	f.repo.Add(testutil.NewTestTransaction("order-1", "stripe", transaction.TypeCapture, "50.00", "USD"))
	f.repo.Add(testutil.NewTestTransaction("order-2", "stripe", transaction.TypeAuthorize, "10.00", "USD"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1/transactions", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp []*TransactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(resp))
	}
	for _, tx := range resp {
		if tx.OrderID != "order-1" {
			t.Errorf("expected order-1 transactions only, got %s", tx.OrderID)
		}
	}
}
