package controller

import (
	"errors"
	"testing"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/testutil"
)

func TestFromTransaction(t *testing.T) {
	tx := testutil.NewTestTransaction("order-1", "stripe", transaction.TypeCapture, "19.99", "USD").
		WithDetail(transaction.KeyGatewayTransactionID, "ch_123")

	resp := FromTransaction(tx)

	if resp.ID != tx.ID.String() {
		t.Errorf("expected id %s, got %s", tx.ID, resp.ID)
	}
	if resp.OrderID != "order-1" {
		t.Errorf("expected order_id order-1, got %s", resp.OrderID)
	}
	if resp.Provider != "stripe" {
		t.Errorf("expected provider stripe, got %s", resp.Provider)
	}
	if resp.Type != "CAPTURE" {
		t.Errorf("expected type CAPTURE, got %s", resp.Type)
	}
	if resp.Method != "card" {
		t.Errorf("expected method card, got %s", resp.Method)
	}
	if resp.Amount != "19.99" {
		t.Errorf("expected amount 19.99, got %s", resp.Amount)
	}
	if resp.Currency != "USD" {
		t.Errorf("expected currency USD, got %s", resp.Currency)
	}
	if resp.Details[transaction.KeyGatewayTransactionID] != "ch_123" {
		t.Errorf("expected details to carry gateway transaction id, got %v", resp.Details)
	}
}

func TestFromTransaction_ZeroDecimalCurrency(t *testing.T) {
	tx := testutil.NewTestTransaction("order-1", "stripe", transaction.TypeAuthorize, "1172", "JPY")

	resp := FromTransaction(tx)

	if resp.Amount != "1172" {
		t.Errorf("expected amount 1172, got %s", resp.Amount)
	}
}

func TestParseAmount(t *testing.T) {
	m, err := parseAmount("19.99", "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Currency != "USD" {
		t.Errorf("expected normalized currency USD, got %s", m.Currency)
	}
	if m.Format() != "19.99" {
		t.Errorf("expected 19.99, got %s", m.Format())
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	_, err := parseAmount("nineteen", "USD")
	if err == nil {
		t.Fatal("expected error for non-numeric amount")
	}

	var validationErr *domainErrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if validationErr.Field != "amount" {
		t.Errorf("expected field amount, got %s", validationErr.Field)
	}
}
