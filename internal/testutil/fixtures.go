package testutil

import (
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
)

// MustMoney parses a decimal amount, panicking on bad fixture data.
func MustMoney(amount, currency string) money.Money {
	m, err := money.FromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// NewTestTransaction builds a transaction for one lifecycle step.
func NewTestTransaction(orderID, provider string, typ transaction.Type, amount, currency string) *transaction.Transaction {
	return transaction.New(orderID, provider, typ, transaction.MethodCard, MustMoney(amount, currency))
}

// NewCapturedTransaction builds a CAPTURE transaction carrying a settlement
// identifier, ready to refund against.
func NewCapturedTransaction(orderID, provider, gatewayTxID, amount, currency string) *transaction.Transaction {
	return NewTestTransaction(orderID, provider, transaction.TypeCapture, amount, currency).
		WithDetail(transaction.KeyGatewayTransactionID, gatewayTxID)
}

// NewAuthorizedTransaction builds an AUTHORIZE transaction carrying an
// authorization identifier, ready to capture against.
func NewAuthorizedTransaction(orderID, provider, authID, amount, currency string) *transaction.Transaction {
	return NewTestTransaction(orderID, provider, transaction.TypeAuthorize, amount, currency).
		WithDetail(transaction.KeyAuthorizationID, authID).
		WithDetail(transaction.KeyGatewayTransactionID, authID)
}
