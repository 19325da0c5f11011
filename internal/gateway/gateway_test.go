package gateway

import (
	"testing"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderKind
		wantErr bool
	}{
		{input: "braintree", want: KindBraintree},
		{input: "Stripe", want: KindStripe},
		{input: "  PAYPALEXPRESS  ", want: KindPayPalExpress},
		{input: "paypalrest", want: KindPayPalRest},
		{input: "adyen", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProviderKind(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrProviderNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	for _, input := range []string{"SANDBOX", "sandbox", " Sandbox "} {
		env, err := ParseEnvironment(input)
		require.NoError(t, err, input)
		assert.Equal(t, EnvSandbox, env)
	}

	env, err := ParseEnvironment("production")
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, env)

	// Anything else is an error, never a silent default.
	for _, input := range []string{"", "prod", "live", "PRODUCTION1", "staging"} {
		_, err := ParseEnvironment(input)
		assert.Error(t, err, input)
	}
}

func TestRefundAmount(t *testing.T) {
	captured, err := money.FromString("20.00", "USD")
	require.NoError(t, err)
	five, err := money.FromString("5.00", "USD")
	require.NoError(t, err)
	thirty, err := money.FromString("30.00", "USD")
	require.NoError(t, err)

	prior := transaction.New("order-1", "stripe", transaction.TypeCapture, transaction.MethodCard, captured)

	t.Run("full refund ignores amount", func(t *testing.T) {
		got, err := RefundAmount(RefundRequest{OrderID: "order-1", Partial: false, Amount: five, Prior: prior})
		require.NoError(t, err)
		assert.True(t, got.Equal(captured))
	})

	t.Run("partial refund uses requested amount", func(t *testing.T) {
		got, err := RefundAmount(RefundRequest{OrderID: "order-1", Partial: true, Amount: five, Prior: prior})
		require.NoError(t, err)
		assert.True(t, got.Equal(five))
	})

	t.Run("partial refund must be positive", func(t *testing.T) {
		var zero money.Money
		zero.Currency = "USD"
		_, err := RefundAmount(RefundRequest{OrderID: "order-1", Partial: true, Amount: zero, Prior: prior})
		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "invalid_amount", vErr.Code)
	})

	t.Run("partial refund cannot exceed prior amount", func(t *testing.T) {
		_, err := RefundAmount(RefundRequest{OrderID: "order-1", Partial: true, Amount: thirty, Prior: prior})
		require.ErrorIs(t, err, errors.ErrRefundExceedsCaptured)
	})

	t.Run("partial refund must match the captured currency", func(t *testing.T) {
		eur, err := money.FromString("5000.00", "EUR")
		require.NoError(t, err)
		_, err = RefundAmount(RefundRequest{OrderID: "order-1", Partial: true, Amount: eur, Prior: prior})
		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "currency_mismatch", vErr.Code)
	})

	t.Run("missing prior", func(t *testing.T) {
		_, err := RefundAmount(RefundRequest{OrderID: "order-1", Partial: true, Amount: five})
		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "prior", vErr.Field)
	})
}

func TestRequiredField(t *testing.T) {
	var missing []string
	RequiredField(&missing, "client", "")
	RequiredField(&missing, "secret", "   ")
	RequiredField(&missing, "merchant_id", "m_1")
	assert.Equal(t, []string{"client", "secret"}, missing)
}
