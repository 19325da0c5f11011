package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{
		"transaction_id": "c0ffee00-0000-0000-0000-000000000001",
		"order_id":       "order-1",
		"amount":         "19.99",
		"currency":       "USD",
	}

	entry := NewEntry("payment_transaction", aggregateID, "payment.authorized", payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "payment_transaction", entry.AggregateType)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, "payment.authorized", entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, 5, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestNewEntry_EmptyPayload(t *testing.T) {
	aggregateID := uuid.New()
	entry := NewEntry("payment_transaction", aggregateID, "payment.initialized", nil)

	require.NotNil(t, entry)
	assert.Nil(t, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
}

func TestNewEntry_DifferentEventTypes(t *testing.T) {
	aggregateID := uuid.New()

	tests := []struct {
		name          string
		aggregateType string
		eventType     string
	}{
		{"payment initialized", "payment_transaction", "payment.initialized"},
		{"payment authorized", "payment_transaction", "payment.authorized"},
		{"payment charged", "payment_transaction", "payment.charged"},
		{"payment captured", "payment_transaction", "payment.captured"},
		{"payment refunded", "payment_transaction", "payment.refunded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry(tt.aggregateType, aggregateID, tt.eventType, nil)
			assert.Equal(t, tt.aggregateType, entry.AggregateType)
			assert.Equal(t, tt.eventType, entry.EventType)
		})
	}
}

func TestStatus_Constants(t *testing.T) {
	assert.Equal(t, Status("pending"), StatusPending)
	assert.Equal(t, Status("published"), StatusPublished)
	assert.Equal(t, Status("failed"), StatusFailed)
}

func TestEntry_UniqueIDs(t *testing.T) {
	aggregateID := uuid.New()
	entry1 := NewEntry("payment_transaction", aggregateID, "payment.captured", nil)
	entry2 := NewEntry("payment_transaction", aggregateID, "payment.captured", nil)

	// Each entry should have a unique ID even with same aggregate
	assert.NotEqual(t, entry1.ID, entry2.ID)
	assert.Equal(t, entry1.AggregateID, entry2.AggregateID)
}

func TestEntry_PayloadTypes(t *testing.T) {
	aggregateID := uuid.New()

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{
			name: "numeric values",
			payload: map[string]any{
				"attempt": 1,
				"count":   5,
			},
		},
		{
			name: "string values",
			payload: map[string]any{
				"provider": "stripe",
				"currency": "USD",
			},
		},
		{
			name: "mixed types",
			payload: map[string]any{
				"id":      uuid.New().String(),
				"amount":  "19.99",
				"partial": true,
				"details": map[string]string{"REFUND_ID": "re_123"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry("payment_transaction", aggregateID, "payment.captured", tt.payload)
			assert.Equal(t, tt.payload, entry.Payload)
		})
	}
}
