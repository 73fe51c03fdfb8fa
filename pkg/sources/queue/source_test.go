package queue

import (
	"testing"

	"github.com/driphq/drip/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	eventType, userID, data, err := decodeMessage(`{"event_type":"purchase_complete","user_id":"u1","data":{"amount":99.5}}`)
	require.NoError(t, err)
	assert.Equal(t, models.EventPurchaseComplete, eventType)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, 99.5, data["amount"])
}

func TestDecodeMessage_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "hello"},
		{name: "missing event_type", payload: `{"user_id":"u1"}`},
		{name: "missing user_id", payload: `{"event_type":"user_signup"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := decodeMessage(tt.payload)
			assert.Error(t, err)
		})
	}
}
