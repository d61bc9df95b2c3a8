package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"created", EventTypeCreated, "created"},
		{"updated", EventTypeUpdated, "updated"},
		{"risk scored", EventTypeRiskScored, "risk_scored"},
		{"submitted", EventTypeSubmitted, "submitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":     1,
		"status": "Processing",
		"amount": "1200.00",
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeLoan, payload)
	after := time.Now()

	assert.Equal(t, "loan.created", evt.Type)
	assert.Equal(t, EntityTypeLoan, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"id":        float64(7),
		"riskScore": 0.42,
		"riskLevel": "Medium",
	}

	evt := Event{
		Type:      "client.risk_scored",
		Entity:    EntityTypeClient,
		Payload:   payload,
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime.UTC(), decoded.Timestamp.UTC())

	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), decodedPayload["id"])
	assert.Equal(t, 0.42, decodedPayload["riskScore"])
	assert.Equal(t, "Medium", decodedPayload["riskLevel"])
}

func TestEvent_ToJSON(t *testing.T) {
	evt := NewEvent(EventTypeUpdated, EntityTypeSession, map[string]interface{}{"id": "abc"})

	data, err := evt.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "session.updated", decoded["type"])
	assert.Equal(t, "session", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}

func TestEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": float64(1)}

	tests := []struct {
		name   string
		build  func(interface{}) Event
		typ    string
		entity EntityType
	}{
		{"LoanCreated", LoanCreated, "loan.created", EntityTypeLoan},
		{"LoanUpdated", LoanUpdated, "loan.updated", EntityTypeLoan},
		{"ClientCreated", ClientCreated, "client.created", EntityTypeClient},
		{"ClientRiskScored", ClientRiskScored, "client.risk_scored", EntityTypeClient},
		{"ClientDocumentUploaded", ClientDocumentUploaded, "client.document_uploaded", EntityTypeClient},
		{"SessionUpdated", SessionUpdated, "session.updated", EntityTypeSession},
		{"SessionSubmitted", SessionSubmitted, "session.submitted", EntityTypeSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := tt.build(payload)
			assert.Equal(t, tt.typ, evt.Type)
			assert.Equal(t, tt.entity, evt.Entity)
			assert.Equal(t, payload, evt.Payload)
		})
	}
}
