package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated     EventType = "created"
	EventTypeUpdated     EventType = "updated"
	EventTypeRiskScored  EventType = "risk_scored"
	EventTypeSubmitted   EventType = "submitted"
	EventTypeDocumentSet EventType = "document_uploaded"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeLoan    EntityType = "loan"
	EntityTypeClient  EntityType = "client"
	EntityTypeSession EntityType = "session"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "loan.created"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "loan"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoanCreated creates a loan.created event
func LoanCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeLoan, payload)
}

// LoanUpdated creates a loan.updated event
func LoanUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeLoan, payload)
}

// ClientCreated creates a client.created event
func ClientCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeClient, payload)
}

// ClientRiskScored creates a client.risk_scored event
func ClientRiskScored(payload interface{}) Event {
	return NewEvent(EventTypeRiskScored, EntityTypeClient, payload)
}

// ClientDocumentUploaded creates a client.document_uploaded event
func ClientDocumentUploaded(payload interface{}) Event {
	return NewEvent(EventTypeDocumentSet, EntityTypeClient, payload)
}

// SessionUpdated creates a session.updated event
func SessionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeSession, payload)
}

// SessionSubmitted creates a session.submitted event
func SessionSubmitted(payload interface{}) Event {
	return NewEvent(EventTypeSubmitted, EntityTypeSession, payload)
}
