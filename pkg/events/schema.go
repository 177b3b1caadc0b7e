package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeGoldenCreated  EventType = "golden.created"
	EventTypeGoldenUpdated  EventType = "golden.updated"
	EventTypeGoldenDeleted  EventType = "golden.deleted"
	EventTypeGoldenConflict EventType = "golden.conflict"

	EventTypeBatchCommitted  EventType = "batch.committed"
	EventTypeBatchRolledBack EventType = "batch.rolled_back"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	BatchID       string    `json:"batch_id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// BatchCommittedEvent summarizes one committed pipeline run
type BatchCommittedEvent struct {
	BaseEvent
	Events      int `json:"events"`
	Inserts     int `json:"inserts"`
	Updates     int `json:"updates"`
	Deletes     int `json:"deletes"`
	Conflicts   int `json:"conflicts"`
	Quarantined int `json:"quarantined"`
}

// BatchRolledBackEvent announces that a committed batch was undone
type BatchRolledBackEvent struct {
	BaseEvent
	RestoredRecords int `json:"restored_records"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType, batchID string) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		BatchID:       batchID,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
