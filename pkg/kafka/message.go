package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Batch *models.IngestBatch
}

// ParseIngestBatch parses the message value as a source snapshot batch.
// The envelope carries the complete current snapshot of every source.
func (m *IncomingMessage) ParseIngestBatch() error {
	var batch models.IngestBatch
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return err
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = m.Timestamp
	}
	m.Batch = &batch
	return nil
}

// GetBatchID returns the batch ID from the parsed envelope, falling back to
// the message key and then the batch_id header.
func (m *IncomingMessage) GetBatchID() string {
	if m.Batch != nil && m.Batch.BatchID != "" {
		return m.Batch.BatchID
	}
	if m.Key != "" {
		return m.Key
	}
	return m.Headers["batch_id"]
}

// IsDebezium reports whether the message looks like a Debezium CDC envelope
// rather than a snapshot batch. Debezium feeds carry a payload.op field.
func (m *IncomingMessage) IsDebezium() bool {
	if connector := m.Headers["connector"]; connector == "debezium" {
		return true
	}
	var probe struct {
		Payload struct {
			Op string `json:"op"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(m.Value, &probe); err != nil {
		return false
	}
	return probe.Payload.Op != ""
}
