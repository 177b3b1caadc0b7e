package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngestBatch(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{
			"batch_id": "batch-7",
			"records": [
				{"source_id": "national_registry", "source_record_id": "r1", "attributes": {"full_name": "Ada Park"}}
			]
		}`),
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, msg.ParseIngestBatch())
	require.NotNil(t, msg.Batch)
	assert.Equal(t, "batch-7", msg.Batch.BatchID)
	assert.Len(t, msg.Batch.Records, 1)
	// Envelope omitted received_at, so the message timestamp stands in.
	assert.Equal(t, msg.Timestamp, msg.Batch.ReceivedAt)
	assert.Equal(t, "batch-7", msg.GetBatchID())
}

func TestGetBatchID_Fallbacks(t *testing.T) {
	msg := &IncomingMessage{Key: "key-batch"}
	assert.Equal(t, "key-batch", msg.GetBatchID())

	msg = &IncomingMessage{Headers: map[string]string{"batch_id": "header-batch"}}
	assert.Equal(t, "header-batch", msg.GetBatchID())
}

func TestIsDebezium(t *testing.T) {
	byHeader := &IncomingMessage{Headers: map[string]string{"connector": "debezium"}}
	assert.True(t, byHeader.IsDebezium())

	byShape := &IncomingMessage{Value: []byte(`{"payload": {"op": "c", "after": {}}}`)}
	assert.True(t, byShape.IsDebezium())

	batch := &IncomingMessage{Value: []byte(`{"batch_id": "b1", "records": []}`)}
	assert.False(t, batch.IsDebezium())
}
