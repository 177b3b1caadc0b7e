package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDebeziumMessage_CreateRow(t *testing.T) {
	raw := []byte(`{
		"payload": {
			"before": null,
			"after": {
				"source_id": "hospital_feed",
				"source_record_id": "rec-1",
				"attributes": {"full_name": "Ada Park", "email": "ada@example.org"},
				"updated_at": "2026-03-01T10:00:00Z"
			},
			"source": {"connector": "postgresql", "table": "source_records"},
			"op": "c",
			"ts_ms": 1774000000000
		}
	}`)

	envelope, err := ParseDebeziumMessage(raw)
	require.NoError(t, err)
	assert.True(t, envelope.Payload.IsCreate())
	assert.False(t, envelope.Payload.IsDelete())

	row, err := envelope.Payload.ParseSourceRecordRow()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IsDeleted())

	record := row.ToSourceRecord()
	require.NotNil(t, record)
	assert.Equal(t, "hospital_feed", record.SourceID)
	assert.Equal(t, "rec-1", record.SourceRecordID)
	assert.Equal(t, "Ada Park", record.Attributes["full_name"])
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), record.IngestTimestamp)
}

func TestParseSourceRecordRow_StringWrappedAttributes(t *testing.T) {
	// Some connector configs serialize jsonb columns as JSON strings.
	payload := DebeziumPayload{
		After: json.RawMessage(`{
			"source_id": "web_crawler",
			"source_record_id": "rec-2",
			"attributes": "{\"full_name\": \"Bo Li\"}",
			"updated_at": "2026-03-01 10:00:00"
		}`),
		Op: "u",
	}

	row, err := payload.ParseSourceRecordRow()
	require.NoError(t, err)

	record := row.ToSourceRecord()
	require.NotNil(t, record)
	assert.Equal(t, "Bo Li", record.Attributes["full_name"])
}

func TestParseSourceRecordRow_DeleteHasNoAfter(t *testing.T) {
	payload := DebeziumPayload{After: json.RawMessage(`null`), Op: "d"}
	require.True(t, payload.IsDelete())

	row, err := payload.ParseSourceRecordRow()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSourceRecordRow_SoftDelete(t *testing.T) {
	deleted := "2026-03-02T00:00:00Z"
	row := SourceRecordRow{SourceID: "s", SourceRecordID: "r", DeletedAt: &deleted}
	assert.True(t, row.IsDeleted())
}
