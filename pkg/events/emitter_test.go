package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestToGoldenEvent_UpdateCarriesAttributesAndMembers(t *testing.T) {
	e := &Emitter{}

	change := models.ChangeEvent{
		BatchID:        "b1",
		SequenceNumber: 3,
		GoldenID:       "g1",
		ChangeType:     models.ChangeTypeUpdate,
		After: &models.GoldenRecord{
			GoldenID:   "g1",
			Version:    4,
			Attributes: map[string]any{"full_name": "Ada Park"},
			Members: []models.MemberRef{
				{SourceID: "national_registry", SourceRecordID: "r1"},
				{SourceID: "hospital_feed", SourceRecordID: "r9"},
			},
		},
	}

	event, err := e.toGoldenEvent(change)
	require.NoError(t, err)
	assert.Equal(t, string(EventTypeGoldenUpdated), event.EventType)
	assert.Equal(t, 3, event.SequenceNumber)
	assert.Equal(t, 4, event.Version)
	assert.JSONEq(t, `{"full_name": "Ada Park"}`, string(event.Attributes))
	assert.Equal(t, []string{"national_registry:r1", "hospital_feed:r9"}, event.Members)
}

func TestToGoldenEvent_DeleteStaysThin(t *testing.T) {
	e := &Emitter{}

	change := models.ChangeEvent{
		BatchID:    "b1",
		GoldenID:   "g1",
		ChangeType: models.ChangeTypeDelete,
		After: &models.GoldenRecord{
			GoldenID:   "g1",
			Version:    5,
			Tombstone:  true,
			Attributes: map[string]any{"full_name": "Ada Park"},
		},
	}

	event, err := e.toGoldenEvent(change)
	require.NoError(t, err)
	assert.Equal(t, string(EventTypeGoldenDeleted), event.EventType)
	assert.Nil(t, event.Attributes)
	assert.Equal(t, 5, event.Version)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventTypeGoldenCreated, eventTypeFor(models.ChangeTypeInsert))
	assert.Equal(t, EventTypeGoldenUpdated, eventTypeFor(models.ChangeTypeUpdate))
	assert.Equal(t, EventTypeGoldenDeleted, eventTypeFor(models.ChangeTypeDelete))
	assert.Equal(t, EventTypeGoldenConflict, eventTypeFor(models.ChangeTypeConflict))
}

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(EventTypeBatchCommitted, "b1")
	assert.Equal(t, EventTypeBatchCommitted, base.EventType)
	assert.Equal(t, SchemaVersion, base.SchemaVersion)
	assert.Equal(t, "b1", base.BatchID)
	assert.NotEmpty(t, base.CorrelationID)
	assert.False(t, base.Timestamp.IsZero())
}
