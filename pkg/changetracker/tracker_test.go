package changetracker

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testTracker() *Tracker {
	return NewTracker(models.ReconcileConfig{}.WithDefaults(), testLogger())
}

func goldenWith(id string, version int, attrs map[string]any, prov map[string]models.FieldProvenance) *models.GoldenRecord {
	if prov == nil {
		prov = map[string]models.FieldProvenance{}
	}
	g := &models.GoldenRecord{
		GoldenID:   id,
		Version:    version,
		Attributes: attrs,
		Provenance: prov,
	}
	g.Fingerprint = merging.Fingerprint(g, nil)
	return g
}

func TestDiff_InsertUpdateAndNoop(t *testing.T) {
	tracker := testTracker()

	prev := []*models.GoldenRecord{
		goldenWith("g-same", 1, map[string]any{"full_name": "jane doe"}, nil),
		goldenWith("g-upd", 1, map[string]any{"full_name": "old name"}, nil),
	}
	merged := []*models.GoldenRecord{
		goldenWith("g-same", 2, map[string]any{"full_name": "jane doe"}, nil),
		goldenWith("g-upd", 2, map[string]any{"full_name": "new name"}, nil),
		goldenWith("g-new", 1, map[string]any{"full_name": "fresh"}, nil),
	}

	events := tracker.Diff(context.Background(), "b1", prev, merged, nil)
	require.Len(t, events, 2)

	assert.Equal(t, "g-new", events[0].GoldenID)
	assert.Equal(t, models.ChangeTypeInsert, events[0].ChangeType)
	assert.Nil(t, events[0].Before)

	assert.Equal(t, "g-upd", events[1].GoldenID)
	assert.Equal(t, models.ChangeTypeUpdate, events[1].ChangeType)
	assert.Equal(t, "old name", events[1].Before.Attributes["full_name"])
	assert.Equal(t, "new name", events[1].After.Attributes["full_name"])
}

func TestDiff_IdenticalRerunIsEmpty(t *testing.T) {
	tracker := testTracker()

	prev := []*models.GoldenRecord{
		goldenWith("g1", 1, map[string]any{"full_name": "jane doe"}, nil),
	}
	merged := []*models.GoldenRecord{
		goldenWith("g1", 2, map[string]any{"full_name": "jane doe"}, nil),
	}

	events := tracker.Diff(context.Background(), "b2", prev, merged, nil)
	assert.Empty(t, events)
}

func TestDiff_MissingGoldenTombstones(t *testing.T) {
	tracker := testTracker()

	prev := []*models.GoldenRecord{
		goldenWith("g-gone", 3, map[string]any{"full_name": "jane doe"}, nil),
	}

	events := tracker.Diff(context.Background(), "b1", prev, nil, nil)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, models.ChangeTypeDelete, event.ChangeType)
	assert.False(t, event.Before.Tombstone)
	assert.True(t, event.After.Tombstone)
	assert.Equal(t, 4, event.After.Version)
	// Attributes survive on the tombstone for audit
	assert.Equal(t, "jane doe", event.After.Attributes["full_name"])
}

func TestDiff_TombstonedGoldenStaysRetired(t *testing.T) {
	tracker := testTracker()

	retired := goldenWith("g-dead", 2, map[string]any{"full_name": "jane doe"}, nil)
	retired.Tombstone = true
	retired.Fingerprint = merging.Fingerprint(retired, nil)

	events := tracker.Diff(context.Background(), "b1", []*models.GoldenRecord{retired}, nil, nil)
	assert.Empty(t, events, "already retired records emit no further deletes")
}

func TestDiff_ConflictOnlyChange(t *testing.T) {
	tracker := testTracker()

	attrs := map[string]any{"license_number": "AAA11"}
	prev := goldenWith("g1", 1, attrs, map[string]models.FieldProvenance{
		"license_number": {ChosenSourceID: "src_a", ChosenValue: "AAA11", Resolution: models.ResolutionMostRecent},
	})
	next := goldenWith("g1", 2, attrs, map[string]models.FieldProvenance{
		"license_number": {ChosenSourceID: "src_a", ChosenValue: "AAA11", Resolution: models.ResolutionMajorityVote},
	})

	events := tracker.Diff(context.Background(), "b1",
		[]*models.GoldenRecord{prev}, []*models.GoldenRecord{next},
		map[string]bool{"g1": true})
	require.Len(t, events, 1)
	assert.Equal(t, models.ChangeTypeConflict, events[0].ChangeType)
	assert.True(t, events[0].Conflict)
}

func TestDiff_SequenceNumbersFollowGoldenIDOrder(t *testing.T) {
	tracker := testTracker()

	merged := []*models.GoldenRecord{
		goldenWith("g-c", 1, map[string]any{"x": "1"}, nil),
		goldenWith("g-a", 1, map[string]any{"x": "2"}, nil),
		goldenWith("g-b", 1, map[string]any{"x": "3"}, nil),
	}

	events := tracker.Diff(context.Background(), "b1", nil, merged, nil)
	require.Len(t, events, 3)
	for i, id := range []string{"g-a", "g-b", "g-c"} {
		assert.Equal(t, id, events[i].GoldenID)
		assert.Equal(t, i+1, events[i].SequenceNumber)
	}
}
