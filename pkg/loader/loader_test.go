package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() models.ReconcileConfig {
	cfg := models.ReconcileConfig{RollbackRetention: 2}
	return cfg.WithDefaults()
}

func golden(id string, version int, name string) *models.GoldenRecord {
	g := &models.GoldenRecord{
		GoldenID:   id,
		Version:    version,
		Attributes: map[string]any{"full_name": name},
		Provenance: map[string]models.FieldProvenance{},
	}
	g.Fingerprint = merging.Fingerprint(g, nil)
	return g
}

func insertEvent(batchID string, seq int, g *models.GoldenRecord) models.ChangeEvent {
	return models.ChangeEvent{
		BatchID:        batchID,
		SequenceNumber: seq,
		GoldenID:       g.GoldenID,
		ChangeType:     models.ChangeTypeInsert,
		After:          g,
	}
}

func updateEvent(batchID string, seq int, before, after *models.GoldenRecord) models.ChangeEvent {
	return models.ChangeEvent{
		BatchID:        batchID,
		SequenceNumber: seq,
		GoldenID:       after.GoldenID,
		ChangeType:     models.ChangeTypeUpdate,
		Before:         before,
		After:          after,
	}
}

func TestApply_CommitsAllEvents(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	err := loader.Apply(ctx, "b1", []models.ChangeEvent{
		insertEvent("b1", 1, golden("g1", 1, "jane doe")),
		insertEvent("b1", 2, golden("g2", 1, "john roe")),
	}, Sidecar{Conflicts: []models.ConflictEntry{{ID: "c1", BatchID: "b1"}}})
	require.NoError(t, err)

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	assert.Len(t, goldens, 2)

	batches, err := mem.CommittedBatches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, batches)

	entries, err := mem.RollbackEntries(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Before, "insert before-image is nil")
}

func TestApply_SequenceGapRejectsBatchUntouched(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	err := loader.Apply(ctx, "b1", []models.ChangeEvent{
		insertEvent("b1", 1, golden("g1", 1, "jane doe")),
		insertEvent("b1", 3, golden("g2", 1, "john roe")),
	}, Sidecar{})

	var batchErr *models.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "b1", batchErr.BatchID)

	goldens, listErr := mem.List(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, goldens, "failed batch leaves the store unchanged")
}

func TestApply_MissingBeforeSnapshotRejected(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(store.NewMemory(), testConfig(), testLogger())

	event := models.ChangeEvent{
		BatchID: "b1", SequenceNumber: 1, GoldenID: "g1",
		ChangeType: models.ChangeTypeUpdate,
		After:      golden("g1", 2, "jane doe"),
	}
	err := loader.Apply(ctx, "b1", []models.ChangeEvent{event}, Sidecar{})
	require.Error(t, err)
}

func TestUndoBatch_RestoresPriorState(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	v1 := golden("g1", 1, "jane doe")
	require.NoError(t, loader.Apply(ctx, "b1", []models.ChangeEvent{insertEvent("b1", 1, v1)}, Sidecar{}))

	v2 := golden("g1", 2, "jane m doe")
	inserted := golden("g2", 1, "john roe")
	require.NoError(t, loader.Apply(ctx, "b2", []models.ChangeEvent{
		updateEvent("b2", 1, v1, v2),
		insertEvent("b2", 2, inserted),
	}, Sidecar{}))

	undone, err := loader.UndoBatch(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, 2, undone)

	restored, err := mem.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "jane doe", restored.Attributes["full_name"])
	assert.Equal(t, 1, restored.Version)

	_, err = mem.Get(ctx, "g2")
	assert.ErrorIs(t, err, store.ErrNotFound, "undone insert is physically removed")
}

func TestUndoBatch_OutsideRetentionFails(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	for i, batchID := range []string{"b1", "b2", "b3"} {
		g := golden("g"+batchID, i+1, "name")
		require.NoError(t, loader.Apply(ctx, batchID, []models.ChangeEvent{insertEvent(batchID, 1, g)}, Sidecar{}))
	}

	// Retention is 2, so b1's rollback entries are gone
	_, err := loader.UndoBatch(ctx, "b1")
	require.Error(t, err)

	_, err = loader.UndoBatch(ctx, "b3")
	require.NoError(t, err)
}

func TestUndoBatch_NonLatestBatchRejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	v1 := golden("g1", 1, "jane doe")
	require.NoError(t, loader.Apply(ctx, "b1", []models.ChangeEvent{insertEvent("b1", 1, v1)}, Sidecar{}))

	v2 := golden("g1", 2, "jane m doe")
	require.NoError(t, loader.Apply(ctx, "b2", []models.ChangeEvent{updateEvent("b2", 1, v1, v2)}, Sidecar{}))

	_, err := loader.UndoBatch(ctx, "b1")
	var batchErr *models.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "b1", batchErr.BatchID)

	// The newer commit is untouched
	current, getErr := mem.Get(ctx, "g1")
	require.NoError(t, getErr)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "jane m doe", current.Attributes["full_name"])
}

func TestUndoBatch_CorruptSnapshotIsFatal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	loader := NewLoader(mem, testConfig(), testLogger())

	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AppendRollback(ctx, models.RollbackEntry{
		ID: "r1", BatchID: "b1", SequenceNumber: 1, GoldenID: "g1",
		Before: []byte(`{"golden_id": truncated`),
	}))
	require.NoError(t, tx.Commit(ctx))

	_, err = loader.UndoBatch(ctx, "b1")
	assert.True(t, errors.Is(err, models.ErrCorruptRollbackLog))
}

func TestApply_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	failing := &failingStore{GoldenStore: mem, failOnUpsert: 2}
	loader := NewLoader(failing, testConfig(), testLogger())

	err := loader.Apply(ctx, "b1", []models.ChangeEvent{
		insertEvent("b1", 1, golden("g1", 1, "jane doe")),
		insertEvent("b1", 2, golden("g2", 1, "john roe")),
	}, Sidecar{})
	require.Error(t, err)

	goldens, listErr := mem.List(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, goldens, "partial batch is never visible")
}

// failingStore injects an upsert failure partway through a transaction
type failingStore struct {
	store.GoldenStore
	failOnUpsert int
}

func (f *failingStore) Begin(ctx context.Context) (store.BatchTx, error) {
	tx, err := f.GoldenStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{BatchTx: tx, failOn: f.failOnUpsert}, nil
}

type failingTx struct {
	store.BatchTx
	upserts int
	failOn  int
}

func (f *failingTx) Upsert(ctx context.Context, g *models.GoldenRecord) error {
	f.upserts++
	if f.upserts >= f.failOn {
		return errors.New("disk full")
	}
	return f.BatchTx.Upsert(ctx, g)
}
