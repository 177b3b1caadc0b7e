package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func golden(id string, version int) *models.GoldenRecord {
	return &models.GoldenRecord{
		GoldenID:   id,
		Version:    version,
		Attributes: map[string]any{"full_name": "jane doe"},
		Provenance: map[string]models.FieldProvenance{},
	}
}

func TestMemory_CommitMakesBatchVisible(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, golden("g1", 1)))
	require.NoError(t, tx.MarkCommitted(ctx, "b1"))
	require.NoError(t, tx.Commit(ctx))

	got, err := mem.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	batches, err := mem.CommittedBatches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, batches)
}

func TestMemory_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, golden("g1", 1)))
	require.NoError(t, tx.AppendConflicts(ctx, []models.ConflictEntry{{ID: "c1"}}))
	require.NoError(t, tx.Rollback(ctx))

	_, err = mem.Get(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, goldens)
}

func TestMemory_UpsertIsolatesCallerMutations(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	g := golden("g1", 1)
	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, g))
	require.NoError(t, tx.Commit(ctx))

	// Mutating the caller's copy after commit must not leak into the store
	g.Attributes["full_name"] = "someone else"

	got, err := mem.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "jane doe", got.Attributes["full_name"])
}

func TestMemory_RollbackEntriesInSequenceOrder(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	before, _ := json.Marshal(golden("g1", 1))
	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AppendRollback(ctx, models.RollbackEntry{ID: "r2", BatchID: "b1", SequenceNumber: 2, Before: before}))
	require.NoError(t, tx.AppendRollback(ctx, models.RollbackEntry{ID: "r1", BatchID: "b1", SequenceNumber: 1, Before: before}))
	require.NoError(t, tx.AppendRollback(ctx, models.RollbackEntry{ID: "r3", BatchID: "b2", SequenceNumber: 1}))
	require.NoError(t, tx.Commit(ctx))

	entries, err := mem.RollbackEntries(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0].ID)
	assert.Equal(t, "r2", entries[1].ID)
}

func TestMemory_PruneRollbackKeepsRecentBatches(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	for i, batchID := range []string{"b1", "b2", "b3"} {
		tx, err := mem.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.AppendRollback(ctx, models.RollbackEntry{
			ID: batchID + "-r", BatchID: batchID, SequenceNumber: i, CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, tx.MarkCommitted(ctx, batchID))
		require.NoError(t, tx.PruneRollback(ctx, 2))
		require.NoError(t, tx.Commit(ctx))
	}

	entries, err := mem.RollbackEntries(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, entries, "oldest batch pruned once retention is exceeded")

	for _, batchID := range []string{"b2", "b3"} {
		entries, err := mem.RollbackEntries(ctx, batchID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}
}

func TestMemory_AddReviewCandidatesSkipsAlreadyPendingPairs(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	pair := func(id, batchID string) models.ReviewCandidate {
		return models.ReviewCandidate{
			ID: id, BatchID: batchID,
			RecordA: "src_a/1", RecordB: "src_b/2",
			Reason: models.ReviewReasonUnresolvedConflict,
			Status: models.ReviewStatusPending,
		}
	}

	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddReviewCandidates(ctx, []models.ReviewCandidate{pair("rc1", "b1")}))
	require.NoError(t, tx.Commit(ctx))

	// Same pair and reason from a later batch stays a single queue entry
	tx, err = mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddReviewCandidates(ctx, []models.ReviewCandidate{pair("rc2", "b2")}))
	require.NoError(t, tx.Commit(ctx))

	queue, err := mem.ReviewQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "rc1", queue[0].ID)

	// A resolved entry no longer blocks re-queueing
	mem.review[0].Status = models.ReviewStatusApproved
	tx, err = mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddReviewCandidates(ctx, []models.ReviewCandidate{pair("rc3", "b3")}))
	require.NoError(t, tx.Commit(ctx))

	queue, err = mem.ReviewQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}

func TestMemory_SupersedeViolationsReplacesPriorPass(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	tx, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SupersedeViolations(ctx,
		[]models.RuleViolation{{RuleID: "old"}},
		[]models.QualityScore{{Dimension: models.DimensionCompleteness, Value: 50}},
	))
	require.NoError(t, tx.Commit(ctx))

	tx, err = mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SupersedeViolations(ctx,
		[]models.RuleViolation{{RuleID: "new"}},
		[]models.QualityScore{{Dimension: models.DimensionCompleteness, Value: 90}},
	))
	require.NoError(t, tx.Commit(ctx))

	violations, err := mem.Violations(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "new", violations[0].RuleID)

	scores, err := mem.Scores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, float64(90), scores[0].Value)
}
