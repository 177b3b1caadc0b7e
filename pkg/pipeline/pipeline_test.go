package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() models.ReconcileConfig {
	return models.ReconcileConfig{
		AcceptThreshold:   0.85,
		ReviewThreshold:   0.7,
		MaxClusterSize:    10,
		RollbackRetention: 3,
		SourcePriorities:  map[string]int{"registry": 10, "crawler": 1},
		Rules: []models.RuleDefinition{
			{ID: "name-required", Dimension: models.DimensionCompleteness, Severity: models.SeverityWarning, Kind: models.RuleKindRequired, Field: "full_name"},
		},
	}
}

func newTestPipeline(t *testing.T, cfg models.ReconcileConfig, mem *store.Memory) *Pipeline {
	t.Helper()
	p, configErrs, err := New(cfg, mem, nil, testLogger())
	require.NoError(t, err)
	require.Empty(t, configErrs)
	return p
}

func record(sourceID, recordID string, ingest time.Time, attrs map[string]any) models.SourceRecord {
	return models.SourceRecord{
		SourceID:        sourceID,
		SourceRecordID:  recordID,
		Attributes:      attrs,
		IngestTimestamp: ingest,
	}
}

var ingestTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func janeFromRegistry() models.SourceRecord {
	return record("registry", "r1", ingestTime, map[string]any{
		"full_name": "Jane Doe",
		"email":     "jane.doe@example.com",
	})
}

func janeFromCrawler() models.SourceRecord {
	return record("crawler", "c1", ingestTime.Add(time.Hour), map[string]any{
		"full_name":   "Jane Doe",
		"email":       "jane.doe@example.com",
		"institution": "State University",
	})
}

func TestRun_MergesMatchingSourcesIntoOneGolden(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := newTestPipeline(t, testConfig(), mem)

	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{janeFromRegistry(), janeFromCrawler()},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusCommitted, result.Status)
	assert.Equal(t, 1, result.Clusters)
	assert.Equal(t, 1, result.Inserts)

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	require.Len(t, goldens, 1)

	golden := goldens[0]
	assert.Len(t, golden.Members, 2)
	assert.Equal(t, "jane doe", golden.Attributes["full_name"])
	// Only the crawler carries the institution, so it wins uncontested
	assert.Equal(t, "state university", golden.Attributes["institution"])
	assert.NotEmpty(t, golden.Fingerprint)
}

func TestRun_IdenticalBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := newTestPipeline(t, testConfig(), mem)

	batch := models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{janeFromRegistry(), janeFromCrawler()},
	}
	_, err := p.Run(ctx, batch)
	require.NoError(t, err)

	batch.BatchID = "b2"
	result, err := p.Run(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusCommitted, result.Status)
	assert.Empty(t, result.Events, "identical snapshot produces no deltas")
	assert.Zero(t, result.Inserts+result.Updates+result.Deletes)
}

func TestRun_VanishedRecordTombstonesGolden(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := newTestPipeline(t, testConfig(), mem)

	_, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{
			janeFromRegistry(),
			record("registry", "r2", ingestTime, map[string]any{"full_name": "Zoe Quill"}),
		},
	})
	require.NoError(t, err)

	// Zoe's record vanished from the snapshot
	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b2",
		Records: []models.SourceRecord{janeFromRegistry()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deletes)

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	require.Len(t, goldens, 2)

	tombstones := 0
	for _, g := range goldens {
		if g.Tombstone {
			tombstones++
		}
	}
	assert.Equal(t, 1, tombstones)
}

func TestRun_QuarantineDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	cfg := testConfig()
	cfg.RequiredAttributes = []string{"full_name"}
	p := newTestPipeline(t, cfg, mem)

	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{
			janeFromRegistry(),
			{SourceID: "crawler", SourceRecordID: "broken"}, // no attributes
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusCommitted, result.Status)
	assert.Equal(t, 1, result.Quarantined)
	assert.Equal(t, 1, result.Inserts)
}

func TestRun_UnresolvedConflictSurfacesForReview(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	cfg := testConfig()
	// Equal trust, equal recency, different values: unresolvable
	cfg.SourcePriorities = nil
	p := newTestPipeline(t, cfg, mem)

	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{
			record("src_a", "1", ingestTime, map[string]any{
				"full_name":      "Jane Doe",
				"email":          "jane.doe@example.com",
				"license_number": "AB111111",
			}),
			record("src_b", "2", ingestTime, map[string]any{
				"full_name":      "Jane Doe",
				"email":          "jane.doe@example.com",
				"license_number": "AB222222",
			}),
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusCommitted, result.Status)
	assert.Equal(t, 1, result.Conflicts)

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	require.Len(t, goldens, 1)
	_, present := goldens[0].Attributes["license_number"]
	assert.False(t, present, "unresolved field stays unset")

	var reviewViolations int
	for _, v := range result.Violations {
		if v.Severity == models.SeverityManualReview {
			reviewViolations++
		}
	}
	assert.Equal(t, 1, reviewViolations)

	queue, err := mem.ReviewQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, models.ReviewReasonUnresolvedConflict, queue[0].Reason)
}

func TestRun_RerunDoesNotDuplicateReviewQueue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	cfg := testConfig()
	cfg.SourcePriorities = nil
	p := newTestPipeline(t, cfg, mem)

	conflicting := []models.SourceRecord{
		record("src_a", "1", ingestTime, map[string]any{
			"full_name":      "Jane Doe",
			"email":          "jane.doe@example.com",
			"license_number": "AB111111",
		}),
		record("src_b", "2", ingestTime, map[string]any{
			"full_name":      "Jane Doe",
			"email":          "jane.doe@example.com",
			"license_number": "AB222222",
		}),
	}

	_, err := p.Run(ctx, models.IngestBatch{BatchID: "b1", Records: conflicting})
	require.NoError(t, err)

	// The conflict recurs on every run over the same snapshot; the pending
	// queue entry must not
	_, err = p.Run(ctx, models.IngestBatch{BatchID: "b2", Records: conflicting})
	require.NoError(t, err)

	queue, err := mem.ReviewQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, models.ReviewReasonUnresolvedConflict, queue[0].Reason)
}

func TestRun_RuleViolationsCommittedWithBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	cfg := testConfig()
	cfg.Rules = []models.RuleDefinition{
		{ID: "institution-required", Dimension: models.DimensionCompleteness, Severity: models.SeverityWarning, Kind: models.RuleKindRequired, Field: "institution"},
	}
	p := newTestPipeline(t, cfg, mem)

	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{janeFromRegistry()},
	})
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)

	stored, err := mem.Violations(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	scores, err := mem.Scores(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, scores)
}

func TestRun_UndoRestoresPreviousBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := newTestPipeline(t, testConfig(), mem)

	_, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{janeFromRegistry()},
	})
	require.NoError(t, err)

	updated := janeFromRegistry()
	updated.Attributes["institution"] = "State University"
	_, err = p.Run(ctx, models.IngestBatch{
		BatchID: "b2",
		Records: []models.SourceRecord{updated},
	})
	require.NoError(t, err)

	require.NoError(t, p.UndoBatch(ctx, "b2"))

	goldens, err := mem.List(ctx)
	require.NoError(t, err)
	require.Len(t, goldens, 1)
	_, present := goldens[0].Attributes["institution"]
	assert.False(t, present)
}

func TestRun_TimeoutFailsBatchBeforeCommit(t *testing.T) {
	mem := store.NewMemory()

	cfg := testConfig()
	cfg.BatchTimeoutSeconds = 1
	p := newTestPipeline(t, cfg, mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, models.IngestBatch{
		BatchID: "b1",
		Records: []models.SourceRecord{janeFromRegistry()},
	})
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusFailed, result.Status)

	goldens, listErr := mem.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, goldens)
}
