// Package pipeline orchestrates one reconcile run: screen, normalize, block,
// match, cluster, merge, diff, load, evaluate. A batch carries the complete
// current snapshot of every source; records that vanish from the snapshot
// surface as tombstone deltas.
package pipeline

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/changetracker"
	"github.com/Ramsey-B/clover/pkg/clustering"
	"github.com/Ramsey-B/clover/pkg/loader"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/rules"
	"github.com/Ramsey-B/clover/pkg/schema"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher receives committed change events. Emission happens after commit;
// a publish failure is logged, never rolled back.
type Publisher interface {
	Publish(ctx context.Context, events []models.ChangeEvent) error
}

// batchPublisher is an optional extension of Publisher for batch lifecycle
// announcements.
type batchPublisher interface {
	PublishBatchCommitted(ctx context.Context, result *models.BatchResult) error
	PublishBatchRolledBack(ctx context.Context, batchID string, restored int) error
}

// Pipeline wires the reconciliation stages together around a single store.
// Batches run one at a time; the store's batch transaction enforces the
// single-writer discipline.
type Pipeline struct {
	cfg       models.ReconcileConfig
	store     store.GoldenStore
	screener  *schema.Screener
	matcher   *matching.Engine
	clusterer *clustering.Builder
	merger    *merging.Engine
	tracker   *changetracker.Tracker
	loader    *loader.Loader
	rules     *rules.Engine
	publisher Publisher
	logger    ectologger.Logger
}

// New builds a pipeline. Malformed rule definitions are returned as config
// errors and skipped; a rule set that compiles to nothing is fatal.
func New(cfg models.ReconcileConfig, goldenStore store.GoldenStore, publisher Publisher, logger ectologger.Logger) (*Pipeline, []error, error) {
	cfg = cfg.WithDefaults()

	ruleEngine, configErrs, err := rules.NewEngine(cfg, logger)
	if err != nil {
		return nil, configErrs, err
	}

	return &Pipeline{
		cfg:       cfg,
		store:     goldenStore,
		screener:  schema.NewScreener(cfg, logger),
		matcher:   matching.NewEngine(cfg, logger),
		clusterer: clustering.NewBuilder(cfg, logger),
		merger:    merging.NewEngine(cfg, logger),
		tracker:   changetracker.NewTracker(cfg, logger),
		loader:    loader.NewLoader(goldenStore, cfg, logger),
		rules:     ruleEngine,
		publisher: publisher,
		logger:    logger,
	}, configErrs, nil
}

// Run processes one batch end to end. Any failure after screening rolls the
// whole batch back; the store is unchanged and the result reports failed.
func (p *Pipeline) Run(ctx context.Context, batch models.IngestBatch) (*models.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run")
	defer span.End()

	if p.cfg.BatchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.BatchTimeoutSeconds)*time.Second)
		defer cancel()
	}

	result := &models.BatchResult{BatchID: batch.BatchID, RecordsIn: len(batch.Records)}

	valid, quarantined := p.screener.Screen(ctx, batch)
	result.Quarantined = len(quarantined)

	normalized, recordsByKey := p.normalize(valid)
	buckets := bucket(normalized)

	candidates := p.matcher.MatchAll(ctx, buckets)
	clustered := p.clusterer.Build(ctx, normalized, candidates)
	result.Clusters = len(clustered.Clusters)

	previous, err := p.store.List(ctx)
	if err != nil {
		return p.fail(ctx, result, err)
	}

	merged, conflicts := p.merger.BuildAll(ctx, batch.BatchID, clustered.Clusters, recordsByKey, previousByMember(previous))
	result.Conflicts = len(conflicts)

	events := p.tracker.Diff(ctx, batch.BatchID, previous, merged, conflictGoldenIDs(conflicts))
	countEvents(result, events)

	violations, scores := p.evaluate(ctx, batch.BatchID, merged, conflicts)
	reviewCandidates := p.collectReviewCandidates(batch.BatchID, candidates, clustered.ReviewEdges, conflicts)
	result.ReviewCandidates = len(reviewCandidates)

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, result, err)
	}

	err = p.loader.Apply(ctx, batch.BatchID, events, loader.Sidecar{
		Conflicts:        conflicts,
		Quarantine:       quarantined,
		ReviewCandidates: reviewCandidates,
		Violations:       violations,
		Scores:           scores,
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	if p.publisher != nil && len(events) > 0 {
		if err := p.publisher.Publish(ctx, events); err != nil {
			// The batch is committed; consumers catch up from the store
			p.logger.WithContext(ctx).WithError(err).Error("Failed to publish change events")
		}
	}

	result.Status = models.BatchStatusCommitted
	result.Events = events
	result.Violations = violations
	result.Scores = scores
	result.CompletedAt = time.Now().UTC()

	if bp, ok := p.publisher.(batchPublisher); ok {
		if err := bp.PublishBatchCommitted(ctx, result); err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("Failed to publish batch committed event")
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":    batch.BatchID,
		"records_in":  result.RecordsIn,
		"quarantined": result.Quarantined,
		"clusters":    result.Clusters,
		"inserts":     result.Inserts,
		"updates":     result.Updates,
		"deletes":     result.Deletes,
		"conflicts":   result.Conflicts,
	}).Info("Batch committed")

	return result, nil
}

// UndoBatch reverses a recently committed batch from the rollback log and
// announces the rollback to downstream consumers.
func (p *Pipeline) UndoBatch(ctx context.Context, batchID string) error {
	restored, err := p.loader.UndoBatch(ctx, batchID)
	if err != nil {
		return err
	}

	if bp, ok := p.publisher.(batchPublisher); ok {
		if err := bp.PublishBatchRolledBack(ctx, batchID, restored); err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("Failed to publish batch rollback event")
		}
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, result *models.BatchResult, err error) (*models.BatchResult, error) {
	result.Status = models.BatchStatusFailed
	result.Error = err.Error()
	result.CompletedAt = time.Now().UTC()

	p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"batch_id": result.BatchID,
	}).Error("Batch failed")

	if _, ok := err.(*models.BatchError); ok {
		return result, err
	}
	return result, &models.BatchError{BatchID: result.BatchID, Err: err}
}

func (p *Pipeline) normalize(records []models.SourceRecord) ([]models.NormalizedRecord, map[string]models.NormalizedRecord) {
	normalized := make([]models.NormalizedRecord, 0, len(records))
	byKey := make(map[string]models.NormalizedRecord, len(records))
	for i := range records {
		rec := normalizers.BuildRecord(&records[i], p.cfg)
		normalized = append(normalized, rec)
		byKey[rec.Record.Ref().Key()] = rec
	}
	return normalized, byKey
}

func bucket(records []models.NormalizedRecord) map[string][]models.NormalizedRecord {
	buckets := make(map[string][]models.NormalizedRecord)
	for _, rec := range records {
		buckets[rec.BlockingKey] = append(buckets[rec.BlockingKey], rec)
	}
	return buckets
}

// evaluate runs the rule engine over the merged output and appends a
// manual-review violation for every unresolved conflict.
func (p *Pipeline) evaluate(ctx context.Context, batchID string, merged []*models.GoldenRecord, conflicts []models.ConflictEntry) ([]models.RuleViolation, []models.QualityScore) {
	violations, scores := p.rules.Evaluate(ctx, batchID, merged)

	now := time.Now().UTC()
	for _, entry := range conflicts {
		if entry.Resolution != models.ResolutionUnresolved {
			continue
		}
		violations = append(violations, models.RuleViolation{
			ID:         uuid.NewString(),
			RuleID:     "unresolved_conflict",
			GoldenID:   entry.GoldenID,
			BatchID:    batchID,
			Severity:   models.SeverityManualReview,
			Detail:     "field " + entry.FieldName + " has no resolvable value",
			DetectedAt: now,
		})
	}
	return violations, scores
}

// collectReviewCandidates persists every pair a human needs to look at:
// review-band scores, edges dropped by the cluster size guard, and the
// members behind unresolved conflicts.
func (p *Pipeline) collectReviewCandidates(batchID string, candidates []models.MatchCandidate, splitEdges []models.MatchCandidate, conflicts []models.ConflictEntry) []models.ReviewCandidate {
	now := time.Now().UTC()
	var out []models.ReviewCandidate
	seen := make(map[string]bool)

	add := func(c models.MatchCandidate, reason string) {
		key := reason + "|" + c.PairKey()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.ReviewCandidate{
			ID:         uuid.NewString(),
			BatchID:    batchID,
			RecordA:    c.RecordA.Key(),
			RecordB:    c.RecordB.Key(),
			Similarity: c.Similarity,
			Basis:      c.Basis,
			Reason:     reason,
			Status:     models.ReviewStatusPending,
			CreatedAt:  now,
			Evidence:   c.Evidence,
		})
	}

	for _, c := range candidates {
		if c.Decision == models.MatchDecisionReview {
			add(c, models.ReviewReasonBand)
		}
	}
	for _, c := range splitEdges {
		add(c, models.ReviewReasonClusterSplit)
	}

	for _, entry := range conflicts {
		if entry.Resolution != models.ResolutionUnresolved || seen["conflict|"+entry.GoldenID+"|"+entry.FieldName] {
			continue
		}
		seen["conflict|"+entry.GoldenID+"|"+entry.FieldName] = true
		out = append(out, models.ReviewCandidate{
			ID:        uuid.NewString(),
			BatchID:   batchID,
			RecordA:   entry.GoldenID,
			RecordB:   entry.FieldName,
			Reason:    models.ReviewReasonUnresolvedConflict,
			Status:    models.ReviewStatusPending,
			CreatedAt: now,
		})
	}

	return out
}

// previousByMember indexes committed goldens by every live member key
func previousByMember(previous []*models.GoldenRecord) map[string]*models.GoldenRecord {
	byMember := make(map[string]*models.GoldenRecord)
	for _, g := range previous {
		if g.Tombstone {
			continue
		}
		for _, m := range g.Members {
			byMember[m.Key()] = g
		}
	}
	return byMember
}

func conflictGoldenIDs(conflicts []models.ConflictEntry) map[string]bool {
	ids := make(map[string]bool, len(conflicts))
	for _, entry := range conflicts {
		ids[entry.GoldenID] = true
	}
	return ids
}

func countEvents(result *models.BatchResult, events []models.ChangeEvent) {
	for _, event := range events {
		switch event.ChangeType {
		case models.ChangeTypeInsert:
			result.Inserts++
		case models.ChangeTypeUpdate:
			result.Updates++
		case models.ChangeTypeDelete:
			result.Deletes++
		}
	}
}
