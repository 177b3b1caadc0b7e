// Package matching generates and scores candidate pairs within blocking
// buckets. Bases are applied in priority order; the first applicable basis
// decides, every applicable basis is recorded as evidence.
package matching

import (
	"context"
	"sort"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Engine scores candidate pairs within blocking buckets
type Engine struct {
	scorer *Scorer
	cfg    models.ReconcileConfig
	logger ectologger.Logger
}

// NewEngine creates a matching engine for one batch run
func NewEngine(cfg models.ReconcileConfig, logger ectologger.Logger) *Engine {
	return &Engine{
		scorer: NewScorer(),
		cfg:    cfg.WithDefaults(),
		logger: logger,
	}
}

// MatchAll generates candidates for every blocking bucket. Buckets are
// independent and are processed by a bounded worker pool with no shared
// mutable state; results are concatenated in sorted bucket order so the
// output is deterministic regardless of scheduling.
func (e *Engine) MatchAll(ctx context.Context, buckets map[string][]models.NormalizedRecord) []models.MatchCandidate {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.MatchAll")
	defer span.End()

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([][]models.MatchCandidate, len(keys))

	workers := e.cfg.MatchWorkers
	if workers > len(keys) {
		workers = len(keys)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.MatchBucket(keys[i], buckets[keys[i]])
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var all []models.MatchCandidate
	for _, r := range results {
		all = append(all, r...)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"buckets":    len(keys),
		"candidates": len(all),
	}).Info("Generated match candidates")

	return all
}

// MatchBucket generates candidates for all pairs within one blocking bucket.
// Records are ordered by (source_id, ingest_timestamp, record id) first so
// pair enumeration and tie-breaks are reproducible across reruns.
func (e *Engine) MatchBucket(blockingKey string, records []models.NormalizedRecord) []models.MatchCandidate {
	ordered := make([]models.NormalizedRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].Record, ordered[j].Record
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if !a.IngestTimestamp.Equal(b.IngestTimestamp) {
			return a.IngestTimestamp.Before(b.IngestTimestamp)
		}
		return a.SourceRecordID < b.SourceRecordID
	})

	var candidates []models.MatchCandidate
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if c, ok := e.evaluatePair(blockingKey, &ordered[i], &ordered[j]); ok {
				candidates = append(candidates, c)
			}
		}
	}

	SortCandidates(candidates)
	return candidates
}

// evaluatePair applies the bases in priority order. Returns false when no
// basis is applicable (missing fields contribute zero evidence).
func (e *Engine) evaluatePair(blockingKey string, a, b *models.NormalizedRecord) (models.MatchCandidate, bool) {
	cand := models.MatchCandidate{
		RecordA:     a.Record.Ref(),
		RecordB:     b.Record.Ref(),
		BlockingKey: blockingKey,
	}

	if e.equalString(a.Normalized, b.Normalized, e.cfg.EmailField) {
		cand.Evidence = append(cand.Evidence, models.MatchEvidence{Basis: models.MatchBasisExactEmail, Similarity: 1.0})
	}
	if e.equalString(a.Normalized, b.Normalized, e.cfg.LicenseField) {
		cand.Evidence = append(cand.Evidence, models.MatchEvidence{Basis: models.MatchBasisExactLicenseID, Similarity: 1.0})
	}
	if sim, ok := e.fuzzyNameInstitution(a, b); ok {
		cand.Evidence = append(cand.Evidence, models.MatchEvidence{Basis: models.MatchBasisFuzzyNameInstitution, Similarity: sim})
	}

	if len(cand.Evidence) == 0 {
		return cand, false
	}

	// First applicable basis wins the decision
	first := cand.Evidence[0]
	cand.Basis = first.Basis
	cand.Similarity = first.Similarity

	switch first.Basis {
	case models.MatchBasisExactEmail, models.MatchBasisExactLicenseID:
		cand.Decision = models.MatchDecisionAccept
	default:
		switch {
		case cand.Similarity >= e.cfg.AcceptThreshold:
			cand.Decision = models.MatchDecisionAccept
		case cand.Similarity >= e.cfg.ReviewThreshold:
			cand.Decision = models.MatchDecisionReview
		default:
			cand.Decision = models.MatchDecisionReject
		}
	}

	return cand, true
}

// fuzzyNameInstitution combines name similarity with an institution-overlap
// indicator. Name similarity blends Levenshtein with Jaro-Winkler so a shared
// prefix counts alongside raw edit distance. Requires both names; a missing
// institution on either side contributes zero overlap rather than
// disqualifying the pair.
func (e *Engine) fuzzyNameInstitution(a, b *models.NormalizedRecord) (float64, bool) {
	nameA, okA := a.Normalized[e.cfg.NameField].(string)
	nameB, okB := b.Normalized[e.cfg.NameField].(string)
	if !okA || !okB || nameA == "" || nameB == "" {
		return 0, false
	}

	nameSim := e.scorer.WeightedScore(map[string]float64{
		"levenshtein":  e.scorer.Levenshtein(nameA, nameB),
		"jaro_winkler": e.scorer.JaroWinkler(nameA, nameB),
	}, nil)

	overlap := 0.0
	if e.equalString(a.Normalized, b.Normalized, e.cfg.InstitutionField) {
		overlap = 1.0
	}

	return e.cfg.NameWeight*nameSim + (1-e.cfg.NameWeight)*overlap, true
}

// equalString compares a normalized field on both records. Normalization has
// already lowercased values, so the comparison is case sensitive.
func (e *Engine) equalString(a, b map[string]any, field string) bool {
	va, okA := a[field].(string)
	vb, okB := b[field].(string)
	if !okA || !okB || va == "" {
		return false
	}
	return e.scorer.ExactMatch(va, vb, true) == 1.0
}

// SortCandidates orders by similarity descending, breaking exact ties by the
// pair key, whose leading component is the earliest source_id.
func SortCandidates(candidates []models.MatchCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].PairKey() < candidates[j].PairKey()
	})
}
