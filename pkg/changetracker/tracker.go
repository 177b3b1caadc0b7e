// Package changetracker diffs a freshly merged batch against the committed
// golden state and emits the ordered change events the loader applies.
package changetracker

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Tracker computes insert, update, delete, and conflict deltas between the
// committed golden records and the batch's merge output.
type Tracker struct {
	cfg    models.ReconcileConfig
	logger ectologger.Logger
}

func NewTracker(cfg models.ReconcileConfig, logger ectologger.Logger) *Tracker {
	return &Tracker{cfg: cfg.WithDefaults(), logger: logger}
}

// Diff compares the merged goldens against the committed ones. Unchanged
// records (equal fingerprints) emit nothing, which makes identical reruns
// produce an empty delta. Events are ordered by golden id and numbered from 1.
//
// conflictIDs names the goldens that passed through the conflict resolver in
// this batch; their events carry the conflict flag.
func (t *Tracker) Diff(
	ctx context.Context,
	batchID string,
	previous []*models.GoldenRecord,
	merged []*models.GoldenRecord,
	conflictIDs map[string]bool,
) []models.ChangeEvent {
	ctx, span := tracing.StartSpan(ctx, "changetracker.Tracker.Diff")
	defer span.End()

	prevByID := make(map[string]*models.GoldenRecord, len(previous))
	for _, g := range previous {
		prevByID[g.GoldenID] = g
	}

	var events []models.ChangeEvent

	mergedIDs := make(map[string]bool, len(merged))
	for _, golden := range merged {
		mergedIDs[golden.GoldenID] = true

		prev, existed := prevByID[golden.GoldenID]
		switch {
		case !existed:
			events = append(events, models.ChangeEvent{
				BatchID:    batchID,
				GoldenID:   golden.GoldenID,
				ChangeType: models.ChangeTypeInsert,
				Conflict:   conflictIDs[golden.GoldenID],
				After:      golden,
			})
		case prev.Fingerprint == golden.Fingerprint:
			// No observable change; skip
		default:
			changeType := models.ChangeTypeUpdate
			if attributesEqual(prev, golden) {
				// Attributes held steady but a conflict re-resolved; surface it
				// without pretending the merged values moved.
				changeType = models.ChangeTypeConflict
			}
			events = append(events, models.ChangeEvent{
				BatchID:    batchID,
				GoldenID:   golden.GoldenID,
				ChangeType: changeType,
				Conflict:   conflictIDs[golden.GoldenID],
				Before:     prev,
				After:      golden,
			})
		}
	}

	// Previously committed goldens absent from the merge output are retired
	// with a tombstone, never physically deleted.
	for _, prev := range previous {
		if mergedIDs[prev.GoldenID] || prev.Tombstone {
			continue
		}
		events = append(events, models.ChangeEvent{
			BatchID:    batchID,
			GoldenID:   prev.GoldenID,
			ChangeType: models.ChangeTypeDelete,
			Before:     prev,
			After:      t.tombstone(prev),
		})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].GoldenID < events[j].GoldenID })
	for i := range events {
		events[i].SequenceNumber = i + 1
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": batchID,
		"events":   len(events),
	}).Info("Computed change events")

	return events
}

// tombstone produces the retired form of a golden record. Attributes and
// provenance survive for audit; only the tombstone flag and lineage move.
func (t *Tracker) tombstone(prev *models.GoldenRecord) *models.GoldenRecord {
	retired := prev.Clone()
	retired.Tombstone = true
	retired.Version = prev.Version + 1
	retired.Fingerprint = merging.Fingerprint(retired, t.cfg.FingerprintExclusions)
	return retired
}

// attributesEqual compares merged values only, ignoring provenance
func attributesEqual(a, b *models.GoldenRecord) bool {
	return fingerprint.Generate(a.Attributes) == fingerprint.Generate(b.Attributes)
}
