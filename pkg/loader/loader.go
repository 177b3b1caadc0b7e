// Package loader applies a batch's change events to the golden store as one
// all-or-nothing transaction and supports undoing recently committed batches
// from the rollback log.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Loader writes change events through the store's batch transaction. Partial
// application is never observable: any failure rolls the whole batch back.
type Loader struct {
	store  store.GoldenStore
	cfg    models.ReconcileConfig
	logger ectologger.Logger
}

func NewLoader(goldenStore store.GoldenStore, cfg models.ReconcileConfig, logger ectologger.Logger) *Loader {
	return &Loader{store: goldenStore, cfg: cfg.WithDefaults(), logger: logger}
}

// Sidecar carries the batch artifacts that commit atomically alongside the
// change events.
type Sidecar struct {
	Conflicts        []models.ConflictEntry
	Quarantine       []models.QuarantineRecord
	ReviewCandidates []models.ReviewCandidate
	Violations       []models.RuleViolation
	Scores           []models.QualityScore
}

// Apply validates and commits one batch. Every mutation's before-image is
// appended to the rollback log before the mutation itself, so an interrupted
// or failed batch is always recoverable. Old rollback entries beyond the
// configured retention are pruned on successful commit.
func (l *Loader) Apply(ctx context.Context, batchID string, events []models.ChangeEvent, sidecar Sidecar) error {
	ctx, span := tracing.StartSpan(ctx, "loader.Loader.Apply")
	defer span.End()

	if err := validateEvents(batchID, events); err != nil {
		return &models.BatchError{BatchID: batchID, Err: err}
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return &models.BatchError{BatchID: batchID, Err: err}
	}

	if err := l.apply(ctx, tx, batchID, events, sidecar); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back batch transaction")
		}
		return &models.BatchError{BatchID: batchID, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &models.BatchError{BatchID: batchID, Err: err}
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": batchID,
		"events":   len(events),
	}).Info("Committed batch")
	return nil
}

func (l *Loader) apply(ctx context.Context, tx store.BatchTx, batchID string, events []models.ChangeEvent, sidecar Sidecar) error {
	for _, event := range events {
		entry := models.RollbackEntry{
			ID:             uuid.NewString(),
			BatchID:        batchID,
			SequenceNumber: event.SequenceNumber,
			GoldenID:       event.GoldenID,
			CreatedAt:      time.Now().UTC(),
		}
		if event.Before != nil {
			before, err := json.Marshal(event.Before)
			if err != nil {
				return fmt.Errorf("failed to snapshot golden %s: %w", event.GoldenID, err)
			}
			entry.Before = before
		}
		if err := tx.AppendRollback(ctx, entry); err != nil {
			return err
		}
		if err := tx.Upsert(ctx, event.After); err != nil {
			return err
		}
	}

	if err := tx.AppendConflicts(ctx, sidecar.Conflicts); err != nil {
		return err
	}
	if err := tx.AddQuarantine(ctx, sidecar.Quarantine); err != nil {
		return err
	}
	if err := tx.AddReviewCandidates(ctx, sidecar.ReviewCandidates); err != nil {
		return err
	}
	if err := tx.SupersedeViolations(ctx, sidecar.Violations, sidecar.Scores); err != nil {
		return err
	}
	if err := tx.MarkCommitted(ctx, batchID); err != nil {
		return err
	}
	return tx.PruneRollback(ctx, l.cfg.RollbackRetention)
}

// UndoBatch restores the before-images of a committed batch, most recent
// mutation first. Inserts are physically removed; updates and deletes are
// restored to their prior snapshot. Only the most recently committed batch can
// be undone: replaying an older batch's before-images over newer commits would
// silently discard them. Returns the number of restored mutations.
func (l *Loader) UndoBatch(ctx context.Context, batchID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "loader.Loader.UndoBatch")
	defer span.End()

	committed, err := l.store.CommittedBatches(ctx, 1)
	if err != nil {
		return 0, &models.BatchError{BatchID: batchID, Err: err}
	}
	if len(committed) > 0 && committed[0] != batchID {
		return 0, &models.BatchError{BatchID: batchID, Err: fmt.Errorf("batch is not the most recent commit; undo %s first", committed[0])}
	}

	entries, err := l.store.RollbackEntries(ctx, batchID)
	if err != nil {
		return 0, &models.BatchError{BatchID: batchID, Err: err}
	}
	if len(entries) == 0 {
		return 0, &models.BatchError{BatchID: batchID, Err: fmt.Errorf("no rollback entries retained for batch")}
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, &models.BatchError{BatchID: batchID, Err: err}
	}

	if err := undo(ctx, tx, entries); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back undo transaction")
		}
		return 0, &models.BatchError{BatchID: batchID, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &models.BatchError{BatchID: batchID, Err: err}
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": batchID,
		"entries":  len(entries),
	}).Info("Undid batch")
	return len(entries), nil
}

func undo(ctx context.Context, tx store.BatchTx, entries []models.RollbackEntry) error {
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Before == nil {
			// Nil before-image means the batch inserted this golden
			if err := tx.Remove(ctx, entry.GoldenID); err != nil {
				return err
			}
			continue
		}

		var before models.GoldenRecord
		if err := json.Unmarshal(entry.Before, &before); err != nil {
			return fmt.Errorf("%w: entry %s: %v", models.ErrCorruptRollbackLog, entry.ID, err)
		}
		if before.GoldenID != entry.GoldenID {
			return fmt.Errorf("%w: entry %s snapshot names golden %s", models.ErrCorruptRollbackLog, entry.ID, before.GoldenID)
		}
		if err := tx.Upsert(ctx, &before); err != nil {
			return err
		}
	}
	return nil
}

// validateEvents checks sequence continuity and snapshot shape before any
// store write happens.
func validateEvents(batchID string, events []models.ChangeEvent) error {
	for i, event := range events {
		if event.BatchID != batchID {
			return fmt.Errorf("event %d belongs to batch %s", i, event.BatchID)
		}
		if event.SequenceNumber != i+1 {
			return fmt.Errorf("event sequence gap at position %d (got %d)", i, event.SequenceNumber)
		}
		if event.After == nil {
			return fmt.Errorf("event %d for golden %s has no after snapshot", i, event.GoldenID)
		}
		if event.After.GoldenID != event.GoldenID {
			return fmt.Errorf("event %d snapshot names golden %s, want %s", i, event.After.GoldenID, event.GoldenID)
		}
		if event.ChangeType != models.ChangeTypeInsert && event.Before == nil {
			return fmt.Errorf("%s event %d for golden %s has no before snapshot", event.ChangeType, i, event.GoldenID)
		}
	}
	return nil
}
