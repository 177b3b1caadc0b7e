// Package store defines the golden-record persistence contract. The core
// never assumes a storage engine; it requires point lookup, transactional
// batch commit, and retrieval of recent rollback snapshots.
package store

import (
	"context"
	"errors"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ErrNotFound is returned for point lookups of unknown golden ids.
var ErrNotFound = errors.New("golden record not found")

// GoldenStore is the persistence collaborator for the reconciliation core.
type GoldenStore interface {
	// Get returns the golden record by id, tombstoned or not.
	Get(ctx context.Context, goldenID string) (*models.GoldenRecord, error)
	// List returns every committed golden record, including tombstones.
	List(ctx context.Context) ([]*models.GoldenRecord, error)
	// Begin opens the single-writer batch transaction.
	Begin(ctx context.Context) (BatchTx, error)
	// RollbackEntries returns the before-images of one batch in apply order.
	RollbackEntries(ctx context.Context, batchID string) ([]models.RollbackEntry, error)
	// CommittedBatches returns committed batch ids, most recent first.
	CommittedBatches(ctx context.Context, limit int) ([]string, error)
}

// BatchTx applies one batch as a single all-or-nothing unit. Partial
// application is never observable to readers.
type BatchTx interface {
	Upsert(ctx context.Context, golden *models.GoldenRecord) error
	// Remove physically deletes a golden record. Only the rollback path uses
	// it, to undo inserts; forward deletion is always a tombstone Upsert.
	Remove(ctx context.Context, goldenID string) error
	AppendRollback(ctx context.Context, entry models.RollbackEntry) error
	AppendConflicts(ctx context.Context, entries []models.ConflictEntry) error
	AddQuarantine(ctx context.Context, records []models.QuarantineRecord) error
	// AddReviewCandidates appends new pending candidates. A pair already
	// pending for the same reason is skipped, not duplicated.
	AddReviewCandidates(ctx context.Context, candidates []models.ReviewCandidate) error
	// SupersedeViolations replaces the previous pass's violations and scores.
	SupersedeViolations(ctx context.Context, violations []models.RuleViolation, scores []models.QualityScore) error
	// PruneRollback keeps rollback entries for the retainBatches most recently
	// committed batches, including the one being committed, and drops the rest.
	PruneRollback(ctx context.Context, retainBatches int) error
	MarkCommitted(ctx context.Context, batchID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Reporter exposes the read side consumed by the reporting collaborator.
type Reporter interface {
	Violations(ctx context.Context) ([]models.RuleViolation, error)
	Scores(ctx context.Context) ([]models.QualityScore, error)
	ReviewQueue(ctx context.Context) ([]models.ReviewCandidate, error)
}
