// Package store wires the repositories into the GoldenStore contract over a
// single Postgres transaction per batch.
package store

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/conflictlog"
	"github.com/Ramsey-B/clover/internal/repositories/goldenrecord"
	"github.com/Ramsey-B/clover/internal/repositories/quarantine"
	"github.com/Ramsey-B/clover/internal/repositories/reviewcandidate"
	"github.com/Ramsey-B/clover/internal/repositories/rollbacklog"
	"github.com/Ramsey-B/clover/internal/repositories/ruleviolation"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

// Postgres implements store.GoldenStore and store.Reporter over the
// repositories. Reads use the pool; Begin opens the batch transaction and
// every write repository inside it binds to that transaction.
type Postgres struct {
	db     database.DB
	logger ectologger.Logger

	goldens    *goldenrecord.Repository
	rollback   *rollbacklog.Repository
	violations *ruleviolation.Repository
	review     *reviewcandidate.Repository
}

// NewPostgres builds the Postgres-backed golden store
func NewPostgres(db database.DB, logger ectologger.Logger) *Postgres {
	return &Postgres{
		db:         db,
		logger:     logger,
		goldens:    goldenrecord.NewRepository(db, logger),
		rollback:   rollbacklog.NewRepository(db, logger),
		violations: ruleviolation.NewRepository(db, logger),
		review:     reviewcandidate.NewRepository(db, logger),
	}
}

func (p *Postgres) Get(ctx context.Context, goldenID string) (*models.GoldenRecord, error) {
	return p.goldens.Get(ctx, goldenID)
}

func (p *Postgres) List(ctx context.Context) ([]*models.GoldenRecord, error) {
	return p.goldens.List(ctx)
}

func (p *Postgres) RollbackEntries(ctx context.Context, batchID string) ([]models.RollbackEntry, error) {
	return p.rollback.ListByBatch(ctx, batchID)
}

func (p *Postgres) CommittedBatches(ctx context.Context, limit int) ([]string, error) {
	return p.rollback.RecentBatches(ctx, limit)
}

func (p *Postgres) Violations(ctx context.Context) ([]models.RuleViolation, error) {
	return p.violations.List(ctx)
}

func (p *Postgres) Scores(ctx context.Context) ([]models.QualityScore, error) {
	return p.violations.Scores(ctx)
}

func (p *Postgres) ReviewQueue(ctx context.Context) ([]models.ReviewCandidate, error) {
	return p.review.ListPending(ctx, 0)
}

// ReviewCandidates exposes the adjudication repository for the HTTP surface
func (p *Postgres) ReviewCandidates() *reviewcandidate.Repository {
	return p.review
}

// Begin opens the batch transaction
func (p *Postgres) Begin(ctx context.Context) (store.BatchTx, error) {
	_, tx, err := p.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &batchTx{
		tx:         tx,
		goldens:    goldenrecord.NewRepository(tx, p.logger),
		rollback:   rollbacklog.NewRepository(tx, p.logger),
		conflicts:  conflictlog.NewRepository(tx, p.logger),
		quarantine: quarantine.NewRepository(tx, p.logger),
		review:     reviewcandidate.NewRepository(tx, p.logger),
		violations: ruleviolation.NewRepository(tx, p.logger),
	}, nil
}

// batchTx routes every write through one open transaction. Commit and
// Rollback use a fresh context so the transaction state check in the
// database layer always closes it.
type batchTx struct {
	tx         database.Tx
	goldens    *goldenrecord.Repository
	rollback   *rollbacklog.Repository
	conflicts  *conflictlog.Repository
	quarantine *quarantine.Repository
	review     *reviewcandidate.Repository
	violations *ruleviolation.Repository
}

func (t *batchTx) Upsert(ctx context.Context, golden *models.GoldenRecord) error {
	return t.goldens.Upsert(ctx, golden)
}

func (t *batchTx) Remove(ctx context.Context, goldenID string) error {
	return t.goldens.Remove(ctx, goldenID)
}

func (t *batchTx) AppendRollback(ctx context.Context, entry models.RollbackEntry) error {
	return t.rollback.Append(ctx, entry)
}

func (t *batchTx) AppendConflicts(ctx context.Context, entries []models.ConflictEntry) error {
	return t.conflicts.Append(ctx, entries)
}

func (t *batchTx) AddQuarantine(ctx context.Context, records []models.QuarantineRecord) error {
	return t.quarantine.Add(ctx, records)
}

func (t *batchTx) AddReviewCandidates(ctx context.Context, candidates []models.ReviewCandidate) error {
	return t.review.AddBatch(ctx, candidates)
}

func (t *batchTx) SupersedeViolations(ctx context.Context, violations []models.RuleViolation, scores []models.QualityScore) error {
	return t.violations.Supersede(ctx, violations, scores)
}

func (t *batchTx) PruneRollback(ctx context.Context, retainBatches int) error {
	retained, err := t.rollback.RecentBatches(ctx, retainBatches)
	if err != nil {
		return err
	}
	return t.rollback.Prune(ctx, retained)
}

func (t *batchTx) MarkCommitted(ctx context.Context, batchID string) error {
	return t.rollback.MarkCommitted(ctx, batchID)
}

func (t *batchTx) Commit(_ context.Context) error {
	return t.tx.Commit(context.Background())
}

func (t *batchTx) Rollback(_ context.Context) error {
	return t.tx.Rollback(context.Background())
}
