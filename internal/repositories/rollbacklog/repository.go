// Package rollbacklog persists the append-only before-image log and the
// committed-batch ledger that bounds its retention.
package rollbacklog

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository handles rollback log persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Append writes one before-image entry. Entries are never updated.
func (r *Repository) Append(ctx context.Context, entry models.RollbackEntry) error {
	ctx, span := tracing.StartSpan(ctx, "rollbacklog.Repository.Append")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("rollback_log")
	ib.Cols("id", "batch_id", "sequence_number", "golden_id", "before_snapshot", "created_at")
	ib.Values(entry.ID, entry.BatchID, entry.SequenceNumber, entry.GoldenID, nullableJSON(entry.Before), entry.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": entry.BatchID, "golden_id": entry.GoldenID}).Error("Failed to append rollback entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append rollback entry")
	}
	return nil
}

// ListByBatch returns a batch's entries in apply order
func (r *Repository) ListByBatch(ctx context.Context, batchID string) ([]models.RollbackEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "rollbacklog.Repository.ListByBatch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "batch_id", "sequence_number", "golden_id", "before_snapshot", "created_at")
	sb.From("rollback_log")
	sb.Where(sb.Equal("batch_id", batchID))
	sb.OrderBy("sequence_number")

	query, args := sb.Build()
	var entries []models.RollbackEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to list rollback entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rollback entries")
	}
	return entries, nil
}

// Prune deletes entries whose batch is outside the retained set
func (r *Repository) Prune(ctx context.Context, retainedBatchIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "rollbacklog.Repository.Prune")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("rollback_log")
	if len(retainedBatchIDs) > 0 {
		ids := make([]any, len(retainedBatchIDs))
		for i, id := range retainedBatchIDs {
			ids[i] = id
		}
		db.Where(db.NotIn("batch_id", ids...))
	}

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to prune rollback log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to prune rollback log")
	}
	return nil
}

// MarkCommitted records a successful batch commit
func (r *Repository) MarkCommitted(ctx context.Context, batchID string) error {
	ctx, span := tracing.StartSpan(ctx, "rollbacklog.Repository.MarkCommitted")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("committed_batches")
	ib.Cols("batch_id", "committed_at")
	ib.Values(batchID, time.Now().UTC())

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to mark batch committed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark batch committed")
	}
	return nil
}

// RecentBatches returns committed batch ids, most recent first
func (r *Repository) RecentBatches(ctx context.Context, limit int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "rollbacklog.Repository.RecentBatches")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("batch_id")
	sb.From("committed_batches")
	sb.OrderBy("committed_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list committed batches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list committed batches")
	}
	return ids, nil
}

// nullableJSON maps an empty snapshot to SQL NULL
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
