// Package conflictlog persists the append-only conflict audit log.
package conflictlog

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository handles conflict entry persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

type row struct {
	ID              string                                `db:"id"`
	GoldenID        string                                `db:"golden_id"`
	BatchID         string                                `db:"batch_id"`
	FieldName       string                                `db:"field_name"`
	CandidateValues database.JSONB[[]models.CandidateValue] `db:"candidate_values"`
	Resolution      string                                `db:"resolution"`
	ResolvedValue   database.JSONB[any]                   `db:"resolved_value"`
	ResolvedAt      sql.NullTime                          `db:"resolved_at"`
}

// Append writes conflict entries. The log is never updated or deleted.
func (r *Repository) Append(ctx context.Context, entries []models.ConflictEntry) error {
	ctx, span := tracing.StartSpan(ctx, "conflictlog.Repository.Append")
	defer span.End()

	if len(entries) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("conflict_log")
	ib.Cols("id", "golden_id", "batch_id", "field_name", "candidate_values", "resolution", "resolved_value", "resolved_at")
	for _, entry := range entries {
		ib.Values(
			entry.ID,
			entry.GoldenID,
			entry.BatchID,
			entry.FieldName,
			database.JSONB[[]models.CandidateValue]{Data: entry.CandidateValues},
			entry.Resolution,
			database.JSONB[any]{Data: entry.ResolvedValue},
			entry.ResolvedAt,
		)
	}

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entries": len(entries)}).Error("Failed to append conflict entries")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append conflict entries")
	}
	return nil
}

// ListByGolden returns the conflict history of one golden record, newest first
func (r *Repository) ListByGolden(ctx context.Context, goldenID string) ([]models.ConflictEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "conflictlog.Repository.ListByGolden")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "golden_id", "batch_id", "field_name", "candidate_values", "resolution", "resolved_value", "resolved_at")
	sb.From("conflict_log")
	sb.Where(sb.Equal("golden_id", goldenID))
	sb.OrderBy("resolved_at DESC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"golden_id": goldenID}).Error("Failed to list conflict entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list conflict entries")
	}

	out := make([]models.ConflictEntry, len(rows))
	for i, result := range rows {
		out[i] = models.ConflictEntry{
			ID:              result.ID,
			GoldenID:        result.GoldenID,
			BatchID:         result.BatchID,
			FieldName:       result.FieldName,
			CandidateValues: result.CandidateValues.GetValue(),
			Resolution:      result.Resolution,
			ResolvedValue:   result.ResolvedValue.GetValue(),
			ResolvedAt:      result.ResolvedAt.Time,
		}
	}
	return out, nil
}
