// Package quarantine persists records that failed screening.
package quarantine

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository handles quarantine persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Add writes quarantined records for one batch
func (r *Repository) Add(ctx context.Context, records []models.QuarantineRecord) error {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.Add")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("quarantine_records")
	ib.Cols("id", "batch_id", "source_id", "source_record_id", "reason_code", "detail", "raw_attributes", "quarantined_at")
	for _, rec := range records {
		ib.Values(rec.ID, rec.BatchID, rec.SourceID, rec.SourceRecordID, rec.ReasonCode, rec.Detail, []byte(rec.RawAttributes), rec.QuarantinedAt)
	}

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"records": len(records)}).Error("Failed to add quarantine records")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add quarantine records")
	}
	return nil
}

// ListByBatch returns a batch's quarantined records
func (r *Repository) ListByBatch(ctx context.Context, batchID string) ([]models.QuarantineRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.ListByBatch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "batch_id", "source_id", "source_record_id", "reason_code", "detail", "raw_attributes", "quarantined_at")
	sb.From("quarantine_records")
	sb.Where(sb.Equal("batch_id", batchID))
	sb.OrderBy("quarantined_at")

	query, args := sb.Build()
	var records []models.QuarantineRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to list quarantine records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list quarantine records")
	}
	return records, nil
}
