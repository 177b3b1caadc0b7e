// Package reviewcandidate persists match pairs awaiting manual adjudication.
package reviewcandidate

import (
	"context"
	"database/sql"
	"errors"
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

// Repository handles review candidate persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var columns = []string{"id", "batch_id", "record_a", "record_b", "similarity", "match_basis", "reason", "status", "created_at", "resolved_at", "resolved_by"}

const addCandidateQuery = `
	INSERT INTO review_candidates (id, batch_id, record_a, record_b, similarity, match_basis, reason, status, created_at, resolved_at, resolved_by)
	SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	WHERE NOT EXISTS (
		SELECT 1 FROM review_candidates
		WHERE record_a = $3 AND record_b = $4 AND reason = $7 AND status = 'pending'
	)`

// AddBatch writes new pending candidates. A pair already pending for the same
// reason is skipped so reruns never stack duplicate queue entries.
func (r *Repository) AddBatch(ctx context.Context, candidates []models.ReviewCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "reviewcandidate.Repository.AddBatch")
	defer span.End()

	for _, c := range candidates {
		_, err := r.db.ExecContext(ctx, addCandidateQuery,
			c.ID, c.BatchID, c.RecordA, c.RecordB, c.Similarity, string(c.Basis), c.Reason, c.Status, c.CreatedAt, c.ResolvedAt, c.ResolvedBy)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"candidates": len(candidates)}).Error("Failed to add review candidates")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add review candidates")
		}
	}
	return nil
}

// Get returns one candidate by id
func (r *Repository) Get(ctx context.Context, id string) (*models.ReviewCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewcandidate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("review_candidates")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var candidate models.ReviewCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get review candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review candidate")
	}
	return &candidate, nil
}

// ListPending returns pending candidates, oldest first
func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.ReviewCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewcandidate.Repository.ListPending")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("review_candidates")
	sb.Where(sb.Equal("status", models.ReviewStatusPending))
	sb.OrderBy("created_at")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var candidates []models.ReviewCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending review candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review candidates")
	}
	return candidates, nil
}

// UpdateStatus resolves one candidate
func (r *Repository) UpdateStatus(ctx context.Context, id, status string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "reviewcandidate.Repository.UpdateStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("review_candidates")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("resolved_at", time.Now().UTC()),
		ub.Assign("resolved_by", resolvedBy),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "status": status}).Error("Failed to update review candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review candidate")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "review candidate not found")
	}
	return nil
}
