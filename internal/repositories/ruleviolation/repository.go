// Package ruleviolation persists rule violations and quality scores. Each
// rule-engine pass supersedes the previous one wholesale.
package ruleviolation

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

// Repository handles violation and score persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Supersede replaces all stored violations and scores with the new pass
func (r *Repository) Supersede(ctx context.Context, violations []models.RuleViolation, scores []models.QualityScore) error {
	ctx, span := tracing.StartSpan(ctx, "ruleviolation.Repository.Supersede")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM rule_violations"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear rule violations")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear rule violations")
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM quality_scores"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear quality scores")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear quality scores")
	}

	if len(violations) > 0 {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto("rule_violations")
		ib.Cols("id", "rule_id", "golden_id", "batch_id", "severity", "detail", "detected_at")
		for _, v := range violations {
			ib.Values(v.ID, v.RuleID, v.GoldenID, v.BatchID, v.Severity, v.Detail, v.DetectedAt)
		}
		query, args := ib.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"violations": len(violations)}).Error("Failed to insert rule violations")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert rule violations")
		}
	}

	if len(scores) > 0 {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto("quality_scores")
		ib.Cols("dimension", "batch_id", "value", "records_evaluated", "records_passing", "computed_at")
		for _, s := range scores {
			ib.Values(s.Dimension, s.BatchID, s.Value, s.Evaluated, s.Passing, s.ComputedAt)
		}
		query, args := ib.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"scores": len(scores)}).Error("Failed to insert quality scores")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert quality scores")
		}
	}

	return nil
}

// List returns the current pass's violations, worst severity first
func (r *Repository) List(ctx context.Context) ([]models.RuleViolation, error) {
	ctx, span := tracing.StartSpan(ctx, "ruleviolation.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "rule_id", "golden_id", "batch_id", "severity", "detail", "detected_at")
	sb.From("rule_violations")
	sb.OrderBy("severity", "golden_id")

	query, args := sb.Build()
	var violations []models.RuleViolation
	if err := r.db.SelectContext(ctx, &violations, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rule violations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rule violations")
	}
	return violations, nil
}

// Scores returns the current pass's quality scores
func (r *Repository) Scores(ctx context.Context) ([]models.QualityScore, error) {
	ctx, span := tracing.StartSpan(ctx, "ruleviolation.Repository.Scores")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("dimension", "batch_id", "value", "records_evaluated", "records_passing", "computed_at")
	sb.From("quality_scores")
	sb.OrderBy("dimension")

	query, args := sb.Build()
	var scores []models.QualityScore
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list quality scores")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list quality scores")
	}
	return scores, nil
}
