// Package goldenrecord persists merged golden records.
package goldenrecord

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// executor is satisfied by both database.DB and database.Tx so reads go to
// the pool and batch writes go through the open transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository handles golden record persistence
type Repository struct {
	db     executor
	logger ectologger.Logger
}

// NewRepository creates a golden record repository over a pool or transaction
func NewRepository(db executor, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var columns = []string{"golden_id", "version", "attributes", "provenance", "members", "tombstone", "fingerprint", "last_updated"}

type row struct {
	GoldenID    string                                            `db:"golden_id"`
	Version     int                                               `db:"version"`
	Attributes  database.JSONB[map[string]any]                    `db:"attributes"`
	Provenance  database.JSONB[map[string]models.FieldProvenance] `db:"provenance"`
	Members     database.JSONB[[]models.MemberRef]                `db:"members"`
	Tombstone   bool                                              `db:"tombstone"`
	Fingerprint string                                            `db:"fingerprint"`
	LastUpdated time.Time                                         `db:"last_updated"`
}

func (r row) toModel() *models.GoldenRecord {
	return &models.GoldenRecord{
		GoldenID:    r.GoldenID,
		Version:     r.Version,
		Attributes:  r.Attributes.GetValue(),
		Provenance:  r.Provenance.GetValue(),
		Members:     r.Members.GetValue(),
		Tombstone:   r.Tombstone,
		Fingerprint: r.Fingerprint,
		LastUpdated: r.LastUpdated,
	}
}

// Get returns one golden record by id, tombstoned or not
func (r *Repository) Get(ctx context.Context, goldenID string) (*models.GoldenRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("golden_records")
	sb.Where(sb.Equal("golden_id", goldenID))

	query, args := sb.Build()
	var result row
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"golden_id": goldenID}).Error("Failed to get golden record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get golden record")
	}
	return result.toModel(), nil
}

// List returns every golden record ordered by golden_id
func (r *Repository) List(ctx context.Context) ([]*models.GoldenRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("golden_records")
	sb.OrderBy("golden_id")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list golden records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list golden records")
	}

	out := make([]*models.GoldenRecord, len(rows))
	for i, result := range rows {
		out[i] = result.toModel()
	}
	return out, nil
}

// Upsert writes one golden record, replacing any existing version
func (r *Repository) Upsert(ctx context.Context, golden *models.GoldenRecord) error {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.Upsert")
	defer span.End()

	query := `
		INSERT INTO golden_records (golden_id, version, attributes, provenance, members, tombstone, fingerprint, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (golden_id) DO UPDATE SET
			version = EXCLUDED.version,
			attributes = EXCLUDED.attributes,
			provenance = EXCLUDED.provenance,
			members = EXCLUDED.members,
			tombstone = EXCLUDED.tombstone,
			fingerprint = EXCLUDED.fingerprint,
			last_updated = EXCLUDED.last_updated
	`
	lastUpdated := golden.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		golden.GoldenID,
		golden.Version,
		database.JSONB[map[string]any]{Data: golden.Attributes},
		database.JSONB[map[string]models.FieldProvenance]{Data: golden.Provenance},
		database.JSONB[[]models.MemberRef]{Data: golden.Members},
		golden.Tombstone,
		golden.Fingerprint,
		lastUpdated,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"golden_id": golden.GoldenID}).Error("Failed to upsert golden record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert golden record")
	}
	return nil
}

// Remove physically deletes a golden record. Only the rollback path calls it.
func (r *Repository) Remove(ctx context.Context, goldenID string) error {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.Remove")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("golden_records")
	db.Where(db.Equal("golden_id", goldenID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"golden_id": goldenID}).Error("Failed to remove golden record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to remove golden record")
	}
	return nil
}
