package schema

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Screener separates a batch's records into pipeline input and quarantine.
// Structural problems (no identity, nil attributes) and schema failures both
// quarantine the record without aborting the batch.
type Screener struct {
	validator *Validator
	required  []string
	logger    ectologger.Logger
}

// NewScreener builds a screener from the reconcile configuration. The schema
// is optional; required attributes are enforced either way.
func NewScreener(cfg models.ReconcileConfig, logger ectologger.Logger) *Screener {
	schema := models.RecordSchema{Required: cfg.RequiredAttributes}
	if cfg.Schema != nil {
		schema.Properties = cfg.Schema.Properties
		schema.Required = mergeRequired(cfg.RequiredAttributes, cfg.Schema.Required)
	}
	return &Screener{
		validator: NewValidator(schema),
		required:  schema.Required,
		logger:    logger,
	}
}

// Screen validates every record in the batch. The returned slices partition
// the input; order within each is the input order.
func (s *Screener) Screen(ctx context.Context, batch models.IngestBatch) ([]models.SourceRecord, []models.QuarantineRecord) {
	ctx, span := tracing.StartSpan(ctx, "schema.Screener.Screen")
	defer span.End()

	now := time.Now().UTC()
	var valid []models.SourceRecord
	var quarantined []models.QuarantineRecord

	for _, record := range batch.Records {
		if reason, detail := structuralProblem(record); reason != "" {
			quarantined = append(quarantined, s.quarantine(batch.BatchID, record, reason, detail, now))
			continue
		}

		result := s.validator.Validate(record.Attributes)
		if !result.Valid {
			first := result.Errors[0]
			quarantined = append(quarantined, s.quarantine(batch.BatchID, record, first.Reason, describe(result.Errors), now))
			continue
		}

		valid = append(valid, record)
	}

	if len(quarantined) > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"batch_id":    batch.BatchID,
			"quarantined": len(quarantined),
		}).Warn("Quarantined records during screening")
	}

	return valid, quarantined
}

func structuralProblem(record models.SourceRecord) (reason, detail string) {
	if record.SourceID == "" || record.SourceRecordID == "" {
		return models.QuarantineReasonMalformed, "record has no source identity"
	}
	if record.Attributes == nil {
		return models.QuarantineReasonMalformed, "record has no attributes"
	}
	return "", ""
}

func (s *Screener) quarantine(batchID string, record models.SourceRecord, reason, detail string, now time.Time) models.QuarantineRecord {
	raw, _ := json.Marshal(record.Attributes)
	return models.QuarantineRecord{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		SourceID:       record.SourceID,
		SourceRecordID: record.SourceRecordID,
		ReasonCode:     reason,
		Detail:         detail,
		RawAttributes:  raw,
		QuarantinedAt:  now,
	}
}

func describe(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

func mergeRequired(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, key := range append(append([]string{}, a...), b...) {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
