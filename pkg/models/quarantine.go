package models

import (
	"encoding/json"
	"time"
)

// Quarantine reason codes
const (
	QuarantineReasonMalformed       = "malformed_record"
	QuarantineReasonMissingRequired = "missing_required_key"
	QuarantineReasonInvalidType     = "invalid_attribute_type"
)

// QuarantineRecord holds an input record that failed schema validation.
// The pipeline continues for the rest of the batch.
type QuarantineRecord struct {
	ID             string          `json:"id" db:"id"`
	BatchID        string          `json:"batch_id" db:"batch_id"`
	SourceID       string          `json:"source_id" db:"source_id"`
	SourceRecordID string          `json:"source_record_id" db:"source_record_id"`
	ReasonCode     string          `json:"reason_code" db:"reason_code"`
	Detail         string          `json:"detail" db:"detail"`
	RawAttributes  json.RawMessage `json:"raw_attributes,omitempty" db:"raw_attributes"`
	QuarantinedAt  time.Time       `json:"quarantined_at" db:"quarantined_at"`
}
