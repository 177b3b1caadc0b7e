package models

import (
	"time"
)

// SourceRecord is one row from one source batch. Immutable once ingested.
type SourceRecord struct {
	SourceID        string         `json:"source_id" db:"source_id"`
	SourceRecordID  string         `json:"source_record_id" db:"source_record_id"`
	Attributes      map[string]any `json:"attributes"`
	IngestTimestamp time.Time      `json:"ingest_timestamp" db:"ingest_timestamp"`
}

// MemberRef identifies a SourceRecord within a cluster or golden record.
type MemberRef struct {
	SourceID       string `json:"source_id"`
	SourceRecordID string `json:"source_record_id"`
}

// Key returns the canonical "source_id:source_record_id" identity of a record.
func (m MemberRef) Key() string {
	return m.SourceID + ":" + m.SourceRecordID
}

// Ref returns the MemberRef identity of the record.
func (r *SourceRecord) Ref() MemberRef {
	return MemberRef{SourceID: r.SourceID, SourceRecordID: r.SourceRecordID}
}

// NormalizedRecord is a SourceRecord with canonicalized attributes and the
// derived keys used for blocking. Recomputed whenever normalization rules change.
type NormalizedRecord struct {
	Record        *SourceRecord  `json:"record"`
	BlockingKey   string         `json:"blocking_key"`
	PhoneticKey   string         `json:"phonetic_key"`
	Normalized    map[string]any `json:"normalized_attributes"`
	MissingFields []string       `json:"missing_fields,omitempty"`
}

// IngestBatch is one unit of pipeline work supplied by the ingestion collaborator.
type IngestBatch struct {
	BatchID    string         `json:"batch_id" validate:"required"`
	Records    []SourceRecord `json:"records"`
	ReceivedAt time.Time      `json:"received_at"`
}
