package models

import (
	"encoding/json"
	"time"
)

// ChangeType classifies a CDC delta
type ChangeType string

const (
	ChangeTypeInsert ChangeType = "insert"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
	// ChangeTypeConflict marks an event whose only change is a re-resolved conflict
	ChangeTypeConflict ChangeType = "conflict"
)

// ChangeEvent is the unit of incremental apply and of rollback. Events are
// strictly ordered by SequenceNumber within a batch.
type ChangeEvent struct {
	BatchID        string        `json:"batch_id" db:"batch_id"`
	SequenceNumber int           `json:"sequence_number" db:"sequence_number"`
	GoldenID       string        `json:"golden_id" db:"golden_id"`
	ChangeType     ChangeType    `json:"change_type" db:"change_type"`
	Conflict       bool          `json:"conflict" db:"conflict"` // passed through the conflict resolver
	Before         *GoldenRecord `json:"before_snapshot,omitempty"`
	After          *GoldenRecord `json:"after_snapshot,omitempty"`
}

// RollbackEntry is one append-only before-image row. The log retains entries
// for the current and immediately preceding N batches.
type RollbackEntry struct {
	ID             string          `json:"id" db:"id"`
	BatchID        string          `json:"batch_id" db:"batch_id"`
	SequenceNumber int             `json:"sequence_number" db:"sequence_number"`
	GoldenID       string          `json:"golden_id" db:"golden_id"`
	Before         json.RawMessage `json:"before_snapshot,omitempty" db:"before_snapshot"` // null for inserts
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Batch statuses
const (
	BatchStatusCommitted  = "committed"
	BatchStatusFailed     = "failed"
	BatchStatusRolledBack = "rolled_back"
)

// BatchResult summarizes one pipeline run for the reporting collaborator.
type BatchResult struct {
	BatchID          string          `json:"batch_id"`
	Status           string          `json:"status"`
	RecordsIn        int             `json:"records_in"`
	Quarantined      int             `json:"quarantined"`
	Clusters         int             `json:"clusters"`
	Inserts          int             `json:"inserts"`
	Updates          int             `json:"updates"`
	Deletes          int             `json:"deletes"`
	Conflicts        int             `json:"conflicts"`
	ReviewCandidates int             `json:"review_candidates"`
	Events           []ChangeEvent   `json:"-"`
	Violations       []RuleViolation `json:"violations,omitempty"`
	Scores           []QualityScore  `json:"scores,omitempty"`
	Error            string          `json:"error,omitempty"`
	CompletedAt      time.Time       `json:"completed_at"`
}
