package models

import (
	"time"
)

// Quality dimensions
const (
	DimensionCompleteness = "completeness"
	DimensionConsistency  = "consistency"
	DimensionAccuracy     = "accuracy"
	DimensionRelationship = "relationship"
)

// Violation severities
const (
	SeverityError        = "error"
	SeverityWarning      = "warning"
	SeverityManualReview = "manual-review"
)

// RuleKind identifies a builtin predicate type
type RuleKind string

const (
	// RuleKindRequired requires a non-empty value at Field
	RuleKindRequired RuleKind = "required"
	// RuleKindFormat validates Field against the regex in Pattern
	RuleKindFormat RuleKind = "format"
	// RuleKindNumericMax requires Field <= Threshold
	RuleKindNumericMax RuleKind = "numeric_max"
	// RuleKindNumericMin requires Field >= Threshold
	RuleKindNumericMin RuleKind = "numeric_min"
	// RuleKindMonthlyCountMax bounds the number of date values in Field per calendar month
	RuleKindMonthlyCountMax RuleKind = "monthly_count_max"
	// RuleKindLicensePattern validates a license number against an issuing-authority pattern
	RuleKindLicensePattern RuleKind = "license_pattern"
	// RuleKindCriteria evaluates an arbitrary criteria document against the record
	RuleKindCriteria RuleKind = "criteria"
)

// RuleDefinition is one configured, pure predicate over golden records.
// Rules never mutate the store.
type RuleDefinition struct {
	ID        string         `json:"id" validate:"required"`
	Dimension string         `json:"dimension" validate:"required,oneof=completeness consistency accuracy relationship"`
	Severity  string         `json:"severity" validate:"required,oneof=error warning manual-review"`
	Kind      RuleKind       `json:"kind" validate:"required"`
	Field     string         `json:"field,omitempty"`
	Pattern   string         `json:"pattern,omitempty"`
	Threshold *float64       `json:"threshold,omitempty"`
	Criteria  map[string]any `json:"criteria,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

// RuleViolation is recomputed each rule-engine pass; a new pass supersedes
// (does not merge with) the previous one.
type RuleViolation struct {
	ID         string    `json:"id" db:"id"`
	RuleID     string    `json:"rule_id" db:"rule_id"`
	GoldenID   string    `json:"golden_id" db:"golden_id"`
	BatchID    string    `json:"batch_id" db:"batch_id"`
	Severity   string    `json:"severity" db:"severity"`
	Detail     string    `json:"detail" db:"detail"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
}

// QualityScore is a derived per-dimension score in [0,100]. Never hand-edited.
type QualityScore struct {
	Dimension  string    `json:"dimension" db:"dimension"`
	BatchID    string    `json:"batch_id" db:"batch_id"`
	Value      float64   `json:"value" db:"value"`
	Evaluated  int       `json:"records_evaluated" db:"records_evaluated"`
	Passing    int       `json:"records_passing" db:"records_passing"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}

// OverallDimension names the weighted aggregate score across dimensions
const OverallDimension = "overall"
