package models

import (
	"time"
)

// GoldenRecord is the canonical merged representation of one real-world
// entity. Created on first cluster formation, mutated only through the
// incremental loader, never physically deleted (tombstone instead).
type GoldenRecord struct {
	GoldenID    string                     `json:"golden_id" db:"golden_id"`
	Attributes  map[string]any             `json:"merged_attributes"`
	Provenance  map[string]FieldProvenance `json:"provenance"`
	Members     []MemberRef                `json:"members"`
	Version     int                        `json:"version" db:"version"`
	Tombstone   bool                       `json:"tombstone" db:"tombstone"`
	Fingerprint string                     `json:"fingerprint" db:"fingerprint"`
	LastUpdated time.Time                  `json:"last_updated" db:"last_updated"`
}

// Clone returns a deep copy safe to mutate independently of the original.
func (g *GoldenRecord) Clone() *GoldenRecord {
	if g == nil {
		return nil
	}
	out := *g
	out.Attributes = make(map[string]any, len(g.Attributes))
	for k, v := range g.Attributes {
		out.Attributes[k] = v
	}
	out.Provenance = make(map[string]FieldProvenance, len(g.Provenance))
	for k, v := range g.Provenance {
		cv := make([]CandidateValue, len(v.CandidateValues))
		copy(cv, v.CandidateValues)
		v.CandidateValues = cv
		out.Provenance[k] = v
	}
	out.Members = make([]MemberRef, len(g.Members))
	copy(out.Members, g.Members)
	return &out
}

// FieldProvenance records which source won a field and every value that
// competed for it. Used for audit and for re-resolving on new deltas.
type FieldProvenance struct {
	ChosenSourceID  string           `json:"chosen_source_id"`
	ChosenValue     any              `json:"chosen_value"`
	CandidateValues []CandidateValue `json:"candidate_values"`
	Resolution      string           `json:"resolution,omitempty"` // set when the conflict resolver decided
}

// CandidateValue is one source's contribution to a field, ordered by rank.
type CandidateValue struct {
	SourceID       string    `json:"source_id"`
	Value          any       `json:"value"`
	SourcePriority int       `json:"source_priority"`
	Recency        time.Time `json:"recency"`
}

// Conflict resolution rules, in the order they are tried
const (
	ResolutionMajorityVote = "majority_vote"
	ResolutionMostRecent   = "most_recent"
	ResolutionUnresolved   = "unresolved"
)

// ConflictEntry is one append-only audit row per resolved (or unresolved)
// field-level disagreement. Never deleted.
type ConflictEntry struct {
	ID              string           `json:"id" db:"id"`
	GoldenID        string           `json:"golden_id" db:"golden_id"`
	BatchID         string           `json:"batch_id" db:"batch_id"`
	FieldName       string           `json:"field_name" db:"field_name"`
	CandidateValues []CandidateValue `json:"candidate_values" db:"-"`
	Resolution      string           `json:"resolution_rule_applied" db:"resolution"`
	ResolvedValue   any              `json:"resolved_value,omitempty" db:"-"`
	ResolvedAt      time.Time        `json:"resolved_at" db:"resolved_at"`
}
