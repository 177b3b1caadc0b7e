package models

import (
	"sort"
	"time"
)

// MatchBasis identifies which strategy produced a candidate pair
type MatchBasis string

const (
	// MatchBasisExactEmail matches on an identical normalized email address
	MatchBasisExactEmail MatchBasis = "exact_email"
	// MatchBasisExactLicenseID matches on an identical license number
	MatchBasisExactLicenseID MatchBasis = "exact_license_id"
	// MatchBasisFuzzyNameInstitution combines name similarity with institution overlap
	MatchBasisFuzzyNameInstitution MatchBasis = "fuzzy_name_institution"
)

// MatchDecision is the outcome assigned to a candidate pair
type MatchDecision string

const (
	MatchDecisionAccept MatchDecision = "accept"
	MatchDecisionReject MatchDecision = "reject"
	MatchDecisionReview MatchDecision = "review"
)

// MatchEvidence records the score a single basis contributed to a pair.
// Every applicable basis is recorded even though only the first decides.
type MatchEvidence struct {
	Basis      MatchBasis `json:"basis"`
	Similarity float64    `json:"similarity"`
}

// MatchCandidate is an unordered pair of source records with a similarity
// decision. Batch-scoped; only review-status candidates are persisted.
type MatchCandidate struct {
	RecordA     MemberRef       `json:"record_a"`
	RecordB     MemberRef       `json:"record_b"`
	BlockingKey string          `json:"blocking_key"`
	Similarity  float64         `json:"similarity"`
	Basis       MatchBasis      `json:"match_basis"`
	Evidence    []MatchEvidence `json:"evidence,omitempty"`
	Decision    MatchDecision   `json:"decision"`
}

// PairKey returns a deterministic identity for the unordered pair.
func (c *MatchCandidate) PairKey() string {
	a, b := c.RecordA.Key(), c.RecordB.Key()
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// ReviewCandidate is a persisted review-status candidate awaiting manual
// adjudication. Split edges from oversized clusters land here too.
type ReviewCandidate struct {
	ID          string          `json:"id" db:"id"`
	BatchID     string          `json:"batch_id" db:"batch_id"`
	RecordA     string          `json:"record_a" db:"record_a"`
	RecordB     string          `json:"record_b" db:"record_b"`
	Similarity  float64         `json:"similarity" db:"similarity"`
	Basis       MatchBasis      `json:"match_basis" db:"match_basis"`
	Reason      string          `json:"reason" db:"reason"` // review_band, cluster_split, unresolved_conflict
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy  *string         `json:"resolved_by,omitempty" db:"resolved_by"`
	Evidence    []MatchEvidence `json:"evidence,omitempty" db:"-"`
}

// Review candidate statuses
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
	ReviewStatusDeferred = "deferred"
)

// Review candidate reasons
const (
	ReviewReasonBand               = "review_band"
	ReviewReasonClusterSplit       = "cluster_split"
	ReviewReasonUnresolvedConflict = "unresolved_conflict"
)

// IdentityCluster is the batch-scoped set of source records believed to denote
// one real-world entity. Every member is reachable from every other member via
// accept-decision candidates, and size never exceeds the configured bound.
type IdentityCluster struct {
	Members []MemberRef      `json:"members"`
	Edges   []MatchCandidate `json:"edges,omitempty"`
}

// MemberKeys returns the canonical keys of all members in sorted order.
func (c *IdentityCluster) MemberKeys() []string {
	keys := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		keys = append(keys, m.Key())
	}
	sort.Strings(keys)
	return keys
}
