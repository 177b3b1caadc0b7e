// Package merging builds golden records from identity clusters with
// field-level provenance and conflict resolution.
package merging

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Engine merges identity clusters into golden records
type Engine struct {
	cfg    models.ReconcileConfig
	logger ectologger.Logger
}

// NewEngine creates a merge engine for one batch run
func NewEngine(cfg models.ReconcileConfig, logger ectologger.Logger) *Engine {
	return &Engine{cfg: cfg.WithDefaults(), logger: logger}
}

// BuildAll merges every cluster in the batch. Runs with a global view of all
// clusters; transitive merges may span blocking buckets so this stage is not
// parallelized. `records` maps member keys to their normalized records and
// `previous` maps any member key to the committed golden record that member
// currently backs.
func (e *Engine) BuildAll(
	ctx context.Context,
	batchID string,
	clusters []models.IdentityCluster,
	records map[string]models.NormalizedRecord,
	previous map[string]*models.GoldenRecord,
) ([]*models.GoldenRecord, []models.ConflictEntry) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.BuildAll")
	defer span.End()

	goldens := make([]*models.GoldenRecord, 0, len(clusters))
	var conflicts []models.ConflictEntry

	for _, cluster := range clusters {
		golden, entries := e.BuildGolden(ctx, batchID, cluster, records, findPrevious(cluster, previous))
		goldens = append(goldens, golden)
		conflicts = append(conflicts, entries...)
	}

	sort.Slice(goldens, func(i, j int) bool { return goldens[i].GoldenID < goldens[j].GoldenID })

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":  batchID,
		"clusters":  len(clusters),
		"conflicts": len(conflicts),
	}).Info("Merged clusters into golden records")

	return goldens, conflicts
}

// BuildGolden merges one cluster. The previous golden record, when any member
// overlaps one, supplies the stable golden_id and version lineage; otherwise
// the id is minted deterministically from the sorted member keys so reruns on
// identical input produce identical identities.
func (e *Engine) BuildGolden(
	ctx context.Context,
	batchID string,
	cluster models.IdentityCluster,
	records map[string]models.NormalizedRecord,
	prev *models.GoldenRecord,
) (*models.GoldenRecord, []models.ConflictEntry) {
	golden := &models.GoldenRecord{
		Attributes: make(map[string]any),
		Provenance: make(map[string]models.FieldProvenance),
		Members:    sortedMembers(cluster),
		Version:    1,
	}
	if prev != nil {
		golden.GoldenID = prev.GoldenID
		golden.Version = prev.Version + 1
	} else {
		golden.GoldenID = MintGoldenID(cluster.MemberKeys())
	}

	var conflicts []models.ConflictEntry

	for _, field := range fieldNames(golden.Members, records) {
		candidates := e.candidateValues(field, golden.Members, records)
		if len(candidates) == 0 {
			continue
		}

		prov := models.FieldProvenance{CandidateValues: candidates}

		switch {
		case agreeing(candidates):
			// Single contributor, or every contributor agrees: top rank wins
			// uncontested.
			prov.ChosenSourceID = candidates[0].SourceID
			prov.ChosenValue = candidates[0].Value
		case !tiedDisagreement(candidates):
			// Ranking produced a clear winner: a lower-trust source
			// disagreeing with a higher-trust one is not a conflict.
			prov.ChosenSourceID = candidates[0].SourceID
			prov.ChosenValue = candidates[0].Value
		default:
			value, rule := resolveConflict(candidates)
			prov.Resolution = rule
			conflicts = append(conflicts, models.ConflictEntry{
				ID:              uuid.NewString(),
				GoldenID:        golden.GoldenID,
				BatchID:         batchID,
				FieldName:       field,
				CandidateValues: candidates,
				Resolution:      rule,
				ResolvedValue:   value,
				ResolvedAt:      time.Now().UTC(),
			})

			if rule == models.ResolutionUnresolved {
				// Leave the field unset; the pipeline surfaces it for manual
				// review.
				golden.Provenance[field] = prov
				continue
			}
			prov.ChosenValue = value
			prov.ChosenSourceID = sourceOfValue(candidates, value)
		}

		golden.Attributes[field] = prov.ChosenValue
		golden.Provenance[field] = prov
	}

	golden.Fingerprint = Fingerprint(golden, e.cfg.FingerprintExclusions)
	return golden, conflicts
}

// MintGoldenID derives a reproducible golden_id for a brand-new cluster.
func MintGoldenID(memberKeys []string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("clover://golden/"+strings.Join(memberKeys, ","))).String()
}

// Fingerprint hashes the merged attributes and provenance, honoring the
// configured volatile-field exclusions. Identity fields (version, timestamps)
// are never part of the hash.
func Fingerprint(golden *models.GoldenRecord, exclusions []string) string {
	excluded := make(map[string]bool, len(exclusions))
	for _, f := range exclusions {
		excluded["attributes."+f] = true
		excluded["provenance."+f] = true
	}

	prov := make(map[string]any, len(golden.Provenance))
	for field, p := range golden.Provenance {
		prov[field] = map[string]any{
			"chosen_source_id": p.ChosenSourceID,
			"chosen_value":     p.ChosenValue,
			"resolution":       p.Resolution,
		}
	}

	return fingerprint.GenerateWithExclusions(map[string]any{
		"attributes": golden.Attributes,
		"provenance": prov,
		"tombstone":  golden.Tombstone,
	}, excluded)
}

// fieldNames returns the union of normalized attribute names across the
// cluster, sorted for deterministic iteration.
func fieldNames(members []models.MemberRef, records map[string]models.NormalizedRecord) []string {
	seen := make(map[string]bool)
	for _, m := range members {
		rec, ok := records[m.Key()]
		if !ok {
			continue
		}
		for field := range rec.Normalized {
			seen[field] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// candidateValues collects and ranks every member's contribution to a field
// by (source trust priority desc, recency desc, completeness desc).
func (e *Engine) candidateValues(field string, members []models.MemberRef, records map[string]models.NormalizedRecord) []models.CandidateValue {
	var candidates []models.CandidateValue
	for _, m := range members {
		rec, ok := records[m.Key()]
		if !ok {
			continue
		}
		value, ok := rec.Normalized[field]
		if !ok || value == nil {
			continue
		}
		candidates = append(candidates, models.CandidateValue{
			SourceID:       m.SourceID,
			Value:          value,
			SourcePriority: e.cfg.Priority(m.SourceID),
			Recency:        rec.Record.IngestTimestamp,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.SourcePriority != b.SourcePriority {
			return a.SourcePriority > b.SourcePriority
		}
		if !a.Recency.Equal(b.Recency) {
			return a.Recency.After(b.Recency)
		}
		if ca, cb := completeness(a.Value), completeness(b.Value); ca != cb {
			return ca > cb
		}
		return a.SourceID < b.SourceID
	})
	return candidates
}

// tiedDisagreement reports whether sources within the top trust-priority
// band disagree on the value. Candidates are already sorted, so the band is
// a prefix. Such fields go to the conflict resolver instead of silently
// picking one side.
func tiedDisagreement(candidates []models.CandidateValue) bool {
	top := candidates[0].SourcePriority
	first := valueKey(candidates[0].Value)
	for _, c := range candidates[1:] {
		if c.SourcePriority != top {
			break
		}
		if valueKey(c.Value) != first {
			return true
		}
	}
	return false
}

func agreeing(candidates []models.CandidateValue) bool {
	first := valueKey(candidates[0].Value)
	for _, c := range candidates[1:] {
		if valueKey(c.Value) != first {
			return false
		}
	}
	return true
}

// completeness scores how much information a value carries
func completeness(v any) int {
	return len(valueKey(v))
}

func sourceOfValue(candidates []models.CandidateValue, value any) string {
	key := valueKey(value)
	for _, c := range candidates {
		if valueKey(c.Value) == key {
			return c.SourceID
		}
	}
	return ""
}

func sortedMembers(cluster models.IdentityCluster) []models.MemberRef {
	members := make([]models.MemberRef, len(cluster.Members))
	copy(members, cluster.Members)
	sort.Slice(members, func(i, j int) bool { return members[i].Key() < members[j].Key() })
	return members
}

// findPrevious locates the committed golden record any cluster member backs.
// When a consolidation spans several previous goldens the one with the
// smallest id wins; the others disappear from the new batch and surface as
// tombstone deltas downstream.
func findPrevious(cluster models.IdentityCluster, previous map[string]*models.GoldenRecord) *models.GoldenRecord {
	var found *models.GoldenRecord
	for _, key := range cluster.MemberKeys() {
		prev, ok := previous[key]
		if !ok {
			continue
		}
		if found == nil || prev.GoldenID < found.GoldenID {
			found = prev
		}
	}
	return found
}
