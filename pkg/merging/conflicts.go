package merging

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// resolveConflict applies the resolution ladder to a field whose ranked
// candidates disagree. Tried in order: majority vote among contributing
// sources, most-recent ingest wins, otherwise unresolved. Correctness is
// preferred over completeness: an unresolved field stays unset rather than
// guessed.
func resolveConflict(candidates []models.CandidateValue) (value any, rule string) {
	if v, ok := majorityVote(candidates); ok {
		return v, models.ResolutionMajorityVote
	}
	if v, ok := mostRecent(candidates); ok {
		return v, models.ResolutionMostRecent
	}
	return nil, models.ResolutionUnresolved
}

// majorityVote wins when at least three sources contribute and one value
// holds a strict majority.
func majorityVote(candidates []models.CandidateValue) (any, bool) {
	if len(candidates) < 3 {
		return nil, false
	}

	counts := make(map[string]int)
	byKey := make(map[string]any)
	for _, c := range candidates {
		k := valueKey(c.Value)
		counts[k]++
		if _, ok := byKey[k]; !ok {
			byKey[k] = c.Value
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if counts[k]*2 > len(candidates) {
			return byKey[k], true
		}
	}
	return nil, false
}

// mostRecent wins when a single candidate has the strictly latest ingest
// timestamp. A recency tie between differing values stays unresolved.
func mostRecent(candidates []models.CandidateValue) (any, bool) {
	best := candidates[0]
	tied := false
	for _, c := range candidates[1:] {
		switch {
		case c.Recency.After(best.Recency):
			best = c
			tied = false
		case c.Recency.Equal(best.Recency) && valueKey(c.Value) != valueKey(best.Value):
			tied = true
		}
	}
	if tied {
		return nil, false
	}
	return best.Value, true
}

// valueKey canonicalizes a value for equality comparison across sources
func valueKey(v any) string {
	return fmt.Sprintf("%v", v)
}
