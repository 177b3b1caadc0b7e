package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_ExactMatch(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.ExactMatch("a@x.com", "a@x.com", true))
	assert.Equal(t, 0.0, s.ExactMatch("a@x.com", "A@X.COM", true))
	assert.Equal(t, 1.0, s.ExactMatch("a@x.com", "A@X.COM", false))
	assert.Equal(t, 0.0, s.ExactMatch("a@x.com", "b@x.com", false))
}

func TestScorer_Levenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("robert", "robert"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 6, s.LevenshteinDistance("", "robert"))

	assert.Equal(t, 1.0, s.Levenshtein("", ""))
	assert.InDelta(t, 1.0-3.0/7.0, s.Levenshtein("kitten", "sitting"), 0.0001)
	assert.InDelta(t, 12.0/13.0, s.Levenshtein("robert smith", "roberto smith"), 0.0001)
}

func TestScorer_JaroWinkler(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.JaroWinkler("robert", "robert"))
	assert.Equal(t, 0.0, s.Jaro("robert", ""))

	// One inserted character, shared 4-char prefix
	jaro := s.Jaro("robert smith", "roberto smith")
	assert.InDelta(t, 0.9744, jaro, 0.0005)

	jw := s.JaroWinkler("robert smith", "roberto smith")
	assert.InDelta(t, 0.9846, jw, 0.0005)
	assert.Greater(t, jw, jaro, "common prefix boosts the score")
}

func TestScorer_WeightedScore(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0.0, s.WeightedScore(nil, nil))

	// Missing weights default to 1.0
	mean := s.WeightedScore(map[string]float64{"a": 0.8, "b": 0.4}, nil)
	assert.InDelta(t, 0.6, mean, 0.0001)

	weighted := s.WeightedScore(
		map[string]float64{"a": 0.8, "b": 0.4},
		map[string]float64{"a": 3.0, "b": 1.0},
	)
	assert.InDelta(t, 0.7, weighted, 0.0001)
}

func TestEngine_FuzzyNameBlendsEditDistanceAndPrefix(t *testing.T) {
	engine := NewEngine(testConfig(), testLogger())

	a := normalized(t, "src_a", "1", map[string]any{"full_name": "Robert Smith", "institution": "State University"})
	b := normalized(t, "src_b", "2", map[string]any{"full_name": "Roberto Smith", "institution": "State University"})

	sim, ok := engine.fuzzyNameInstitution(&a, &b)
	assert.True(t, ok)

	s := NewScorer()
	nameSim := (s.Levenshtein("robert smith", "roberto smith") + s.JaroWinkler("robert smith", "roberto smith")) / 2
	assert.InDelta(t, 0.8*nameSim+0.2, sim, 0.0001)
}
