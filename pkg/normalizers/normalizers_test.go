package normalizers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestUnicodeFold(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ascii lowercase", input: "Hello", expected: "hello"},
		{name: "diacritics stripped", input: "Müller", expected: "muller"},
		{name: "accents stripped", input: "José García", expected: "jose garcia"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnicodeFold(tt.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a   b\t\tc  "))
	assert.Equal(t, "", CollapseWhitespace("   "))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "suffix stripped", input: "John Smith Jr.", expected: "john smith"},
		{name: "punctuation removed", input: "O'Brien, Mary", expected: "obrien mary"},
		{name: "diacritics folded", input: "José Müller", expected: "jose muller"},
		{name: "credentials stripped", input: "Jane Doe PhD", expected: "jane doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeLicense(t *testing.T) {
	assert.Equal(t, "AB123", NormalizeLicense("ab-123"))
	assert.Equal(t, "XY99", NormalizeLicense(" xy 99 "))
}

func TestSoundex(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Robert", expected: "R163"},
		{input: "Rupert", expected: "R163"},
		{input: "Tymczak", expected: "T522"},
		{input: "Pfister", expected: "P236"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Soundex(tt.input))
		})
	}
}

func TestBuildRecord(t *testing.T) {
	cfg := models.ReconcileConfig{
		RequiredAttributes: []string{"email"},
	}.WithDefaults()

	t.Run("canonicalizes attributes and derives keys", func(t *testing.T) {
		rec := &models.SourceRecord{
			SourceID:        "src_a",
			SourceRecordID:  "1",
			IngestTimestamp: time.Now(),
			Attributes: map[string]any{
				"full_name":      "José Müller Jr.",
				"email":          " A@X.COM ",
				"license_number": "ab-123",
				"bio":            "  two   words ",
				"publications":   float64(12),
			},
		}

		nr := BuildRecord(rec, cfg)
		assert.Equal(t, "jose muller", nr.Normalized["full_name"])
		assert.Equal(t, "a@x.com", nr.Normalized["email"])
		assert.Equal(t, "AB123", nr.Normalized["license_number"])
		assert.Equal(t, "two words", nr.Normalized["bio"])
		assert.Equal(t, float64(12), nr.Normalized["publications"])
		assert.Equal(t, Soundex("jose muller"), nr.BlockingKey)
		assert.Equal(t, nr.PhoneticKey, nr.BlockingKey)
		assert.Empty(t, nr.MissingFields)
	})

	t.Run("missing required field is flagged, not fatal", func(t *testing.T) {
		rec := &models.SourceRecord{
			SourceID:       "src_a",
			SourceRecordID: "2",
			Attributes: map[string]any{
				"full_name": "Jane Doe",
			},
		}

		nr := BuildRecord(rec, cfg)
		assert.Equal(t, []string{"email"}, nr.MissingFields)
		assert.NotEmpty(t, nr.BlockingKey)
	})

	t.Run("no name falls back to a coarse bucket", func(t *testing.T) {
		rec := &models.SourceRecord{
			SourceID:       "src_b",
			SourceRecordID: "3",
			Attributes: map[string]any{
				"email": "zed@example.org",
			},
		}

		nr := BuildRecord(rec, cfg)
		assert.Equal(t, "", nr.PhoneticKey)
		assert.Equal(t, "#z", nr.BlockingKey)
	})

	t.Run("blank strings are treated as absent", func(t *testing.T) {
		rec := &models.SourceRecord{
			SourceID:       "src_b",
			SourceRecordID: "4",
			Attributes: map[string]any{
				"full_name": "   ",
				"email":     "ok@example.org",
			},
		}

		nr := BuildRecord(rec, cfg)
		_, hasName := nr.Normalized["full_name"]
		assert.False(t, hasName)
	})
}
