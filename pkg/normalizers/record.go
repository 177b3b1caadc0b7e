package normalizers

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// BuildRecord canonicalizes one source record and derives its blocking and
// phonetic keys. Normalization never fails the pipeline: empty or missing
// required fields are flagged and left absent, which downstream matching
// treats as zero evidence.
func BuildRecord(rec *models.SourceRecord, cfg models.ReconcileConfig) models.NormalizedRecord {
	normalized := make(map[string]any, len(rec.Attributes))

	for name, value := range rec.Attributes {
		s, ok := value.(string)
		if !ok {
			// Non-string values pass through untouched
			normalized[name] = value
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}

		switch name {
		case cfg.NameField, cfg.InstitutionField:
			normalized[name] = NormalizeName(s)
		case cfg.EmailField:
			normalized[name] = NormalizeEmail(s)
		case cfg.LicenseField:
			normalized[name] = NormalizeLicense(s)
		default:
			normalized[name] = CollapseWhitespace(UnicodeFold(s))
		}
	}

	var missing []string
	for _, required := range cfg.RequiredAttributes {
		if _, ok := normalized[required]; !ok {
			missing = append(missing, required)
		}
	}

	phonetic := ""
	if name, ok := normalized[cfg.NameField].(string); ok && name != "" {
		phonetic = Soundex(name)
	}

	return models.NormalizedRecord{
		Record:        rec,
		BlockingKey:   blockingKey(phonetic, normalized, cfg),
		PhoneticKey:   phonetic,
		Normalized:    normalized,
		MissingFields: missing,
	}
}

// blockingKey prefers the phonetic name encoding. Records without a usable
// name fall back to a coarse prefix bucket so they still get compared against
// each other rather than being silently dropped.
func blockingKey(phonetic string, normalized map[string]any, cfg models.ReconcileConfig) string {
	if phonetic != "" {
		return phonetic
	}
	for _, field := range []string{cfg.EmailField, cfg.LicenseField} {
		if s, ok := normalized[field].(string); ok && s != "" {
			return fmt.Sprintf("#%c", s[0])
		}
	}
	return "#"
}
