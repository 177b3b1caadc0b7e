package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/criteria"
	"github.com/Ramsey-B/clover/pkg/models"
)

// The checks below share a shape: extract the rule's field from the golden
// attributes, apply the predicate, return a human-readable detail on failure.
// An absent value fails only the required kind; presence is its job.

func (r compiledRule) fieldValue(e *Engine, golden *models.GoldenRecord) any {
	value, err := e.ext.Extract(golden.Attributes, r.def.Field)
	if err != nil {
		return nil
	}
	return value
}

func (r compiledRule) checkRequired(e *Engine, golden *models.GoldenRecord) (bool, string) {
	value := r.fieldValue(e, golden)
	if value == nil || value == "" {
		return false, fmt.Sprintf("%s is missing", r.def.Field)
	}
	return true, ""
}

func (r compiledRule) checkFormat(e *Engine, golden *models.GoldenRecord) (bool, string) {
	value := r.fieldValue(e, golden)
	if value == nil {
		return true, ""
	}
	s, ok := value.(string)
	if !ok {
		return false, fmt.Sprintf("%s is not a string", r.def.Field)
	}
	if !r.pattern.MatchString(s) {
		return false, fmt.Sprintf("%s value %q does not match %s", r.def.Field, s, r.def.Pattern)
	}
	return true, ""
}

func (r compiledRule) checkNumeric(e *Engine, golden *models.GoldenRecord) (bool, string) {
	value := r.fieldValue(e, golden)
	if value == nil {
		return true, ""
	}
	n, ok := toFloat(value)
	if !ok {
		return false, fmt.Sprintf("%s is not numeric", r.def.Field)
	}

	threshold := *r.def.Threshold
	if r.def.Kind == models.RuleKindNumericMax && n > threshold {
		return false, fmt.Sprintf("%s value %v exceeds maximum %v", r.def.Field, n, threshold)
	}
	if r.def.Kind == models.RuleKindNumericMin && n < threshold {
		return false, fmt.Sprintf("%s value %v is below minimum %v", r.def.Field, n, threshold)
	}
	return true, ""
}

// checkMonthlyCount bounds how many date values in a list field fall inside
// any single calendar month. Unparseable dates count against the rule rather
// than silently shrinking the tally.
func (r compiledRule) checkMonthlyCount(e *Engine, golden *models.GoldenRecord) (bool, string) {
	values, err := e.ext.ExtractAll(golden.Attributes, r.def.Field+"[*]")
	if err != nil || len(values) == 0 {
		return true, ""
	}

	limit := int(*r.def.Threshold)
	perMonth := make(map[string]int)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return false, fmt.Sprintf("%s contains a non-date value", r.def.Field)
		}
		parsed, err := parseDate(s)
		if err != nil {
			return false, fmt.Sprintf("%s contains unparseable date %q", r.def.Field, s)
		}
		month := parsed.Format("2006-01")
		perMonth[month]++
		if perMonth[month] > limit {
			return false, fmt.Sprintf("%s has %d entries in %s, limit is %d", r.def.Field, perMonth[month], month, limit)
		}
	}
	return true, ""
}

func (r compiledRule) checkCriteria(e *Engine, golden *models.GoldenRecord) (bool, string) {
	data, err := json.Marshal(golden.Attributes)
	if err != nil {
		return false, "attributes are not serializable"
	}
	if !criteria.MatchesCriteria(data, r.def.Criteria) {
		return false, "record does not satisfy the rule criteria"
	}
	return true, ""
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
