// Package rules evaluates configured quality rules against golden records and
// derives per-dimension quality scores. Rules are pure predicates; evaluation
// never mutates the store.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/extractor"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Engine holds the compiled rule set for a run. Construction isolates
// malformed definitions; evaluation applies the valid ones to every live
// golden record.
type Engine struct {
	cfg    models.ReconcileConfig
	rules  []compiledRule
	ext    *extractor.Extractor
	logger ectologger.Logger
}

type compiledRule struct {
	def     models.RuleDefinition
	pattern *regexp.Regexp // format and license_pattern kinds
	check   func(e *Engine, golden *models.GoldenRecord) (ok bool, detail string)
}

// NewEngine compiles the configured rules. Each malformed definition is
// returned as a ConfigError and skipped; a rule set that compiles to nothing,
// whether empty or fully malformed, is fatal because it would silently report
// perfect quality.
func NewEngine(cfg models.ReconcileConfig, logger ectologger.Logger) (*Engine, []error, error) {
	engine := &Engine{cfg: cfg.WithDefaults(), ext: extractor.New(), logger: logger}

	var configErrs []error
	for _, def := range cfg.Rules {
		rule, err := compile(def)
		if err != nil {
			configErrs = append(configErrs, &models.ConfigError{Subject: "rule " + def.ID, Reason: err.Error()})
			continue
		}
		engine.rules = append(engine.rules, rule)
	}

	if len(engine.rules) == 0 {
		return nil, configErrs, models.ErrNoValidRules
	}
	return engine, configErrs, nil
}

func compile(def models.RuleDefinition) (compiledRule, error) {
	if err := validate.Struct(def); err != nil {
		return compiledRule{}, err
	}

	rule := compiledRule{def: def}
	switch def.Kind {
	case models.RuleKindRequired:
		if def.Field == "" {
			return compiledRule{}, fmt.Errorf("required rule needs a field")
		}
		rule.check = rule.checkRequired
	case models.RuleKindFormat, models.RuleKindLicensePattern:
		if def.Field == "" || def.Pattern == "" {
			return compiledRule{}, fmt.Errorf("%s rule needs a field and a pattern", def.Kind)
		}
		pattern, err := regexp.Compile(def.Pattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("invalid pattern: %w", err)
		}
		rule.pattern = pattern
		rule.check = rule.checkFormat
	case models.RuleKindNumericMax, models.RuleKindNumericMin:
		if def.Field == "" || def.Threshold == nil {
			return compiledRule{}, fmt.Errorf("%s rule needs a field and a threshold", def.Kind)
		}
		rule.check = rule.checkNumeric
	case models.RuleKindMonthlyCountMax:
		if def.Field == "" || def.Threshold == nil {
			return compiledRule{}, fmt.Errorf("monthly_count_max rule needs a field and a threshold")
		}
		rule.check = rule.checkMonthlyCount
	case models.RuleKindCriteria:
		if len(def.Criteria) == 0 {
			return compiledRule{}, fmt.Errorf("criteria rule needs a criteria document")
		}
		rule.check = rule.checkCriteria
	default:
		return compiledRule{}, fmt.Errorf("unknown rule kind %q", def.Kind)
	}
	return rule, nil
}

// Evaluate runs every compiled rule against every live golden record.
// Tombstones are skipped. The returned violations and scores supersede the
// previous pass entirely.
func (e *Engine) Evaluate(ctx context.Context, batchID string, goldens []*models.GoldenRecord) ([]models.RuleViolation, []models.QualityScore) {
	ctx, span := tracing.StartSpan(ctx, "rules.Engine.Evaluate")
	defer span.End()

	now := time.Now().UTC()
	var violations []models.RuleViolation
	evaluated := make(map[string]int)
	passing := make(map[string]int)

	for _, golden := range goldens {
		if golden.Tombstone {
			continue
		}
		for _, rule := range e.rules {
			evaluated[rule.def.Dimension]++
			ok, detail := rule.check(e, golden)
			if ok {
				passing[rule.def.Dimension]++
				continue
			}
			violations = append(violations, models.RuleViolation{
				ID:         uuid.NewString(),
				RuleID:     rule.def.ID,
				GoldenID:   golden.GoldenID,
				BatchID:    batchID,
				Severity:   rule.def.Severity,
				Detail:     detail,
				DetectedAt: now,
			})
		}
	}

	scores := e.scores(batchID, evaluated, passing, now)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":   batchID,
		"rules":      len(e.rules),
		"violations": len(violations),
	}).Info("Evaluated quality rules")

	return violations, scores
}

// scores computes 100 * passing / evaluated per dimension plus the weighted
// overall aggregate. Dimensions with no applicable rules are omitted.
func (e *Engine) scores(batchID string, evaluated, passing map[string]int, now time.Time) []models.QualityScore {
	dimensions := make([]string, 0, len(evaluated))
	for dim := range evaluated {
		dimensions = append(dimensions, dim)
	}
	sort.Strings(dimensions)

	var scores []models.QualityScore
	var weightedSum, weightTotal float64
	for _, dim := range dimensions {
		value := 100 * float64(passing[dim]) / float64(evaluated[dim])
		scores = append(scores, models.QualityScore{
			Dimension:  dim,
			BatchID:    batchID,
			Value:      value,
			Evaluated:  evaluated[dim],
			Passing:    passing[dim],
			ComputedAt: now,
		})

		weight := 1.0
		if w, ok := e.cfg.DimensionWeights[dim]; ok {
			weight = w
		}
		weightedSum += value * weight
		weightTotal += weight
	}

	if weightTotal > 0 {
		scores = append(scores, models.QualityScore{
			Dimension:  models.OverallDimension,
			BatchID:    batchID,
			Value:      weightedSum / weightTotal,
			ComputedAt: now,
		})
	}
	return scores
}
