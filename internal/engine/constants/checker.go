package constants

import (
	"fmt"
	"math"

	"ontolint/internal/bundle"
	"ontolint/internal/core/errors"
	"ontolint/internal/core/ports"
)

// Float comparison tolerance for restated constants. Absolute, because the
// constants are clinical thresholds with fixed units, not relative scales.
const tolerance = 1e-9

// occurrence is one collected restatement: either a single value or a
// [low, high] interval (interval nil for single values).
type occurrence struct {
	location ports.Location
	value    float64
	interval []float64
	unit     string
	rng      *ports.RangeRule
}

func (o occurrence) render() string {
	if o.interval != nil {
		return fmt.Sprintf("[%v %v]", o.interval[0], o.interval[1])
	}
	return fmt.Sprintf("%v", o.value)
}

type compiledOccurrence struct {
	ref ports.OccurrenceRef
	sel bundle.Selector
}

type compiledRule struct {
	rule        ports.ConstantRule
	occurrences []compiledOccurrence
}

// Checker verifies that every canonical constant is restated identically
// everywhere it appears, matches its pinned expected value or interval, and
// lies within its declared valid range.
type Checker struct {
	rules []compiledRule
}

func New(rules []ports.ConstantRule) (*Checker, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{rule: rule}
		for _, ref := range rule.Occurrences {
			sel, err := bundle.CompileSelector(ref.FieldRef)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeConfigInvalid, fmt.Sprintf("constant %q occurrences", rule.Concept))
			}
			cr.occurrences = append(cr.occurrences, compiledOccurrence{ref: ref, sel: sel})
		}
		compiled = append(compiled, cr)
	}
	return &Checker{rules: compiled}, nil
}

func (c *Checker) Check(b *bundle.Bundle) []ports.Finding {
	var findings []ports.Finding
	for _, cr := range c.rules {
		findings = append(findings, c.checkConcept(b, cr)...)
	}
	return findings
}

func (c *Checker) checkConcept(b *bundle.Bundle, cr compiledRule) []ports.Finding {
	var findings []ports.Finding
	var occurrences []occurrence

	for _, co := range cr.occurrences {
		for _, hit := range bundle.Select(b, []bundle.Selector{co.sel}) {
			raw, location, ok, err := resolveHit(co.ref, hit)
			if err != nil {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: location,
					Message:  fmt.Sprintf("constant %q: %v", cr.rule.Concept, err),
				})
				continue
			}
			if !ok {
				continue
			}

			occ, err := parseOccurrence(raw, location, cr.rule)
			if err != nil {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: location,
					Message:  fmt.Sprintf("constant %q: %v", cr.rule.Concept, err),
				})
				continue
			}
			occurrences = append(occurrences, occ)
		}
	}

	if len(occurrences) == 0 {
		if cr.rule.Required {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerConstants,
				Location: ports.Location{},
				Message:  fmt.Sprintf("missing constant: no occurrence of required concept %q found in bundle", cr.rule.Concept),
			})
		}
		return findings
	}

	findings = append(findings, checkConsistency(cr.rule, occurrences)...)
	findings = append(findings, checkExpected(cr.rule, occurrences)...)

	rng, rangeFindings := effectiveRange(cr.rule, occurrences)
	findings = append(findings, rangeFindings...)
	if rng != nil {
		for _, occ := range occurrences {
			for _, v := range occ.values() {
				if msg := outOfRange(v, rng); msg != "" {
					findings = append(findings, ports.Finding{
						Severity: ports.SeverityError,
						Checker:  ports.CheckerConstants,
						Location: occ.location,
						Message:  fmt.Sprintf("out of range: constant %q value %v %s", cr.rule.Concept, v, msg),
					})
				}
			}
		}
	}

	return findings
}

func (o occurrence) values() []float64 {
	if o.interval != nil {
		return o.interval
	}
	return []float64{o.value}
}

// resolveHit narrows a matched node down to the constant value. Without a
// match field the node itself is the value. With one, the node is a
// candidate entry: it counts only when its match field carries the match
// value, and the constant is read from the entry's value field.
func resolveHit(ref ports.OccurrenceRef, hit bundle.Hit) (any, ports.Location, bool, error) {
	if ref.MatchField == "" {
		return hit.Value, hit.Location, true, nil
	}

	entry, ok := hit.Value.(map[string]any)
	if !ok {
		return nil, hit.Location, false, nil
	}
	if id, _ := entry[ref.MatchField].(string); id != ref.MatchValue {
		return nil, hit.Location, false, nil
	}

	location := ports.Location{
		Module:    hit.Location.Module,
		FieldPath: hit.Location.FieldPath + "." + ref.ValueField,
	}
	raw, ok := entry[ref.ValueField]
	if !ok {
		return nil, location, false, fmt.Errorf("matched entry has no %q field", ref.ValueField)
	}
	return raw, location, true, nil
}

// parseOccurrence accepts a bare number, a [low, high] pair, or a mapping
// with a required "value" (number or pair) and optional "unit" and
// "valid_range".
func parseOccurrence(raw any, location ports.Location, rule ports.ConstantRule) (occurrence, error) {
	occ := occurrence{location: location, unit: rule.Unit}

	assign := func(v any) error {
		switch val := v.(type) {
		case float64:
			occ.value = val
			return nil
		case []any:
			pair, ok := floatPair(val)
			if !ok {
				return fmt.Errorf("range occurrence must be a pair of numbers, got %v", val)
			}
			occ.interval = pair
			return nil
		default:
			return fmt.Errorf("occurrence must be numeric or a value mapping, got %v", v)
		}
	}

	switch v := raw.(type) {
	case map[string]any:
		inner, ok := v["value"]
		if !ok {
			return occ, fmt.Errorf("occurrence mapping has no \"value\" field")
		}
		if err := assign(inner); err != nil {
			return occ, err
		}
		if unit, ok := v["unit"].(string); ok {
			occ.unit = unit
		}
		if rawRange, ok := v["valid_range"]; ok {
			rng, err := parseRange(rawRange)
			if err != nil {
				return occ, err
			}
			occ.rng = rng
		}
		return occ, nil
	default:
		return occ, assign(raw)
	}
}

func floatPair(raw []any) ([]float64, bool) {
	if len(raw) != 2 {
		return nil, false
	}
	low, ok := raw[0].(float64)
	if !ok {
		return nil, false
	}
	high, ok := raw[1].(float64)
	if !ok {
		return nil, false
	}
	return []float64{low, high}, true
}

func parseRange(v any) (*ports.RangeRule, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("valid_range must be a mapping")
	}
	rng := &ports.RangeRule{}
	if raw, ok := m["min"]; ok {
		min, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("valid_range.min must be numeric")
		}
		rng.Min = &min
	}
	if raw, ok := m["max"]; ok {
		max, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("valid_range.max must be numeric")
		}
		rng.Max = &max
	}
	if raw, ok := m["min_exclusive"].(bool); ok {
		rng.MinExclusive = raw
	}
	if raw, ok := m["max_exclusive"].(bool); ok {
		rng.MaxExclusive = raw
	}
	return rng, nil
}

// checkConsistency emits at most one finding per concept, listing every
// location so a single run surfaces the full conflict set.
func checkConsistency(rule ports.ConstantRule, occurrences []occurrence) []ports.Finding {
	first := occurrences[0]
	consistent := true
	for _, occ := range occurrences[1:] {
		if !sameValue(occ, first) || occ.unit != first.unit {
			consistent = false
			break
		}
	}
	if consistent {
		return nil
	}

	locations := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		locations = append(locations, fmt.Sprintf("%s:%s=%s %s",
			occ.location.Module, occ.location.FieldPath, occ.render(), occ.unit))
	}
	return []ports.Finding{{
		Severity: ports.SeverityError,
		Checker:  ports.CheckerConstants,
		Location: first.location,
		Message:  fmt.Sprintf("inconsistent constant %q: %v", rule.Concept, locations),
	}}
}

func sameValue(a, b occurrence) bool {
	if (a.interval == nil) != (b.interval == nil) {
		return false
	}
	if a.interval != nil {
		return nearlyEqual(a.interval[0], b.interval[0]) && nearlyEqual(a.interval[1], b.interval[1])
	}
	return nearlyEqual(a.value, b.value)
}

// checkExpected compares each occurrence against the pinned canonical value
// or interval, one finding per deviating occurrence.
func checkExpected(rule ports.ConstantRule, occurrences []occurrence) []ports.Finding {
	var findings []ports.Finding

	if rule.Expected != nil {
		for _, occ := range occurrences {
			if occ.interval != nil {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: occ.location,
					Message:  fmt.Sprintf("constant %q: expected single value %v, got range %s", rule.Concept, *rule.Expected, occ.render()),
				})
				continue
			}
			if !nearlyEqual(occ.value, *rule.Expected) {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: occ.location,
					Message:  fmt.Sprintf("constant %q mismatch: %v != expected %v", rule.Concept, occ.value, *rule.Expected),
				})
			}
		}
	}

	if len(rule.ExpectedRange) == 2 {
		for _, occ := range occurrences {
			if occ.interval == nil {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: occ.location,
					Message: fmt.Sprintf("constant %q: expected range [%v %v], got single value %v",
						rule.Concept, rule.ExpectedRange[0], rule.ExpectedRange[1], occ.value),
				})
				continue
			}
			if !nearlyEqual(occ.interval[0], rule.ExpectedRange[0]) || !nearlyEqual(occ.interval[1], rule.ExpectedRange[1]) {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerConstants,
					Location: occ.location,
					Message: fmt.Sprintf("constant %q mismatch: %s != expected [%v %v]",
						rule.Concept, occ.render(), rule.ExpectedRange[0], rule.ExpectedRange[1]),
				})
			}
		}
	}

	return findings
}

// effectiveRange merges the configured range with ranges declared at the
// occurrences themselves. Disagreeing declared ranges are an error.
func effectiveRange(rule ports.ConstantRule, occurrences []occurrence) (*ports.RangeRule, []ports.Finding) {
	rng := rule.Range
	var findings []ports.Finding

	for _, occ := range occurrences {
		if occ.rng == nil {
			continue
		}
		if rng == nil {
			rng = occ.rng
			continue
		}
		if !sameRange(rng, occ.rng) {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerConstants,
				Location: occ.location,
				Message:  fmt.Sprintf("constant %q declares a conflicting valid range", rule.Concept),
			})
		}
	}

	return rng, findings
}

func sameRange(a, b *ports.RangeRule) bool {
	return boundEqual(a.Min, b.Min) && boundEqual(a.Max, b.Max) &&
		a.MinExclusive == b.MinExclusive && a.MaxExclusive == b.MaxExclusive
}

func boundEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return nearlyEqual(*a, *b)
}

func outOfRange(value float64, rng *ports.RangeRule) string {
	if rng.Min != nil {
		if rng.MinExclusive && value <= *rng.Min {
			return fmt.Sprintf("must be > %v", *rng.Min)
		}
		if !rng.MinExclusive && value < *rng.Min {
			return fmt.Sprintf("must be >= %v", *rng.Min)
		}
	}
	if rng.Max != nil {
		if rng.MaxExclusive && value >= *rng.Max {
			return fmt.Sprintf("must be < %v", *rng.Max)
		}
		if !rng.MaxExclusive && value > *rng.Max {
			return fmt.Sprintf("must be <= %v", *rng.Max)
		}
	}
	return ""
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}
