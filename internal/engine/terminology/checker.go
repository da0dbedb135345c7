package terminology

import (
	"fmt"

	"ontolint/internal/bundle"
	"ontolint/internal/core/errors"
	"ontolint/internal/core/ports"
	"ontolint/internal/engine/xref"
)

const (
	statusActive     = "active"
	statusDeprecated = "deprecated"

	kindClinicalFinding = "clinical_finding"
)

// Sub-fields every active clinical-finding term must carry.
var requiredFindingFields = []string{"confidence", "location", "temporal_phase"}

type term struct {
	id         string
	status     string
	kind       string
	replacedBy string
	fields     map[string]any
	location   ports.Location
}

// Checker verifies controlled-vocabulary term lifecycles: deprecated terms
// must point at an active replacement, and active clinical-finding terms
// must carry their structured sub-fields.
type Checker struct {
	rule      ports.TerminologyRule
	selectors []bundle.Selector
}

func New(rule ports.TerminologyRule) (*Checker, error) {
	selectors, err := bundle.CompileSelectors(rule.Terms)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "terminology term selectors")
	}
	return &Checker{rule: rule, selectors: selectors}, nil
}

// Check needs the xref index to resolve temporal-phase links of clinical
// findings; term-to-term resolution uses the term set itself.
func (c *Checker) Check(b *bundle.Bundle, idx *xref.Index) []ports.Finding {
	var findings []ports.Finding

	terms, extracted := c.extract(b)
	findings = append(findings, extracted...)

	byID := make(map[string]term, len(terms))
	for _, t := range terms {
		// Duplicate term IDs are the cross-reference resolver's finding.
		if _, ok := byID[t.id]; !ok {
			byID[t.id] = t
		}
	}

	for _, t := range terms {
		switch t.status {
		case statusDeprecated:
			findings = append(findings, c.checkDeprecated(t, byID)...)
		case statusActive:
			findings = append(findings, c.checkActive(t, idx)...)
		}
	}

	return findings
}

func (c *Checker) extract(b *bundle.Bundle) ([]term, []ports.Finding) {
	var terms []term
	var findings []ports.Finding

	for _, hit := range bundle.Select(b, c.selectors) {
		record, ok := hit.Value.(map[string]any)
		if !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerTerminology,
				Location: hit.Location,
				Message:  "term record must be a mapping",
			})
			continue
		}

		t := term{fields: record, location: hit.Location}
		t.id, _ = record["id"].(string)
		t.status, _ = record["status"].(string)
		t.kind, _ = record["kind"].(string)
		t.replacedBy, _ = record["replaced_by"].(string)

		if t.id == "" {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerTerminology,
				Location: hit.Location,
				Message:  "term record has no id",
			})
			continue
		}
		terms = append(terms, t)
	}

	return terms, findings
}

func (c *Checker) checkDeprecated(t term, byID map[string]term) []ports.Finding {
	if t.replacedBy == "" {
		return []ports.Finding{{
			Severity: ports.SeverityError,
			Checker:  ports.CheckerTerminology,
			Location: t.location,
			Message:  fmt.Sprintf("deprecated term %q has no replacement pointer", t.id),
		}}
	}

	replacement, ok := byID[t.replacedBy]
	if !ok {
		return []ports.Finding{{
			Severity: ports.SeverityError,
			Checker:  ports.CheckerTerminology,
			Location: t.location,
			Message:  fmt.Sprintf("deprecated term %q points at unknown term %q", t.id, t.replacedBy),
		}}
	}

	// One hop only: a chain of deprecations is surfaced as ontology debt,
	// never silently followed to its end.
	if replacement.status == statusDeprecated {
		return []ports.Finding{{
			Severity: ports.SeverityWarning,
			Checker:  ports.CheckerTerminology,
			Location: t.location,
			Message: fmt.Sprintf("deprecation chain: term %q replaces to %q which is itself deprecated, retarget %q directly",
				t.id, t.replacedBy, t.replacedBy),
		}}
	}

	var findings []ports.Finding
	if replacement.kind == kindClinicalFinding {
		for _, field := range requiredFindingFields {
			if _, ok := replacement.fields[field]; !ok {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerTerminology,
					Location: t.location,
					Message: fmt.Sprintf("replacement term %q for deprecated %q is missing required field %q",
						t.replacedBy, t.id, field),
				})
			}
		}
	}
	return findings
}

func (c *Checker) checkActive(t term, idx *xref.Index) []ports.Finding {
	if t.kind != kindClinicalFinding {
		return nil
	}

	var findings []ports.Finding
	for _, field := range requiredFindingFields {
		if _, ok := t.fields[field]; !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerTerminology,
				Location: t.location,
				Message:  fmt.Sprintf("clinical finding term %q is missing required field %q", t.id, field),
			})
		}
	}

	if raw, ok := t.fields["temporal_phase"]; ok {
		phase, ok := raw.(string)
		if !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerTerminology,
				Location: t.location,
				Message:  fmt.Sprintf("clinical finding term %q temporal_phase must be a string, got %v", t.id, raw),
			})
		} else if idx != nil && !idx.Resolve(c.rule.PhaseNamespace, phase) {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerTerminology,
				Location: t.location,
				Message: fmt.Sprintf("clinical finding term %q links unknown temporal phase %q",
					t.id, phase),
			})
		}
	}

	return findings
}
