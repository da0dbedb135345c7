package contract

import (
	"fmt"
	"sort"

	"ontolint/internal/bundle"
	"ontolint/internal/core/errors"
	"ontolint/internal/core/ports"
)

type compiledRule struct {
	rule ports.ContractRule
	sel  bundle.Selector
}

// Checker enforces bundle content contracts: exact entry counts, required
// and forbidden members, and boolean flags that must be set. Contracts carry
// the expectations the schema document cannot express, like the fixed CDE
// inventory and the mapping-hook declarations.
type Checker struct {
	rules []compiledRule
}

func New(rules []ports.ContractRule) (*Checker, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		sel, err := bundle.CompileSelector(rule.Target)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid, fmt.Sprintf("contract on %q", rule.Target.Path))
		}
		compiled = append(compiled, compiledRule{rule: rule, sel: sel})
	}
	return &Checker{rules: compiled}, nil
}

func (c *Checker) Check(b *bundle.Bundle) []ports.Finding {
	var findings []ports.Finding
	for _, cr := range c.rules {
		findings = append(findings, checkRule(b, cr)...)
	}
	return findings
}

func checkRule(b *bundle.Bundle, cr compiledRule) []ports.Finding {
	var findings []ports.Finding

	hits := bundle.Select(b, []bundle.Selector{cr.sel})

	// Required binds per loaded module: every module the target's module
	// glob matches must carry at least one matching field. Modules absent
	// from the bundle are not this checker's concern.
	if cr.rule.Required {
		matched := make(map[string]bool, len(hits))
		for _, hit := range hits {
			matched[hit.Location.Module] = true
		}
		for _, name := range b.Names() {
			if !cr.sel.MatchesModule(name) || matched[name] {
				continue
			}
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerContract,
				Location: ports.Location{Module: name},
				Message:  fmt.Sprintf("missing required field %q", cr.rule.Target.Path),
			})
		}
	}

	for _, hit := range hits {
		findings = append(findings, checkNode(cr.rule, hit)...)
	}

	return findings
}

func checkNode(rule ports.ContractRule, hit bundle.Hit) []ports.Finding {
	var findings []ports.Finding

	fail := func(format string, args ...any) {
		findings = append(findings, ports.Finding{
			Severity: ports.SeverityError,
			Checker:  ports.CheckerContract,
			Location: hit.Location,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if rule.MustBeTrue {
		if v, ok := hit.Value.(bool); !ok || !v {
			fail("field must be true, got %v", hit.Value)
		}
	}

	if rule.Count != nil {
		list, ok := hit.Value.([]any)
		if !ok {
			fail("field must be a list, got %v", hit.Value)
		} else if len(list) != *rule.Count {
			fail("expected %d entries, found %d", *rule.Count, len(list))
		}
	}

	if len(rule.MustContain) == 0 && len(rule.MustNotContain) == 0 {
		return findings
	}

	members, ok := memberSet(hit.Value, rule.IDField)
	if !ok {
		fail("cannot enumerate members of %v", hit.Value)
		return findings
	}

	var missing []string
	for _, want := range rule.MustContain {
		if !members[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		fail("missing required members %v", missing)
	}

	for _, forbidden := range rule.MustNotContain {
		if members[forbidden] {
			fail("contains forbidden member %q", forbidden)
		}
	}

	return findings
}

// memberSet enumerates a node's members: a list of strings as-is, a list of
// mappings through the configured id field, a mapping by its keys.
func memberSet(v any, idField string) (map[string]bool, bool) {
	switch val := v.(type) {
	case []any:
		out := make(map[string]bool, len(val))
		for _, item := range val {
			switch entry := item.(type) {
			case string:
				out[entry] = true
			case map[string]any:
				if idField == "" {
					return nil, false
				}
				if id, ok := entry[idField].(string); ok {
					out[id] = true
				}
			default:
				return nil, false
			}
		}
		return out, true
	case map[string]any:
		out := make(map[string]bool, len(val))
		for key := range val {
			out[key] = true
		}
		return out, true
	default:
		return nil, false
	}
}
