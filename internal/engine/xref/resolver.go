package xref

import (
	"fmt"
	"sort"

	"ontolint/internal/bundle"
	"ontolint/internal/core/errors"
	"ontolint/internal/core/ports"
)

// Declaration is one identifier definition site.
type Declaration struct {
	Namespace string
	Value     string
	Location  ports.Location
}

// Index holds every identifier declared in the bundle, one lookup set per
// namespace. Built once per run, read-only afterwards.
type Index struct {
	decls map[string]map[string][]Declaration
}

func (i *Index) Resolve(namespace, value string) bool {
	return len(i.Declarations(namespace, value)) > 0
}

func (i *Index) Declarations(namespace, value string) []Declaration {
	ns, ok := i.decls[namespace]
	if !ok {
		return nil
	}
	return ns[value]
}

// Values returns every declared identifier in a namespace, sorted.
func (i *Index) Values(namespace string) []string {
	ns, ok := i.decls[namespace]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(ns))
	for v := range ns {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

type compiledNamespace struct {
	rule       ports.NamespaceRule
	declares   []bundle.Selector
	references []bundle.Selector
	canonical  []bundle.Selector
}

// Resolver scans the bundle for identifier declarations and references
// according to the configured namespace conventions.
type Resolver struct {
	namespaces []compiledNamespace
}

func New(rules []ports.NamespaceRule) (*Resolver, error) {
	namespaces := make([]compiledNamespace, 0, len(rules))
	for _, rule := range rules {
		cn := compiledNamespace{rule: rule}
		var err error
		if cn.declares, err = bundle.CompileSelectors(rule.Declares); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid, fmt.Sprintf("namespace %q declares", rule.Name))
		}
		if cn.references, err = bundle.CompileSelectors(rule.References); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid, fmt.Sprintf("namespace %q references", rule.Name))
		}
		if cn.canonical, err = bundle.CompileSelectors(rule.CanonicalLists); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid, fmt.Sprintf("namespace %q canonical lists", rule.Name))
		}
		namespaces = append(namespaces, cn)
	}
	return &Resolver{namespaces: namespaces}, nil
}

// BuildIndex runs the declaration pass over the whole bundle. The index is
// complete before any reference is resolved, so module order never affects
// the outcome.
func (r *Resolver) BuildIndex(b *bundle.Bundle) *Index {
	idx := &Index{decls: make(map[string]map[string][]Declaration, len(r.namespaces))}
	for _, cn := range r.namespaces {
		values := make(map[string][]Declaration)
		for _, hit := range bundle.Select(b, cn.declares) {
			value, ok := hit.Value.(string)
			if !ok {
				// Reported by Check; the index only holds real identifiers.
				continue
			}
			values[value] = append(values[value], Declaration{
				Namespace: cn.rule.Name,
				Value:     value,
				Location:  hit.Location,
			})
		}
		idx.decls[cn.rule.Name] = values
	}
	return idx
}

// Check verifies that every declaration is unique within its namespace and
// that every reference resolves, using a previously built index.
func (r *Resolver) Check(b *bundle.Bundle, idx *Index) []ports.Finding {
	var findings []ports.Finding

	for _, cn := range r.namespaces {
		findings = append(findings, r.checkDeclarations(b, cn, idx)...)
		findings = append(findings, r.checkReferences(b, cn, idx)...)
		findings = append(findings, r.checkCanonicalLists(b, cn, idx)...)
	}

	return findings
}

func (r *Resolver) checkDeclarations(b *bundle.Bundle, cn compiledNamespace, idx *Index) []ports.Finding {
	var findings []ports.Finding

	for _, hit := range bundle.Select(b, cn.declares) {
		if _, ok := hit.Value.(string); !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerXRef,
				Location: hit.Location,
				Message:  fmt.Sprintf("identifier in namespace %q must be a string, got %v", cn.rule.Name, hit.Value),
			})
		}
	}

	for _, value := range idx.Values(cn.rule.Name) {
		decls := idx.Declarations(cn.rule.Name, value)
		if len(decls) < 2 {
			continue
		}
		locations := make([]string, 0, len(decls))
		for _, d := range decls {
			locations = append(locations, fmt.Sprintf("%s:%s", d.Location.Module, d.Location.FieldPath))
		}
		findings = append(findings, ports.Finding{
			Severity: ports.SeverityError,
			Checker:  ports.CheckerXRef,
			Location: decls[0].Location,
			Message: fmt.Sprintf("duplicate declaration of %q in namespace %q (declared at %v)",
				value, cn.rule.Name, locations),
		})
	}

	return findings
}

func (r *Resolver) checkReferences(b *bundle.Bundle, cn compiledNamespace, idx *Index) []ports.Finding {
	var findings []ports.Finding

	for _, hit := range bundle.Select(b, cn.references) {
		value, ok := hit.Value.(string)
		if !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerXRef,
				Location: hit.Location,
				Message:  fmt.Sprintf("reference in namespace %q must be a string, got %v", cn.rule.Name, hit.Value),
			})
			continue
		}
		if !idx.Resolve(cn.rule.Name, value) {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerXRef,
				Location: hit.Location,
				Message:  fmt.Sprintf("unresolved reference %q in namespace %q", value, cn.rule.Name),
			})
		}
	}

	return findings
}

// checkCanonicalLists verifies pinned canonical ID lists: every pinned ID
// must be declared, and all modules pinning the same namespace must pin the
// same list.
func (r *Resolver) checkCanonicalLists(b *bundle.Bundle, cn compiledNamespace, idx *Index) []ports.Finding {
	hits := bundle.Select(b, cn.canonical)
	if len(hits) == 0 {
		return nil
	}

	var findings []ports.Finding
	var first []string
	var firstLoc ports.Location

	for _, hit := range hits {
		list, ok := stringList(hit.Value)
		if !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerXRef,
				Location: hit.Location,
				Message:  fmt.Sprintf("canonical list for namespace %q must be a list of strings", cn.rule.Name),
			})
			continue
		}

		for _, id := range list {
			if !idx.Resolve(cn.rule.Name, id) {
				findings = append(findings, ports.Finding{
					Severity: ports.SeverityError,
					Checker:  ports.CheckerXRef,
					Location: hit.Location,
					Message:  fmt.Sprintf("canonical identifier %q is not declared in namespace %q", id, cn.rule.Name),
				})
			}
		}

		if first == nil {
			first = list
			firstLoc = hit.Location
			continue
		}
		if !equalStrings(first, list) {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerXRef,
				Location: hit.Location,
				Message: fmt.Sprintf("canonical list mismatch for namespace %q: %s:%s disagrees with %s:%s",
					cn.rule.Name, hit.Location.Module, hit.Location.FieldPath, firstLoc.Module, firstLoc.FieldPath),
			})
		}
	}

	return findings
}

func stringList(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
