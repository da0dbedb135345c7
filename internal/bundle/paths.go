package bundle

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/gobwas/glob"

	"ontolint/internal/core/ports"
)

// Walk visits every node below content in deterministic order (map keys
// sorted, list order preserved) and reports its dotted field path, e.g.
// "phases.subacute.id" or "core_cdes.3.temporal_phases.0".
func Walk(content map[string]any, fn func(path string, value any)) {
	walkMap("", content, fn)
}

func walkMap(prefix string, m map[string]any, fn func(path string, value any)) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		walkValue(path, m[k], fn)
	}
}

func walkValue(path string, v any, fn func(path string, value any)) {
	fn(path, v)
	switch val := v.(type) {
	case map[string]any:
		walkMap(path, val, fn)
	case []any:
		for i, child := range val {
			walkValue(path+"."+strconv.Itoa(i), child, fn)
		}
	}
}

// Selector is a compiled FieldRef: module-name glob plus field-path glob.
// The path glob uses '.' as separator, so "phases.*.id" matches exactly one
// path segment per star.
type Selector struct {
	ref        ports.FieldRef
	moduleGlob glob.Glob
	pathGlob   glob.Glob
}

func CompileSelector(ref ports.FieldRef) (Selector, error) {
	if ref.Path == "" {
		return Selector{}, fmt.Errorf("field selector for module %q has empty path", ref.Module)
	}
	modulePattern := ref.Module
	if modulePattern == "" {
		modulePattern = "*"
	}
	mg, err := glob.Compile(modulePattern)
	if err != nil {
		return Selector{}, fmt.Errorf("compile module pattern %q: %w", ref.Module, err)
	}
	pg, err := glob.Compile(ref.Path, '.')
	if err != nil {
		return Selector{}, fmt.Errorf("compile path pattern %q: %w", ref.Path, err)
	}
	return Selector{ref: ref, moduleGlob: mg, pathGlob: pg}, nil
}

func CompileSelectors(refs []ports.FieldRef) ([]Selector, error) {
	out := make([]Selector, 0, len(refs))
	for _, ref := range refs {
		sel, err := CompileSelector(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func (s Selector) MatchesModule(name string) bool {
	return s.moduleGlob.Match(name)
}

func (s Selector) MatchesPath(path string) bool {
	return s.pathGlob.Match(path)
}

// Hit is one field matched by a selector.
type Hit struct {
	Location ports.Location
	Value    any
}

// Select walks the whole bundle and returns every field matched by any of
// the selectors, in deterministic module/path order.
func Select(b *Bundle, selectors []Selector) []Hit {
	var hits []Hit
	for _, name := range b.Names() {
		mod, _ := b.Module(name)

		active := selectors[:0:0]
		for _, sel := range selectors {
			if sel.MatchesModule(name) {
				active = append(active, sel)
			}
		}
		if len(active) == 0 {
			continue
		}

		Walk(mod.Content, func(path string, value any) {
			for _, sel := range active {
				if sel.MatchesPath(path) {
					hits = append(hits, Hit{
						Location: ports.Location{Module: name, FieldPath: path},
						Value:    value,
					})
					return
				}
			}
		})
	}
	return hits
}
