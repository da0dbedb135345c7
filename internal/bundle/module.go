package bundle

import "sort"

// Module is one parsed knowledge-module document. Immutable after load.
type Module struct {
	Name    string
	Path    string
	Content map[string]any
}

// Bundle is the full loaded module set for one validation run.
type Bundle struct {
	Dir     string
	Modules []*Module

	byName map[string]*Module
}

func New(dir string, modules []*Module) *Bundle {
	b := &Bundle{Dir: dir, Modules: modules, byName: make(map[string]*Module, len(modules))}
	for _, m := range modules {
		b.byName[m.Name] = m
	}
	return b
}

func (b *Bundle) Module(name string) (*Module, bool) {
	m, ok := b.byName[name]
	return m, ok
}

// Names returns module names in sorted order so every pass over the bundle
// is deterministic regardless of discovery order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.byName))
	for name := range b.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
