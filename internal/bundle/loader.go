package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"ontolint/internal/core/errors"
)

// Load reads every knowledge module in dir and parses it into an immutable
// Bundle. Loading is all-or-nothing: the first unreadable or unparseable
// module aborts the run with a PARSE_ERROR naming the offending file, so
// semantic checks only ever see a fully parseable bundle.
//
// When pinned is non-empty it fixes the expected module set (name ->
// filename); otherwise every *.yaml/*.yml file in dir becomes a module named
// by its file stem.
func Load(dir string, pinned map[string]string) (*Bundle, error) {
	files, err := discover(dir, pinned)
	if err != nil {
		return nil, err
	}

	modules := make([]*Module, 0, len(files))
	for _, f := range files {
		mod, err := loadModule(f.name, f.path)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}

	return New(dir, modules), nil
}

type moduleFile struct {
	name string
	path string
}

func discover(dir string, pinned map[string]string) ([]moduleFile, error) {
	if len(pinned) > 0 {
		names := make([]string, 0, len(pinned))
		for name := range pinned {
			names = append(names, name)
		}
		sort.Strings(names)

		files := make([]moduleFile, 0, len(names))
		for _, name := range names {
			path := filepath.Join(dir, pinned[name])
			if _, err := os.Stat(path); err != nil {
				return nil, errors.AddContext(
					errors.Wrap(err, errors.CodeNotFound, fmt.Sprintf("required module %q missing", name)),
					errors.CtxPath, path)
			}
			files = append(files, moduleFile{name: name, path: path})
		}
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotFound, fmt.Sprintf("read bundle directory %q", dir))
	}

	files := make([]moduleFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		files = append(files, moduleFile{name: name, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	if len(files) == 0 {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("no knowledge modules found in %q", dir))
	}
	return files, nil
}

func loadModule(name, path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeParseError, fmt.Sprintf("read module %q", name)),
			errors.CtxPath, path)
	}
	if !utf8.Valid(data) {
		return nil, errors.AddContext(
			errors.New(errors.CodeParseError, fmt.Sprintf("module %q is not valid UTF-8", name)),
			errors.CtxPath, path)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// yaml.v3 reports duplicate mapping keys as a decode error.
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeParseError, fmt.Sprintf("parse module %q", name)),
			errors.CtxPath, path)
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeParseError, fmt.Sprintf("parse module %q", name)),
			errors.CtxPath, path)
	}

	content, ok := normalized.(map[string]any)
	if !ok {
		return nil, errors.AddContext(
			errors.New(errors.CodeParseError, fmt.Sprintf("module %q top level must be a mapping", name)),
			errors.CtxPath, path)
	}

	return &Module{Name: name, Path: path, Content: content}, nil
}

// normalize converts a decoded YAML tree to the JSON data model: string
// keys, float64 numbers, []any lists. Checkers and the schema validator
// only ever see normalized trees.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			norm, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string mapping key %v", k)
			}
			norm, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[key] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			norm, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return val, nil
	}
}
