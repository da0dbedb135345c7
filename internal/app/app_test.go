package app

import (
	"os"
	"path/filepath"
	"testing"

	"ontolint/internal/config"
	"ontolint/internal/core/errors"
)

func minimalConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BundleDir = dir
	cfg.Namespaces = []config.Namespace{
		{
			Name:     "temporal_phase",
			Declares: []config.FieldRef{{Module: "temporal_phases", Path: "phases.*.id"}},
		},
	}
	cfg.Constants = nil
	cfg.Terminology = config.Terminology{
		PhaseNamespace: "temporal_phase",
		Terms:          []config.FieldRef{{Module: "clinical_entities", Path: "terms.*"}},
	}
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunCleanBundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "schema.json", `{"temporal_phases": {"type": "object", "required": ["phases"]}}`)
	writeFile(t, dir, "temporal_phases.yaml", "phases:\n  acute:\n    id: acute_0_24h\n")

	engine, err := New(minimalConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	rep, err := engine.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !rep.Passed() || rep.Summary.Errors != 0 {
		t.Errorf("expected pass, got %+v\n%s", rep.Summary, rep.Text())
	}
}

func TestRunAbortsOnParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "schema.json", `{}`)
	writeFile(t, dir, "temporal_phases.yaml", "phases: [unclosed\n")

	engine, err := New(minimalConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	if _, err := engine.Run(); !errors.IsCode(err, errors.CodeParseError) {
		t.Fatalf("expected PARSE_ERROR, got %v", err)
	}
}

func TestRunAbortsWithoutSchemaDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "temporal_phases.yaml", "phases: {}\n")

	engine, err := New(minimalConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	if _, err := engine.Run(); !errors.IsCode(err, errors.CodeSchemaUnavailable) {
		t.Fatalf("expected SCHEMA_UNAVAILABLE, got %v", err)
	}
}

func TestNewRejectsBadSelector(t *testing.T) {
	cfg := minimalConfig(t.TempDir())
	cfg.Namespaces = []config.Namespace{
		{
			Name:     "broken",
			Declares: []config.FieldRef{{Module: "x", Path: "[bad"}},
		},
	}

	if _, err := New(cfg); !errors.IsCode(err, errors.CodeConfigInvalid) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}
