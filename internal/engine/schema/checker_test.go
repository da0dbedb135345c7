package schema

import (
	"strings"
	"testing"

	"ontolint/internal/bundle"
	"ontolint/internal/core/ports"
)

const testSchema = `{
  "temporal_phases": {
    "type": "object",
    "required": ["phases"],
    "properties": {
      "phases": {"type": "object"}
    }
  },
  "clinical_entities": {
    "type": "object",
    "required": ["terms"],
    "properties": {
      "terms": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["id", "status"],
          "properties": {
            "id": {"type": "string"},
            "status": {"type": "string", "enum": ["active", "deprecated"]},
            "radlex_id": {"type": "string", "nullable": true}
          }
        }
      }
    }
  }
}`

func newChecker(t *testing.T) *Checker {
	t.Helper()
	doc, err := Parse([]byte(testSchema))
	if err != nil {
		t.Fatal(err)
	}
	return NewChecker(doc, ports.SeverityWarning, []string{"radlex_id", "dicom_sr_code"})
}

func singleModule(name string, content map[string]any) *bundle.Bundle {
	return bundle.New("", []*bundle.Module{{Name: name, Content: content}})
}

func TestCheckValidModule(t *testing.T) {
	b := singleModule("temporal_phases", map[string]any{
		"phases": map[string]any{"acute": map[string]any{"id": "acute_0_24h"}},
	})

	findings := newChecker(t).Check(b)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestCheckMissingRequiredField(t *testing.T) {
	b := singleModule("temporal_phases", map[string]any{"other": "x"})

	findings := newChecker(t).Check(b)
	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d: %v", len(findings), findings)
	}
	f := findings[0]
	if f.Severity != ports.SeverityError || f.Checker != ports.CheckerSchema {
		t.Errorf("unexpected finding classification: %+v", f)
	}
	if f.Location.Module != "temporal_phases" {
		t.Errorf("unexpected module: %s", f.Location.Module)
	}
	if !strings.Contains(f.Location.FieldPath, "phases") && !strings.Contains(f.Message, "phases") {
		t.Errorf("finding does not name the missing field: %+v", f)
	}
}

func TestCheckEnumViolation(t *testing.T) {
	b := singleModule("clinical_entities", map[string]any{
		"terms": []any{
			map[string]any{"id": "tapvi", "status": "retired"},
		},
	})

	findings := newChecker(t).Check(b)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Severity != ports.SeverityError {
		t.Errorf("enum violation should be an error: %+v", findings[0])
	}
	if !strings.Contains(findings[0].Location.FieldPath, "status") {
		t.Errorf("finding should locate the status field: %+v", findings[0])
	}
}

func TestCheckInteropFieldDowngraded(t *testing.T) {
	b := singleModule("clinical_entities", map[string]any{
		"terms": []any{
			map[string]any{"id": "tapvi", "status": "active", "radlex_id": 1234.0},
		},
	})

	findings := newChecker(t).Check(b)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Severity != ports.SeverityWarning {
		t.Errorf("malformed interop code should use configured severity: %+v", findings[0])
	}
}

func TestCheckInteropFieldAbsentIsFine(t *testing.T) {
	b := singleModule("clinical_entities", map[string]any{
		"terms": []any{
			map[string]any{"id": "tapvi", "status": "active"},
		},
	})

	if findings := newChecker(t).Check(b); len(findings) != 0 {
		t.Errorf("optional interop field absence must not produce findings: %v", findings)
	}
}

func TestCheckModuleWithoutSchemaEntry(t *testing.T) {
	b := singleModule("methodology_extraction", map[string]any{"a": 1.0})

	findings := newChecker(t).Check(b)
	if len(findings) != 1 || findings[0].Severity != ports.SeverityWarning {
		t.Fatalf("expected one warning for missing schema entry, got %v", findings)
	}
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("expected parse error")
	}
}
