package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"ontolint/internal/app"
	"ontolint/internal/config"
	"ontolint/internal/core/errors"
	"ontolint/internal/data/history"
)

const bundleSchema = `{
  "temporal_phases": {
    "type": "object",
    "required": ["phases", "schema_contract"],
    "properties": {
      "phases": {"type": "object"},
      "schema_contract": {"type": "object"},
      "biomarker_kinetics": {"type": "object"}
    }
  },
  "imaging_cdes": {
    "type": "object",
    "required": ["core_cdes", "schema_contract"],
    "properties": {
      "core_cdes": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["id", "temporal_phases"],
          "properties": {
            "id": {"type": "string"},
            "temporal_phases": {"type": "array", "items": {"type": "string"}},
            "radlex_id": {"type": "string", "nullable": true}
          }
        }
      },
      "schema_contract": {"type": "object"}
    }
  },
  "cbim_framework": {
    "type": "object",
    "required": ["channels"]
  },
  "provenance": {
    "type": "object",
    "required": ["threshold_provenance"]
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
            "status": {"type": "string", "enum": ["active", "deprecated"]}
          }
        }
      }
    }
  }
}`

// cleanBundle builds a consistent standard bundle in memory. Tests mutate a
// copy before writing it to disk.
func cleanBundle() map[string]map[string]any {
	phaseIDs := []any{"acute_0_24h", "subacute_24h_7d"}
	return map[string]map[string]any{
		"temporal_phases": {
			"schema_contract": map[string]any{"canonical_phase_ids": phaseIDs},
			"phases": map[string]any{
				"acute": map[string]any{"id": "acute_0_24h"},
				"subacute": map[string]any{
					"id": "subacute_24h_7d",
					"biomarker_clearance_kinetics": map[string]any{
						"gfap":  map[string]any{"half_life_hours": []any{24, 36}},
						"uchl1": map[string]any{"half_life_hours": []any{7, 9}},
					},
				},
			},
			"biomarker_kinetics": map[string]any{
				"gfap": map[string]any{
					"analyte":               "gfap_pg_ml",
					"ct_decision_threshold": map[string]any{"value": 30, "unit": "pg/mL"},
				},
				"uchl1": map[string]any{
					"analyte":               "uchl1_pg_ml",
					"ct_decision_threshold": map[string]any{"value": 360, "unit": "pg/mL"},
				},
			},
		},
		"imaging_cdes": {
			"schema_contract": map[string]any{
				"canonical_phase_ids":     phaseIDs,
				"mapping_fields_optional": true,
			},
			"core_cdes": []any{
				map[string]any{"id": "midline_shift", "temporal_phases": []any{"acute_0_24h"}},
				map[string]any{"id": "epidural_hematoma", "temporal_phases": []any{"acute_0_24h", "subacute_24h_7d"}},
			},
			"supplementary_cdes": []any{
				map[string]any{"id": "tapvi", "temporal_phases": []any{"acute_0_24h"}},
			},
			"standards_mapping_hooks": map[string]any{
				"default_mapping_template": map[string]any{
					"radlex_id":             nil,
					"dicom_sr_code":         nil,
					"fhir_observation_code": nil,
					"omop_concept_id":       nil,
				},
			},
		},
		"cbim_framework": {
			"schema_contract": map[string]any{"mapping_fields_optional": true},
			"channels": map[string]any{
				"biomarker": map[string]any{
					"variables": []any{
						map[string]any{"id": "gfap_pg_ml", "ct_threshold": 30},
						map[string]any{"id": "uchl1_pg_ml", "ct_threshold": 360},
					},
				},
			},
		},
		"provenance": {
			"schema_contract": map[string]any{"mapping_fields_optional": true},
			"threshold_provenance": map[string]any{
				"gfap_ct_threshold": map[string]any{
					"value": 30, "unit": "pg/mL", "analyte": "gfap_pg_ml",
					"applies_to":  []any{"adult", "mild_tbi"},
					"valid_range": map[string]any{"min": 0, "max": 1000},
				},
				"uchl1_ct_threshold": map[string]any{
					"value": 360, "unit": "pg/mL", "analyte": "uchl1_pg_ml",
					"applies_to": []any{"adult", "mild_tbi"},
				},
			},
			"kinetics_provenance": map[string]any{
				"gfap_half_life":  map[string]any{"value": []any{24, 36}, "unit": "h"},
				"uchl1_half_life": map[string]any{"value": []any{7, 9}, "unit": "h"},
			},
		},
		"clinical_entities": {
			"schema_contract": map[string]any{"mapping_fields_optional": true},
			"terms": []any{
				map[string]any{
					"id": "tapvi", "status": "active", "kind": "clinical_finding",
					"confidence": "high", "location": "perivascular", "temporal_phase": "acute_0_24h",
				},
				map[string]any{"id": "tamvi", "status": "deprecated", "replaced_by": "tapvi"},
				map[string]any{"id": "gcs_score", "status": "active"},
			},
		},
	}
}

func writeBundle(t *testing.T, modules map[string]map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(bundleSchema), 0644))
	for name, content := range modules {
		data, err := yaml.Marshal(content)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644))
	}
	return dir
}

// testConfig sizes the default CDE inventory contracts down to the compact
// fixture bundle; every other default convention applies unchanged.
func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BundleDir = dir
	for i := range cfg.Contracts {
		switch cfg.Contracts[i].Path {
		case "core_cdes":
			n := 2
			cfg.Contracts[i].Count = &n
		case "supplementary_cdes":
			n := 1
			cfg.Contracts[i].Count = &n
		}
	}
	return cfg
}

func newEngine(t *testing.T, dir string) *app.App {
	t.Helper()
	engine, err := app.New(testConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestCleanBundlePasses(t *testing.T) {
	engine := newEngine(t, writeBundle(t, cleanBundle()))

	rep, err := engine.Run()
	require.NoError(t, err)
	assert.True(t, rep.Passed(), "report:\n%s", rep.Text())
	assert.Zero(t, rep.Summary.Errors)
}

func TestReportIsByteIdentical(t *testing.T) {
	modules := cleanBundle()
	// Break two things so the report is non-trivial.
	modules["imaging_cdes"]["core_cdes"].([]any)[0].(map[string]any)["temporal_phases"] = []any{"chronic_3mo"}
	delete(modules["clinical_entities"]["terms"].([]any)[1].(map[string]any), "replaced_by")

	engine := newEngine(t, writeBundle(t, modules))

	first, err := engine.Run()
	require.NoError(t, err)
	second, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, first.Passed())
	assert.Equal(t, first.Text(), second.Text(), "reports over unchanged input must be byte-identical")
}

func TestUnresolvedReferenceFails(t *testing.T) {
	modules := cleanBundle()
	modules["imaging_cdes"]["core_cdes"].([]any)[0].(map[string]any)["temporal_phases"] = []any{"chronic_3mo"}

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	assert.Contains(t, rep.Text(), "unresolved reference \"chronic_3mo\"")
}

func TestMissingRequiredSchemaField(t *testing.T) {
	modules := cleanBundle()
	delete(modules["clinical_entities"], "terms")

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	schemaErrors := 0
	for _, f := range rep.Findings {
		if f.Checker == "schema" && f.Severity == "error" {
			schemaErrors++
			assert.Equal(t, "clinical_entities", f.Location.Module)
		}
	}
	assert.Equal(t, 1, schemaErrors, "expected exactly one schema error:\n%s", rep.Text())
}

func TestInconsistentConstantEnumeratesLocations(t *testing.T) {
	modules := cleanBundle()
	modules["provenance"]["threshold_provenance"].(map[string]any)["gfap_ct_threshold"].(map[string]any)["value"] = 25

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	text := rep.Text()
	assert.Contains(t, text, "inconsistent constant \"gfap_ct_threshold\"")
	assert.Contains(t, text, "cbim_framework:")
	assert.Contains(t, text, "provenance:")
}

func TestDriftedListEntryThresholdFails(t *testing.T) {
	modules := cleanBundle()
	variables := modules["cbim_framework"]["channels"].(map[string]any)["biomarker"].(map[string]any)["variables"].([]any)
	variables[0].(map[string]any)["ct_threshold"] = 25

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed(), "a drifted threshold inside the variable list must fail:\n%s", rep.Text())
	text := rep.Text()
	assert.Contains(t, text, "inconsistent constant \"gfap_ct_threshold\"")
	assert.Contains(t, text, "25 != expected 30")
}

func TestHalfLifeRangeDriftFails(t *testing.T) {
	modules := cleanBundle()
	kinetics := modules["temporal_phases"]["phases"].(map[string]any)["subacute"].(map[string]any)["biomarker_clearance_kinetics"].(map[string]any)
	kinetics["gfap"].(map[string]any)["half_life_hours"] = []any{24, 48}

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	assert.Contains(t, rep.Text(), "[24 48] != expected [24 36]")
}

func TestContractViolationsFail(t *testing.T) {
	modules := cleanBundle()
	prov := modules["provenance"]["threshold_provenance"].(map[string]any)
	prov["gfap_ct_threshold"].(map[string]any)["applies_to"] = []any{"adult"}
	supplementary := modules["imaging_cdes"]["supplementary_cdes"].([]any)
	supplementary[0].(map[string]any)["id"] = "tamvi"

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	text := rep.Text()
	assert.Contains(t, text, "missing required members [mild_tbi]")
	assert.Contains(t, text, "missing required members [tapvi]")
	assert.Contains(t, text, "contains forbidden member \"tamvi\"")
}

func TestDeprecationChainIsWarningNotFailure(t *testing.T) {
	modules := cleanBundle()
	terms := modules["clinical_entities"]["terms"].([]any)
	terms[0].(map[string]any)["status"] = "deprecated"
	terms[0].(map[string]any)["replaced_by"] = "gcs_score"

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)

	assert.True(t, rep.Passed(), "chains are debt, not failures:\n%s", rep.Text())
	assert.Contains(t, rep.Text(), "deprecation chain")
	assert.Equal(t, 1, rep.Summary.Warnings)
}

func TestMalformedModuleAbortsRun(t *testing.T) {
	dir := writeBundle(t, cleanBundle())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "provenance.yaml"), []byte("threshold_provenance: [unclosed\n"), 0644))

	engine := newEngine(t, dir)
	_, err := engine.Run()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseError))
	assert.Contains(t, err.Error(), "provenance")
}

func TestRunRecordsHistorySnapshot(t *testing.T) {
	dir := writeBundle(t, cleanBundle())
	historyDB := filepath.Join(t.TempDir(), "runs.db")

	cfg := testConfig(dir)
	cfg.History.Path = historyDB
	cfg.History.ProjectKey = "tbi"

	engine, err := app.New(cfg)
	require.NoError(t, err)
	rep, err := engine.Run()
	require.NoError(t, err)
	require.True(t, rep.Passed())
	require.NoError(t, engine.Close())

	store, err := history.Open(historyDB)
	require.NoError(t, err)
	defer store.Close()

	snapshots, err := store.LoadSnapshots("tbi", time.Time{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 5, snapshots[0].ModuleCount)
	assert.Equal(t, "pass", string(snapshots[0].Outcome))
	assert.NotEmpty(t, snapshots[0].RunID)
}

func TestSARIFExportForFailingBundle(t *testing.T) {
	modules := cleanBundle()
	modules["imaging_cdes"]["core_cdes"].([]any)[0].(map[string]any)["temporal_phases"] = []any{"chronic_3mo"}

	engine := newEngine(t, writeBundle(t, modules))
	rep, err := engine.Run()
	require.NoError(t, err)
	require.False(t, rep.Passed())

	data, err := rep.SARIF()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2.1.0", doc["version"])
	runs := doc["runs"].([]any)
	results := runs[0].(map[string]any)["results"].([]any)
	assert.NotEmpty(t, results)
}
