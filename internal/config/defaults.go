package config

import "time"

// DefaultConfig carries the conventions of the standard clinical ontology
// bundle, so the engine runs with no config file at all. A config file only
// overrides what it sets.
func DefaultConfig() *Config {
	min0 := 0.0
	max1000 := 1000.0
	minHalfLife := 1.0
	maxHalfLife := 72.0
	gfapThreshold := 30.0
	uchl1Threshold := 360.0
	coreCDECount := 9
	supplementaryCDECount := 18

	cfg := &Config{
		BundleDir:  "./ontology",
		SchemaFile: "schema.json",
		Checks: Checks{
			InteropCodeSeverity: "warning",
			InteropFields:       defaultInteropFields(),
		},
		Output: Output{Format: "text"},
		Watch: Watch{
			Debounce:     500 * time.Millisecond,
			ExcludeDirs:  []string{".git"},
			ExcludeFiles: []string{"*.tmp", "*.swp", "*~"},
		},
		History: History{ProjectKey: "default"},
		Namespaces: []Namespace{
			{
				Name: "temporal_phase",
				Declares: []FieldRef{
					{Module: "temporal_phases", Path: "phases.*.id"},
				},
				// Term temporal_phase links are resolved by the terminology
				// checker, not listed here, so they are reported once.
				References: []FieldRef{
					{Module: "imaging_cdes", Path: "*_cdes.*.temporal_phases.*"},
				},
				CanonicalLists: []FieldRef{
					{Module: "temporal_phases", Path: "schema_contract.canonical_phase_ids"},
					{Module: "imaging_cdes", Path: "schema_contract.canonical_phase_ids"},
				},
			},
			{
				Name: "imaging_cde",
				Declares: []FieldRef{
					{Module: "imaging_cdes", Path: "*_cdes.*.id"},
				},
			},
			{
				Name: "biomarker",
				Declares: []FieldRef{
					{Module: "cbim_framework", Path: "channels.biomarker.variables.*.id"},
				},
				References: []FieldRef{
					{Module: "provenance", Path: "threshold_provenance.*.analyte"},
					{Module: "temporal_phases", Path: "biomarker_kinetics.*.analyte"},
				},
			},
			{
				Name: "term",
				Declares: []FieldRef{
					{Module: "clinical_entities", Path: "terms.*.id"},
				},
			},
		},
		// Biomarker variables are a list of {id, ct_threshold} entries, so
		// the cbim occurrences select entries by id and read ct_threshold.
		Constants: []Constant{
			{
				Concept:  "gfap_ct_threshold",
				Unit:     "pg/mL",
				Required: true,
				Expected: &gfapThreshold,
				Min:      &min0,
				Max:      &max1000,
				Occurrences: []Occurrence{
					{
						Module:     "cbim_framework",
						Path:       "channels.biomarker.variables.*",
						MatchField: "id",
						MatchValue: "gfap_pg_ml",
						ValueField: "ct_threshold",
					},
					{Module: "provenance", Path: "threshold_provenance.gfap_ct_threshold"},
					{Module: "temporal_phases", Path: "biomarker_kinetics.gfap.ct_decision_threshold"},
				},
			},
			{
				Concept:  "uchl1_ct_threshold",
				Unit:     "pg/mL",
				Required: true,
				Expected: &uchl1Threshold,
				Min:      &min0,
				Max:      &max1000,
				Occurrences: []Occurrence{
					{
						Module:     "cbim_framework",
						Path:       "channels.biomarker.variables.*",
						MatchField: "id",
						MatchValue: "uchl1_pg_ml",
						ValueField: "ct_threshold",
					},
					{Module: "provenance", Path: "threshold_provenance.uchl1_ct_threshold"},
					{Module: "temporal_phases", Path: "biomarker_kinetics.uchl1.ct_decision_threshold"},
				},
			},
			{
				Concept:       "gfap_half_life_hours",
				Unit:          "h",
				ExpectedRange: []float64{24, 36},
				Min:           &minHalfLife,
				Max:           &maxHalfLife,
				Occurrences: []Occurrence{
					{Module: "temporal_phases", Path: "phases.subacute.biomarker_clearance_kinetics.gfap.half_life_hours"},
					{Module: "provenance", Path: "kinetics_provenance.gfap_half_life"},
				},
			},
			{
				Concept:       "uchl1_half_life_hours",
				Unit:          "h",
				ExpectedRange: []float64{7, 9},
				Min:           &minHalfLife,
				Max:           &maxHalfLife,
				Occurrences: []Occurrence{
					{Module: "temporal_phases", Path: "phases.subacute.biomarker_clearance_kinetics.uchl1.half_life_hours"},
					{Module: "provenance", Path: "kinetics_provenance.uchl1_half_life"},
				},
			},
		},
		Contracts: []Contract{
			{
				Module:   "imaging_cdes",
				Path:     "core_cdes",
				Required: true,
				Count:    &coreCDECount,
			},
			{
				Module:         "imaging_cdes",
				Path:           "supplementary_cdes",
				Required:       true,
				Count:          &supplementaryCDECount,
				IDField:        "id",
				MustContain:    []string{"tapvi"},
				MustNotContain: []string{"tamvi"},
			},
			{
				Module:      "provenance",
				Path:        "threshold_provenance.gfap_ct_threshold.applies_to",
				Required:    true,
				MustContain: []string{"adult", "mild_tbi"},
			},
			{
				Module:      "provenance",
				Path:        "threshold_provenance.uchl1_ct_threshold.applies_to",
				Required:    true,
				MustContain: []string{"adult", "mild_tbi"},
			},
			{
				Module:     "{cbim_framework,clinical_entities,imaging_cdes,provenance,implementation_science}",
				Path:       "schema_contract.mapping_fields_optional",
				Required:   true,
				MustBeTrue: true,
			},
			{
				Module:      "imaging_cdes",
				Path:        "standards_mapping_hooks.default_mapping_template",
				Required:    true,
				MustContain: defaultInteropFields(),
			},
		},
		Terminology: Terminology{
			PhaseNamespace: "temporal_phase",
			Terms: []FieldRef{
				{Module: "clinical_entities", Path: "terms.*"},
			},
		},
	}
	return cfg
}

func defaultInteropFields() []string {
	return []string{"radlex_id", "dicom_sr_code", "fhir_observation_code", "omop_concept_id"}
}
