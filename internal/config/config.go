package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"ontolint/internal/core/ports"
)

type Config struct {
	BundleDir  string            `toml:"bundle_dir"`
	SchemaFile string            `toml:"schema_file"`
	Modules    map[string]string `toml:"modules"`

	Checks  Checks  `toml:"checks"`
	Output  Output  `toml:"output"`
	Watch   Watch   `toml:"watch"`
	History History `toml:"history"`

	Namespaces  []Namespace `toml:"namespaces"`
	Constants   []Constant  `toml:"constants"`
	Contracts   []Contract  `toml:"contracts"`
	Terminology Terminology `toml:"terminology"`
}

type Checks struct {
	// Severity for present-but-malformed external standard codes. The
	// bundle treats mapping fields as optional hooks, so the default is
	// warning rather than error.
	InteropCodeSeverity string   `toml:"interop_code_severity"`
	InteropFields       []string `toml:"interop_fields"`
}

type Output struct {
	Format string `toml:"format"` // text or sarif
	SARIF  string `toml:"sarif"`  // optional file path for a SARIF copy
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	ExcludeDirs  []string      `toml:"exclude_dirs"`
	ExcludeFiles []string      `toml:"exclude_files"`
}

type History struct {
	Path       string `toml:"path"`
	ProjectKey string `toml:"project_key"`
}

type FieldRef struct {
	Module string `toml:"module"`
	Path   string `toml:"path"`
}

type Namespace struct {
	Name           string     `toml:"name"`
	Declares       []FieldRef `toml:"declares"`
	References     []FieldRef `toml:"references"`
	CanonicalLists []FieldRef `toml:"canonical_lists"`
}

// Occurrence locates one restatement of a constant. match_field/match_value
// narrow list entries to the one carrying the concept; value_field names the
// field read from the matched entry.
type Occurrence struct {
	Module     string `toml:"module"`
	Path       string `toml:"path"`
	MatchField string `toml:"match_field"`
	MatchValue string `toml:"match_value"`
	ValueField string `toml:"value_field"`
}

type Constant struct {
	Concept       string       `toml:"concept"`
	Unit          string       `toml:"unit"`
	Required      bool         `toml:"required"`
	Expected      *float64     `toml:"expected"`
	ExpectedRange []float64    `toml:"expected_range"`
	Min           *float64     `toml:"min"`
	Max           *float64     `toml:"max"`
	MinExclusive  bool         `toml:"min_exclusive"`
	MaxExclusive  bool         `toml:"max_exclusive"`
	Occurrences   []Occurrence `toml:"occurrences"`
}

// Contract asserts content expectations on fields matched by a (module glob,
// path glob) pair: exact entry counts, required or forbidden members, or a
// boolean that must be true.
type Contract struct {
	Module         string   `toml:"module"`
	Path           string   `toml:"path"`
	Required       bool     `toml:"required"`
	Count          *int     `toml:"count"`
	IDField        string   `toml:"id_field"`
	MustContain    []string `toml:"must_contain"`
	MustNotContain []string `toml:"must_not_contain"`
	MustBeTrue     bool     `toml:"must_be_true"`
}

type Terminology struct {
	PhaseNamespace string     `toml:"phase_namespace"`
	Terms          []FieldRef `toml:"terms"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Checks.InteropCodeSeverity {
	case "", string(ports.SeverityError), string(ports.SeverityWarning):
	default:
		return fmt.Errorf("checks.interop_code_severity must be %q or %q, got %q",
			ports.SeverityError, ports.SeverityWarning, c.Checks.InteropCodeSeverity)
	}

	switch c.Output.Format {
	case "", "text", "sarif":
	default:
		return fmt.Errorf("output.format must be \"text\" or \"sarif\", got %q", c.Output.Format)
	}

	for _, ns := range c.Namespaces {
		if ns.Name == "" {
			return fmt.Errorf("namespace entry missing name")
		}
	}
	for _, constant := range c.Constants {
		if constant.Concept == "" {
			return fmt.Errorf("constant entry missing concept")
		}
		if constant.Min != nil && constant.Max != nil && *constant.Min > *constant.Max {
			return fmt.Errorf("constant %q has min > max", constant.Concept)
		}
		if constant.Expected != nil && len(constant.ExpectedRange) > 0 {
			return fmt.Errorf("constant %q sets both expected and expected_range", constant.Concept)
		}
		if n := len(constant.ExpectedRange); n != 0 && n != 2 {
			return fmt.Errorf("constant %q expected_range must have exactly 2 bounds, got %d", constant.Concept, n)
		}
		if len(constant.ExpectedRange) == 2 && constant.ExpectedRange[0] > constant.ExpectedRange[1] {
			return fmt.Errorf("constant %q expected_range low > high", constant.Concept)
		}
		for _, occ := range constant.Occurrences {
			if occ.MatchField == "" {
				continue
			}
			if occ.MatchValue == "" || occ.ValueField == "" {
				return fmt.Errorf("constant %q occurrence with match_field needs match_value and value_field", constant.Concept)
			}
		}
	}
	for _, contract := range c.Contracts {
		if contract.Path == "" {
			return fmt.Errorf("contract entry missing path")
		}
		if contract.Count != nil && *contract.Count < 0 {
			return fmt.Errorf("contract on %q has negative count", contract.Path)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.BundleDir == "" {
		cfg.BundleDir = "./ontology"
	}
	if cfg.SchemaFile == "" {
		cfg.SchemaFile = "schema.json"
	}
	if cfg.Checks.InteropCodeSeverity == "" {
		cfg.Checks.InteropCodeSeverity = string(ports.SeverityWarning)
	}
	if len(cfg.Checks.InteropFields) == 0 {
		cfg.Checks.InteropFields = defaultInteropFields()
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.History.ProjectKey == "" {
		cfg.History.ProjectKey = "default"
	}
	if cfg.Terminology.PhaseNamespace == "" {
		cfg.Terminology.PhaseNamespace = "temporal_phase"
	}
}

// InteropSeverity reports the configured severity for malformed external
// standard codes.
func (c *Config) InteropSeverity() ports.Severity {
	if c.Checks.InteropCodeSeverity == string(ports.SeverityError) {
		return ports.SeverityError
	}
	return ports.SeverityWarning
}

func (c *Config) NamespaceRules() []ports.NamespaceRule {
	out := make([]ports.NamespaceRule, 0, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		out = append(out, ports.NamespaceRule{
			Name:           ns.Name,
			Declares:       toPortRefs(ns.Declares),
			References:     toPortRefs(ns.References),
			CanonicalLists: toPortRefs(ns.CanonicalLists),
		})
	}
	return out
}

func (c *Config) ConstantRules() []ports.ConstantRule {
	out := make([]ports.ConstantRule, 0, len(c.Constants))
	for _, constant := range c.Constants {
		rule := ports.ConstantRule{
			Concept:       constant.Concept,
			Unit:          constant.Unit,
			Required:      constant.Required,
			Expected:      constant.Expected,
			ExpectedRange: constant.ExpectedRange,
		}
		for _, occ := range constant.Occurrences {
			rule.Occurrences = append(rule.Occurrences, ports.OccurrenceRef{
				FieldRef:   ports.FieldRef{Module: occ.Module, Path: occ.Path},
				MatchField: occ.MatchField,
				MatchValue: occ.MatchValue,
				ValueField: occ.ValueField,
			})
		}
		if constant.Min != nil || constant.Max != nil {
			rule.Range = &ports.RangeRule{
				Min:          constant.Min,
				Max:          constant.Max,
				MinExclusive: constant.MinExclusive,
				MaxExclusive: constant.MaxExclusive,
			}
		}
		out = append(out, rule)
	}
	return out
}

func (c *Config) ContractRules() []ports.ContractRule {
	out := make([]ports.ContractRule, 0, len(c.Contracts))
	for _, contract := range c.Contracts {
		out = append(out, ports.ContractRule{
			Target:         ports.FieldRef{Module: contract.Module, Path: contract.Path},
			Required:       contract.Required,
			Count:          contract.Count,
			IDField:        contract.IDField,
			MustContain:    contract.MustContain,
			MustNotContain: contract.MustNotContain,
			MustBeTrue:     contract.MustBeTrue,
		})
	}
	return out
}

func (c *Config) TerminologyRule() ports.TerminologyRule {
	return ports.TerminologyRule{
		PhaseNamespace: c.Terminology.PhaseNamespace,
		Terms:          toPortRefs(c.Terminology.Terms),
	}
}

func toPortRefs(refs []FieldRef) []ports.FieldRef {
	out := make([]ports.FieldRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ports.FieldRef{Module: ref.Module, Path: ref.Path})
	}
	return out
}
