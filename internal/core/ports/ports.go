package ports

import "time"

// Severity classifies a finding. Only errors fail a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Outcome is the overall result of a validation run.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Checker names, in report order.
const (
	CheckerSchema      = "schema"
	CheckerXRef        = "xref"
	CheckerConstants   = "constants"
	CheckerTerminology = "terminology"
	CheckerContract    = "contract"
)

// Location identifies where in the bundle a finding was detected.
type Location struct {
	Module    string
	FieldPath string
}

// Finding is one detected consistency violation. Created by exactly one
// checker, immutable afterwards.
type Finding struct {
	Severity Severity
	Checker  string
	Location Location
	Message  string
}

// FieldRef selects fields across the bundle: a module-name glob paired with
// a dotted field-path glob ('.' separated, list indices as numbers).
type FieldRef struct {
	Module string
	Path   string
}

// NamespaceRule declares one identifier namespace: where identifiers are
// defined and where they are used.
type NamespaceRule struct {
	Name           string
	Declares       []FieldRef
	References     []FieldRef
	CanonicalLists []FieldRef
}

// RangeRule is a numeric valid range. Bounds are inclusive unless marked
// exclusive; nil bounds are open.
type RangeRule struct {
	Min          *float64
	Max          *float64
	MinExclusive bool
	MaxExclusive bool
}

// OccurrenceRef locates one restatement of a constant. When MatchField is
// set the path selects candidate entries (typically list elements); only the
// entry whose MatchField equals MatchValue counts, and the constant value is
// read from its ValueField.
type OccurrenceRef struct {
	FieldRef
	MatchField string
	MatchValue string
	ValueField string
}

// ConstantRule names a canonical constant and where it is restated. Expected
// pins a single canonical value; ExpectedRange pins a canonical [low, high]
// interval. At most one of the two is set.
type ConstantRule struct {
	Concept       string
	Unit          string
	Required      bool
	Expected      *float64
	ExpectedRange []float64
	Range         *RangeRule
	Occurrences   []OccurrenceRef
}

// ContractRule asserts content expectations on matched fields: entry counts,
// required and forbidden members, or a boolean that must be true. Required
// means every loaded module matching the target's module glob must contain
// at least one matching field.
type ContractRule struct {
	Target         FieldRef
	Required       bool
	Count          *int
	IDField        string
	MustContain    []string
	MustNotContain []string
	MustBeTrue     bool
}

// TerminologyRule locates controlled-vocabulary term records and names the
// namespace their temporal-phase links must resolve in.
type TerminologyRule struct {
	PhaseNamespace string
	Terms          []FieldRef
}

// RunSnapshot summarizes one completed validation run for persistence.
type RunSnapshot struct {
	RunID       string
	ProjectKey  string
	Timestamp   time.Time
	ModuleCount int
	Errors      int
	Warnings    int
	Outcome     Outcome
}

// HistoryStore abstracts run-snapshot persistence.
type HistoryStore interface {
	SaveSnapshot(snapshot RunSnapshot) error
	LoadSnapshots(projectKey string, since time.Time) ([]RunSnapshot, error)
}
