package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ontolint/internal/core/ports"
)

// Report is the aggregated outcome of one validation run. Findings keep
// their per-checker emission order, checkers in engine order, so the same
// bundle always renders byte-identical.
type Report struct {
	Findings []ports.Finding
	Summary  Summary
}

type Summary struct {
	Modules  int
	Errors   int
	Warnings int
	Outcome  ports.Outcome
}

// Build merges checker findings in the order the groups are passed. The
// engine passes them in pipeline order: schema, xref, constants,
// terminology, contract.
func Build(moduleCount int, groups ...[]ports.Finding) Report {
	var findings []ports.Finding
	for _, group := range groups {
		findings = append(findings, group...)
	}

	summary := Summary{Modules: moduleCount, Outcome: ports.OutcomePass}
	for _, f := range findings {
		switch f.Severity {
		case ports.SeverityError:
			summary.Errors++
		case ports.SeverityWarning:
			summary.Warnings++
		}
	}
	if summary.Errors > 0 {
		summary.Outcome = ports.OutcomeFail
	}

	return Report{Findings: findings, Summary: summary}
}

func (r Report) Passed() bool {
	return r.Summary.Outcome == ports.OutcomePass
}

// Snapshot projects the report into a run-history row. Timestamps and run
// IDs live here, never in the rendered report, which must stay idempotent.
func (r Report) Snapshot(runID, projectKey string, ts time.Time) ports.RunSnapshot {
	return ports.RunSnapshot{
		RunID:       runID,
		ProjectKey:  projectKey,
		Timestamp:   ts,
		ModuleCount: r.Summary.Modules,
		Errors:      r.Summary.Errors,
		Warnings:    r.Summary.Warnings,
		Outcome:     r.Summary.Outcome,
	}
}

// Render writes the human-readable report: one line per finding, then the
// summary line. No timestamps or run IDs, so repeated runs over unchanged
// input are byte-identical.
func (r Report) Render(w io.Writer) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintln(w, formatFinding(f)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, r.summaryLine())
	return err
}

func (r Report) Text() string {
	var b strings.Builder
	_ = r.Render(&b)
	return b.String()
}

func formatFinding(f ports.Finding) string {
	tag := strings.ToUpper(string(f.Severity))
	location := f.Location.Module
	if location == "" {
		location = "bundle"
	}
	if f.Location.FieldPath != "" {
		location += " at " + f.Location.FieldPath
	}
	return fmt.Sprintf("[%s] %s: %s: %s", tag, f.Checker, location, f.Message)
}

func (r Report) summaryLine() string {
	return fmt.Sprintf("ontolint: %d modules, %d errors, %d warnings: %s",
		r.Summary.Modules, r.Summary.Errors, r.Summary.Warnings, r.Summary.Outcome)
}
