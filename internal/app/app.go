package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ontolint/internal/bundle"
	"ontolint/internal/config"
	"ontolint/internal/data/history"
	"ontolint/internal/engine/constants"
	"ontolint/internal/engine/contract"
	"ontolint/internal/engine/schema"
	"ontolint/internal/engine/terminology"
	"ontolint/internal/engine/xref"
	"ontolint/internal/report"
	"ontolint/internal/watcher"
)

// App wires the validation pipeline: load -> schema -> xref -> constants ->
// terminology -> contract -> aggregate. One App serves any number of runs
// over the same configuration; every run reloads the bundle and schema from
// disk.
type App struct {
	cfg       *config.Config
	resolver  *xref.Resolver
	constants *constants.Checker
	terms     *terminology.Checker
	contracts *contract.Checker
	history   *history.Store
}

func New(cfg *config.Config) (*App, error) {
	resolver, err := xref.New(cfg.NamespaceRules())
	if err != nil {
		return nil, err
	}
	constantsChecker, err := constants.New(cfg.ConstantRules())
	if err != nil {
		return nil, err
	}
	termsChecker, err := terminology.New(cfg.TerminologyRule())
	if err != nil {
		return nil, err
	}
	contractChecker, err := contract.New(cfg.ContractRules())
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		resolver:  resolver,
		constants: constantsChecker,
		terms:     termsChecker,
		contracts: contractChecker,
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		a.history = store
	}

	return a, nil
}

func (a *App) Close() error {
	return a.history.Close()
}

// Run executes one full validation pass. A load-stage failure (unparseable
// module, unreadable schema document) aborts with an error and no report;
// semantic findings never abort, every checker runs to completion.
func (a *App) Run() (report.Report, error) {
	doc, err := schema.LoadFile(filepath.Join(a.cfg.BundleDir, a.cfg.SchemaFile))
	if err != nil {
		return report.Report{}, err
	}

	b, err := bundle.Load(a.cfg.BundleDir, a.cfg.Modules)
	if err != nil {
		return report.Report{}, err
	}

	schemaChecker := schema.NewChecker(doc, a.cfg.InteropSeverity(), a.cfg.Checks.InteropFields)
	schemaFindings := schemaChecker.Check(b)

	idx := a.resolver.BuildIndex(b)
	xrefFindings := a.resolver.Check(b, idx)
	constantFindings := a.constants.Check(b)
	terminologyFindings := a.terms.Check(b, idx)
	contractFindings := a.contracts.Check(b)

	rep := report.Build(len(b.Modules), schemaFindings, xrefFindings, constantFindings, terminologyFindings, contractFindings)
	a.record(rep)
	return rep, nil
}

func (a *App) record(rep report.Report) {
	runID := uuid.NewString()
	slog.Info("validation run complete",
		"run_id", runID,
		"modules", rep.Summary.Modules,
		"errors", rep.Summary.Errors,
		"warnings", rep.Summary.Warnings,
		"outcome", rep.Summary.Outcome,
	)

	if a.history == nil {
		return
	}
	snapshot := rep.Snapshot(runID, a.cfg.History.ProjectKey, time.Now().UTC())
	if err := a.history.SaveSnapshot(snapshot); err != nil {
		slog.Warn("failed to persist run snapshot", "run_id", runID, "error", err)
	}
}

// Watch revalidates the bundle on every debounced change batch. The initial
// run is the caller's; this only drives subsequent ones.
func (a *App) Watch(onRun func(report.Report, error)) (*watcher.Watcher, error) {
	w, err := watcher.NewWatcher(
		a.cfg.Watch.Debounce,
		a.cfg.Watch.ExcludeDirs,
		a.cfg.Watch.ExcludeFiles,
		func(paths []string) {
			slog.Debug("bundle changed, revalidating", "paths", paths)
			onRun(a.Run())
		},
	)
	if err != nil {
		return nil, err
	}
	if err := w.Watch([]string{a.cfg.BundleDir}); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}
