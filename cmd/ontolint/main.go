package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"ontolint/internal/app"
	"ontolint/internal/config"
	"ontolint/internal/report"
)

var (
	configPath  = flag.String("config", "./ontolint.toml", "Path to config file")
	format      = flag.String("format", "", "Report format: text or sarif (overrides config)")
	watch       = flag.Bool("watch", false, "Revalidate on bundle changes")
	historyPath = flag.String("history", "", "SQLite run-history path (overrides config)")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

const (
	exitPass       = 0
	exitFail       = 1
	exitFatalError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *version {
		fmt.Printf("ontolint v%s\n", VERSION)
		return exitPass
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		return exitFatalError
	}

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "usage: ontolint [flags] [bundle-dir]")
		return exitFatalError
	}
	if flag.NArg() == 1 {
		cfg.BundleDir = flag.Arg(0)
	}
	if *format != "" {
		cfg.Output.Format = *format
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid flags", "error", err)
			return exitFatalError
		}
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}

	engine, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize engine", "error", err)
		return exitFatalError
	}
	defer engine.Close()

	rep, err := engine.Run()
	if err != nil {
		// Load-stage failures are fatal: one parse error, no report,
		// no semantic checks.
		fmt.Fprintln(os.Stderr, err.Error())
		return exitFatalError
	}

	if err := printReport(cfg, rep); err != nil {
		slog.Error("failed to write report", "error", err)
		return exitFatalError
	}

	code := exitPass
	if !rep.Passed() {
		code = exitFail
	}

	if !*watch {
		return code
	}

	w, err := engine.Watch(func(rep report.Report, err error) {
		if err != nil {
			slog.Error("revalidation aborted", "error", err)
			return
		}
		if err := printReport(cfg, rep); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	})
	if err != nil {
		slog.Error("failed to start watcher", "error", err)
		return exitFatalError
	}
	defer w.Close()

	slog.Info("watching bundle for changes", "dir", cfg.BundleDir)
	select {}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) && *configPath == "./ontolint.toml" {
		if cfg, exErr := config.Load("./ontolint.example.toml"); exErr == nil {
			return cfg, nil
		}
		// Running with no config file at all is supported: the defaults
		// carry the standard bundle conventions.
		return config.DefaultConfig(), nil
	}
	return nil, err
}

func printReport(cfg *config.Config, rep report.Report) error {
	if cfg.Output.Format == "sarif" {
		data, err := rep.SARIF()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	if err := rep.Render(os.Stdout); err != nil {
		return err
	}

	if cfg.Output.SARIF != "" {
		data, err := rep.SARIF()
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Output.SARIF, data, 0o644); err != nil {
			return fmt.Errorf("write sarif report %q: %w", cfg.Output.SARIF, err)
		}
	}
	return nil
}
