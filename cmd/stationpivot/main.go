package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/torosent/stationpivot/internal/analysis"
	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/logging"
	"github.com/torosent/stationpivot/internal/output"
	"github.com/torosent/stationpivot/internal/telemetry"
	"github.com/torosent/stationpivot/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

// execute loads the configuration from args, runs the selected view and
// writes the report to stdout. Logs go to stderr unless a log file is set.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, syncLogs, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.Output == config.OutputText,
		Writer:  logWriter(cfg, stderr),
	})
	if err != nil {
		return err
	}
	defer func() { _ = syncLogs() }()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "tracing shutdown failed")
		}
	}()
	ctx = tracing.ContextFromEnv(ctx)

	registry := prometheus.NewRegistry()
	deps := analysis.Deps{
		Logger:  logger,
		Tracer:  provider.Tracer(),
		Metrics: telemetry.New(registry),
	}

	rows, err := analysis.Load(ctx, cfg, deps)
	if err != nil {
		return err
	}

	report, runErr := analysis.Run(ctx, cfg, rows, deps)
	if runErr != nil && !errors.Is(runErr, analysis.ErrThresholdsFailed) {
		writeMetrics(cfg, registry, deps)
		return runErr
	}

	if err := output.Print(stdout, cfg.Output, report); err != nil {
		return err
	}
	if cfg.HTMLOutput != "" {
		err := output.WriteFile(ctx, cfg.HTMLOutput, func(w io.Writer) error {
			return output.GenerateHTMLReport(w, report)
		})
		if err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
		logger.Info("html report written", "path", cfg.HTMLOutput)
	}
	writeMetrics(cfg, registry, deps)

	return runErr
}

// logWriter keeps stderr as the log sink unless logs go to a file.
func logWriter(cfg *config.Config, stderr io.Writer) io.Writer {
	if cfg.LogFile != "" {
		return nil
	}
	return stderr
}

func writeMetrics(cfg *config.Config, g prometheus.Gatherer, deps analysis.Deps) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := telemetry.WriteTextfile(cfg.MetricsFile, g); err != nil {
		deps.Logger.Error(err, "write metrics file failed", "path", cfg.MetricsFile)
	}
}
