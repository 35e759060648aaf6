// Package main provides the go-swim-ocr-pipeline CLI entry point.
//
// go-swim-ocr-pipeline submits a swim tracker screenshot to an OCR backend,
// drives the split/fetch/extract sequence, and produces per-lap records,
// session analytics, and JSON/CSV exports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/config"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/export"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/logging"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/metrics"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/orchestrator"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/preflight"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/stats"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/swimapi"
	"github.com/swimlog/go-swim-ocr-pipeline/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-swim-ocr-pipeline
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-swim-ocr-pipeline %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := swimapi.New(cfg.BackendURL, cfg.Timeout, logger)

	// Handle --check mode: probe the backend and exit
	if cfg.Check {
		result := preflight.RunAll(ctx, "", cfg.OutDir, client.Health)
		preflight.PrintResults(result)
		if !result.Passed {
			return 1
		}
		fmt.Println("Configuration and backend OK.")
		return 0
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"image", cfg.ImagePath,
		"backend", cfg.BackendURL,
		"out_dir", cfg.OutDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	// Preflight checks
	if !cfg.SkipPreflight {
		result := preflight.RunAll(ctx, cfg.ImagePath, cfg.OutDir, client.Health)
		if !cfg.TUIEnabled {
			preflight.PrintResults(result)
		}
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "Preflight checks failed (use -skip-preflight to override).")
			return 1
		}
	}

	image, err := os.ReadFile(cfg.ImagePath)
	if err != nil {
		logger.Error("image_read_failed", "path", cfg.ImagePath, "error", err)
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", cfg.ImagePath, err)
		return 1
	}

	// Metrics
	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:    version,
		BackendURL: cfg.BackendURL,
	})
	server := metrics.NewServer(cfg.MetricsAddr, logger)
	if err := server.Start(); err != nil {
		logger.Error("metrics_server_start_failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Backend exporter scraper (optional)
	var scraper *metrics.BackendScraper
	if cfg.BackendMetricsURL != "" {
		scraper = metrics.NewBackendScraper(
			cfg.BackendMetricsURL,
			cfg.BackendMetricsInterval,
			cfg.BackendMetricsWindow,
			logger,
		)
		go scraper.Run(ctx)
	}

	events := logging.NewEventBuffer(logger, cfg.Verbose)

	pipelineCfg := orchestrator.Config{
		Backoff: orchestrator.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  orchestrator.DefaultBackoffConfig().JitterPct,
		},
		Callbacks: eventCallbacks(events),
	}

	pipeline := orchestrator.New(client, pipelineCfg, logger, collector)
	filename := filepath.Base(cfg.ImagePath)

	if cfg.TUIEnabled {
		return runWithTUI(ctx, pipeline, cfg, events, scraper, image, filename)
	}

	result, err := pipeline.Run(ctx, image, filename)
	if err != nil {
		logger.Error("run_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	return finish(result, cfg, logger)
}

// runWithTUI drives the pipeline under the live dashboard. The exit summary
// and exports are still printed after the dashboard closes.
func runWithTUI(
	ctx context.Context,
	pipeline *orchestrator.Pipeline,
	cfg *config.Config,
	events *logging.EventBuffer,
	scraper *metrics.BackendScraper,
	image []byte,
	filename string,
) int {
	model := tui.New(tui.Config{
		ImagePath:   cfg.ImagePath,
		BackendURL:  cfg.BackendURL,
		MetricsAddr: cfg.MetricsAddr,
		Events:      events,
		Scraper:     scraper,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Feed both the event buffer and the dashboard
	base := eventCallbacks(events)
	dash := tui.CallbacksFor(program)
	pipeline.SetCallbacks(mergeCallbacks(base, dash))

	type runOutcome struct {
		result *orchestrator.Result
		err    error
	}
	done := make(chan runOutcome, 1)

	go func() {
		result, err := pipeline.Run(ctx, image, filename)
		if err == nil {
			tui.SendDone(program, result, stats.Summarize(result.Session.Segments))
		}
		done <- runOutcome{result: result, err: err}
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Dashboard error: %v\n", err)
	}

	outcome := <-done
	if outcome.err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", outcome.err)
		return 1
	}

	return finish(outcome.result, cfg, slog.Default())
}

// finish prints the session summary and writes the export files.
func finish(result *orchestrator.Result, cfg *config.Config, logger *slog.Logger) int {
	sessionStats := stats.Summarize(result.Session.Segments)

	summary := stats.FormatSessionSummary(sessionStats, stats.SummaryConfig{
		RunID:             result.RunID,
		Date:              result.Session.Date,
		RunDuration:       result.Duration,
		TotalSegments:     result.TotalSegments,
		FailedSegments:    result.FailedSegments,
		SucceededSegments: result.SucceededSegments,
		SentinelLaps:      result.SentinelSegments,
		MetricsAddr:       cfg.MetricsAddr,
	})
	fmt.Print(summary)

	jsonPath, csvPath, err := export.WriteFiles(result.Session, cfg.OutDir)
	if err != nil {
		logger.Error("export_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}

	logger.Info("exported", "json", jsonPath, "csv", csvPath)
	fmt.Printf("Wrote %s and %s\n", jsonPath, csvPath)
	return 0
}

// eventCallbacks records pipeline progress into the event buffer.
func eventCallbacks(events *logging.EventBuffer) orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnStateChange: func(_, next orchestrator.State) {
			events.Record(slog.LevelDebug, "state: %s", next)
		},
		OnSegmentStart: func(index, total int) {
			events.Record(slog.LevelDebug, "segment %d/%d started", index+1, total)
		},
		OnSegmentDone: func(index int, outcome orchestrator.SegmentOutcome, laps int) {
			level := slog.LevelInfo
			if outcome == orchestrator.OutcomeFallback || outcome == orchestrator.OutcomeFetchFailed {
				level = slog.LevelWarn
			}
			events.Record(level, "segment %d: %s (%d laps)", index, outcome, laps)
		},
	}
}

// mergeCallbacks fans each callback out to both receivers.
func mergeCallbacks(a, b orchestrator.Callbacks) orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnStateChange: func(old, next orchestrator.State) {
			if a.OnStateChange != nil {
				a.OnStateChange(old, next)
			}
			if b.OnStateChange != nil {
				b.OnStateChange(old, next)
			}
		},
		OnSegmentStart: func(index, total int) {
			if a.OnSegmentStart != nil {
				a.OnSegmentStart(index, total)
			}
			if b.OnSegmentStart != nil {
				b.OnSegmentStart(index, total)
			}
		},
		OnSegmentDone: func(index int, outcome orchestrator.SegmentOutcome, laps int) {
			if a.OnSegmentDone != nil {
				a.OnSegmentDone(index, outcome, laps)
			}
			if b.OnSegmentDone != nil {
				b.OnSegmentDone(index, outcome, laps)
			}
		},
	}
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      go-swim-ocr-pipeline                         ║")
	fmt.Println("║        Swim Screenshot OCR Extraction and Lap Analytics           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Screenshot:  %s\n", cfg.ImagePath)
	fmt.Printf("  Backend:     %s\n", cfg.BackendURL)
	fmt.Printf("  Output:      %s\n", cfg.OutDir)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	if cfg.BackendMetricsURL != "" {
		fmt.Printf("  Exporter:    %s\n", cfg.BackendMetricsURL)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
