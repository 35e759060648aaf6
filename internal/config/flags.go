package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if required arguments are missing or invalid.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-swim-ocr-pipeline - swim screenshot OCR extraction and lap analytics

Usage:
  go-swim-ocr-pipeline [flags] <IMAGE_PATH>

Backend Flags:
`)
		// Print flags by category
		printFlagCategory([]string{"backend", "timeout"})

		fmt.Fprintf(os.Stderr, "\nOutput:\n")
		printFlagCategory([]string{"out"})

		fmt.Fprintf(os.Stderr, "\nRetry Policy:\n")
		printFlagCategory([]string{"backoff-initial", "backoff-max", "backoff-multiply"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format"})

		fmt.Fprintf(os.Stderr, "\nBackend Metrics:\n")
		printFlagCategory([]string{"backend-metrics", "backend-metrics-interval", "backend-metrics-window"})

		fmt.Fprintf(os.Stderr, "\nDashboard:\n")
		printFlagCategory([]string{"tui"})

		fmt.Fprintf(os.Stderr, "\nSafety & Diagnostics:\n")
		printFlagCategory([]string{"check", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Process a screenshot against a local backend
  go-swim-ocr-pipeline swim_session.png

  # Remote backend with CSV/JSON written to a results directory
  go-swim-ocr-pipeline -backend https://ocr.example.com -out ./results swim_session.png

  # Verify backend connectivity without processing anything
  go-swim-ocr-pipeline --check

`)
	}

	// Backend
	flag.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "OCR backend base URL")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout per backend request")

	// Output
	flag.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Directory for session.json and session.csv")

	// Retry policy
	flag.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "Initial delay before a segment fetch retry")
	flag.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum retry delay")
	flag.Float64Var(&cfg.BackoffMultiply, "backoff-multiply", cfg.BackoffMultiply, "Retry delay growth factor")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	// Backend exporter scraping
	flag.StringVar(&cfg.BackendMetricsURL, "backend-metrics", cfg.BackendMetricsURL,
		"Backend Prometheus exporter URL (e.g., http://localhost:8000/metrics). "+
			"If empty, backend metrics are disabled. Defaults to empty (disabled).")
	flag.DurationVar(&cfg.BackendMetricsInterval, "backend-metrics-interval", cfg.BackendMetricsInterval,
		"Interval for scraping backend metrics. Default: 2s.")
	flag.DurationVar(&cfg.BackendMetricsWindow, "backend-metrics-window", cfg.BackendMetricsWindow,
		"Rolling window duration for backend latency percentiles. "+
			"Default: 30s. "+
			"Range: 10s-300s (5 minutes).")

	// TUI (Terminal User Interface)
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Safety & Diagnostics (double-dash convention)
	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and backend health, then exit")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Parse
	flag.Parse()

	// Positional argument: screenshot path
	args := flag.Args()
	if len(args) >= 1 {
		cfg.ImagePath = args[0]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
