// Package config provides configuration management for go-swim-ocr-pipeline.
package config

import "time"

// Config holds all configuration options for the pipeline.
type Config struct {
	// Input
	ImagePath string `json:"image_path"`

	// Backend
	BackendURL string        `json:"backend_url"`
	Timeout    time.Duration `json:"timeout"`

	// Output
	OutDir string `json:"out_dir"`

	// Retry policy
	BackoffInitial  time.Duration `json:"backoff_initial"`
	BackoffMax      time.Duration `json:"backoff_max"`
	BackoffMultiply float64       `json:"backoff_multiply"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Backend exporter scraping
	BackendMetricsURL      string        `json:"backend_metrics_url"`
	BackendMetricsInterval time.Duration `json:"backend_metrics_interval"`
	BackendMetricsWindow   time.Duration `json:"backend_metrics_window"`

	// Dashboard
	TUIEnabled bool `json:"tui_enabled"`

	// Diagnostic modes
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Backend
		BackendURL: "http://localhost:8000",
		Timeout:    30 * time.Second,

		// Output
		OutDir: ".",

		// Retry policy
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      5 * time.Second,
		BackoffMultiply: 1.7,

		// Observability
		MetricsAddr: "0.0.0.0:2112",
		Verbose:     false,
		LogFormat:   "json",

		// Backend exporter scraping (disabled unless a URL is given)
		BackendMetricsInterval: 2 * time.Second,
		BackendMetricsWindow:   30 * time.Second,

		// Dashboard
		TUIEnabled: false,
	}
}
