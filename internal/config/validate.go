package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Image path is required (unless --check, which only probes the backend)
	if cfg.ImagePath == "" && !cfg.Check {
		errs = append(errs, ValidationError{
			Field:   "image_path",
			Message: "screenshot path is required",
		})
	}

	// Backend URL is always required
	if cfg.BackendURL == "" {
		errs = append(errs, ValidationError{
			Field:   "backend_url",
			Message: "backend URL is required",
		})
	} else if err := validateURL(cfg.BackendURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "backend_url",
			Message: err.Error(),
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Timeout must be positive
	if cfg.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be positive",
		})
	}

	// Backoff settings
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	// Backend metrics window validation (if backend metrics are enabled)
	if cfg.BackendMetricsURL != "" {
		if err := validateURL(cfg.BackendMetricsURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "backend_metrics_url",
				Message: err.Error(),
			})
		}

		const minWindow = 10 * time.Second
		const maxWindow = 300 * time.Second
		if cfg.BackendMetricsWindow < minWindow {
			errs = append(errs, ValidationError{
				Field:   "backend_metrics_window",
				Message: fmt.Sprintf("must be at least %v (got %v)", minWindow, cfg.BackendMetricsWindow),
			})
		}
		if cfg.BackendMetricsWindow > maxWindow {
			errs = append(errs, ValidationError{
				Field:   "backend_metrics_window",
				Message: fmt.Sprintf("must be at most %v (got %v)", maxWindow, cfg.BackendMetricsWindow),
			})
		}
		// Window should be at least 2× the scrape interval for meaningful percentiles
		if cfg.BackendMetricsWindow < 2*cfg.BackendMetricsInterval {
			errs = append(errs, ValidationError{
				Field:   "backend_metrics_window",
				Message: fmt.Sprintf("must be at least 2× scrape interval (%v), got %v", 2*cfg.BackendMetricsInterval, cfg.BackendMetricsWindow),
			})
		}
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateURL checks if the URL is valid and uses http or https.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}
