// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// HealthFunc probes the OCR backend. A nil error means healthy.
type HealthFunc func(ctx context.Context) error

// RunAll executes all preflight checks.
// imagePath may be empty in check-only mode, which skips the image check.
func RunAll(ctx context.Context, imagePath, outDir string, health HealthFunc) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	if imagePath != "" {
		imgCheck := checkImage(imagePath)
		result.Checks = append(result.Checks, imgCheck)
		if !imgCheck.Passed {
			result.Passed = false
		}
	}

	dirCheck := checkOutDir(outDir)
	result.Checks = append(result.Checks, dirCheck)
	if !dirCheck.Passed {
		result.Passed = false
	}

	backendCheck := checkBackend(ctx, health)
	result.Checks = append(result.Checks, backendCheck)
	if !backendCheck.Passed {
		result.Passed = false
	}

	return result
}

// imageExtensions are the screenshot formats the backend is known to accept.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// checkImage verifies the screenshot exists and looks like an image.
func checkImage(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "image_file",
			Passed:  false,
			Message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	if info.IsDir() {
		return Check{
			Name:    "image_file",
			Passed:  false,
			Message: fmt.Sprintf("%s is a directory", path),
		}
	}

	if info.Size() == 0 {
		return Check{
			Name:    "image_file",
			Passed:  false,
			Message: fmt.Sprintf("%s is empty", path),
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !imageExtensions[ext] {
		return Check{
			Name:    "image_file",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s has unrecognized extension %q (%d bytes)", path, ext, info.Size()),
		}
	}

	return Check{
		Name:    "image_file",
		Passed:  true,
		Message: fmt.Sprintf("%s (%d bytes)", path, info.Size()),
	}
}

// checkOutDir verifies the output directory is usable for result files.
func checkOutDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		// Created at export time, so only a warning here
		return Check{
			Name:    "out_dir",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s does not exist yet (will be created)", dir),
		}
	}

	if !info.IsDir() {
		return Check{
			Name:    "out_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	// Writability probe
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{
			Name:    "out_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
		}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return Check{
		Name:    "out_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s is writable", dir),
	}
}

// checkBackend probes the OCR backend health endpoint.
func checkBackend(ctx context.Context, health HealthFunc) Check {
	if health == nil {
		return Check{
			Name:    "backend",
			Passed:  true,
			Warning: true,
			Message: "no health probe configured",
		}
	}

	if err := health(ctx); err != nil {
		return Check{
			Name:    "backend",
			Passed:  false,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}

	return Check{
		Name:    "backend",
		Passed:  true,
		Message: "healthy",
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "image_file":
		return "check the screenshot path passed as the positional argument"
	case "out_dir":
		return "create the directory or pass a different -out"
	case "backend":
		return "start the OCR backend or point -backend at a reachable instance"
	default:
		return "see documentation"
	}
}
