// Package export assembles the canonical session artifacts: the JSON
// session object and the flat CSV table, both derived from the same
// ordered record set.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
)

// CSVHeader is the fixed column order of the tabular export.
const CSVHeader = "lap,stroke_type,lap_length_m,duration,strokes,swolf,pace_per_100m"

// SessionJSON marshals the session object: {"date": ..., "segments": [...]}
// with records exactly as the orchestrator produced them, order preserved.
func SessionJSON(sess record.Session) ([]byte, error) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

// SessionCSV renders one row per lap record under the fixed header. The
// duration and pace columns always use the formatted string representation,
// derived through the codec when a record only carries raw seconds.
//
// Rows are comma-joined without quoting, matching the format downstream
// consumers already parse. Stroke labels come from a closed canon so no field
// value can carry a comma today; csvField strips any that appear rather
// than introducing quoting that existing consumers would not parse.
func SessionCSV(sess record.Session) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteString("\n")

	for _, r := range sess.Segments {
		row := []string{
			strconv.Itoa(r.Lap),
			csvField(r.StrokeType),
			strconv.Itoa(r.LapLengthM),
			r.DisplayDuration(),
			strconv.Itoa(r.Strokes),
			strconv.Itoa(r.Swolf),
			r.DisplayPace(),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}

	return b.String()
}

// WriteFiles writes session.json and session.csv into dir, creating it if
// needed, and returns both paths.
func WriteFiles(sess record.Session, dir string) (jsonPath, csvPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := SessionJSON(sess)
	if err != nil {
		return "", "", err
	}

	jsonPath = filepath.Join(dir, "session.json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}

	csvPath = filepath.Join(dir, "session.csv")
	if err := os.WriteFile(csvPath, []byte(SessionCSV(sess)), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", csvPath, err)
	}

	return jsonPath, csvPath, nil
}

// csvField sanitizes a free-form value for the unquoted row format.
func csvField(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}
