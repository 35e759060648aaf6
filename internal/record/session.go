package record

// Session is the terminal output of one pipeline run: a date stamp and the
// ordered lap records. This is the only artifact exposed to export and to
// callers; segment bookkeeping stays inside the orchestrator.
type Session struct {
	Date     string      `json:"date"`
	Segments []LapRecord `json:"segments"`
}
