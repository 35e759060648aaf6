// Package swimapi is the HTTP client for the swim-OCR backend.
//
// The backend exposes three endpoints consumed by the pipeline: POST
// /api/split (screenshot upload, returns a segment manifest), GET
// /api/segment/{id} (raw PNG bytes for one segment), and POST
// /api/ocr-segment/{id} (text extraction for one segment). Segment IDs are
// "{split_id}_{index}".
package swimapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds each backend request. OCR on a dense segment can
// take several seconds, so this is deliberately generous.
const DefaultTimeout = 30 * time.Second

// Client talks to one swim-OCR backend instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// SegmentInfo is the backend's per-segment metadata from the split step.
type SegmentInfo struct {
	SegmentID     int `json:"segment_id"`
	EstimatedLaps int `json:"estimated_laps_per_segment"`
	Height        int `json:"height"`
	StartLap      int `json:"start_lap"`
}

// SplitManifest is the result of the split step: the split session ID and
// the ordered segment metadata. Immutable once returned.
type SplitManifest struct {
	SplitID       string        `json:"split_id"`
	TotalSegments int           `json:"total_segments"`
	SegmentInfo   []SegmentInfo `json:"segment_info"`
}

// apiError is the backend's non-2xx body shape {"detail": "..."}.
type apiError struct {
	Detail string `json:"detail"`
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Split uploads a screenshot and returns the segment manifest. A non-2xx
// response surfaces the backend's detail message verbatim; split failure is
// terminal for a pipeline run, so no retry happens here.
func (c *Client) Split(ctx context.Context, image []byte, filename string) (*SplitManifest, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/split", &body)
	if err != nil {
		return nil, fmt.Errorf("split request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("split request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError("split", resp)
	}

	var manifest SplitManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode split response: %w", err)
	}

	c.logger.Debug("split_response",
		"split_id", manifest.SplitID,
		"total_segments", manifest.TotalSegments,
	)
	return &manifest, nil
}

// FetchSegment retrieves the raw image bytes for one segment.
func (c *Client) FetchSegment(ctx context.Context, segmentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/segment/"+segmentID, nil)
	if err != nil {
		return nil, fmt.Errorf("segment request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch segment %s: %w", segmentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError("fetch segment "+segmentID, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read segment %s: %w", segmentID, err)
	}
	return data, nil
}

// Health probes the backend's /healthz endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health check: status %d", resp.StatusCode)
	}
	return nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// statusError drains a non-2xx response and surfaces the backend's detail
// message when the body carries one.
func (c *Client) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Detail != "" {
		return fmt.Errorf("%s: %s (status %d)", op, ae.Detail, resp.StatusCode)
	}
	return fmt.Errorf("%s: status %d", op, resp.StatusCode)
}
