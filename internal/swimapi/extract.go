package swimapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/swimlog/go-swim-ocr-pipeline/internal/record"
)

// extractResponse is the wire envelope of /api/ocr-segment. The "segment"
// member has two shapes depending on how many laps the backend found:
//
//	{"segment": {"laps": [ {...}, {...} ]}}   multi-lap segment
//	{"segment": {"lap": 3, "strokes": 22, ...}}   single-lap segment
//
// Both are accepted; the envelope is decoded lazily so the shape can be
// probed without a second request.
type extractResponse struct {
	SegmentID string          `json:"segment_id"`
	Segment   json.RawMessage `json:"segment"`
}

type multiLapSegment struct {
	Laps []record.LapRecord `json:"laps"`
}

// ExtractSegment runs text extraction for one segment and returns the lap
// entries in backend order. Zero entries with a 2xx status is a valid
// outcome (blank segment), distinct from an error: only errors trigger the
// caller's sentinel fallback.
func (c *Client) ExtractSegment(ctx context.Context, segmentID string) ([]record.LapRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/ocr-segment/"+segmentID, nil)
	if err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract segment %s: %w", segmentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError("extract segment "+segmentID, resp)
	}

	var envelope extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode extract response for %s: %w", segmentID, err)
	}

	laps, err := decodeSegmentPayload(envelope.Segment)
	if err != nil {
		return nil, fmt.Errorf("decode extract response for %s: %w", segmentID, err)
	}

	c.logger.Debug("extract_response", "segment_id", segmentID, "laps", len(laps))
	return laps, nil
}

// decodeSegmentPayload resolves the two segment shapes. The multi-lap shape
// is tried first; a payload that is an object without a "laps" array falls
// back to the single-lap shape.
func decodeSegmentPayload(raw json.RawMessage) ([]record.LapRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing segment payload")
	}

	var multi multiLapSegment
	if err := json.Unmarshal(raw, &multi); err == nil && multi.Laps != nil {
		return multi.Laps, nil
	}

	var single record.LapRecord
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("unrecognized segment shape: %w", err)
	}
	if single == (record.LapRecord{}) {
		return nil, fmt.Errorf("unrecognized segment shape")
	}
	return []record.LapRecord{single}, nil
}
