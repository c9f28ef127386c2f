// Package signalk fetches navigation data from a Signal K server, either by
// polling the REST API or by subscribing to the delta stream over websocket.
package signalk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

// vesselPath is the REST endpoint returning the full data tree for the own
// vessel. All navigation values are extracted from this single document.
const vesselPath = "/signalk/v1/api/vessels/self"

// Client polls the Signal K REST API for the current GPS position.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a poll client for the server at baseURL (no trailing
// slash). token may be empty for open servers.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch performs one GET of the vessel tree and extracts the navigation
// fields. Missing or malformed individual paths come back as nil fields in
// the sample; only transport, status, and body-level JSON problems are
// errors.
func (c *Client) Fetch(ctx context.Context) (gps.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+vesselPath, nil)
	if err != nil {
		return gps.Sample{}, fmt.Errorf("signalk: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gps.Sample{}, fmt.Errorf("signalk: fetch vessel data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return gps.Sample{}, fmt.Errorf("signalk: fetch vessel data: unexpected status %d", resp.StatusCode)
	}

	var tree map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return gps.Sample{}, fmt.Errorf("signalk: decode vessel data: %w", err)
	}

	return extractSample(tree), nil
}

// extractSample pulls the fixed set of navigation paths out of a vessel
// tree. Each lookup independently fails soft to "absent".
func extractSample(tree map[string]any) gps.Sample {
	var s gps.Sample

	s.Latitude = gps.NumberPtr(lookup(tree, "navigation", "position", "value", "latitude"))
	s.Longitude = gps.NumberPtr(lookup(tree, "navigation", "position", "value", "longitude"))
	s.Altitude = gps.NumberPtr(lookup(tree, "navigation", "position", "value", "altitude"))
	s.SpeedOverGround = gps.NumberPtr(lookup(tree, "navigation", "speedOverGround", "value"))
	s.CourseOverGround = gps.NumberPtr(lookup(tree, "navigation", "courseOverGroundTrue", "value"))

	if raw, ok := lookup(tree, "navigation", "position", "timestamp").(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			s.Timestamp = ts
		}
	}

	return s
}

// lookup walks nested JSON objects by key, returning nil as soon as any
// intermediate key is missing or not an object.
func lookup(tree map[string]any, keys ...string) any {
	var current any = tree
	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return current
}
