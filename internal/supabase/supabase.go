// Package supabase writes telemetry rows through the Supabase PostgREST
// endpoint, authenticated with the service-role key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

// Table holding one row per stored GPS reading.
const Table = "gps_position"

// Client issues single-row inserts against the REST endpoint.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewClient builds a writer for the Supabase project at baseURL (no trailing
// slash) using the given service-role key.
func NewClient(baseURL, serviceKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: timeout},
	}
}

// InsertReading serializes one reading to the table's column names and posts
// it. Any 2xx response is success; the writer never retries on its own.
func (c *Client) InsertReading(ctx context.Context, r gps.Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("supabase: marshal reading: %w", err)
	}

	url := c.baseURL + "/rest/v1/" + Table
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: insert reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// PostgREST puts the constraint or auth detail in the body.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supabase: insert reading: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	io.Copy(io.Discard, resp.Body)

	return nil
}
