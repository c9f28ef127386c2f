package signalk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

const streamPath = "/signalk/v1/stream?subscribe=none"

// redialDelay is the pause before reconnecting after a dropped stream.
const redialDelay = 3 * time.Second

// ErrNoData reports that the stream has not delivered a position delta yet.
var ErrNoData = errors.New("signalk: no stream data received yet")

// subscription is the subscribe message sent after connecting.
type subscription struct {
	Context   string          `json:"context"`
	Subscribe []subscribePath `json:"subscribe"`
}

type subscribePath struct {
	Path string `json:"path"`
}

// delta is the wire shape of a Signal K delta message, reduced to the parts
// the agent reads.
type delta struct {
	Updates []struct {
		Timestamp string `json:"timestamp"`
		Values    []struct {
			Path  string `json:"path"`
			Value any    `json:"value"`
		} `json:"values"`
	} `json:"updates"`
}

// Stream subscribes to the Signal K websocket delta stream and caches the
// most recent navigation values. Run maintains the connection in the
// background; Fetch snapshots the cache, so the poll loop sees the stream
// through the same Source contract as the REST client.
type Stream struct {
	url   string
	token string

	mu     sync.RWMutex
	sample gps.Sample
	have   bool
}

// NewStream builds a stream source for the server at baseURL. The http(s)
// scheme is rewritten to ws(s).
func NewStream(baseURL, token string) *Stream {
	wsURL := baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return &Stream{url: wsURL + streamPath, token: token}
}

// Run connects to the stream and consumes deltas until ctx is cancelled,
// redialling after connection failures. It only returns ctx.Err().
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			// Dropped connection or bad handshake; wait and redial.
			select {
			case <-time.After(redialDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("signalk: dial stream: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so ReadJSON unblocks; done stops
	// the watcher when the connection dies first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscription{
		Context: "vessels.self",
		Subscribe: []subscribePath{
			{Path: "navigation.position"},
			{Path: "navigation.speedOverGround"},
			{Path: "navigation.courseOverGroundTrue"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("signalk: send subscription: %w", err)
	}

	for {
		var d delta
		if err := conn.ReadJSON(&d); err != nil {
			return fmt.Errorf("signalk: read delta: %w", err)
		}
		s.apply(d)
	}
}

// apply folds one delta message into the cached sample.
func (s *Stream) apply(d delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, update := range d.Updates {
		ts, tsErr := time.Parse(time.RFC3339, update.Timestamp)

		for _, v := range update.Values {
			switch v.Path {
			case "navigation.position":
				pos, ok := v.Value.(map[string]any)
				if !ok {
					continue
				}
				lat := gps.NumberPtr(pos["latitude"])
				lon := gps.NumberPtr(pos["longitude"])
				if lat == nil || lon == nil {
					continue
				}
				s.sample.Latitude = lat
				s.sample.Longitude = lon
				s.sample.Altitude = gps.NumberPtr(pos["altitude"])
				if tsErr == nil {
					s.sample.Timestamp = ts
				}
				s.have = true
			case "navigation.speedOverGround":
				s.sample.SpeedOverGround = gps.NumberPtr(v.Value)
			case "navigation.courseOverGroundTrue":
				s.sample.CourseOverGround = gps.NumberPtr(v.Value)
			}
		}
	}
}

// Fetch returns a snapshot of the latest cached sample. It fails until the
// first position delta arrives.
func (s *Stream) Fetch(ctx context.Context) (gps.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.have {
		return gps.Sample{}, ErrNoData
	}
	return s.sample, nil
}
