// Package nmeasrc reads GPS fixes straight from a serial NMEA receiver, for
// boats that run the agent without a Signal K server.
package nmeasrc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

// knotsToMS converts speed over ground to Signal K's canonical m/s.
const knotsToMS = 0.514444

// reopenDelay is the pause before reopening the port after a read error.
const reopenDelay = 3 * time.Second

// ErrNoFix reports that no valid RMC sentence has been seen yet.
var ErrNoFix = errors.New("nmeasrc: no valid fix received yet")

// Source reads NMEA sentences from a serial GPS and caches the latest fix.
// Run owns the port in the background; Fetch snapshots the cache.
type Source struct {
	portName string
	baudRate int

	mu     sync.RWMutex
	sample gps.Sample
	have   bool
}

// New builds a serial NMEA source. The port is not opened until Run.
func New(portName string, baudRate int) *Source {
	return &Source{portName: portName, baudRate: baudRate}
}

// Run opens the serial port and consumes sentences until ctx is cancelled,
// reopening the port after failures. It only returns ctx.Err().
func (s *Source) Run(ctx context.Context) error {
	for {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			select {
			case <-time.After(reopenDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Source) consume(ctx context.Context) error {
	opts := serial.OpenOptions{
		PortName:        s.portName,
		BaudRate:        uint(s.baudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("nmeasrc: open %s: %w", s.portName, err)
	}
	defer port.Close()

	// Close the port when ctx ends so the blocking read unblocks; done stops
	// the watcher when the port dies first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	return s.readFrom(port)
}

// readFrom parses NMEA sentences line by line, updating the cached fix from
// RMC (position, speed, course, time) and GGA (altitude). Unparseable lines
// are skipped; noisy receivers emit partial sentences routinely.
func (s *Source) readFrom(r io.Reader) error {
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("nmeasrc: read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if m.Validity != nmea.ValidRMC {
				continue
			}
			s.applyRMC(m)
		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			s.applyGGA(m)
		}
	}
}

func (s *Source) applyRMC(m nmea.RMC) {
	lat := m.Latitude
	lon := m.Longitude
	speed := m.Speed * knotsToMS
	course := m.Course * math.Pi / 180

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sample.Latitude = &lat
	s.sample.Longitude = &lon
	s.sample.SpeedOverGround = &speed
	s.sample.CourseOverGround = &course
	s.sample.Timestamp = fixTime(m.Date, m.Time)
	s.have = true
}

func (s *Source) applyGGA(m nmea.GGA) {
	if m.FixQuality == nmea.Invalid {
		return
	}
	alt := m.Altitude

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample.Altitude = &alt
}

// fixTime combines the RMC date and time-of-day fields into UTC. Zero when
// either field is invalid, so Normalize falls back to the agent clock.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// Fetch returns a snapshot of the latest cached fix. It fails until the
// first valid RMC sentence is seen.
func (s *Source) Fetch(ctx context.Context) (gps.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.have {
		return gps.Sample{}, ErrNoFix
	}
	return s.sample, nil
}
