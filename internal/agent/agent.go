// Package agent drives the fetch → normalize → store cycle on a fixed
// cadence. The one property everything here serves: a failed cycle logs and
// the loop keeps running, whatever went wrong.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

// maxConsecutiveFailures is the threshold for escalated logging. The agent
// never exits on failures; past this count it complains louder.
const maxConsecutiveFailures = 5

// Source supplies one raw sample per cycle.
type Source interface {
	Fetch(ctx context.Context) (gps.Sample, error)
}

// Sink stores one normalized reading per cycle.
type Sink interface {
	InsertReading(ctx context.Context, r gps.Reading) error
}

// Feed republishes stored readings locally. Best-effort: feed errors are
// logged and never fail a cycle.
type Feed interface {
	Publish(r gps.Reading) error
}

// Agent owns the poll loop.
type Agent struct {
	source   Source
	sink     Sink
	feed     Feed // nil when no MQTT broker is configured
	boatID   string
	interval time.Duration
	log      *slog.Logger

	failures int
}

// New wires an agent from its collaborators. feed may be nil.
func New(source Source, sink Sink, feed Feed, boatID string, interval time.Duration, log *slog.Logger) *Agent {
	return &Agent{
		source:   source,
		sink:     sink,
		feed:     feed,
		boatID:   boatID,
		interval: interval,
		log:      log,
	}
}

// stage names the step a cycle failed at, for diagnostics.
type stage string

const (
	stageFetch stage = "fetch"
	stageWrite stage = "write"
)

// outcome is the tagged result of one cycle.
type outcome struct {
	stored  bool
	skipped bool // sample had no usable position; nothing written
	stage   stage
	err     error
	reading gps.Reading
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately; afterwards a fixed ticker fires every interval, measured tick
// to tick regardless of how long each cycle takes. Always returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("starting telemetry agent",
		"boat_id", a.boatID,
		"poll_interval", a.interval.String(),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("telemetry agent stopping")
			return ctx.Err()
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// cycle runs one attempt and handles its outcome: logging, the consecutive
// failure counter, and the local feed. Nothing escapes to the caller.
func (a *Agent) cycle(ctx context.Context) {
	out := a.runCycle(ctx)

	switch {
	case out.stored:
		a.failures = 0
		a.log.Info("stored gps position",
			"latitude", out.reading.Latitude,
			"longitude", out.reading.Longitude,
		)
		if a.feed != nil {
			if err := a.feed.Publish(out.reading); err != nil {
				a.log.Warn("local feed publish failed", "error", err)
			}
		}
	case out.skipped:
		a.failures++
		a.log.Warn("no gps position available, skipping this cycle")
	default:
		a.failures++
		a.log.Error("cycle failed",
			"stage", string(out.stage),
			"error", errString(out.err),
		)
	}

	if a.failures >= maxConsecutiveFailures {
		a.log.Error("too many consecutive failures, continuing to retry",
			"count", a.failures,
		)
	}
}

// errString keeps slog from formatting a nil error as "<nil>".
func errString(e error) string {
	if e == nil {
		return ""
	}
	return e.Error()
}

// runCycle is the explicit fetch → normalize → write wrapper. Every error
// from any stage ends up in the returned outcome, never in a panic or a
// propagated fault.
func (a *Agent) runCycle(ctx context.Context) outcome {
	sample, fetchErr := a.source.Fetch(ctx)
	if fetchErr != nil {
		return outcome{stage: stageFetch, err: fetchErr}
	}

	reading, normErr := gps.Normalize(sample, a.boatID)
	if normErr != nil {
		if errors.Is(normErr, gps.ErrNoPosition) {
			return outcome{skipped: true}
		}
		return outcome{stage: stageFetch, err: normErr}
	}

	if writeErr := a.sink.InsertReading(ctx, reading); writeErr != nil {
		return outcome{stage: stageWrite, err: writeErr, reading: reading}
	}

	return outcome{stored: true, reading: reading}
}
