package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/relabs-tech/telemetry_agent/internal/agent"
	"github.com/relabs-tech/telemetry_agent/internal/config"
	"github.com/relabs-tech/telemetry_agent/internal/feed"
	"github.com/relabs-tech/telemetry_agent/internal/nmeasrc"
	"github.com/relabs-tech/telemetry_agent/internal/signalk"
	"github.com/relabs-tech/telemetry_agent/internal/supabase"
)

// RunAgent wires the configured source, sink, and optional feed into the
// poll loop and runs it until ctx is cancelled.
func RunAgent(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	source := buildSource(ctx, cfg, log)
	sink := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.HTTPTimeout)

	var publisher agent.Feed
	if cfg.MQTTBroker != "" {
		pub, err := feed.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicGPS)
		if err != nil {
			// The local feed is a convenience; telemetry forwarding must not
			// depend on the broker being up.
			log.Warn("mqtt feed unavailable, continuing without it", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			log.Info("publishing live positions", "broker", cfg.MQTTBroker, "topic", cfg.TopicGPS)
		}
	}

	a := agent.New(source, sink, publisher, cfg.BoatID, cfg.PollInterval, log)

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildSource picks the upstream: Signal K REST poll, Signal K delta stream,
// or a direct serial NMEA receiver when no server is configured. Background
// sources are started here and stop with ctx.
func buildSource(ctx context.Context, cfg *config.Config, log *slog.Logger) agent.Source {
	if cfg.SignalKURL != "" {
		if cfg.SignalKMode == "stream" {
			log.Info("using signal k delta stream", "url", cfg.SignalKURL)
			stream := signalk.NewStream(cfg.SignalKURL, cfg.SignalKToken)
			go stream.Run(ctx)
			return stream
		}
		log.Info("polling signal k rest api", "url", cfg.SignalKURL)
		return signalk.NewClient(cfg.SignalKURL, cfg.SignalKToken, cfg.HTTPTimeout)
	}

	log.Info("reading nmea from serial gps", "port", cfg.GPSSerialPort, "baud", cfg.GPSBaudRate)
	src := nmeasrc.New(cfg.GPSSerialPort, cfg.GPSBaudRate)
	go src.Run(ctx)
	return src
}

var (
	_ agent.Source = (*signalk.Client)(nil)
	_ agent.Source = (*signalk.Stream)(nil)
	_ agent.Source = (*nmeasrc.Source)(nil)
	_ agent.Sink   = (*supabase.Client)(nil)
	_ agent.Feed   = (*feed.Publisher)(nil)
)
