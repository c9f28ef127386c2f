package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relabs-tech/telemetry_agent/internal/config"
	"github.com/relabs-tech/telemetry_agent/internal/nmeasrc"
	"github.com/relabs-tech/telemetry_agent/internal/signalk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSourceSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "rest poll by default",
			cfg:  config.Config{SignalKURL: "http://localhost:3000", SignalKMode: "poll"},
			want: "*signalk.Client",
		},
		{
			name: "delta stream when requested",
			cfg:  config.Config{SignalKURL: "http://localhost:3000", SignalKMode: "stream"},
			want: "*signalk.Stream",
		},
		{
			name: "serial nmea without a server",
			cfg:  config.Config{GPSSerialPort: "/dev/ttyUSB0", GPSBaudRate: 9600},
			want: "*nmeasrc.Source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			source := buildSource(ctx, &tt.cfg, discardLogger())

			var got string
			switch source.(type) {
			case *signalk.Client:
				got = "*signalk.Client"
			case *signalk.Stream:
				got = "*signalk.Stream"
			case *nmeasrc.Source:
				got = "*nmeasrc.Source"
			default:
				got = "unknown"
			}
			if got != tt.want {
				t.Errorf("buildSource() = %s, want %s", got, tt.want)
			}

			// Background sources redial until cancelled; stop them before
			// the next case.
			cancel()
			time.Sleep(10 * time.Millisecond)
		})
	}
}

func TestRunCleanupRequiresDBURL(t *testing.T) {
	cfg := &config.Config{BoatID: "b"}
	if err := RunCleanup(context.Background(), cfg, true, discardLogger()); err == nil {
		t.Fatal("RunCleanup() succeeded without SUPABASE_DB_URL, want error")
	}
}
