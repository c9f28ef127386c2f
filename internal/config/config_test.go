package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
# minimal working config
SIGNALK_URL=http://localhost:3000
SUPABASE_URL=https://demo.supabase.co/
SUPABASE_SERVICE_ROLE_KEY=secret
BOAT_ID=REIMAGINED
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SignalKURL != "http://localhost:3000" {
		t.Errorf("SignalKURL = %q", cfg.SignalKURL)
	}
	if cfg.SupabaseURL != "https://demo.supabase.co" {
		t.Errorf("SupabaseURL = %q, want trailing slash stripped", cfg.SupabaseURL)
	}
	if cfg.BoatID != "REIMAGINED" {
		t.Errorf("BoatID = %q", cfg.BoatID)
	}

	// Defaults
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v, want 5s", cfg.HTTPTimeout)
	}
	if cfg.SignalKMode != "poll" {
		t.Errorf("SignalKMode = %q, want poll", cfg.SignalKMode)
	}
	if cfg.GPSBaudRate != 9600 {
		t.Errorf("GPSBaudRate = %d, want 9600", cfg.GPSBaudRate)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	t.Setenv("BOAT_ID", "OVERRIDE")
	t.Setenv("POLL_INTERVAL_SECONDS", "30")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BoatID != "OVERRIDE" {
		t.Errorf("BoatID = %q, want environment override", cfg.BoatID)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
}

func TestLoadEnvironmentOnly(t *testing.T) {
	t.Setenv("GPS_SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "secret")
	t.Setenv("BOAT_ID", "REIMAGINED")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPSSerialPort != "/dev/ttyUSB0" {
		t.Errorf("GPSSerialPort = %q", cfg.GPSSerialPort)
	}
	if cfg.SignalKURL != "" {
		t.Errorf("SignalKURL = %q, want empty", cfg.SignalKURL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing supabase url",
			content: `
SIGNALK_URL=http://localhost:3000
SUPABASE_SERVICE_ROLE_KEY=secret
BOAT_ID=b
`,
			wantErr: "SUPABASE_URL is required",
		},
		{
			name: "missing service role key",
			content: `
SIGNALK_URL=http://localhost:3000
SUPABASE_URL=https://demo.supabase.co
BOAT_ID=b
`,
			wantErr: "SUPABASE_SERVICE_ROLE_KEY is required",
		},
		{
			name: "missing boat id",
			content: `
SIGNALK_URL=http://localhost:3000
SUPABASE_URL=https://demo.supabase.co
SUPABASE_SERVICE_ROLE_KEY=secret
`,
			wantErr: "BOAT_ID is required",
		},
		{
			name: "no source at all",
			content: `
SUPABASE_URL=https://demo.supabase.co
SUPABASE_SERVICE_ROLE_KEY=secret
BOAT_ID=b
`,
			wantErr: "either SIGNALK_URL or GPS_SERIAL_PORT",
		},
		{
			name:    "malformed line",
			content: minimalConfig + "NOT A KEY VALUE PAIR\n",
			wantErr: "invalid config line",
		},
		{
			name:    "unknown key",
			content: minimalConfig + "MYSTERY_KEY=1\n",
			wantErr: "unknown config key",
		},
		{
			name:    "bad interval",
			content: minimalConfig + "POLL_INTERVAL_SECONDS=soon\n",
			wantErr: "invalid POLL_INTERVAL_SECONDS",
		},
		{
			name:    "zero interval",
			content: minimalConfig + "POLL_INTERVAL_SECONDS=0\n",
			wantErr: "must be positive",
		},
		{
			name:    "bad mode",
			content: minimalConfig + "SIGNALK_MODE=push\n",
			wantErr: "SIGNALK_MODE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatal("Load() succeeded, want error for missing file")
	}
}
