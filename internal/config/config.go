package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Signal K
	SignalKURL   string
	SignalKToken string
	SignalKMode  string // "poll" or "stream"

	// Supabase
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseDBURL          string // direct Postgres connection, cleanup tool only

	// Boat
	BoatID string

	// Direct NMEA fallback (used when no Signal K server is configured)
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	// MQTT live feed (disabled when MQTTBroker is empty)
	MQTTBroker   string
	MQTTClientID string
	TopicGPS     string

	// Logging
	LogLevel string
	LogFile  string
}

// envKeys lists every key the agent understands, in the order they are
// overlaid from the process environment.
var envKeys = []string{
	"SIGNALK_URL",
	"SIGNALK_TOKEN",
	"SIGNALK_MODE",
	"SUPABASE_URL",
	"SUPABASE_SERVICE_ROLE_KEY",
	"SUPABASE_DB_URL",
	"BOAT_ID",
	"GPS_SERIAL_PORT",
	"GPS_BAUD_RATE",
	"POLL_INTERVAL_SECONDS",
	"HTTP_TIMEOUT_SECONDS",
	"MQTT_BROKER",
	"MQTT_CLIENT_ID",
	"TOPIC_GPS",
	"LOG_LEVEL",
	"LOG_FILE",
}

// Load reads the configuration file (KEY=VALUE lines, # comments), overlays
// any matching process environment variables on top, applies defaults, and
// validates required fields. An empty path skips the file and reads the
// environment only.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	// Environment wins over the file, matching dotenv semantics.
	for _, key := range envKeys {
		if value := os.Getenv(key); value != "" {
			if err := cfg.setValue(key, value); err != nil {
				return nil, fmt.Errorf("environment %s: %w", key, err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		SignalKMode:  "poll",
		GPSBaudRate:  9600,
		PollInterval: 10 * time.Second,
		HTTPTimeout:  5 * time.Second,
		MQTTClientID: "boat-telemetry-agent",
		TopicGPS:     "telemetry/gps/position",
		LogLevel:     "INFO",
		LogFile:      "telemetry_agent.log",
	}
}

func (c *Config) loadFile(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Signal K
	case "SIGNALK_URL":
		c.SignalKURL = strings.TrimRight(value, "/")
	case "SIGNALK_TOKEN":
		c.SignalKToken = value
	case "SIGNALK_MODE":
		if value != "poll" && value != "stream" {
			return fmt.Errorf("SIGNALK_MODE must be \"poll\" or \"stream\", got %q", value)
		}
		c.SignalKMode = value

	// Supabase
	case "SUPABASE_URL":
		c.SupabaseURL = strings.TrimRight(value, "/")
	case "SUPABASE_SERVICE_ROLE_KEY":
		c.SupabaseServiceRoleKey = value
	case "SUPABASE_DB_URL":
		c.SupabaseDBURL = value

	// Boat
	case "BOAT_ID":
		c.BoatID = value

	// GPS serial fallback
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", rate)
		}
		c.GPSBaudRate = rate

	// Timing
	case "POLL_INTERVAL_SECONDS":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL_SECONDS %q: %w", value, err)
		}
		if seconds <= 0 {
			return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive, got %d", seconds)
		}
		c.PollInterval = time.Duration(seconds) * time.Second
	case "HTTP_TIMEOUT_SECONDS":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS %q: %w", value, err)
		}
		if seconds <= 0 {
			return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", seconds)
		}
		c.HTTPTimeout = time.Duration(seconds) * time.Second

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToUpper(value)
	case "LOG_FILE":
		c.LogFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.BoatID == "" {
		return fmt.Errorf("BOAT_ID is required")
	}
	if c.SignalKURL == "" && c.GPSSerialPort == "" {
		return fmt.Errorf("either SIGNALK_URL or GPS_SERIAL_PORT is required")
	}
	return nil
}
