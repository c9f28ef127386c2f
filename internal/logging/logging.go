package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Setup builds the process-wide logger: JSON records to stdout and, when
// logFile is non-empty, appended to the given file as well. The returned
// close function flushes and closes the log file.
func Setup(logLevel, logFile string) (*slog.Logger, func() error, error) {
	var level slog.Level
	switch logLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	closeFn := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file %s: %w", logFile, err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}
