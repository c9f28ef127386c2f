package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/telemetry_agent/internal/app"
	"github.com/relabs-tech/telemetry_agent/internal/config"
	"github.com/relabs-tech/telemetry_agent/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to KEY=VALUE config file (environment variables win)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunAgent(ctx, cfg, log); err != nil {
		log.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
	closeLog()
}
