package main

import (
	stdlog "log"

	"github.com/joho/godotenv"

	"facturabot/cmd"
	"facturabot/internal/config"
	"facturabot/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Printf("Warning: Could not load .env file: %v", err)
	}

	// Configure logging; fall back to defaults when the full
	// configuration is incomplete (the check command needs no config).
	if cfg, err := config.Load(); err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			stdlog.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting facturabot")

	cmd.Execute()
}
