package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Listen port")
	flag.StringVar(&cfg.Terminal.Shell, "shell", cfg.Terminal.Shell, "Shell for new sessions")
	flag.StringVar(&cfg.Terminal.ProfileFile, "profile", cfg.Terminal.ProfileFile, "Shell profile file (.yaml or .toml)")
	flag.BoolVar(&cfg.Terminal.StrictIDs, "strict-ids", cfg.Terminal.StrictIDs, "Reject writes and resizes to unknown sessions")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
