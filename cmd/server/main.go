package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drireneleemd/mri-safety/internal/api"
	"github.com/drireneleemd/mri-safety/internal/config"
	"github.com/drireneleemd/mri-safety/internal/setup"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setup.NewLogger(cfg.Logging)

	pipeline, err := setup.BuildPipeline(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build assessment pipeline: %v", err)
	}
	defer pipeline.Close()

	log.Printf("Starting MRI safety server on %s:%d (mode: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Assessment.Mode)

	// Create server
	server := api.NewServer(configManager, logger, pipeline)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
