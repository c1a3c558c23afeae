package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drireneleemd/mri-safety/internal/config"
	"github.com/drireneleemd/mri-safety/internal/mcp"
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

	// Create MCP server
	mcpServer, err := mcp.NewServer(configManager, logger, pipeline)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	// Start MCP server
	if err := mcpServer.Start(ctx); err != nil {
		log.Fatalf("MCP server failed to start: %v", err)
	}

	log.Println("MCP server stopped")
}
