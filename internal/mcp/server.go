package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/internal/setup"
)

// Server exposes the assessment pipeline as MCP tools over stdio so
// that agent hosts can run safety checks conversationally
type Server struct {
	config    domain.ConfigManager
	logger    *logrus.Logger
	pipeline  *setup.Pipeline
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, pipeline *setup.Pipeline) (*Server, error) {
	mcpConfig := configManager.GetConfig().MCP
	serverInfo := &mcp.Implementation{
		Name:    mcpConfig.ServerName,
		Version: mcpConfig.ServerVersion,
	}

	server := &Server{
		config:    configManager,
		logger:    logger,
		pipeline:  pipeline,
		mcpServer: mcp.NewServer(serverInfo, nil),
	}

	server.registerTools()

	return server, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_mri_safety",
		Description: "Run an MRI safety assessment for a single patient MRN and return the flattened result row",
	}, s.handleCheckMRISafety)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "batch_safety_report",
		Description: "Run MRI safety assessments for a list of MRNs and optionally write the spreadsheet report to disk",
	}, s.handleBatchSafetyReport)

	s.logger.WithField("tool_count", 2).Info("Registered MCP tools")
}

// Start runs the MCP server over stdio until the context is canceled
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MRI safety MCP server...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
