package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/internal/middleware"
	"github.com/drireneleemd/mri-safety/internal/service"
	"github.com/drireneleemd/mri-safety/internal/setup"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	pipeline      *setup.Pipeline
	store         *runStore
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, pipeline *setup.Pipeline) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		pipeline:      pipeline,
		store:         newRunStore(),
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is canceled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/batch", s.handleBatch)
		v1.GET("/batch/ws", s.handleBatchWS)
		v1.GET("/reports/:id", s.handleDownloadReport)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"mode":      s.configManager.GetConfig().Assessment.Mode,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// handleBatch runs a batch synchronously and returns the rows plus a
// report ID for downloading the spreadsheet
func (s *Server) handleBatch(c *gin.Context) {
	var req domain.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "invalid request body",
			"details":        err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	result, err := s.pipeline.Processor.Run(c.Request.Context(), req.MRNs, req.Mode, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if assessmentErr, ok := err.(*domain.AssessmentError); ok {
			switch assessmentErr.Code {
			case domain.ErrInvalidInput:
				status = http.StatusBadRequest
			case domain.ErrAuthentication:
				status = http.StatusBadGateway
			}
		}
		c.JSON(status, gin.H{
			"error":          err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	s.store.Put(result)
	c.JSON(http.StatusOK, result)
}

// handleDownloadReport serializes a stored run into its spreadsheet
func (s *Server) handleDownloadReport(c *gin.Context) {
	result, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":          "report not found",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	data, err := s.pipeline.ReportWriter.Write(c.Request.Context(), result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "failed to generate report",
			"details":        err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	filename := s.pipeline.ReportWriter.Filename(result.Mode)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, service.ReportMIMEType, data)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
