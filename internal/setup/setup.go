// Package setup assembles the assessment pipeline shared by the HTTP
// server, the MCP server and the batch CLI.
package setup

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/internal/service"
	"github.com/drireneleemd/mri-safety/pkg/external"
)

// NewLogger builds a logrus logger from the logging configuration
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// Pipeline holds the wired assessment components for one deployment
type Pipeline struct {
	Processor    *service.BatchProcessor
	ReportWriter domain.ReportWriter
	Cache        *external.CacheClient
}

// BuildPipeline wires clients according to the configuration. Only the
// pipeline for the configured mode is constructed: a triage-only
// deployment never needs the Epic key file or a Gemini API key, and a
// fhir-mode request against it fails with a clear error instead of a
// missing credential.
func BuildPipeline(cfg *domain.Config, logger *logrus.Logger) (*Pipeline, error) {
	var cacheClient *external.CacheClient
	if cfg.Cache.Enabled {
		var err error
		cacheClient, err = external.NewCacheClient(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		logger.Info("Triage response cache enabled")
	}

	var (
		tokenProvider domain.TokenProvider
		patientSource domain.PatientSource
		assessor      domain.RiskAssessor
		triage        service.TriageChecker
	)

	switch cfg.Assessment.Mode {
	case domain.ModeFHIR:
		tokenProvider = external.NewEpicAuthClient(cfg.Epic)
		patientSource = external.NewFHIRClient(cfg.Epic, cfg.Assessment.FindingMaxLen)

		gemini, err := external.NewResilientGeminiClient(cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		assessor = service.NewGeminiAssessor(logger, gemini, cfg.Assessment.MaxHistoryChars)
	case domain.ModeTriage:
		triage = external.NewResilientTriageClient(cfg.Triage, cacheClient, cfg.Cache.DefaultTTL)
	default:
		return nil, fmt.Errorf("unknown assessment mode %q", cfg.Assessment.Mode)
	}

	processor, err := service.NewBatchProcessor(logger, cfg.Assessment, tokenProvider, patientSource, assessor, triage)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Processor:    processor,
		ReportWriter: service.NewXLSXReportWriter(logger, cfg.Report),
		Cache:        cacheClient,
	}, nil
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	if p.Cache != nil {
		return p.Cache.Close()
	}
	return nil
}
