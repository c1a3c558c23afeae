package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/pkg/external"
)

// TriageChecker returns the structured triage result for one MRN
type TriageChecker interface {
	CheckMRN(ctx context.Context, mrn string) *external.TriageResponse
}

// ProgressFunc receives per-patient progress while a batch is running.
// It may be nil.
type ProgressFunc func(event domain.ProgressEvent)

// BatchProcessor runs a batch of MRNs through one of the two assessment
// pipelines and accumulates report rows in input order. Processing is
// sequential and synchronous: one patient at a time, each network call
// blocking until it returns or errors. Both pipelines emit exactly one
// row per submitted MRN; failures surface inside the row, never by
// dropping it.
type BatchProcessor struct {
	logger        *logrus.Logger
	config        domain.AssessmentConfig
	tokenProvider domain.TokenProvider
	patientSource domain.PatientSource
	assessor      domain.RiskAssessor
	triage        TriageChecker
	runCacheSize  int
}

// NewBatchProcessor creates a batch processor. The dependencies a mode
// does not use may be nil: tokenProvider, patientSource and assessor
// belong to fhir mode, triage to triage mode.
func NewBatchProcessor(
	logger *logrus.Logger,
	config domain.AssessmentConfig,
	tokenProvider domain.TokenProvider,
	patientSource domain.PatientSource,
	assessor domain.RiskAssessor,
	triage TriageChecker,
) (*BatchProcessor, error) {
	size := config.RunCacheSize
	if size <= 0 {
		size = 128
	}
	return &BatchProcessor{
		logger:        logger,
		config:        config,
		tokenProvider: tokenProvider,
		patientSource: patientSource,
		assessor:      assessor,
		triage:        triage,
		runCacheSize:  size,
	}, nil
}

// ParseMRNList splits a comma or newline separated identifier list,
// trimming whitespace and dropping empties while preserving input order
func ParseMRNList(input string) []string {
	var mrns []string
	for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == '\n' }) {
		if mrn := strings.TrimSpace(part); mrn != "" {
			mrns = append(mrns, mrn)
		}
	}
	return mrns
}

// Run processes the submitted MRN list in the given mode. In fhir mode a
// single bearer token is fetched up front and reused read-only for every
// patient query; an authentication failure aborts the whole run before
// any patient is touched.
func (p *BatchProcessor) Run(ctx context.Context, mrnInput string, mode domain.AssessmentMode, progress ProgressFunc) (*domain.BatchResult, error) {
	mrns := ParseMRNList(mrnInput)
	if len(mrns) == 0 {
		return nil, domain.NewAssessmentError(domain.ErrInvalidInput, "no MRNs submitted", "", "")
	}
	if mode == "" {
		mode = p.config.Mode
	}
	switch mode {
	case domain.ModeFHIR:
		if p.tokenProvider == nil || p.patientSource == nil || p.assessor == nil {
			return nil, domain.NewAssessmentError(domain.ErrInvalidInput, "fhir mode is not configured", "", "")
		}
	case domain.ModeTriage:
		if p.triage == nil {
			return nil, domain.NewAssessmentError(domain.ErrInvalidInput, "triage mode is not configured", "", "")
		}
	default:
		return nil, domain.NewAssessmentError(domain.ErrInvalidInput, fmt.Sprintf("unknown assessment mode %q", mode), "", "")
	}

	startedAt := time.Now().UTC()
	p.logger.WithFields(logrus.Fields{
		"mode":          mode,
		"patient_count": len(mrns),
	}).Info("Starting batch assessment")

	var token string
	if mode == domain.ModeFHIR {
		var err error
		token, err = p.tokenProvider.FetchToken(ctx)
		if err != nil {
			p.logger.WithError(err).Error("Authentication failed, aborting batch")
			return nil, domain.NewAssessmentError(domain.ErrAuthentication, "failed to authenticate with FHIR API", err.Error(), "")
		}
	}

	// The dedupe cache is scoped to this run: nothing carries over
	// between batches.
	runCache, err := lru.New[string, domain.ReportRow](p.runCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create run cache: %w", err)
	}

	rows := make([]domain.ReportRow, 0, len(mrns))
	for i, mrn := range mrns {
		p.emit(progress, domain.ProgressEvent{Index: i, Total: len(mrns), MRN: mrn, Stage: "fetching"})

		row := p.processOne(ctx, runCache, mrn, mode, token, progress, i, len(mrns))
		rows = append(rows, row)

		p.emit(progress, domain.ProgressEvent{Index: i, Total: len(mrns), MRN: mrn, Stage: "done", Message: row.SafetyStatus})
	}

	result := &domain.BatchResult{
		ReportID:       uuid.New().String(),
		Mode:           mode,
		Rows:           rows,
		SubmittedCount: len(mrns),
		StartedAt:      startedAt,
		CompletedAt:    time.Now().UTC(),
	}

	p.logger.WithFields(logrus.Fields{
		"report_id":  result.ReportID,
		"mode":       mode,
		"row_count":  len(rows),
		"elapsed_ms": result.CompletedAt.Sub(startedAt).Milliseconds(),
	}).Info("Batch assessment completed")

	return result, nil
}

// processOne produces the row for a single MRN, serving repeats within a
// run from the in-process cache
func (p *BatchProcessor) processOne(ctx context.Context, runCache *lru.Cache[string, domain.ReportRow], mrn string, mode domain.AssessmentMode, token string, progress ProgressFunc, index, total int) domain.ReportRow {
	cacheKey := string(mode) + ":" + mrn
	if cached, ok := runCache.Get(cacheKey); ok {
		p.logger.WithField("mrn", mrn).Debug("Serving repeated MRN from run cache")
		return cached
	}

	var row domain.ReportRow
	switch mode {
	case domain.ModeTriage:
		row = FlattenTriageResponse(p.triage.CheckMRN(ctx, mrn))
	default:
		row = p.processFHIR(ctx, mrn, token, progress, index, total)
	}

	runCache.Add(cacheKey, row)
	return row
}

// processFHIR fetches, assesses and flattens one patient in fhir mode.
// A not-found patient yields a flagged row instead of being skipped so
// both modes keep row count equal to the submitted MRN count.
func (p *BatchProcessor) processFHIR(ctx context.Context, mrn, token string, progress ProgressFunc, index, total int) domain.ReportRow {
	patient, findings, err := p.patientSource.FetchPatient(ctx, mrn, token)
	if err != nil {
		p.logger.WithError(err).WithField("mrn", mrn).Warn("Patient fetch failed")
		status := domain.StatusAPIError
		message := err.Error()
		if err == domain.ErrNotFound {
			status = domain.StatusNotFound
			message = fmt.Sprintf("Patient %s not found", mrn)
		}
		return domain.ReportRow{
			MRN:          mrn,
			SafetyStatus: string(status),
			RiskLevel:    string(domain.RiskUnknown),
			FullAnalysis: message,
		}
	}

	if findings.IsEmpty() {
		p.logger.WithField("mrn", mrn).Debug("No clinical findings returned, assessing on demographics only")
	}

	p.emit(progress, domain.ProgressEvent{Index: index, Total: total, MRN: mrn, Stage: "assessing"})

	assessment := p.assessor.Assess(ctx, patient, findings)
	return FlattenAssessment(patient, findings, assessment)
}

func (p *BatchProcessor) emit(progress ProgressFunc, event domain.ProgressEvent) {
	if progress != nil {
		progress(event)
	}
}
