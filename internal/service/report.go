package service

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx/v3"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// ReportMIMEType is the content type of the generated artifact
const ReportMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportColumn binds a header to its row field and rendering width class
type reportColumn struct {
	header string
	value  func(row domain.ReportRow) string
	wide   bool
}

// triageColumns is the fixed column order for triage-mode reports
var triageColumns = []reportColumn{
	{"MRN", func(r domain.ReportRow) string { return r.MRN }, false},
	{"Name", func(r domain.ReportRow) string { return r.Name }, false},
	{"DOB", func(r domain.ReportRow) string { return r.BirthDate }, false},
	{"Gender", func(r domain.ReportRow) string { return r.Gender }, false},
	{"Safety Status", func(r domain.ReportRow) string { return r.SafetyStatus }, false},
	{"Risk Level", func(r domain.ReportRow) string { return r.RiskLevel }, false},
	{"Devices/Implants Found", func(r domain.ReportRow) string { return r.DevicesFound }, true},
	{"Clinical Summary", func(r domain.ReportRow) string { return r.ClinicalSummary }, true},
	{"Key Concerns", func(r domain.ReportRow) string { return r.KeyConcerns }, true},
	{"Technologist Recommendations", func(r domain.ReportRow) string { return r.Recommendations }, true},
	{"Timestamp", func(r domain.ReportRow) string { return r.Timestamp }, false},
}

// fhirColumns is the fixed column order for fhir-mode reports
var fhirColumns = []reportColumn{
	{"MRN", func(r domain.ReportRow) string { return r.MRN }, false},
	{"Name", func(r domain.ReportRow) string { return r.Name }, false},
	{"Safety Status", func(r domain.ReportRow) string { return r.SafetyStatus }, false},
	{"Risk Level", func(r domain.ReportRow) string { return r.RiskLevel }, false},
	{"Full Analysis", func(r domain.ReportRow) string { return r.FullAnalysis }, true},
	{"Devices", func(r domain.ReportRow) string { return r.Devices }, true},
	{"Conditions", func(r domain.ReportRow) string { return r.Conditions }, true},
}

// XLSXReportWriter serializes a completed batch into a single-sheet
// spreadsheet. Long-text columns are rendered wider with wrapped,
// top-aligned text; everything else gets the narrow fixed width. Each
// run produces a brand-new artifact; there are no update semantics.
type XLSXReportWriter struct {
	logger *logrus.Logger
	config domain.ReportConfig
}

// NewXLSXReportWriter creates a new spreadsheet report writer
func NewXLSXReportWriter(logger *logrus.Logger, config domain.ReportConfig) *XLSXReportWriter {
	if config.SheetName == "" {
		config.SheetName = "Safety Report"
	}
	if config.WideColumnWidth <= 0 {
		config.WideColumnWidth = 50
	}
	if config.ColumnWidth <= 0 {
		config.ColumnWidth = 20
	}
	return &XLSXReportWriter{logger: logger, config: config}
}

// Write serializes the batch result into xlsx bytes
func (w *XLSXReportWriter) Write(ctx context.Context, result *domain.BatchResult) ([]byte, error) {
	file, err := w.build(result)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"report_id": result.ReportID,
		"rows":      len(result.Rows),
		"bytes":     buf.Len(),
	}).Info("Report serialized")

	return buf.Bytes(), nil
}

// WriteFile serializes the batch result to a file on disk
func (w *XLSXReportWriter) WriteFile(ctx context.Context, result *domain.BatchResult, path string) error {
	data, err := w.Write(ctx, result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Filename returns the download filename for a mode
func (w *XLSXReportWriter) Filename(mode domain.AssessmentMode) string {
	if mode == domain.ModeFHIR {
		if w.config.FHIRFilename != "" {
			return w.config.FHIRFilename
		}
		return "mri_safety_report.xlsx"
	}
	if w.config.TriageFilename != "" {
		return w.config.TriageFilename
	}
	return "mri_safety_batch_report.xlsx"
}

// Columns returns the header set used for a mode
func Columns(mode domain.AssessmentMode) []string {
	columns := columnsFor(mode)
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	return headers
}

func columnsFor(mode domain.AssessmentMode) []reportColumn {
	if mode == domain.ModeFHIR {
		return fhirColumns
	}
	return triageColumns
}

func (w *XLSXReportWriter) build(result *domain.BatchResult) (*xlsx.File, error) {
	columns := columnsFor(result.Mode)

	file := xlsx.NewFile()
	sh, err := file.AddSheet(w.config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	wrapStyle := xlsx.NewStyle()
	wrapStyle.Alignment = xlsx.Alignment{WrapText: true, Vertical: "top"}
	wrapStyle.ApplyAlignment = true

	headerRow := sh.AddRow()
	for _, col := range columns {
		headerRow.AddCell().SetValue(col.header)
	}

	for _, row := range result.Rows {
		currentRow := sh.AddRow()
		for _, col := range columns {
			cell := currentRow.AddCell()
			cell.SetValue(col.value(row))
			if col.wide {
				cell.SetStyle(wrapStyle)
			}
		}
	}

	for i, col := range columns {
		width := w.config.ColumnWidth
		if col.wide {
			width = w.config.WideColumnWidth
		}
		sh.SetColWidth(i+1, i+1, width)
	}

	return file, nil
}
