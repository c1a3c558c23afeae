package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// CheckMRISafetyParams defines parameters for the check_mri_safety tool
type CheckMRISafetyParams struct {
	MRN  string `json:"mrn"`
	Mode string `json:"mode,omitempty"`
}

// CheckMRISafetyResult defines the result structure for check_mri_safety
type CheckMRISafetyResult struct {
	MRN          string           `json:"mrn"`
	Mode         string           `json:"mode"`
	SafetyStatus string           `json:"safety_status"`
	RiskLevel    string           `json:"risk_level,omitempty"`
	Row          domain.ReportRow `json:"row"`
}

// BatchSafetyReportParams defines parameters for the batch_safety_report tool
type BatchSafetyReportParams struct {
	MRNs       string `json:"mrns"`
	Mode       string `json:"mode,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// BatchSafetyReportResult defines the result structure for batch_safety_report
type BatchSafetyReportResult struct {
	ReportID       string             `json:"report_id"`
	Mode           string             `json:"mode"`
	SubmittedCount int                `json:"submitted_count"`
	Rows           []domain.ReportRow `json:"rows"`
	OutputPath     string             `json:"output_path,omitempty"`
}

// handleCheckMRISafety handles the check_mri_safety tool invocation
func (s *Server) handleCheckMRISafety(ctx context.Context, req *mcp.CallToolRequest, params CheckMRISafetyParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "check_mri_safety").Info("Tool invoked")

	if params.MRN == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("mrn is required")), nil, nil
	}

	result, err := s.pipeline.Processor.Run(ctx, params.MRN, domain.AssessmentMode(params.Mode), nil)
	if err != nil {
		return s.createErrorResult("Assessment failed", err), nil, nil
	}

	row := result.Rows[0]
	toolResult := CheckMRISafetyResult{
		MRN:          row.MRN,
		Mode:         string(result.Mode),
		SafetyStatus: row.SafetyStatus,
		RiskLevel:    row.RiskLevel,
		Row:          row,
	}

	return s.createJSONResult(toolResult), toolResult, nil
}

// handleBatchSafetyReport handles the batch_safety_report tool invocation
func (s *Server) handleBatchSafetyReport(ctx context.Context, req *mcp.CallToolRequest, params BatchSafetyReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool": "batch_safety_report",
		"mode": params.Mode,
	}).Info("Tool invoked")

	if params.MRNs == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("mrns is required")), nil, nil
	}

	result, err := s.pipeline.Processor.Run(ctx, params.MRNs, domain.AssessmentMode(params.Mode), nil)
	if err != nil {
		return s.createErrorResult("Batch run failed", err), nil, nil
	}

	toolResult := BatchSafetyReportResult{
		ReportID:       result.ReportID,
		Mode:           string(result.Mode),
		SubmittedCount: result.SubmittedCount,
		Rows:           result.Rows,
	}

	if params.OutputPath != "" {
		if err := s.pipeline.ReportWriter.WriteFile(ctx, result, params.OutputPath); err != nil {
			return s.createErrorResult("Failed to write report", err), nil, nil
		}
		toolResult.OutputPath = params.OutputPath
	}

	return s.createJSONResult(toolResult), toolResult, nil
}

func (s *Server) createJSONResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
