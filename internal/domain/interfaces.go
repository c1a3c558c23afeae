package domain

import (
	"context"
)

// PatientSource fetches a patient's demographics and clinical findings.
// Implementations must be fault tolerant per category: a failed category
// query yields an empty list, never an error for the whole patient.
type PatientSource interface {
	FetchPatient(ctx context.Context, mrn string, token string) (*PatientRecord, *FindingBundle, error)
}

// TokenProvider exchanges locally held credentials for a bearer token.
// One token is fetched per batch run and reused read-only.
type TokenProvider interface {
	FetchToken(ctx context.Context) (string, error)
}

// RiskAssessor produces a safety assessment from a patient's history
type RiskAssessor interface {
	Assess(ctx context.Context, patient *PatientRecord, findings *FindingBundle) *SafetyAssessment
}

// ReportWriter serializes accumulated rows into the spreadsheet artifact
type ReportWriter interface {
	Write(ctx context.Context, result *BatchResult) ([]byte, error)
	WriteFile(ctx context.Context, result *BatchResult, path string) error
	Filename(mode AssessmentMode) string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetEpicConfig() *EpicConfig
	GetGeminiConfig() *GeminiConfig
	GetTriageConfig() *TriageConfig
	Reload() error
	Validate() error
}
