package domain

import (
	"time"
)

// Core Enums and Types

// AssessmentMode selects how a patient's safety assessment is produced
type AssessmentMode string

const (
	// ModeFHIR fetches clinical history from the FHIR API and runs the
	// Gemini assessment inline.
	ModeFHIR AssessmentMode = "fhir"
	// ModeTriage calls the pre-built remote triage endpoint that returns
	// an already-structured assessment.
	ModeTriage AssessmentMode = "triage"
)

// SafetyStatus represents the MRI safety determination for a patient
type SafetyStatus string

const (
	StatusSafe        SafetyStatus = "Safe"
	StatusConditional SafetyStatus = "Conditional"
	StatusUnsafe      SafetyStatus = "Unsafe"
	StatusUnknown     SafetyStatus = "Unknown"
	StatusAPIError    SafetyStatus = "API Error"
	StatusNotFound    SafetyStatus = "Not Found"
)

// RiskLevel represents the assessed scan risk for a patient
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskUnknown  RiskLevel = "Unknown"
)

// Core Data Models

// PatientRecord represents the demographic portion of a fetched patient.
// Records are immutable once fetched and scoped to a single batch run.
type PatientRecord struct {
	MRN       string `json:"mrn"`
	FHIRID    string `json:"fhir_id,omitempty"`
	Name      string `json:"name"`
	BirthDate string `json:"dob,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

// FindingBundle holds the four clinical finding lists extracted for a
// patient, in the order the FHIR API returned them. Every entry has been
// cleaned and truncated before it lands here.
type FindingBundle struct {
	Devices        []string `json:"devices"`
	Conditions     []string `json:"conditions"`
	Procedures     []string `json:"procedures"`
	ImagingStudies []string `json:"imaging_studies"`
}

// IsEmpty reports whether no category produced any finding
func (b FindingBundle) IsEmpty() bool {
	return len(b.Devices) == 0 && len(b.Conditions) == 0 &&
		len(b.Procedures) == 0 && len(b.ImagingStudies) == 0
}

// SafetyAssessment represents the outcome of assessing one patient
type SafetyAssessment struct {
	Status   SafetyStatus `json:"status"`
	Risk     RiskLevel    `json:"risk"`
	Analysis string       `json:"analysis,omitempty"`
}

// ReportRow is the fixed-schema flattening of one patient plus its
// assessment. One row exists per submitted MRN regardless of individual
// failures; missing data is an empty string or "Unknown", never an
// absent column.
type ReportRow struct {
	MRN             string `json:"mrn"`
	Name            string `json:"name"`
	BirthDate       string `json:"dob"`
	Gender          string `json:"gender"`
	SafetyStatus    string `json:"safety_status"`
	RiskLevel       string `json:"risk_level"`
	DevicesFound    string `json:"devices_found"`
	ClinicalSummary string `json:"clinical_summary"`
	KeyConcerns     string `json:"key_concerns"`
	Recommendations string `json:"recommendations"`
	FullAnalysis    string `json:"full_analysis"`
	Devices         string `json:"devices"`
	Conditions      string `json:"conditions"`
	Timestamp       string `json:"timestamp"`
}

// Request/Response Models

// BatchRequest represents an incoming batch assessment request
type BatchRequest struct {
	MRNs string         `json:"mrns" binding:"required"`
	Mode AssessmentMode `json:"mode,omitempty"`
}

// BatchResult represents a completed batch run
type BatchResult struct {
	ReportID       string         `json:"report_id"`
	Mode           AssessmentMode `json:"mode"`
	Rows           []ReportRow    `json:"rows"`
	SubmittedCount int            `json:"submitted_count"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
}

// ProgressEvent describes the state of one patient inside a running batch
type ProgressEvent struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	MRN     string `json:"mrn"`
	Stage   string `json:"stage"` // "fetching", "assessing", "done"
	Message string `json:"message,omitempty"`
}
