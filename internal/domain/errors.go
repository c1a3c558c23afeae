package domain

import (
	"errors"
	"fmt"
	"time"
)

// AssessmentError represents a standardized error response
type AssessmentError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AssessmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrAuthentication  = "AUTHENTICATION_ERROR"
	ErrPatientNotFound = "PATIENT_NOT_FOUND"
	ErrExternalAPI     = "EXTERNAL_API_ERROR"
	ErrAI              = "AI_ERROR"
	ErrReport          = "REPORT_ERROR"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
)

// NewAssessmentError creates a new AssessmentError with timestamp
func NewAssessmentError(code, message, details, requestID string) *AssessmentError {
	return &AssessmentError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrNotFound signals that the FHIR API returned no patient for an MRN
var ErrNotFound = errors.New("patient not found")
