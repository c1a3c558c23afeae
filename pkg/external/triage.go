package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// TriageClient calls the pre-built remote triage endpoint that returns an
// already-structured MRI safety assessment for an MRN. Transport failures
// and non-2xx statuses are folded into the response value's Error field
// rather than returned as Go errors, so a batch run always gets a
// flattenable result for every MRN.
type TriageClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewTriageClient creates a new triage endpoint client
func NewTriageClient(config domain.TriageConfig) *TriageClient {
	return &TriageClient{
		endpoint: config.Endpoint,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// TriageResponse is the semi-structured body returned by the triage
// endpoint. On failure only Error and PatientInfo.MRN are populated.
type TriageResponse struct {
	Error       string            `json:"error,omitempty"`
	PatientInfo TriagePatientInfo `json:"patient_info"`
	Assessment  TriageAssessment  `json:"mri_safety_assessment"`
	Details     TriageDetails     `json:"analysis_details"`
	Timestamp   string            `json:"timestamp"`
}

// TriagePatientInfo carries patient demographics as the endpoint renders
// them, emoji prefixes included
type TriagePatientInfo struct {
	MRN    string `json:"mrn"`
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
}

// TriageAssessment is the top-level assessment object
type TriageAssessment struct {
	Status          string   `json:"status"`
	Risk            string   `json:"risk"`
	Summary         string   `json:"summary"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// TriageDetails holds the per-finding breakdown
type TriageDetails struct {
	IndividualFindings []TriageFinding `json:"individual_findings"`
}

// TriageFinding is one clinical finding with an optional nested device
// resource
type TriageFinding struct {
	HasConcern   bool   `json:"has_concern"`
	Description  string `json:"description"`
	ConcernLevel string `json:"concern_level"`
	ItemData     struct {
		Resource struct {
			DeviceName []struct {
				Name string `json:"name"`
			} `json:"deviceName"`
			ModelNumber string `json:"modelNumber"`
		} `json:"resource"`
	} `json:"item_data"`
}

// CheckMRN posts one MRN to the triage endpoint. The returned response is
// never nil; on any failure its Error field carries the failure text.
func (c *TriageClient) CheckMRN(ctx context.Context, mrn string) *TriageResponse {
	mrn = strings.TrimSpace(mrn)
	errResp := func(err error) *TriageResponse {
		return &TriageResponse{
			Error:       err.Error(),
			PatientInfo: TriagePatientInfo{MRN: mrn},
		}
	}

	payload, err := json.Marshal(map[string]string{"mrn": mrn})
	if err != nil {
		return errResp(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return errResp(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errResp(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errResp(fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errResp(fmt.Errorf("triage endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var triage TriageResponse
	if err := json.Unmarshal(body, &triage); err != nil {
		return errResp(fmt.Errorf("failed to decode triage response: %w", err))
	}
	if triage.PatientInfo.MRN == "" {
		triage.PatientInfo.MRN = mrn
	}
	return &triage
}
