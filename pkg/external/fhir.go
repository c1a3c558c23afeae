package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// FHIRClient fetches patient demographics and clinical findings from an
// Epic-style FHIR R4 API. Every category query is independently fault
// tolerant: a transport error or non-200 yields an empty category and the
// patient's fetch carries on.
type FHIRClient struct {
	baseURL       string
	httpClient    *http.Client
	rateLimit     *rate.Limiter
	findingMaxLen int
}

// NewFHIRClient creates a new FHIR API client
func NewFHIRClient(config domain.EpicConfig, findingMaxLen int) *FHIRClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 10
	}
	if findingMaxLen <= 0 {
		findingMaxLen = 300
	}
	return &FHIRClient{
		baseURL: strings.TrimRight(config.FHIRBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:     rate.NewLimiter(rate.Limit(rps), rps),
		findingMaxLen: findingMaxLen,
	}
}

// FHIR response shapes, limited to the fields this tool reads

type fhirBundle struct {
	Total int         `json:"total"`
	Entry []fhirEntry `json:"entry"`
}

type fhirEntry struct {
	Resource fhirResource `json:"resource"`
}

type fhirResource struct {
	ID   string `json:"id"`
	Name []struct {
		Text string `json:"text"`
	} `json:"name"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`

	DeviceName []struct {
		Name string `json:"name"`
	} `json:"deviceName"`

	ClinicalStatus struct {
		Coding []struct {
			Code string `json:"code"`
		} `json:"coding"`
	} `json:"clinicalStatus"`

	Code struct {
		Text string `json:"text"`
	} `json:"code"`

	PerformedPeriod struct {
		Start string `json:"start"`
	} `json:"performedPeriod"`

	Category []struct {
		Text string `json:"text"`
	} `json:"category"`
}

// FetchPatient resolves an MRN to a patient record plus its four finding
// lists. It returns domain.ErrNotFound when the Patient search comes back
// empty; category queries after that never fail the fetch.
func (c *FHIRClient) FetchPatient(ctx context.Context, mrn string, token string) (*domain.PatientRecord, *domain.FindingBundle, error) {
	patientBundle, err := c.get(ctx, token, "Patient", url.Values{"identifier": {mrn}})
	if err != nil {
		return nil, nil, fmt.Errorf("patient search failed: %w", err)
	}
	if patientBundle.Total == 0 || len(patientBundle.Entry) == 0 {
		return nil, nil, domain.ErrNotFound
	}

	resource := patientBundle.Entry[0].Resource
	record := &domain.PatientRecord{
		MRN:       mrn,
		FHIRID:    resource.ID,
		BirthDate: resource.BirthDate,
		Gender:    resource.Gender,
	}
	if len(resource.Name) > 0 {
		record.Name = resource.Name[0].Text
	}

	findings := &domain.FindingBundle{
		Devices:        c.fetchDevices(ctx, token, resource.ID),
		Conditions:     c.fetchActiveConditions(ctx, token, resource.ID),
		Procedures:     c.fetchCompletedProcedures(ctx, token, resource.ID),
		ImagingStudies: c.fetchImagingStudies(ctx, token, resource.ID),
	}
	return record, findings, nil
}

// fetchDevices lists implanted devices for a patient
func (c *FHIRClient) fetchDevices(ctx context.Context, token, patientID string) []string {
	bundle := c.getSafe(ctx, token, "Device", url.Values{"patient": {patientID}})
	var devices []string
	for _, e := range bundle.Entry {
		name := "Unknown Device"
		if len(e.Resource.DeviceName) > 0 && e.Resource.DeviceName[0].Name != "" {
			name = e.Resource.DeviceName[0].Name
		}
		devices = append(devices, c.clean(name))
	}
	return devices
}

// fetchActiveConditions lists conditions whose clinical status is active
func (c *FHIRClient) fetchActiveConditions(ctx context.Context, token, patientID string) []string {
	bundle := c.getSafe(ctx, token, "Condition", url.Values{"patient": {patientID}})
	var conditions []string
	for _, e := range bundle.Entry {
		if len(e.Resource.ClinicalStatus.Coding) == 0 || e.Resource.ClinicalStatus.Coding[0].Code != "active" {
			continue
		}
		name := e.Resource.Code.Text
		if name == "" {
			name = "Unknown Condition"
		}
		conditions = append(conditions, c.clean(name))
	}
	return conditions
}

// fetchCompletedProcedures lists completed procedures, each labeled with
// its performed date when the resource carries one
func (c *FHIRClient) fetchCompletedProcedures(ctx context.Context, token, patientID string) []string {
	bundle := c.getSafe(ctx, token, "Procedure", url.Values{"patient": {patientID}, "status": {"completed"}})
	var procedures []string
	for _, e := range bundle.Entry {
		name := e.Resource.Code.Text
		if name == "" {
			name = "Unknown Procedure"
		}
		procedures = append(procedures, fmt.Sprintf("%s (%s)", c.clean(name), e.Resource.PerformedPeriod.Start))
	}
	return procedures
}

// fetchImagingStudies filters diagnostic reports down to radiology and
// imaging categories
func (c *FHIRClient) fetchImagingStudies(ctx context.Context, token, patientID string) []string {
	bundle := c.getSafe(ctx, token, "DiagnosticReport", url.Values{"patient": {patientID}})
	var studies []string
	for _, e := range bundle.Entry {
		if len(e.Resource.Category) == 0 {
			continue
		}
		category := strings.ToLower(e.Resource.Category[0].Text)
		if !strings.Contains(category, "radiology") && !strings.Contains(category, "imaging") {
			continue
		}
		name := e.Resource.Code.Text
		if name == "" {
			name = "Study"
		}
		studies = append(studies, c.clean(name))
	}
	return studies
}

// getSafe is the fault-tolerant variant of get: any error becomes an
// empty bundle so one failed category never aborts the patient
func (c *FHIRClient) getSafe(ctx context.Context, token, resourceType string, params url.Values) fhirBundle {
	bundle, err := c.get(ctx, token, resourceType, params)
	if err != nil {
		return fhirBundle{}
	}
	return *bundle
}

func (c *FHIRClient) get(ctx context.Context, token, resourceType string, params url.Values) (*fhirBundle, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, resourceType, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", resourceType, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", resourceType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request returned status %d", resourceType, resp.StatusCode)
	}

	var bundle fhirBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode %s bundle: %w", resourceType, err)
	}
	return &bundle, nil
}

// clean collapses newlines to spaces, trims surrounding whitespace, and
// truncates to the configured per-finding length so downstream prompt
// payloads stay bounded. The limit counts characters, not bytes: cutting
// mid-rune would feed invalid UTF-8 into the prompt.
func (c *FHIRClient) clean(text string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if runes := []rune(cleaned); len(runes) > c.findingMaxLen {
		cleaned = string(runes[:c.findingMaxLen])
	}
	return cleaned
}
