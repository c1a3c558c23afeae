package service

import (
	"fmt"
	"strings"

	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/pkg/external"
)

// descriptionFallbackLen bounds the device label when a finding has no
// nested device resource to name it from
const descriptionFallbackLen = 50

// FlattenTriageResponse turns one semi-structured triage response into a
// fixed-schema report row. Failed lookups become rows flagged "API Error"
// with the failure text as the clinical summary, so the report keeps one
// row per submitted MRN.
func FlattenTriageResponse(resp *external.TriageResponse) domain.ReportRow {
	if resp.Error != "" {
		mrn := resp.PatientInfo.MRN
		if mrn == "" {
			mrn = "Unknown"
		}
		return domain.ReportRow{
			MRN:             mrn,
			SafetyStatus:    string(domain.StatusAPIError),
			ClinicalSummary: resp.Error,
		}
	}

	var devices []string
	for _, finding := range resp.Details.IndividualFindings {
		if !finding.HasConcern {
			continue
		}
		devices = append(devices, describeDevice(finding))
	}

	return domain.ReportRow{
		MRN:             stripEmojiPrefix(resp.PatientInfo.MRN),
		Name:            stripEmojiPrefix(resp.PatientInfo.Name),
		BirthDate:       stripEmojiPrefix(resp.PatientInfo.DOB),
		Gender:          stripEmojiPrefix(resp.PatientInfo.Gender),
		SafetyStatus:    resp.Assessment.Status,
		RiskLevel:       resp.Assessment.Risk,
		DevicesFound:    strings.Join(devices, "\n"),
		ClinicalSummary: resp.Assessment.Summary,
		KeyConcerns:     strings.Join(resp.Assessment.Concerns, "\n"),
		Recommendations: strings.Join(resp.Assessment.Recommendations, "\n"),
		Timestamp:       resp.Timestamp,
	}
}

// describeDevice builds the human-readable bullet for one concerning
// finding, digging into the nested device resource when it exists and
// falling back to the truncated description otherwise
func describeDevice(finding external.TriageFinding) string {
	resource := finding.ItemData.Resource

	name := ""
	if len(resource.DeviceName) > 0 {
		name = resource.DeviceName[0].Name
	}
	if name == "" {
		name = finding.Description
		if name == "" {
			name = "Unknown Device"
		}
		if runes := []rune(name); len(runes) > descriptionFallbackLen {
			name = string(runes[:descriptionFallbackLen])
		}
		name += "..."
	}

	model := resource.ModelNumber
	if model == "" {
		model = "N/A"
	}

	return fmt.Sprintf("• %s (Model: %s) - %s risk", name, model, strings.ToUpper(finding.ConcernLevel))
}

// Emoji prefixes the triage endpoint decorates patient fields with
var emojiPrefixes = []string{"🏥 ", "👤 ", "📅 ", "⚧ "}

func stripEmojiPrefix(s string) string {
	for _, prefix := range emojiPrefixes {
		s = strings.ReplaceAll(s, prefix, "")
	}
	return s
}

// FlattenAssessment turns a FHIR-mode patient plus its model assessment
// into a report row
func FlattenAssessment(patient *domain.PatientRecord, findings *domain.FindingBundle, assessment *domain.SafetyAssessment) domain.ReportRow {
	row := domain.ReportRow{
		MRN:          patient.MRN,
		Name:         patient.Name,
		BirthDate:    patient.BirthDate,
		Gender:       patient.Gender,
		SafetyStatus: string(assessment.Status),
		RiskLevel:    string(assessment.Risk),
		FullAnalysis: assessment.Analysis,
	}
	if findings != nil {
		row.Devices = strings.Join(findings.Devices, " | ")
		row.Conditions = strings.Join(findings.Conditions, " | ")
	}
	return row
}
