package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// truncationMarker is appended when a patient's history exceeds the
// configured character budget
const truncationMarker = "\n...[TRUNCATED]"

// Markers the model is instructed to emit; extraction is anchored on the
// literal text so a missing marker degrades to "Unknown" instead of a
// parse failure.
// Only horizontal whitespace may follow a marker: a bare \s* would match
// the newline and capture the next line as the value.
var (
	statusPattern = regexp.MustCompile(`(?m)^\s*\*\*MRI Safety Status:\*\*[^\S\n]*(.*)$`)
	riskPattern   = regexp.MustCompile(`(?m)^\s*\*\*Risk Level:\*\*[^\S\n]*(.*)$`)
)

// ContentGenerator produces one free-text completion for one prompt
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiAssessor implements domain.RiskAssessor by sending a patient's
// clinical history to a generative model and pattern-matching the two
// labeled fields out of its free-text reply.
type GeminiAssessor struct {
	logger          *logrus.Logger
	generator       ContentGenerator
	maxHistoryChars int
}

// NewGeminiAssessor creates a new model-backed risk assessor
func NewGeminiAssessor(logger *logrus.Logger, generator ContentGenerator, maxHistoryChars int) *GeminiAssessor {
	if maxHistoryChars <= 0 {
		maxHistoryChars = 28000
	}
	return &GeminiAssessor{
		logger:          logger,
		generator:       generator,
		maxHistoryChars: maxHistoryChars,
	}
}

// Assess sends the findings to the model and parses the reply. Model
// failures never propagate: the returned assessment carries an
// "AI Error" analysis with Unknown status and risk, and the caller still
// produces a report row.
func (a *GeminiAssessor) Assess(ctx context.Context, patient *domain.PatientRecord, findings *domain.FindingBundle) *domain.SafetyAssessment {
	prompt := a.BuildPrompt(patient.Name, findings)

	a.logger.WithFields(logrus.Fields{
		"mrn":         patient.MRN,
		"prompt_size": len(prompt),
	}).Debug("Requesting safety assessment")

	reply, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		a.logger.WithError(err).WithField("mrn", patient.MRN).Warn("AI assessment failed")
		return &domain.SafetyAssessment{
			Status:   domain.StatusUnknown,
			Risk:     domain.RiskUnknown,
			Analysis: fmt.Sprintf("AI Error: %s", err),
		}
	}

	status, risk := ParseAssessmentReply(reply)
	return &domain.SafetyAssessment{
		Status:   status,
		Risk:     risk,
		Analysis: reply,
	}
}

// BuildPrompt composes the fixed prompt template around the patient name
// and history text
func (a *GeminiAssessor) BuildPrompt(name string, findings *domain.FindingBundle) string {
	history := a.BuildHistory(findings)

	return fmt.Sprintf(`You are an MRI safety expert.
Patient: %s
%s

Determine MRI Safety Status (Safe, Conditional, Unsafe) and Risk Level (Low, Mod, High).
Provide key findings and specific recommendations.

OUTPUT FORMAT:
**MRI Safety Status:** [Status]
**Risk Level:** [Level]
**Analysis:** [Full detailed analysis]
`, name, history)
}

// BuildHistory renders the four finding lists into the history block.
// Empty categories are omitted; text over the budget is cut to exactly
// maxHistoryChars with the truncation marker appended.
func (a *GeminiAssessor) BuildHistory(findings *domain.FindingBundle) string {
	var b strings.Builder
	b.WriteString("Patient's Clinical History (FHIR Data):\n")
	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n")

	writeSection := func(label string, entries []string) {
		if len(entries) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n")
		for _, entry := range entries {
			b.WriteString("- ")
			b.WriteString(entry)
			b.WriteString("\n")
		}
	}

	writeSection("DEVICES", findings.Devices)
	writeSection("CONDITIONS", findings.Conditions)
	writeSection("SURGERIES", findings.Procedures)
	writeSection("IMAGING", findings.ImagingStudies)

	// The budget counts characters; a byte slice could cut mid-rune
	history := b.String()
	if runes := []rune(history); len(runes) > a.maxHistoryChars {
		history = string(runes[:a.maxHistoryChars]) + truncationMarker
	}
	return history
}

// ParseAssessmentReply extracts the status and risk fields from a model
// reply. A missing marker yields "Unknown" for that field; the function
// never fails.
func ParseAssessmentReply(reply string) (domain.SafetyStatus, domain.RiskLevel) {
	status := domain.StatusUnknown
	risk := domain.RiskUnknown

	if m := statusPattern.FindStringSubmatch(reply); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			status = domain.SafetyStatus(v)
		}
	}
	if m := riskPattern.FindStringSubmatch(reply); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			risk = domain.RiskLevel(v)
		}
	}
	return status, risk
}
