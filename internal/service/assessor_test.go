package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// stubGenerator returns a canned reply or error
type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestParseAssessmentReply(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		expectedStatus domain.SafetyStatus
		expectedRisk   domain.RiskLevel
	}{
		{
			name: "both markers present",
			reply: `**MRI Safety Status:** Conditional
**Risk Level:** Moderate
**Analysis:** Pacemaker requires interrogation before scanning.`,
			expectedStatus: domain.StatusConditional,
			expectedRisk:   domain.RiskModerate,
		},
		{
			name: "markers indented by the model",
			reply: `  **MRI Safety Status:** Safe
  **Risk Level:** Low`,
			expectedStatus: domain.StatusSafe,
			expectedRisk:   domain.RiskLow,
		},
		{
			name:           "risk marker missing",
			reply:          "**MRI Safety Status:** Unsafe\nsome free text",
			expectedStatus: domain.StatusUnsafe,
			expectedRisk:   domain.RiskUnknown,
		},
		{
			name:           "no markers at all",
			reply:          "The patient appears fine.",
			expectedStatus: domain.StatusUnknown,
			expectedRisk:   domain.RiskUnknown,
		},
		{
			name:           "marker with empty value",
			reply:          "**MRI Safety Status:** \n**Risk Level:** High",
			expectedStatus: domain.StatusUnknown,
			expectedRisk:   domain.RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, risk := ParseAssessmentReply(tt.reply)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedRisk, risk)
		})
	}
}

func TestGeminiAssessor_BuildHistory(t *testing.T) {
	assessor := NewGeminiAssessor(testLogger(), &stubGenerator{}, 28000)

	findings := &domain.FindingBundle{
		Devices:    []string{"Cardiac pacemaker", "Hip prosthesis"},
		Conditions: []string{"Atrial fibrillation"},
		Procedures: []string{"Pacemaker implantation (2019-08-02)"},
	}

	history := assessor.BuildHistory(findings)

	assert.True(t, strings.HasPrefix(history, "Patient's Clinical History (FHIR Data):\n"+strings.Repeat("-", 40)+"\n"))
	assert.Contains(t, history, "DEVICES:\n- Cardiac pacemaker\n- Hip prosthesis\n")
	assert.Contains(t, history, "CONDITIONS:\n- Atrial fibrillation\n")
	assert.Contains(t, history, "SURGERIES:\n- Pacemaker implantation (2019-08-02)\n")
	// Empty categories are omitted entirely
	assert.NotContains(t, history, "IMAGING")
}

func TestGeminiAssessor_BuildHistory_Truncation(t *testing.T) {
	const budget = 200
	assessor := NewGeminiAssessor(testLogger(), &stubGenerator{}, budget)

	var devices []string
	for i := 0; i < 50; i++ {
		devices = append(devices, fmt.Sprintf("device number %d with a long descriptive label", i))
	}

	history := assessor.BuildHistory(&domain.FindingBundle{Devices: devices})

	assert.True(t, strings.HasSuffix(history, "\n...[TRUNCATED]"))
	assert.Len(t, history, budget+len("\n...[TRUNCATED]"))
}

func TestGeminiAssessor_BuildHistory_TruncationMultiByte(t *testing.T) {
	const budget = 200
	assessor := NewGeminiAssessor(testLogger(), &stubGenerator{}, budget)

	var devices []string
	for i := 0; i < 50; i++ {
		devices = append(devices, fmt.Sprintf("prothèse numéro %d, étiquette détaillée", i))
	}

	history := assessor.BuildHistory(&domain.FindingBundle{Devices: devices})

	assert.True(t, utf8.ValidString(history))
	assert.True(t, strings.HasSuffix(history, "\n...[TRUNCATED]"))
	assert.Equal(t, budget+len([]rune("\n...[TRUNCATED]")), utf8.RuneCountInString(history))
}

func TestGeminiAssessor_BuildPrompt(t *testing.T) {
	assessor := NewGeminiAssessor(testLogger(), &stubGenerator{}, 28000)

	prompt := assessor.BuildPrompt("Jordan Smith", &domain.FindingBundle{Devices: []string{"Pacemaker"}})

	assert.Contains(t, prompt, "Patient: Jordan Smith")
	assert.Contains(t, prompt, "**MRI Safety Status:** [Status]")
	assert.Contains(t, prompt, "**Risk Level:** [Level]")
	assert.Contains(t, prompt, "- Pacemaker")
}

func TestGeminiAssessor_Assess(t *testing.T) {
	patient := &domain.PatientRecord{MRN: "12345", Name: "Jordan Smith"}
	findings := &domain.FindingBundle{Devices: []string{"Pacemaker"}}

	t.Run("successful assessment", func(t *testing.T) {
		reply := "**MRI Safety Status:** Conditional\n**Risk Level:** High\n**Analysis:** details"
		assessor := NewGeminiAssessor(testLogger(), &stubGenerator{reply: reply}, 28000)

		assessment := assessor.Assess(context.Background(), patient, findings)
		assert.Equal(t, domain.StatusConditional, assessment.Status)
		assert.Equal(t, domain.RiskHigh, assessment.Risk)
		assert.Equal(t, reply, assessment.Analysis)
	})

	t.Run("model failure degrades to unknown", func(t *testing.T) {
		assessor := NewGeminiAssessor(testLogger(), &stubGenerator{err: fmt.Errorf("rate limited")}, 28000)

		assessment := assessor.Assess(context.Background(), patient, findings)
		require.NotNil(t, assessment)
		assert.Equal(t, domain.StatusUnknown, assessment.Status)
		assert.Equal(t, domain.RiskUnknown, assessment.Risk)
		assert.Equal(t, "AI Error: rate limited", assessment.Analysis)
	})
}
