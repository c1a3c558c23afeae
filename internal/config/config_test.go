package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, domain.ModeTriage, cfg.Assessment.Mode)
	assert.Equal(t, 28000, cfg.Assessment.MaxHistoryChars)
	assert.Equal(t, 300, cfg.Assessment.FindingMaxLen)
	assert.Equal(t, "my-key-1", cfg.Epic.KeyID)
	assert.NotEmpty(t, cfg.Epic.TokenURL)
	assert.NotEmpty(t, cfg.Triage.Endpoint)
	assert.Equal(t, "mri_safety_report.xlsx", cfg.Report.FHIRFilename)
	assert.Equal(t, "mri_safety_batch_report.xlsx", cfg.Report.TriageFilename)
	assert.Equal(t, float64(50), cfg.Report.WideColumnWidth)
	assert.Equal(t, float64(20), cfg.Report.ColumnWidth)
	assert.False(t, cfg.Cache.Enabled)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(cfg *domain.Config)
		errContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *domain.Config) {},
		},
		{
			name:        "invalid port",
			mutate:      func(cfg *domain.Config) { cfg.Server.Port = -1 },
			errContains: "invalid server port",
		},
		{
			name:        "invalid mode",
			mutate:      func(cfg *domain.Config) { cfg.Assessment.Mode = "bogus" },
			errContains: "invalid assessment mode",
		},
		{
			name: "fhir mode requires gemini key",
			mutate: func(cfg *domain.Config) {
				cfg.Assessment.Mode = domain.ModeFHIR
				cfg.Gemini.APIKey = ""
			},
			errContains: "gemini api_key is required",
		},
		{
			name: "fhir mode with credentials is valid",
			mutate: func(cfg *domain.Config) {
				cfg.Assessment.Mode = domain.ModeFHIR
				cfg.Gemini.APIKey = "test-key"
			},
		},
		{
			name: "triage mode requires endpoint",
			mutate: func(cfg *domain.Config) {
				cfg.Assessment.Mode = domain.ModeTriage
				cfg.Triage.Endpoint = ""
			},
			errContains: "triage endpoint is required",
		},
		{
			name:        "history budget must be positive",
			mutate:      func(cfg *domain.Config) { cfg.Assessment.MaxHistoryChars = 0 },
			errContains: "max_history_chars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewManager()
			require.NoError(t, err)

			tt.mutate(manager.GetConfig())

			err = manager.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}
