package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mri-safety/")

	// Set environment variable prefix and enable automatic env binding.
	// MRI_SAFETY_GEMINI_API_KEY takes precedence over any api_key in the
	// config file, which is the supported way to keep the key out of it.
	viper.SetEnvPrefix("MRI_SAFETY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Epic FHIR defaults
	viper.SetDefault("epic.client_id", "2914e8ac-a781-47b2-928b-404916f6e8d2")
	viper.SetDefault("epic.key_id", "my-key-1")
	viper.SetDefault("epic.private_key_path", "private_key.pem")
	viper.SetDefault("epic.token_url", "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/token")
	viper.SetDefault("epic.fhir_base_url", "https://fhir.epic.com/interconnect-fhir-oauth/api/FHIR/R4")
	viper.SetDefault("epic.timeout", "30s")
	viper.SetDefault("epic.rate_limit", 10)

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.api_version", "v1beta")
	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("gemini.timeout", "120s")
	viper.SetDefault("gemini.max_output_tokens", 4096)
	viper.SetDefault("gemini.temperature", 0.2)

	// Triage endpoint defaults
	viper.SetDefault("triage.endpoint", "https://us-central1-emory-radiology-asssistant.cloudfunctions.net/mri-safety-check")
	viper.SetDefault("triage.timeout", "60s")

	// Cache defaults (disabled unless a deployment opts in)
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Assessment defaults
	viper.SetDefault("assessment.mode", "triage")
	viper.SetDefault("assessment.max_history_chars", 28000)
	viper.SetDefault("assessment.finding_max_len", 300)
	viper.SetDefault("assessment.run_cache_size", 128)

	// Report defaults
	viper.SetDefault("report.sheet_name", "Safety Report")
	viper.SetDefault("report.fhir_filename", "mri_safety_report.xlsx")
	viper.SetDefault("report.triage_filename", "mri_safety_batch_report.xlsx")
	viper.SetDefault("report.wide_column_width", 50)
	viper.SetDefault("report.column_width", 20)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// MCP defaults
	viper.SetDefault("mcp.server_name", "mri-safety-mcp-server")
	viper.SetDefault("mcp.server_version", "v0.1.0")
	viper.SetDefault("mcp.transport_type", "stdio")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetEpicConfig returns Epic FHIR configuration
func (m *Manager) GetEpicConfig() *domain.EpicConfig {
	return &m.config.Epic
}

// GetGeminiConfig returns Gemini API configuration
func (m *Manager) GetGeminiConfig() *domain.GeminiConfig {
	return &m.config.Gemini
}

// GetTriageConfig returns triage endpoint configuration
func (m *Manager) GetTriageConfig() *domain.TriageConfig {
	return &m.config.Triage
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Assessment.Mode {
	case domain.ModeFHIR, domain.ModeTriage:
	default:
		return fmt.Errorf("invalid assessment mode: %q", config.Assessment.Mode)
	}

	if config.Assessment.Mode == domain.ModeFHIR {
		if config.Epic.ClientID == "" {
			return fmt.Errorf("epic client_id is required in fhir mode")
		}
		if config.Epic.TokenURL == "" {
			return fmt.Errorf("epic token_url is required in fhir mode")
		}
		if config.Epic.FHIRBaseURL == "" {
			return fmt.Errorf("epic fhir_base_url is required in fhir mode")
		}
		if config.Gemini.APIKey == "" {
			return fmt.Errorf("gemini api_key is required in fhir mode")
		}
	}

	if config.Assessment.Mode == domain.ModeTriage && config.Triage.Endpoint == "" {
		return fmt.Errorf("triage endpoint is required in triage mode")
	}

	if config.Assessment.MaxHistoryChars <= 0 {
		return fmt.Errorf("assessment max_history_chars must be positive")
	}
	if config.Assessment.FindingMaxLen <= 0 {
		return fmt.Errorf("assessment finding_max_len must be positive")
	}

	return nil
}
