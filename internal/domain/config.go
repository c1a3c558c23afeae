package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Epic       EpicConfig       `mapstructure:"epic"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Triage     TriageConfig     `mapstructure:"triage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Assessment AssessmentConfig `mapstructure:"assessment"`
	Report     ReportConfig     `mapstructure:"report"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	MCP        MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// EpicConfig represents the Epic FHIR backend-services configuration.
// PrivateKeyPath points at the PEM-encoded RSA key registered for ClientID;
// the key never leaves the local filesystem.
type EpicConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	KeyID          string        `mapstructure:"key_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenURL       string        `mapstructure:"token_url"`
	FHIRBaseURL    string        `mapstructure:"fhir_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"` // requests per second
}

// GeminiConfig represents the Gemini API configuration
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	APIVersion      string        `mapstructure:"api_version"`
	Model           string        `mapstructure:"model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
}

// TriageConfig represents the remote triage endpoint configuration
type TriageConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig represents the optional triage response cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// AssessmentConfig represents batch assessment behavior
type AssessmentConfig struct {
	Mode            AssessmentMode `mapstructure:"mode"`
	MaxHistoryChars int            `mapstructure:"max_history_chars"`
	FindingMaxLen   int            `mapstructure:"finding_max_len"`
	RunCacheSize    int            `mapstructure:"run_cache_size"`
}

// ReportConfig represents spreadsheet report configuration
type ReportConfig struct {
	SheetName       string  `mapstructure:"sheet_name"`
	FHIRFilename    string  `mapstructure:"fhir_filename"`
	TriageFilename  string  `mapstructure:"triage_filename"`
	WideColumnWidth float64 `mapstructure:"wide_column_width"`
	ColumnWidth     float64 `mapstructure:"column_width"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	TransportType string `mapstructure:"transport_type"` // "stdio"
}
