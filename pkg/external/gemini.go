package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// Gemini API defaults
const (
	geminiDefaultBaseURL    = "https://generativelanguage.googleapis.com"
	geminiDefaultAPIVersion = "v1beta"
	geminiDefaultModel      = "gemini-1.5-flash"
	geminiDefaultTimeout    = 120 * time.Second
	geminiDefaultMaxTokens  = 4096
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GeminiClient calls the Gemini generateContent REST endpoint. Only the
// non-streaming completion mode is used: one free-text prompt in, one
// free-text completion out.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	apiVersion  string
	model       string
	maxTokens   int
	temperature float64
	client      HTTPClient
}

// NewGeminiClient creates a new Gemini API client
func NewGeminiClient(config domain.GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = geminiDefaultBaseURL
	}
	if config.APIVersion == "" {
		config.APIVersion = geminiDefaultAPIVersion
	}
	if config.Model == "" {
		config.Model = geminiDefaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = geminiDefaultTimeout
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = geminiDefaultMaxTokens
	}

	return &GeminiClient{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		apiVersion:  config.APIVersion,
		model:       config.Model,
		maxTokens:   config.MaxOutputTokens,
		temperature: config.Temperature,
		client:      &http.Client{Timeout: config.Timeout},
	}, nil
}

// GenerateContent sends one prompt and returns the first candidate's text
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	apiReq := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]any{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": c.maxTokens,
			"temperature":     c.temperature,
		},
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL, c.apiVersion, c.model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", parseGeminiError(resp.StatusCode, body)
	}

	var apiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", apiResp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// GeminiAPIError represents a non-200 response from the Gemini API
type GeminiAPIError struct {
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *GeminiAPIError) Error() string {
	return fmt.Sprintf("gemini API error (status %d, code %d, %s): %s",
		e.StatusCode, e.Code, e.Status, e.Message)
}

func parseGeminiError(statusCode int, body []byte) error {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return &GeminiAPIError{
			StatusCode: statusCode,
			Message:    string(body),
		}
	}
	return &GeminiAPIError{
		StatusCode: statusCode,
		Code:       apiErr.Error.Code,
		Status:     apiErr.Error.Status,
		Message:    apiErr.Error.Message,
	}
}

// Internal API types

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates,omitempty"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

// SetHTTPClient sets a custom HTTP client for testing
func (c *GeminiClient) SetHTTPClient(client HTTPClient) {
	c.client = client
}
