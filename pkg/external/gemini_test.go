package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

func newGeminiTestClient(t *testing.T, baseURL string) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(domain.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gemini-1.5-flash",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(domain.GeminiConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestGeminiClient_GenerateContent(t *testing.T) {
	var capturedPath string
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path + "?" + r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		fmt.Fprint(w, `{
			"candidates": [{"content": {"parts": [{"text": "**MRI Safety Status:** Conditional"}], "role": "model"}}]
		}`)
	}))
	defer server.Close()

	client := newGeminiTestClient(t, server.URL)
	reply, err := client.GenerateContent(context.Background(), "assess this patient")
	require.NoError(t, err)
	assert.Equal(t, "**MRI Safety Status:** Conditional", reply)

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent?key=test-key", capturedPath)

	contents := capturedBody["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "assess this patient", parts[0].(map[string]any)["text"])
}

func TestGeminiClient_GenerateContent_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{
			name:        "structured API error",
			status:      http.StatusTooManyRequests,
			body:        `{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`,
			errContains: "Resource exhausted",
		},
		{
			name:        "unstructured error body",
			status:      http.StatusInternalServerError,
			body:        "internal failure",
			errContains: "internal failure",
		},
		{
			name:        "prompt blocked",
			status:      http.StatusOK,
			body:        `{"promptFeedback": {"blockReason": "SAFETY"}}`,
			errContains: "blocked the prompt: SAFETY",
		},
		{
			name:        "no candidates",
			status:      http.StatusOK,
			body:        `{"candidates": []}`,
			errContains: "no candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newGeminiTestClient(t, server.URL)
			_, err := client.GenerateContent(context.Background(), "prompt")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

// stubHTTPClient returns a canned response or error without touching the network
type stubHTTPClient struct {
	resp *http.Response
	err  error
}

func (s *stubHTTPClient) Do(*http.Request) (*http.Response, error) {
	return s.resp, s.err
}

func TestGeminiClient_SetHTTPClient(t *testing.T) {
	client := newGeminiTestClient(t, "http://gemini.invalid")

	body := `{"candidates":[{"content":{"parts":[{"text":"canned reply"}]}}]}`
	client.SetHTTPClient(&stubHTTPClient{resp: &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}})

	reply, err := client.GenerateContent(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "canned reply", reply)

	client.SetHTTPClient(&stubHTTPClient{err: fmt.Errorf("connection reset")})
	_, err = client.GenerateContent(context.Background(), "prompt")
	assert.ErrorContains(t, err, "connection reset")
}

func TestGeminiAPIError_Error(t *testing.T) {
	err := &GeminiAPIError{StatusCode: 429, Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource exhausted"}
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "429"))
	assert.True(t, strings.Contains(msg, "RESOURCE_EXHAUSTED"))
}
