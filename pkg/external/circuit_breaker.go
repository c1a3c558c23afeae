package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// ResilientTriageClient wraps the triage client with a circuit breaker
// and an optional Redis response cache. When the breaker is open the
// failure text lands in the response's Error field like any other triage
// failure, so callers still get one row per MRN.
type ResilientTriageClient struct {
	triageClient *TriageClient
	cacheClient  *CacheClient
	cacheTTL     time.Duration
	breaker      *gobreaker.CircuitBreaker
}

// NewResilientTriageClient creates a triage client with resiliency
// wrapping. cacheClient may be nil when caching is disabled.
func NewResilientTriageClient(config domain.TriageConfig, cacheClient *CacheClient, cacheTTL time.Duration) *ResilientTriageClient {
	return &ResilientTriageClient{
		triageClient: NewTriageClient(config),
		cacheClient:  cacheClient,
		cacheTTL:     cacheTTL,
		breaker:      newBreaker("triage"),
	}
}

// CheckMRN serves from cache when possible, otherwise calls the endpoint
// through the circuit breaker
func (r *ResilientTriageClient) CheckMRN(ctx context.Context, mrn string) *TriageResponse {
	if r.cacheClient != nil {
		if cached, hit, err := r.cacheClient.GetTriageResponse(ctx, mrn); err == nil && hit {
			return cached
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		resp := r.triageClient.CheckMRN(ctx, mrn)
		if resp.Error != "" {
			// Count endpoint failures against the breaker while still
			// handing the error-valued response back to the caller.
			return resp, fmt.Errorf("triage check failed: %s", resp.Error)
		}
		return resp, nil
	})
	if err != nil {
		if resp, ok := result.(*TriageResponse); ok {
			return resp
		}
		return &TriageResponse{
			Error:       err.Error(),
			PatientInfo: TriagePatientInfo{MRN: mrn},
		}
	}

	resp := result.(*TriageResponse)
	if r.cacheClient != nil {
		_ = r.cacheClient.SetTriageResponse(ctx, mrn, resp, r.cacheTTL)
	}
	return resp
}

// ResilientGeminiClient wraps the Gemini client with a circuit breaker so
// a flapping model endpoint stops being hammered mid-batch
type ResilientGeminiClient struct {
	geminiClient *GeminiClient
	breaker      *gobreaker.CircuitBreaker
}

// NewResilientGeminiClient creates a Gemini client with circuit breaking
func NewResilientGeminiClient(config domain.GeminiConfig) (*ResilientGeminiClient, error) {
	client, err := NewGeminiClient(config)
	if err != nil {
		return nil, err
	}
	return &ResilientGeminiClient{
		geminiClient: client,
		breaker:      newBreaker("gemini"),
	}, nil
}

// GenerateContent proxies to the underlying client through the breaker
func (r *ResilientGeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.geminiClient.GenerateContent(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// State returns the current breaker state for health reporting
func (r *ResilientGeminiClient) State() gobreaker.State {
	return r.breaker.State()
}

// State returns the current breaker state for health reporting
func (r *ResilientTriageClient) State() gobreaker.State {
	return r.breaker.State()
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
