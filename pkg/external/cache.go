package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// CacheClient wraps Redis with caching for triage endpoint responses.
// The cache is an opt-in deployment concern; assessments themselves are
// never persisted beyond their TTL and a run works identically without it.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedTriageResponse represents a cached triage response with metadata
type cachedTriageResponse struct {
	Data      *TriageResponse `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// GetTriageResponse retrieves a cached triage response for an MRN
func (c *CacheClient) GetTriageResponse(ctx context.Context, mrn string) (*TriageResponse, bool, error) {
	key := c.triageKey(mrn)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get triage cache: %w", err)
	}

	var cached cachedTriageResponse
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetTriageResponse caches a triage response. Error-valued responses are
// never cached: a transient endpoint failure must not shadow later runs.
func (c *CacheClient) SetTriageResponse(ctx context.Context, mrn string, data *TriageResponse, ttl time.Duration) error {
	if data == nil || data.Error != "" {
		return nil
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedTriageResponse{
		Data:      data,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal triage cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, c.triageKey(mrn), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set triage cache: %w", err)
	}
	return nil
}

// InvalidateTriageResponse removes a cached response for an MRN
func (c *CacheClient) InvalidateTriageResponse(ctx context.Context, mrn string) error {
	return c.redis.Del(ctx, c.triageKey(mrn)).Err()
}

// Ping checks cache connectivity
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the underlying Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func (c *CacheClient) triageKey(mrn string) string {
	sum := sha256.Sum256([]byte(mrn))
	return fmt.Sprintf("mri-safety:triage:%x", sum[:8])
}
