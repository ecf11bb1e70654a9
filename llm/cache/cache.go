// Package cache provides a Redis-backed completion cache. Identical prompts
// at temperature ~0 produce stable SQL, so replaying a cached completion is
// both correct and much cheaper than a model call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/querysense/querysense/llm"
)

// ErrCacheMiss is returned when no entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "querysense:completion:"

// CompletionCache stores chat responses keyed by request hash.
type CompletionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a completion cache. A zero ttl defaults to one hour.
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CompletionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Key derives a stable cache key from the request content.
func (c *CompletionCache) Key(req *llm.ChatRequest) string {
	payload, err := json.Marshal(struct {
		Model       string        `json:"model"`
		Messages    []llm.Message `json:"messages"`
		Temperature float32       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
	}{req.Model, req.Messages, req.Temperature, req.MaxTokens})
	if err != nil {
		// Marshal of these types cannot fail in practice; fall back to model name.
		return keyPrefix + req.Model
	}
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached response for the request, or ErrCacheMiss.
func (c *CompletionCache) Get(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	data, err := c.rdb.Get(ctx, c.Key(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten on Set.
		c.logger.Warn("dropping corrupt cache entry", zap.Error(err))
		return nil, ErrCacheMiss
	}
	return &resp, nil
}

// Set stores the response for the request.
func (c *CompletionCache) Set(ctx context.Context, req *llm.ChatRequest, resp *llm.ChatResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.Key(req), data, c.ttl).Err()
}

// Delete removes the entry for the request.
func (c *CompletionCache) Delete(ctx context.Context, req *llm.ChatRequest) error {
	return c.rdb.Del(ctx, c.Key(req)).Err()
}
