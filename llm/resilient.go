package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/querysense/querysense/types"
)

// CompletionCache is the subset of the cache API the resilient wrapper needs.
// Implemented by llm/cache.CompletionCache.
type CompletionCache interface {
	Get(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Set(ctx context.Context, req *ChatRequest, resp *ChatResponse) error
}

// Retryer is the subset of the retry API the resilient wrapper needs.
// Implemented by llm/retry.Retryer.
type Retryer interface {
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

// ResilientProvider decorates a Provider with retries, rate limiting and an
// optional completion cache. Streaming requests bypass the cache.
type ResilientProvider struct {
	inner           Provider
	retryer         Retryer
	limiter         *rate.Limiter
	cache           CompletionCache
	counter         TokenCounter
	maxPromptTokens int
	logger          *zap.Logger
}

// ResilientOption configures a ResilientProvider.
type ResilientOption func(*ResilientProvider)

// WithRetryer sets the retryer used for completions.
func WithRetryer(r Retryer) ResilientOption {
	return func(p *ResilientProvider) { p.retryer = r }
}

// WithRateLimit throttles outgoing requests to n per minute.
func WithRateLimit(perMinute int) ResilientOption {
	return func(p *ResilientProvider) {
		if perMinute > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		}
	}
}

// WithCache sets the completion cache.
func WithCache(c CompletionCache) ResilientOption {
	return func(p *ResilientProvider) { p.cache = c }
}

// TokenCounter counts tokens across a message list.
// Implemented by llm/tokenizer.TiktokenTokenizer.
type TokenCounter interface {
	CountMessages(messages []Message) (int, error)
}

// WithPromptBudget rejects requests whose messages exceed maxTokens.
// A zero maxTokens disables the check.
func WithPromptBudget(counter TokenCounter, maxTokens int) ResilientOption {
	return func(p *ResilientProvider) {
		if maxTokens > 0 {
			p.counter = counter
			p.maxPromptTokens = maxTokens
		}
	}
}

// NewResilientProvider wraps inner with the configured resilience layers.
func NewResilientProvider(inner Provider, logger *zap.Logger, opts ...ResilientOption) *ResilientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &ResilientProvider{inner: inner, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the wrapped provider's name.
func (p *ResilientProvider) Name() string { return p.inner.Name() }

// HealthCheck delegates to the wrapped provider.
func (p *ResilientProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Completion performs a completion with cache, rate limit and retries applied.
func (p *ResilientProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.checkBudget(req); err != nil {
		return nil, err
	}

	useCache := p.cache != nil && !req.SkipCache
	if useCache {
		if cached, err := p.cache.Get(ctx, req); err == nil {
			p.logger.Debug("completion cache hit", zap.String("model", req.Model))
			return cached, nil
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var resp *ChatResponse
	var err error
	if p.retryer != nil {
		var result any
		result, err = p.retryer.DoWithResult(ctx, func() (any, error) {
			return p.inner.Completion(ctx, req)
		})
		if err == nil {
			resp = result.(*ChatResponse)
		}
	} else {
		resp, err = p.inner.Completion(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if useCache {
		if cacheErr := p.cache.Set(ctx, req, resp); cacheErr != nil {
			// Cache failures never fail the request.
			p.logger.Warn("failed to cache completion", zap.Error(cacheErr))
		}
	}

	return resp, nil
}

func (p *ResilientProvider) checkBudget(req *ChatRequest) error {
	if p.counter == nil || p.maxPromptTokens <= 0 {
		return nil
	}
	count, err := p.counter.CountMessages(req.Messages)
	if err != nil {
		// Counting is advisory; never block a request on tokenizer trouble.
		p.logger.Warn("token count failed", zap.Error(err))
		return nil
	}
	if count > p.maxPromptTokens {
		return types.NewError(types.ErrContextTooLong,
			fmt.Sprintf("prompt is %d tokens, limit is %d", count, p.maxPromptTokens))
	}
	return nil
}

// Stream performs a streaming completion. Rate limits apply, the cache does not.
func (p *ResilientProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.checkBudget(req); err != nil {
		return nil, err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.inner.Stream(ctx, req)
}
