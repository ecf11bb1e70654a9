package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/querysense/querysense/types"
)

// fakeProvider counts calls and returns canned responses.
type fakeProvider struct {
	calls atomic.Int64
	resp  *ChatResponse
	err   error
}

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

// memCache is a map-backed CompletionCache for tests.
type memCache struct {
	entries map[string]*ChatResponse
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]*ChatResponse)} }

func (m *memCache) key(req *ChatRequest) string {
	k := req.Model
	for _, msg := range req.Messages {
		k += "|" + msg.Content
	}
	return k
}

func (m *memCache) Get(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if resp, ok := m.entries[m.key(req)]; ok {
		return resp, nil
	}
	return nil, errors.New("miss")
}

func (m *memCache) Set(ctx context.Context, req *ChatRequest, resp *ChatResponse) error {
	m.entries[m.key(req)] = resp
	return nil
}

func TestResilientPassthrough(t *testing.T) {
	inner := &fakeProvider{resp: &ChatResponse{Model: "m", Choices: []ChatChoice{
		{Message: Message{Role: RoleAssistant, Content: "SELECT 1"}},
	}}}
	p := NewResilientProvider(inner, zap.NewNop())

	resp, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "SELECT 1" {
		t.Errorf("unexpected response: %q", resp.Text())
	}
	if p.Name() != "fake" {
		t.Errorf("name should delegate, got %q", p.Name())
	}
}

func TestResilientCacheHitSkipsProvider(t *testing.T) {
	inner := &fakeProvider{resp: &ChatResponse{Model: "m"}}
	p := NewResilientProvider(inner, zap.NewNop(), WithCache(newMemCache()))

	req := &ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "oi"}}}
	ctx := context.Background()

	if _, err := p.Completion(ctx, req); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := p.Completion(ctx, req); err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}
}

func TestResilientErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream down")
	inner := &fakeProvider{err: wantErr}
	p := NewResilientProvider(inner, zap.NewNop())

	_, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

// fixedCounter reports a constant token count.
type fixedCounter int

func (f fixedCounter) CountMessages([]Message) (int, error) { return int(f), nil }

func TestResilientPromptBudget(t *testing.T) {
	inner := &fakeProvider{resp: &ChatResponse{Model: "m"}}
	p := NewResilientProvider(inner, zap.NewNop(), WithPromptBudget(fixedCounter(500), 100))

	_, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	if types.GetErrorCode(err) != types.ErrContextTooLong {
		t.Fatalf("expected CONTEXT_TOO_LONG, got %v", err)
	}
	if n := inner.calls.Load(); n != 0 {
		t.Errorf("provider should not be called, got %d calls", n)
	}

	within := NewResilientProvider(inner, zap.NewNop(), WithPromptBudget(fixedCounter(50), 100))
	if _, err := within.Completion(context.Background(), &ChatRequest{Model: "m"}); err != nil {
		t.Fatalf("unexpected error under budget: %v", err)
	}
}

func TestResilientSkipCacheBypassesCache(t *testing.T) {
	cached := &ChatResponse{Model: "m", Choices: []ChatChoice{
		{Message: Message{Role: RoleAssistant, Content: "stale"}},
	}}
	fresh := &ChatResponse{Model: "m", Choices: []ChatChoice{
		{Message: Message{Role: RoleAssistant, Content: "fresh"}},
	}}

	req := &ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "pergunta"}}}
	c := newMemCache()
	if err := c.Set(context.Background(), req, cached); err != nil {
		t.Fatal(err)
	}

	inner := &fakeProvider{resp: fresh}
	p := NewResilientProvider(inner, zap.NewNop(), WithCache(c))

	skipped := &ChatRequest{Model: "m", Messages: req.Messages, SkipCache: true}
	resp, err := p.Completion(context.Background(), skipped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "fresh" {
		t.Errorf("skip-cache request got %q, want the provider answer", resp.Text())
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
	// The skipped response must not overwrite the cached one.
	if got, err := c.Get(context.Background(), req); err != nil || got.Text() != "stale" {
		t.Errorf("cache entry changed: %v %v", got, err)
	}

	// Without the flag the cached answer wins.
	resp, err = p.Completion(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "stale" {
		t.Errorf("cached request got %q, want the cached answer", resp.Text())
	}
}
