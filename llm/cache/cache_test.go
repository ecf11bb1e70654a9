package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querysense/querysense/llm"
)

func newTestCache(t *testing.T) (*CompletionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute, zap.NewNop()), mr
}

func sampleRequest() *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Você é um especialista em SQL."},
			{Role: llm.RoleUser, Content: "qual o total de vendas por mês?"},
		},
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), sampleRequest())
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	req := sampleRequest()

	resp := &llm.ChatResponse{
		Model: "gpt-4o-mini",
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: "SELECT strftime('%m', data), SUM(valor) FROM vendas GROUP BY 1"}},
		},
	}
	require.NoError(t, c.Set(ctx, req, resp))

	got, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, resp.Text(), got.Text())
}

func TestKeyDependsOnContent(t *testing.T) {
	c, _ := newTestCache(t)

	a := sampleRequest()
	b := sampleRequest()
	b.Messages[1].Content = "quantos clientes ativos?"

	assert.NotEqual(t, c.Key(a), c.Key(b))
	assert.Equal(t, c.Key(a), c.Key(sampleRequest()))
}

func TestExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	req := sampleRequest()

	require.NoError(t, c.Set(ctx, req, &llm.ChatResponse{Model: "m"}))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, req)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestCorruptEntryBehavesAsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	req := sampleRequest()

	mr.Set(c.Key(req), "{not json")

	_, err := c.Get(context.Background(), req)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	req := sampleRequest()

	require.NoError(t, c.Set(ctx, req, &llm.ChatResponse{Model: "m"}))
	require.NoError(t, c.Delete(ctx, req))

	_, err := c.Get(ctx, req)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
