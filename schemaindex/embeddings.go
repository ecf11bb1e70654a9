// Package schemaindex retrieves the tables relevant to a question from
// large catalogs. Table descriptions are embedded once at startup; each
// question is embedded at query time and matched by cosine similarity.
package schemaindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/querysense/querysense/internal/tlsutil"
	"github.com/querysense/querysense/llm/providers"
	"github.com/querysense/querysense/types"
)

const defaultEmbedTimeout = 30 * time.Second

// EmbeddingsClient calls an OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingsClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewEmbeddingsClient builds a client for the given endpoint and model.
func NewEmbeddingsClient(baseURL, apiKey, model string) (*EmbeddingsClient, error) {
	if baseURL == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "embeddings client requires a base URL")
	}
	if model == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "embeddings client requires a model")
	}
	return &EmbeddingsClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: tlsutil.SecureHTTPClient(defaultEmbedTimeout),
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode embeddings request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build embeddings request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrProviderUnavailable, "embeddings request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), "embeddings")
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode embeddings response").WithCause(err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, types.NewError(types.ErrUpstreamError, "embeddings response index out of range")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
