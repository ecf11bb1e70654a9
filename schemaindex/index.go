package schemaindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/querysense/querysense/datasource"
)

// Embedder turns texts into vectors. EmbeddingsClient implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type entry struct {
	table  datasource.Table
	vector []float32
}

// Index is an in-memory vector index over a source's tables.
type Index struct {
	mu      sync.RWMutex
	entries []entry
}

// BuildIndex embeds every table's rendered description.
func BuildIndex(ctx context.Context, embedder Embedder, tables []datasource.Table) (*Index, error) {
	texts := make([]string, len(tables))
	for i, t := range tables {
		texts[i] = t.Render()
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	idx := &Index{entries: make([]entry, len(tables))}
	for i := range tables {
		idx.entries[i] = entry{table: tables[i], vector: vectors[i]}
	}
	return idx, nil
}

// Len returns the number of indexed tables.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search returns the topK tables most similar to the query vector,
// best first.
func (idx *Index) Search(query []float32, topK int) []datasource.Table {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		table datasource.Table
		score float64
	}
	results := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		results = append(results, scored{table: e.table, score: cosine(query, e.vector)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	out := make([]datasource.Table, topK)
	for i := 0; i < topK; i++ {
		out[i] = results[i].table
	}
	return out
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
