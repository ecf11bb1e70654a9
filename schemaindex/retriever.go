package schemaindex

import (
	"context"

	"go.uber.org/zap"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/datasource"
)

// Retriever selects schema text for a question. Small catalogs are
// returned whole; large ones go through the vector index.
type Retriever struct {
	tables   []datasource.Table
	fullText string

	embedder Embedder
	index    *Index
	topK     int
	logger   *zap.Logger
}

// NewRetriever builds a retriever over the source's catalog. The index
// is only built when the catalog exceeds cfg.MinTables and retrieval is
// enabled; otherwise every question gets the full schema.
func NewRetriever(ctx context.Context, conn *datasource.Connector, embedder Embedder, cfg config.SchemaIndexConfig, logger *zap.Logger) (*Retriever, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tables, err := conn.Schema(ctx)
	if err != nil {
		return nil, err
	}
	r := &Retriever{
		tables:   tables,
		fullText: datasource.RenderTables(tables),
		embedder: embedder,
		topK:     cfg.TopK,
		logger:   logger.With(zap.String("source", conn.Name())),
	}

	if !cfg.Enabled || embedder == nil || len(tables) <= cfg.MinTables {
		return r, nil
	}

	idx, err := BuildIndex(ctx, embedder, tables)
	if err != nil {
		// Retrieval is an optimization; fall back to the full schema.
		logger.Warn("schema index build failed, using full schema", zap.Error(err))
		return r, nil
	}
	r.index = idx
	logger.Info("schema index built", zap.Int("tables", idx.Len()))
	return r, nil
}

// RetrieveSchemas returns the schema text for the question.
func (r *Retriever) RetrieveSchemas(ctx context.Context, question string) (string, error) {
	if r.index == nil {
		return r.fullText, nil
	}
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		r.logger.Warn("question embedding failed, using full schema", zap.Error(err))
		return r.fullText, nil
	}
	matches := r.index.Search(vectors[0], r.topK)
	if len(matches) == 0 {
		return r.fullText, nil
	}
	return datasource.RenderTables(matches), nil
}

// TableCount returns the catalog size.
func (r *Retriever) TableCount() int { return len(r.tables) }

// Indexed reports whether questions go through the vector index.
func (r *Retriever) Indexed() bool { return r.index != nil }
