package schemaindex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/datasource"
)

func openCatalog(t *testing.T, tables ...string) *datasource.Connector {
	t.Helper()
	c, err := datasource.Open(config.SourceConfig{
		Name:   "vendas",
		Driver: datasource.DriverSQLite,
		DSN:    ":memory:",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	for _, name := range tables {
		if _, err := c.Exec(context.Background(),
			"CREATE TABLE "+name+" (id INTEGER PRIMARY KEY, nome TEXT)"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	return c
}

func TestRetrieverSmallCatalogSkipsIndex(t *testing.T) {
	conn := openCatalog(t, "clientes", "pedidos")
	embedder := &axisEmbedder{axes: map[string][]float32{}}

	r, err := NewRetriever(context.Background(), conn, embedder, config.SchemaIndexConfig{
		Enabled:   true,
		TopK:      1,
		MinTables: 5,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if r.Indexed() {
		t.Error("catalog below min_tables should not be indexed")
	}

	text, err := r.RetrieveSchemas(context.Background(), "qualquer pergunta")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	for _, want := range []string{"clientes", "pedidos"} {
		if !strings.Contains(text, want) {
			t.Errorf("full schema missing %q", want)
		}
	}
}

func TestRetrieverIndexedCatalogSubsets(t *testing.T) {
	conn := openCatalog(t, "clientes", "pedidos", "produtos")
	embedder := &axisEmbedder{axes: map[string][]float32{
		"clientes": {1, 0, 0},
		"pedidos":  {0, 1, 0},
		"produtos": {0, 0, 1},
	}}

	r, err := NewRetriever(context.Background(), conn, embedder, config.SchemaIndexConfig{
		Enabled:   true,
		TopK:      1,
		MinTables: 2,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if !r.Indexed() {
		t.Fatal("catalog above min_tables should be indexed")
	}
	if r.TableCount() != 3 {
		t.Errorf("table count = %d, want 3", r.TableCount())
	}

	text, err := r.RetrieveSchemas(context.Background(), "quantos pedidos foram feitos?")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !strings.Contains(text, "pedidos") {
		t.Errorf("retrieved schema missing pedidos:\n%s", text)
	}
	if strings.Contains(text, "clientes") || strings.Contains(text, "produtos") {
		t.Errorf("retrieved schema should only contain the top table:\n%s", text)
	}
}

type failingEmbedder struct{ failQuestions bool }

func (e *failingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.failQuestions {
		return nil, errors.New("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestRetrieverFallsBackWhenEmbeddingFails(t *testing.T) {
	conn := openCatalog(t, "clientes", "pedidos", "produtos")
	embedder := &failingEmbedder{}

	r, err := NewRetriever(context.Background(), conn, embedder, config.SchemaIndexConfig{
		Enabled:   true,
		TopK:      1,
		MinTables: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if !r.Indexed() {
		t.Fatal("expected indexed catalog")
	}

	embedder.failQuestions = true
	text, err := r.RetrieveSchemas(context.Background(), "pergunta")
	if err != nil {
		t.Fatalf("retrieve should fall back, got %v", err)
	}
	for _, want := range []string{"clientes", "pedidos", "produtos"} {
		if !strings.Contains(text, want) {
			t.Errorf("fallback text missing %q", want)
		}
	}
}

func TestRetrieverDisabled(t *testing.T) {
	conn := openCatalog(t, "clientes", "pedidos", "produtos")

	r, err := NewRetriever(context.Background(), conn, nil, config.SchemaIndexConfig{
		Enabled: false,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if r.Indexed() {
		t.Error("disabled retrieval must not build an index")
	}
}
