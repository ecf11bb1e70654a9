package history

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.HistoryConfig{
		Enabled: true,
		Driver:  "sqlite",
		DSN:     "file:" + t.TempDir() + "/history.db",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &Record{
		ThreadID: "t1",
		Source:   "vendas",
		Question: "Quantos clientes temos?",
		SQL:      "SELECT COUNT(*) FROM clientes",
		Accepted: true,
		Revision: 1,
		RowCount: 1,
		Duration: 42,
	}
	if err := s.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("expected generated timestamp")
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Question != rec.Question || got.SQL != rec.SQL || !got.Accepted {
		t.Errorf("got %+v", got)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nao-existe")
	if types.GetErrorCode(err) != types.ErrNotFound {
		t.Fatalf("err = %v, want %s", err, types.ErrNotFound)
	}
}

func TestListNewestFirstWithFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seeds := []Record{
		{Source: "vendas", Question: "q1", SQL: "SELECT 1", CreatedAt: base},
		{Source: "estoque", Question: "q2", SQL: "SELECT 2", CreatedAt: base.Add(time.Minute)},
		{Source: "vendas", Question: "q3", SQL: "SELECT 3", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seeds {
		if err := s.Record(ctx, &seeds[i]); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := s.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list = %d, want 3", len(all))
	}
	if all[0].Question != "q3" {
		t.Errorf("first = %q, want q3 (newest first)", all[0].Question)
	}

	vendas, err := s.List(ctx, ListFilter{Source: "vendas"})
	if err != nil {
		t.Fatalf("list vendas: %v", err)
	}
	if len(vendas) != 2 {
		t.Fatalf("vendas = %d, want 2", len(vendas))
	}

	paged, err := s.List(ctx, ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 || paged[0].Question != "q2" {
		t.Errorf("paged = %+v, want q2", paged)
	}
}

func TestJoinFeedback(t *testing.T) {
	if got := JoinFeedback(nil); got != "" {
		t.Errorf("JoinFeedback(nil) = %q", got)
	}
	got := JoinFeedback([]string{"a", "b"})
	if got != "a\n---\nb" {
		t.Errorf("JoinFeedback = %q", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.HistoryConfig{Driver: "oracle", DSN: "x"}, zap.NewNop())
	if types.GetErrorCode(err) != types.ErrInvalidRequest {
		t.Fatalf("err = %v, want %s", err, types.ErrInvalidRequest)
	}
}
