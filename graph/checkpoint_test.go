package graph

import (
	"context"
	"testing"
)

func TestMemorySaverRoundtrip(t *testing.T) {
	saver := NewMemorySaver[counterState]()
	ctx := context.Background()

	if _, ok := saver.Latest(ctx, "t1"); ok {
		t.Fatal("expected no checkpoint for fresh thread")
	}

	for i := 1; i <= 3; i++ {
		err := saver.Save(ctx, Checkpoint[counterState]{
			ThreadID: "t1",
			Node:     "work",
			Step:     i,
			State:    counterState{Count: i},
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	latest, ok := saver.Latest(ctx, "t1")
	if !ok {
		t.Fatal("expected latest checkpoint")
	}
	if latest.Step != 3 || latest.State.Count != 3 {
		t.Errorf("latest = step %d count %d, want 3/3", latest.Step, latest.State.Count)
	}

	history := saver.History(ctx, "t1")
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	for i, cp := range history {
		if cp.Step != i+1 {
			t.Errorf("history[%d].Step = %d, want %d", i, cp.Step, i+1)
		}
	}
}

func TestMemorySaverThreadIsolation(t *testing.T) {
	saver := NewMemorySaver[counterState]()
	ctx := context.Background()

	_ = saver.Save(ctx, Checkpoint[counterState]{ThreadID: "a", Step: 1})
	_ = saver.Save(ctx, Checkpoint[counterState]{ThreadID: "b", Step: 1})
	_ = saver.Save(ctx, Checkpoint[counterState]{ThreadID: "b", Step: 2})

	if got := len(saver.History(ctx, "a")); got != 1 {
		t.Errorf("thread a history = %d, want 1", got)
	}
	if got := len(saver.History(ctx, "b")); got != 2 {
		t.Errorf("thread b history = %d, want 2", got)
	}

	saver.Clear("b")
	if _, ok := saver.Latest(ctx, "b"); ok {
		t.Error("expected thread b cleared")
	}
	if _, ok := saver.Latest(ctx, "a"); !ok {
		t.Error("thread a should survive clearing b")
	}
}

func TestRunnerSavesCheckpoints(t *testing.T) {
	saver := NewMemorySaver[counterState]()
	runner, err := New[counterState]().
		AddNode("first", appendNode("first")).
		AddNode("second", appendNode("second")).
		AddEdge("first", "second").
		AddEdge("second", END).
		SetEntryPoint("first").
		Compile(WithCheckpointer[counterState](saver))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx := context.Background()
	if _, err := runner.InvokeThread(ctx, "thread-1", counterState{}); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	history := saver.History(ctx, "thread-1")
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Node != "first" || history[1].Node != "second" {
		t.Errorf("nodes = %q,%q, want first,second", history[0].Node, history[1].Node)
	}
	if history[1].State.Count != 2 {
		t.Errorf("final checkpoint count = %d, want 2", history[1].State.Count)
	}
}
