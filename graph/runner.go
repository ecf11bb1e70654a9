package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/querysense/querysense/types"
)

const defaultMaxSteps = 50

// EventType identifies a runner lifecycle event.
type EventType string

const (
	EventNodeStart    EventType = "node_start"
	EventNodeComplete EventType = "node_complete"
	EventNodeError    EventType = "node_error"
	EventGraphDone    EventType = "graph_done"
)

// Event is emitted as the runner walks the graph.
type Event[S any] struct {
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
	Node      string    `json:"node"`
	Step      int       `json:"step"`
	State     S         `json:"state"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter receives runner events. Implementations must be safe for
// calls from the running goroutine and should not block for long.
type Emitter[S any] func(Event[S])

// Runner executes a compiled StateGraph.
type Runner[S any] struct {
	graph        *StateGraph[S]
	maxSteps     int
	checkpointer Checkpointer[S]
	emitter      Emitter[S]
}

// RunnerOption configures a Runner at compile time.
type RunnerOption[S any] func(*Runner[S])

// WithMaxSteps bounds the number of node executions per Invoke.
func WithMaxSteps[S any](n int) RunnerOption[S] {
	return func(r *Runner[S]) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// WithCheckpointer saves state after every node execution.
func WithCheckpointer[S any](cp Checkpointer[S]) RunnerOption[S] {
	return func(r *Runner[S]) { r.checkpointer = cp }
}

// WithEmitter registers a callback for runner events.
func WithEmitter[S any](e Emitter[S]) RunnerOption[S] {
	return func(r *Runner[S]) { r.emitter = e }
}

// Invoke runs the graph from its entry point until it reaches END or
// exhausts the step budget. The returned state is the state after the
// last executed node, even when an error is returned.
func (r *Runner[S]) Invoke(ctx context.Context, state S) (S, error) {
	return r.InvokeThread(ctx, uuid.NewString(), state)
}

// InvokeThread runs the graph under the given thread ID so
// checkpoints and events can be correlated by callers.
func (r *Runner[S]) InvokeThread(ctx context.Context, threadID string, state S) (S, error) {
	current := r.graph.entry
	for step := 1; ; step++ {
		if current == END {
			r.emit(Event[S]{Type: EventGraphDone, ThreadID: threadID, Step: step - 1, State: state, Timestamp: time.Now()})
			return state, nil
		}
		if step > r.maxSteps {
			return state, types.NewError(types.ErrTimeout,
				fmt.Sprintf("graph execution exceeded %d steps at node %q", r.maxSteps, current))
		}
		if err := ctx.Err(); err != nil {
			return state, types.NewError(types.ErrTimeout, "graph execution canceled").WithCause(err)
		}

		r.emit(Event[S]{Type: EventNodeStart, ThreadID: threadID, Node: current, Step: step, State: state, Timestamp: time.Now()})

		next, err := r.graph.nodes[current](ctx, state)
		if err != nil {
			r.emit(Event[S]{Type: EventNodeError, ThreadID: threadID, Node: current, Step: step, State: state, Err: err, Timestamp: time.Now()})
			return state, err
		}
		state = next

		r.emit(Event[S]{Type: EventNodeComplete, ThreadID: threadID, Node: current, Step: step, State: state, Timestamp: time.Now()})

		if r.checkpointer != nil {
			cp := Checkpoint[S]{
				ThreadID:  threadID,
				Node:      current,
				Step:      step,
				State:     state,
				CreatedAt: time.Now(),
			}
			if err := r.checkpointer.Save(ctx, cp); err != nil {
				return state, types.NewError(types.ErrInternalError, "failed to save checkpoint").WithCause(err)
			}
		}

		current = r.route(ctx, current, state)
	}
}

// route resolves the next node: conditional routes win over static edges.
func (r *Runner[S]) route(ctx context.Context, from string, state S) string {
	if fn, ok := r.graph.conditional[from]; ok {
		return fn(ctx, state)
	}
	if to, ok := r.graph.edges[from]; ok {
		return to
	}
	return END
}

func (r *Runner[S]) emit(ev Event[S]) {
	if r.emitter != nil {
		r.emitter(ev)
	}
}
