// Package agent implements the multi-role SQL generation pipeline: a
// schema researcher hands context to a writer, a reviewer judges the
// statement, and a reflection role feeds revision advice back to the
// writer until the statement is accepted or the revision budget runs out.
package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/querysense/querysense/graph"
	"github.com/querysense/querysense/llm"
	"github.com/querysense/querysense/types"
)

// Node names in the generation graph.
const (
	NodeSearchEngineer = "search_engineer"
	NodeSQLWriter      = "sql_writer"
	NodeQAEngineer     = "qa_engineer"
	NodeChiefDBA       = "chief_dba"
)

// DefaultMaxRevisions bounds the write/review loop when the caller
// does not choose a budget.
const DefaultMaxRevisions = 10

// SchemaRetriever resolves the schema text relevant to a question.
// Implementations may subset a large catalog; the simplest returns
// the full schema unconditionally.
type SchemaRetriever interface {
	RetrieveSchemas(ctx context.Context, question string) (string, error)
}

// StaticSchemas is a SchemaRetriever that always returns the same text.
type StaticSchemas string

func (s StaticSchemas) RetrieveSchemas(context.Context, string) (string, error) {
	return string(s), nil
}

// Agent generates SQL for natural-language questions against one
// data source.
type Agent struct {
	provider     llm.Provider
	model        string
	temperature  float32
	database     string
	schemas      SchemaRetriever
	maxRevisions int
	logger       *zap.Logger

	saver  *graph.MemorySaver[QueryState]
	runner *graph.Runner[QueryState]
}

// Option configures an Agent.
type Option func(*Agent)

// WithTemperature sets the sampling temperature for all roles.
func WithTemperature(t float32) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxRevisions sets the revision budget for the review loop.
func WithMaxRevisions(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRevisions = n
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New builds an agent for one data source. database is the source name
// written into the state; schemas supplies the schema text per question.
func New(provider llm.Provider, model, database string, schemas SchemaRetriever, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "agent requires a provider")
	}
	if model == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "agent requires a model")
	}
	if schemas == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "agent requires a schema retriever")
	}
	a := &Agent{
		provider:     provider,
		model:        model,
		temperature:  0.1,
		database:     database,
		schemas:      schemas,
		maxRevisions: DefaultMaxRevisions,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.build(); err != nil {
		return nil, err
	}
	return a, nil
}

// buildGraph wires the four roles into the write/review/reflect loop.
func (a *Agent) buildGraph() *graph.StateGraph[QueryState] {
	return graph.New[QueryState]().
		AddNode(NodeSearchEngineer, a.searchEngineerNode).
		AddNode(NodeSQLWriter, a.sqlWriterNode).
		AddNode(NodeQAEngineer, a.qaEngineerNode).
		AddNode(NodeChiefDBA, a.chiefDBANode).
		AddEdge(NodeSearchEngineer, NodeSQLWriter).
		AddEdge(NodeSQLWriter, NodeQAEngineer).
		AddEdge(NodeChiefDBA, NodeSQLWriter).
		AddConditionalEdge(NodeQAEngineer, func(_ context.Context, s QueryState) string {
			if s.Accepted || s.Revision >= s.MaxRevisions {
				return graph.END
			}
			return NodeChiefDBA
		}).
		SetEntryPoint(NodeSearchEngineer)
}

// stepBudget leaves headroom for the entry node and the final review:
// each revision visits at most three nodes.
func (a *Agent) stepBudget() int {
	return a.maxRevisions*3 + 4
}

func (a *Agent) build() error {
	a.saver = graph.NewMemorySaver[QueryState]()
	runner, err := a.buildGraph().Compile(
		graph.WithMaxSteps[QueryState](a.stepBudget()),
		graph.WithCheckpointer[QueryState](a.saver),
	)
	if err != nil {
		return err
	}
	a.runner = runner
	return nil
}

// Run answers the question and returns the final state. The returned
// state carries the generated SQL even when the reviewer never
// accepted it; callers decide whether to execute rejected statements.
func (a *Agent) Run(ctx context.Context, question string) (QueryState, error) {
	return a.RunThread(ctx, "", question, nil)
}

// RunThread runs the pipeline under a caller-chosen thread ID and
// forwards graph events to emit when non-nil.
func (a *Agent) RunThread(ctx context.Context, threadID, question string, emit graph.Emitter[QueryState]) (QueryState, error) {
	return a.RunThreadWithBudget(ctx, threadID, question, 0, emit)
}

// RunThreadWithBudget lowers the revision budget for one call. A zero
// maxRevisions uses the agent budget; larger values are clamped to it.
func (a *Agent) RunThreadWithBudget(ctx context.Context, threadID, question string, maxRevisions int, emit graph.Emitter[QueryState]) (QueryState, error) {
	budget := a.maxRevisions
	if maxRevisions > 0 && maxRevisions < budget {
		budget = maxRevisions
	}
	initial := QueryState{
		Question:     question,
		MaxRevisions: budget,
	}

	runner := a.runner
	if emit != nil {
		// A dedicated runner keeps per-call emitters from racing.
		r, err := a.runnerWithEmitter(emit)
		if err != nil {
			return initial, err
		}
		runner = r
	}

	var (
		final QueryState
		err   error
	)
	if threadID != "" {
		final, err = runner.InvokeThread(ctx, threadID, initial)
	} else {
		final, err = runner.Invoke(ctx, initial)
	}
	if err != nil {
		return final, err
	}

	if final.SQL == "" {
		return final, types.NewError(types.ErrEmptySQL, "writer produced no statement")
	}
	if !final.Accepted {
		a.logger.Warn("statement not accepted within revision budget",
			zap.String("database", a.database),
			zap.Int("revision", final.Revision))
	}
	return final, nil
}

func (a *Agent) runnerWithEmitter(emit graph.Emitter[QueryState]) (*graph.Runner[QueryState], error) {
	return a.buildGraph().Compile(
		graph.WithMaxSteps[QueryState](a.stepBudget()),
		graph.WithCheckpointer[QueryState](a.saver),
		graph.WithEmitter[QueryState](emit),
	)
}

func (a *Agent) searchEngineerNode(ctx context.Context, s QueryState) (QueryState, error) {
	schemas, err := a.schemas.RetrieveSchemas(ctx, s.Question)
	if err != nil {
		return s, types.NewError(types.ErrInternalError, "schema retrieval failed").WithCause(err)
	}
	s.TableSchemas = schemas
	s.Database = a.database
	return s, nil
}

func (a *Agent) sqlWriterNode(ctx context.Context, s QueryState) (QueryState, error) {
	// Rewrites carry per-run feedback; a cached answer would ignore it.
	skipCache := len(s.Reflect) > 0
	text, err := a.completeWith(ctx, sqlWriterPrompt, sqlWriterInstruction(s), skipCache)
	if err != nil {
		return s, err
	}
	s.SQL = stripSQLFences(text)
	s.Revision++
	a.logger.Debug("writer produced statement",
		zap.Int("revision", s.Revision),
		zap.String("sql", s.SQL))
	return s, nil
}

func (a *Agent) qaEngineerNode(ctx context.Context, s QueryState) (QueryState, error) {
	text, err := a.complete(ctx, qaEngineerPrompt, qaEngineerInstruction(s))
	if err != nil {
		return s, err
	}
	s.Accepted = strings.Contains(strings.ToUpper(text), acceptToken)
	return s, nil
}

func (a *Agent) chiefDBANode(ctx context.Context, s QueryState) (QueryState, error) {
	text, err := a.complete(ctx, chiefDBAPrompt, chiefDBAInstruction(s))
	if err != nil {
		return s, err
	}
	s.Reflect = append(s.Reflect, text)
	return s, nil
}

func (a *Agent) complete(ctx context.Context, system, user string) (string, error) {
	return a.completeWith(ctx, system, user, false)
}

func (a *Agent) completeWith(ctx context.Context, system, user string, skipCache bool) (string, error) {
	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model:       a.model,
		Temperature: a.temperature,
		SkipCache:   skipCache,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
