package api

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querysense/querysense/agent"
	"github.com/querysense/querysense/datasource"
	"github.com/querysense/querysense/graph"
	"github.com/querysense/querysense/history"
	"github.com/querysense/querysense/internal/metrics"
	"github.com/querysense/querysense/types"
	"github.com/querysense/querysense/viz"
)

// Service answers questions end to end: it picks the agent for the
// source, runs the generation loop, executes accepted SQL, suggests a
// chart, and records the outcome.
type Service struct {
	registry *datasource.Registry
	agents   map[string]*agent.Agent
	history  *history.Store // nil when history is disabled
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewService wires the pipeline. agents maps source name to its agent;
// store and collector may be nil.
func NewService(registry *datasource.Registry, agents map[string]*agent.Agent, store *history.Store, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		agents:   agents,
		history:  store,
		metrics:  collector,
		logger:   logger,
	}
}

// Sources lists the registered sources, sorted by name.
func (s *Service) Sources() []SourceInfo {
	names := s.registry.Names()
	out := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		conn, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, SourceInfo{
			Name:     conn.Name(),
			Driver:   conn.Driver(),
			ReadOnly: conn.ReadOnly(),
		})
	}
	return out
}

// History exposes the history store; nil when disabled.
func (s *Service) History() *history.Store { return s.history }

// Registry exposes the data source registry for health probes.
func (s *Service) Registry() *datasource.Registry { return s.registry }

// Ask answers one question. emit, when non-nil, receives pipeline
// events as the generation graph runs.
func (s *Service) Ask(ctx context.Context, req AskRequest, emit graph.Emitter[agent.QueryState]) (*AskResult, error) {
	if req.Question == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "question is required").WithHTTPStatus(400)
	}
	if req.Source == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "source is required").WithHTTPStatus(400)
	}
	ag, ok := s.agents[req.Source]
	if !ok {
		return nil, types.NewError(types.ErrSourceNotFound,
			"no agent configured for source "+req.Source).WithHTTPStatus(404)
	}
	conn, err := s.registry.Get(req.Source)
	if err != nil {
		return nil, err
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	execute := req.Execute == nil || *req.Execute

	start := time.Now()
	state, err := ag.RunThreadWithBudget(ctx, threadID, req.Question, req.MaxRevisions, emit)
	if err != nil {
		s.recordMetrics(req.Source, "generation_failed", state.Revision, start)
		return nil, err
	}

	result := &AskResult{
		ThreadID: threadID,
		Source:   req.Source,
		Question: req.Question,
		SQL:      state.SQL,
		Accepted: state.Accepted,
		Revision: state.Revision,
		Feedback: state.Reflect,
	}

	var execErr error
	if execute {
		execErr = s.execute(ctx, conn, result)
	}
	result.DurationMs = time.Since(start).Milliseconds()

	s.record(ctx, result, execErr)
	s.recordMetrics(req.Source, statusLabel(result, execErr), result.Revision, start)

	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// execute runs the generated statement. SELECTs return rows and a
// chart suggestion; anything else reports affected rows.
func (s *Service) execute(ctx context.Context, conn *datasource.Connector, result *AskResult) error {
	if datasource.IsSelect(result.SQL) {
		rows, err := conn.Query(ctx, result.SQL)
		if err != nil {
			return err
		}
		result.Executed = true
		result.Rows = rows
		result.RowCount = len(rows)
		result.Columns = columnsOf(rows)
		chart := viz.Suggest(result.Columns, rows)
		result.Chart = &chart
		return nil
	}

	affected, err := conn.Exec(ctx, result.SQL)
	if err != nil {
		return err
	}
	result.Executed = true
	result.Affected = affected
	return nil
}

func (s *Service) record(ctx context.Context, result *AskResult, execErr error) {
	if s.history == nil {
		return
	}
	rec := &history.Record{
		ThreadID: result.ThreadID,
		Source:   result.Source,
		Question: result.Question,
		SQL:      result.SQL,
		Accepted: result.Accepted,
		Revision: result.Revision,
		Feedback: history.JoinFeedback(result.Feedback),
		RowCount: result.RowCount,
		Duration: result.DurationMs,
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	if err := s.history.Record(ctx, rec); err != nil {
		// History is best effort; the answer already exists.
		s.logger.Warn("failed to record query history", zap.Error(err))
		return
	}
	result.ID = rec.ID
}

func (s *Service) recordMetrics(source, status string, revisions int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordQuery(source, status, revisions, time.Since(start))
}

func statusLabel(result *AskResult, execErr error) string {
	switch {
	case execErr != nil:
		return "execution_failed"
	case !result.Accepted:
		return "rejected"
	default:
		return "accepted"
	}
}

// columnsOf derives a stable column order from row maps.
func columnsOf(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
