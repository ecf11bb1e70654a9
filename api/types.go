// Package api orchestrates the question-to-answer pipeline behind the
// HTTP surface: generation, execution, visualization, and history.
package api

import (
	"github.com/querysense/querysense/viz"
)

// AskRequest is one natural-language question against a named source.
type AskRequest struct {
	Question string `json:"question"`
	Source   string `json:"source"`
	// ThreadID groups related questions; generated when empty.
	ThreadID string `json:"thread_id,omitempty"`
	// Execute runs the generated SQL. Defaults to true; set false to
	// only generate.
	Execute *bool `json:"execute,omitempty"`
	// MaxRevisions lowers the revision budget for this question;
	// 0 uses the configured default.
	MaxRevisions int `json:"max_revisions,omitempty"`
}

// AskResult is the full outcome of one question.
type AskResult struct {
	ID       string   `json:"id,omitempty"`
	ThreadID string   `json:"thread_id"`
	Source   string   `json:"source"`
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Accepted bool     `json:"accepted"`
	Revision int      `json:"revision"`
	Feedback []string `json:"feedback,omitempty"`

	Executed bool             `json:"executed"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"row_count"`
	Affected int64            `json:"affected_rows,omitempty"`
	Chart    *viz.Suggestion  `json:"chart,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// SourceInfo describes one registered data source.
type SourceInfo struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	ReadOnly bool   `json:"read_only"`
}
