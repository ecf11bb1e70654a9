package agent

// QueryState flows through the generation graph. Nodes receive a copy,
// mutate their fields, and return it.
type QueryState struct {
	// Question is the user's natural-language question, as asked.
	Question string `json:"question"`

	// TableSchemas holds the rendered schema text handed to the models.
	TableSchemas string `json:"table_schemas"`

	// Database names the data source the question targets.
	Database string `json:"database"`

	// SQL is the current candidate statement.
	SQL string `json:"sql"`

	// Reflect accumulates reviewer feedback across revisions.
	Reflect []string `json:"reflect"`

	// Accepted is set by the reviewer once the statement passes.
	Accepted bool `json:"accepted"`

	// Revision counts how many times the writer has produced a statement.
	Revision int `json:"revision"`

	// MaxRevisions bounds the write/review/reflect loop.
	MaxRevisions int `json:"max_revisions"`
}
