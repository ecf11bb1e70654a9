package history

import (
	"strings"
	"time"
)

// Record is one answered question, persisted for audit and reuse.
type Record struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	ThreadID  string    `gorm:"column:thread_id" json:"thread_id"`
	Source    string    `gorm:"column:source" json:"source"`
	Question  string    `gorm:"column:question" json:"question"`
	SQL       string    `gorm:"column:sql_text" json:"sql"`
	Accepted  bool      `gorm:"column:accepted" json:"accepted"`
	Revision  int       `gorm:"column:revision" json:"revision"`
	Feedback  string    `gorm:"column:feedback" json:"feedback,omitempty"`
	RowCount  int       `gorm:"column:row_count" json:"row_count"`
	Duration  int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Error     string    `gorm:"column:error" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName keeps GORM aligned with the migration files.
func (Record) TableName() string { return "query_history" }

// JoinFeedback flattens reviewer feedback for storage.
func JoinFeedback(reflect []string) string {
	return strings.Join(reflect, "\n---\n")
}
