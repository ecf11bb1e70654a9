// Package viz suggests how to visualize a result set. The suggestion
// is a hint for the frontend; the raw rows always accompany it.
package viz

import (
	"fmt"
	"time"
)

// ChartType is the suggested rendering for a result set.
type ChartType string

const (
	ChartTable  ChartType = "table"
	ChartMetric ChartType = "metric"
	ChartLine   ChartType = "line"
	ChartBar    ChartType = "bar"
	ChartPie    ChartType = "pie"
)

// pieCategoryLimit keeps pies readable; beyond it a bar works better.
const pieCategoryLimit = 8

// Suggestion tells the frontend how to render a result set.
type Suggestion struct {
	Type    ChartType `json:"type"`
	XColumn string    `json:"x_column,omitempty"`
	YColumn string    `json:"y_column,omitempty"`
}

// Suggest inspects the rows and proposes a chart. columns preserves the
// SELECT order; rows are the connector's row maps.
func Suggest(columns []string, rows []map[string]any) Suggestion {
	if len(rows) == 0 || len(columns) == 0 {
		return Suggestion{Type: ChartTable}
	}

	numeric := make([]string, 0, len(columns))
	temporal := make([]string, 0, len(columns))
	categorical := make([]string, 0, len(columns))
	for _, col := range columns {
		switch classify(rows, col) {
		case kindNumeric:
			numeric = append(numeric, col)
		case kindTemporal:
			temporal = append(temporal, col)
		case kindText:
			categorical = append(categorical, col)
		}
	}

	switch {
	case len(rows) == 1 && len(columns) == 1 && len(numeric) == 1:
		return Suggestion{Type: ChartMetric, YColumn: numeric[0]}
	case len(temporal) >= 1 && len(numeric) >= 1:
		return Suggestion{Type: ChartLine, XColumn: temporal[0], YColumn: numeric[0]}
	case len(categorical) >= 1 && len(numeric) >= 1:
		if distinct(rows, categorical[0]) <= pieCategoryLimit {
			return Suggestion{Type: ChartPie, XColumn: categorical[0], YColumn: numeric[0]}
		}
		return Suggestion{Type: ChartBar, XColumn: categorical[0], YColumn: numeric[0]}
	default:
		return Suggestion{Type: ChartTable}
	}
}

type kind int

const (
	kindUnknown kind = iota
	kindNumeric
	kindTemporal
	kindText
)

// classify samples non-nil values of a column. Mixed columns fall back
// to text.
func classify(rows []map[string]any, col string) kind {
	k := kindUnknown
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		vk := valueKind(v)
		if k == kindUnknown {
			k = vk
			continue
		}
		if k != vk {
			return kindText
		}
	}
	return k
}

func valueKind(v any) kind {
	switch x := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return kindNumeric
	case time.Time:
		return kindTemporal
	case string:
		if _, err := time.Parse(time.RFC3339, x); err == nil {
			return kindTemporal
		}
		if _, err := time.Parse("2006-01-02", x); err == nil {
			return kindTemporal
		}
		return kindText
	default:
		return kindText
	}
}

func distinct(rows []map[string]any, col string) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		// stringify so unhashable driver types cannot panic
		seen[fmt.Sprint(v)] = struct{}{}
	}
	return len(seen)
}
