package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/querysense/querysense/types"
)

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
}

// Table describes one table of a source's catalog.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Render formats the table for a model prompt.
func (t Table) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tabela: %s\n", t.Name)
	for _, c := range t.Columns {
		b.WriteString("  - ")
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(c.DataType)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", c.Default)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTables joins rendered tables into one schema text.
func RenderTables(tables []Table) string {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, t.Render())
	}
	return strings.Join(parts, "\n")
}

// TableNames lists the tables visible on the source.
func (c *Connector) TableNames(ctx context.Context) ([]string, error) {
	var names []string
	var err error
	switch strings.ToLower(c.driver) {
	case DriverSQLite, "sqlite3":
		err = c.db.WithContext(ctx).
			Raw(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`).
			Scan(&names).Error
	case DriverMySQL, "mariadb":
		err = c.db.WithContext(ctx).
			Raw(`SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`).
			Scan(&names).Error
	default:
		err = c.db.WithContext(ctx).
			Raw(`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`).
			Scan(&names).Error
	}
	if err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "failed to list tables").
			WithCause(err).WithProvider(c.name)
	}
	return names, nil
}

// TableInfo returns the columns of one table in ordinal order.
func (c *Connector) TableInfo(ctx context.Context, table string) (Table, error) {
	if strings.ToLower(c.driver) == DriverSQLite || strings.ToLower(c.driver) == "sqlite3" {
		return c.sqliteTableInfo(ctx, table)
	}

	type columnRow struct {
		ColumnName    string         `gorm:"column:column_name"`
		DataType      string         `gorm:"column:data_type"`
		IsNullable    string         `gorm:"column:is_nullable"`
		ColumnDefault sql.NullString `gorm:"column:column_default"`
	}
	var rows []columnRow
	err := c.db.WithContext(ctx).Raw(`
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, table).Scan(&rows).Error
	if err != nil {
		return Table{}, types.NewError(types.ErrQueryFailed, "failed to describe table").
			WithCause(err).WithProvider(c.name)
	}
	if len(rows) == 0 {
		return Table{}, types.NewError(types.ErrNotFound,
			fmt.Sprintf("table %q not found", table)).WithProvider(c.name)
	}

	t := Table{Name: table, Columns: make([]Column, 0, len(rows))}
	for _, r := range rows {
		t.Columns = append(t.Columns, Column{
			Name:     r.ColumnName,
			DataType: r.DataType,
			Nullable: strings.EqualFold(r.IsNullable, "YES"),
			Default:  r.ColumnDefault.String,
		})
	}
	return t, nil
}

// sqliteTableInfo uses PRAGMA because sqlite has no information_schema.
func (c *Connector) sqliteTableInfo(ctx context.Context, table string) (Table, error) {
	type pragmaRow struct {
		Name      string         `gorm:"column:name"`
		Type      string         `gorm:"column:type"`
		NotNull   int            `gorm:"column:notnull"`
		DfltValue sql.NullString `gorm:"column:dflt_value"`
		CID       int            `gorm:"column:cid"`
	}
	var rows []pragmaRow
	err := c.db.WithContext(ctx).
		Raw(fmt.Sprintf("PRAGMA table_info(%q)", table)).Scan(&rows).Error
	if err != nil {
		return Table{}, types.NewError(types.ErrQueryFailed, "failed to describe table").
			WithCause(err).WithProvider(c.name)
	}
	if len(rows) == 0 {
		return Table{}, types.NewError(types.ErrNotFound,
			fmt.Sprintf("table %q not found", table)).WithProvider(c.name)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CID < rows[j].CID })

	t := Table{Name: table, Columns: make([]Column, 0, len(rows))}
	for _, r := range rows {
		t.Columns = append(t.Columns, Column{
			Name:     r.Name,
			DataType: r.Type,
			Nullable: r.NotNull == 0,
			Default:  r.DfltValue.String,
		})
	}
	return t, nil
}

// Schema introspects every table and returns the catalog.
func (c *Connector) Schema(ctx context.Context) ([]Table, error) {
	names, err := c.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t, err := c.TableInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// SchemaText introspects the source and renders the full catalog as
// prompt-ready text.
func (c *Connector) SchemaText(ctx context.Context) (string, error) {
	tables, err := c.Schema(ctx)
	if err != nil {
		return "", err
	}
	return RenderTables(tables), nil
}
