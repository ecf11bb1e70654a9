package datasource

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/types"
)

func openTestSource(t *testing.T, readOnly bool) *Connector {
	t.Helper()
	c, err := Open(config.SourceConfig{
		Name:     "vendas",
		Driver:   DriverSQLite,
		DSN:      ":memory:",
		ReadOnly: readOnly,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedClientes(t *testing.T, c *Connector) {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Exec(ctx, `CREATE TABLE clientes (id INTEGER PRIMARY KEY, nome TEXT NOT NULL, cidade TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, err := c.ExecMany(ctx, `INSERT INTO clientes (id, nome, cidade) VALUES (?, ?, ?)`, [][]any{
		{1, "Ana", "Recife"},
		{2, "Bruno", "São Paulo"},
		{3, "Carla", "Recife"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestQueryReturnsRowMaps(t *testing.T) {
	c := openTestSource(t, false)
	seedClientes(t, c)

	rows, err := c.Query(context.Background(),
		`SELECT nome FROM clientes WHERE cidade = ? ORDER BY nome`, "Recife")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["nome"] != "Ana" || rows[1]["nome"] != "Carla" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestExecReportsAffectedRows(t *testing.T) {
	c := openTestSource(t, false)
	seedClientes(t, c)

	n, err := c.Exec(context.Background(),
		`UPDATE clientes SET cidade = 'Olinda' WHERE cidade = 'Recife'`)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n != 2 {
		t.Errorf("affected = %d, want 2", n)
	}
}

func TestReadOnlyRejectsMutations(t *testing.T) {
	c := openTestSource(t, false)
	seedClientes(t, c)
	// reuse the same database through a read-only view of the connector
	c.readOnly = true

	if _, err := c.Exec(context.Background(), `DELETE FROM clientes`); types.GetErrorCode(err) != types.ErrSQLForbidden {
		t.Errorf("exec err = %v, want %s", err, types.ErrSQLForbidden)
	}
	if _, err := c.Query(context.Background(), `DELETE FROM clientes`); types.GetErrorCode(err) != types.ErrSQLForbidden {
		t.Errorf("query err = %v, want %s", err, types.ErrSQLForbidden)
	}
	if _, err := c.Query(context.Background(), `SELECT COUNT(*) AS n FROM clientes`); err != nil {
		t.Errorf("select on read-only source failed: %v", err)
	}
}

func TestTransactionRollsBackOnFailure(t *testing.T) {
	c := openTestSource(t, false)
	seedClientes(t, c)
	ctx := context.Background()

	err := c.Transaction(ctx, []Statement{
		{SQL: `INSERT INTO clientes (id, nome) VALUES (?, ?)`, Args: []any{4, "Davi"}},
		{SQL: `INSERT INTO clientes (id, nome) VALUES (?, ?)`, Args: []any{1, "duplicado"}},
	})
	if types.GetErrorCode(err) != types.ErrQueryFailed {
		t.Fatalf("err = %v, want %s", err, types.ErrQueryFailed)
	}

	rows, err := c.Query(ctx, `SELECT COUNT(*) AS n FROM clientes`)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n, ok := rows[0]["n"].(int64); !ok || n != 3 {
		t.Errorf("count after rollback = %v, want 3", rows[0]["n"])
	}
}

func TestQueryTruncatesAtRowCap(t *testing.T) {
	c, err := Open(config.SourceConfig{
		Name:    "vendas",
		Driver:  DriverSQLite,
		DSN:     ":memory:",
		MaxRows: 2,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	seedClientes(t, c)

	rows, err := c.Query(context.Background(), `SELECT * FROM clientes`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want cap of 2", len(rows))
	}
}

func TestSchemaIntrospection(t *testing.T) {
	c := openTestSource(t, false)
	seedClientes(t, c)
	ctx := context.Background()

	names, err := c.TableNames(ctx)
	if err != nil {
		t.Fatalf("table names: %v", err)
	}
	if len(names) != 1 || names[0] != "clientes" {
		t.Fatalf("names = %v, want [clientes]", names)
	}

	table, err := c.TableInfo(ctx, "clientes")
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(table.Columns))
	}
	if table.Columns[0].Name != "id" || table.Columns[1].Name != "nome" {
		t.Errorf("column order = %v", table.Columns)
	}
	if table.Columns[1].Nullable {
		t.Error("nome should be NOT NULL")
	}

	text, err := c.SchemaText(ctx)
	if err != nil {
		t.Fatalf("schema text: %v", err)
	}
	for _, want := range []string{"Tabela: clientes", "nome", "NOT NULL"} {
		if !strings.Contains(text, want) {
			t.Errorf("schema text missing %q:\n%s", want, text)
		}
	}
}

func TestTableInfoUnknownTable(t *testing.T) {
	c := openTestSource(t, false)
	_, err := c.TableInfo(context.Background(), "inexistente")
	if types.GetErrorCode(err) != types.ErrNotFound {
		t.Errorf("err = %v, want %s", err, types.ErrNotFound)
	}
}
