package datasource

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// pgConnector builds a Connector over a mocked postgres connection so
// the information_schema path can be exercised without a server.
func pgConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return &Connector{
		name:    "warehouse",
		driver:  DriverPostgres,
		maxRows: DefaultMaxRows,
		db:      gdb,
		logger:  zap.NewNop(),
	}, mock
}

func TestTableInfoPostgres(t *testing.T) {
	c, mock := pgConnector(t)

	mock.ExpectQuery("SELECT column_name, data_type, is_nullable, column_default").
		WithArgs("pedidos").
		WillReturnRows(sqlmock.NewRows(
			[]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("id", "integer", "NO", "nextval('pedidos_id_seq')").
			AddRow("total", "numeric", "YES", ""))

	table, err := c.TableInfo(context.Background(), "pedidos")
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	if len(table.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(table.Columns))
	}
	if table.Columns[0].Nullable {
		t.Error("id should be NOT NULL")
	}
	if !table.Columns[1].Nullable {
		t.Error("total should be nullable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTableNamesPostgres(t *testing.T) {
	c, mock := pgConnector(t)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("clientes").
			AddRow("pedidos"))

	names, err := c.TableNames(context.Background())
	if err != nil {
		t.Fatalf("table names: %v", err)
	}
	if len(names) != 2 || names[0] != "clientes" {
		t.Errorf("names = %v", names)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
