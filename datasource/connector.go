// Package datasource wraps relational databases behind a uniform
// connector: ad-hoc SELECTs returning row maps, mutations with affected
// counts, batched statements, transactions, and schema introspection.
package datasource

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/types"
)

// DefaultMaxRows caps result sets when the source config does not.
const DefaultMaxRows = 1000

// Connector executes SQL against one configured data source.
type Connector struct {
	name     string
	driver   string
	readOnly bool
	maxRows  int
	db       *gorm.DB
	logger   *zap.Logger
}

// Open connects to the source described by cfg and verifies
// reachability before returning.
func Open(cfg config.SourceConfig, logger *zap.Logger) (*Connector, error) {
	dialector, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, types.NewError(types.ErrSourceDown, "failed to open data source").
			WithCause(err).WithProvider(cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connector{
		name:     cfg.Name,
		driver:   cfg.Driver,
		readOnly: cfg.ReadOnly,
		maxRows:  cfg.MaxRows,
		db:       db,
		logger:   logger.With(zap.String("source", cfg.Name)),
	}
	if c.maxRows <= 0 {
		c.maxRows = DefaultMaxRows
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Name returns the configured source name.
func (c *Connector) Name() string { return c.name }

// Driver returns the configured driver name.
func (c *Connector) Driver() string { return c.driver }

// ReadOnly reports whether mutations are rejected on this source.
func (c *Connector) ReadOnly() bool { return c.readOnly }

// Query runs a SELECT and returns the rows as column-name maps,
// truncated at the source's row cap.
func (c *Connector) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if err := c.guard(sql); err != nil {
		return nil, err
	}
	start := time.Now()
	var rows []map[string]any
	res := c.db.WithContext(ctx).Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, types.NewError(types.ErrQueryFailed, "query execution failed").
			WithCause(res.Error).WithProvider(c.name)
	}
	if len(rows) > c.maxRows {
		rows = rows[:c.maxRows]
	}
	c.logger.Debug("query executed",
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))
	return rows, nil
}

// Exec runs a mutating statement and returns the affected row count.
// Read-only sources reject anything that is not a SELECT.
func (c *Connector) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := c.guard(sql); err != nil {
		return 0, err
	}
	res := c.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return 0, types.NewError(types.ErrQueryFailed, "statement execution failed").
			WithCause(res.Error).WithProvider(c.name)
	}
	return res.RowsAffected, nil
}

// ExecMany runs the same statement once per parameter set inside a
// single transaction and returns the total affected rows.
func (c *Connector) ExecMany(ctx context.Context, sql string, paramSets [][]any) (int64, error) {
	if err := c.guard(sql); err != nil {
		return 0, err
	}
	var total int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, params := range paramSets {
			res := tx.Exec(sql, params...)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, types.NewError(types.ErrQueryFailed, "batch execution failed").
			WithCause(err).WithProvider(c.name)
	}
	return total, nil
}

// Statement pairs a SQL string with its arguments for Transaction.
type Statement struct {
	SQL  string
	Args []any
}

// Transaction runs the statements atomically: any failure rolls back
// the whole batch.
func (c *Connector) Transaction(ctx context.Context, stmts []Statement) error {
	for _, s := range stmts {
		if err := c.guard(s.SQL); err != nil {
			return err
		}
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range stmts {
			if res := tx.Exec(s.SQL, s.Args...); res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return types.NewError(types.ErrQueryFailed, "transaction failed").
			WithCause(err).WithProvider(c.name)
	}
	return nil
}

// Ping verifies the source is reachable.
func (c *Connector) Ping(ctx context.Context) error {
	var one int
	if err := c.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return types.NewError(types.ErrSourceDown, "data source unreachable").
			WithCause(err).WithProvider(c.name).WithRetryable(true)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Connector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// guard rejects mutations on read-only sources.
func (c *Connector) guard(sql string) error {
	if c.readOnly && !IsSelect(sql) {
		return types.NewError(types.ErrSQLForbidden,
			"source is read-only, only SELECT statements are allowed").
			WithProvider(c.name)
	}
	return nil
}
