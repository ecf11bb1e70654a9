package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/database"
)

// sqliteDriver runs migrations over an already-open sqlite connection.
// golang-migrate's own sqlite driver links modernc.org/sqlite, which
// registers the same database/sql driver name as the glebarez driver the
// rest of the repo uses; linking both panics at init. This driver only
// speaks to the *sql.DB it is given, so the process carries a single
// sqlite module.
type sqliteDriver struct {
	db     *sql.DB
	locked bool
}

func newSQLiteDriver(db *sql.DB) (database.Driver, error) {
	d := &sqliteDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteDriver) ensureVersionTable() error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (version BIGINT NOT NULL, dirty BOOLEAN NOT NULL)`,
		migrationsTable)
	if _, err := d.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Open is never used: the driver is constructed around an existing
// connection and handed to migrate.NewWithInstance.
func (d *sqliteDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("sqlite migration driver requires an existing connection")
}

// Close is a no-op; the caller owns the connection.
func (d *sqliteDriver) Close() error { return nil }

func (d *sqliteDriver) Lock() error {
	if d.locked {
		return database.ErrLocked
	}
	d.locked = true
	return nil
}

func (d *sqliteDriver) Unlock() error {
	d.locked = false
	return nil
}

func (d *sqliteDriver) Run(migration io.Reader) error {
	statements, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	if _, err := d.db.Exec(string(statements)); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (d *sqliteDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, migrationsTable)); err != nil {
		_ = tx.Rollback()
		return err
	}
	// NilVersion marks a fully rolled-back database; no row is stored.
	if version >= 0 {
		insert := fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, migrationsTable)
		if _, err := tx.Exec(insert, version, dirty); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *sqliteDriver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	query := fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, migrationsTable)
	err := d.db.QueryRow(query).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, err
	default:
		return version, dirty, nil
	}
}

func (d *sqliteDriver) Drop() error {
	rows, err := d.db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := d.db.Exec(`DROP TABLE ` + table); err != nil {
			return err
		}
	}
	return nil
}
