package main

import (
	"database/sql"
	"flag"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/internal/migration"
)

// runMigrate manages the query history schema: up, down, status, version.
func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	db, err := openHistoryDB(cfg.History)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.New(db, cfg.History.Driver)
	if err != nil {
		return err
	}

	switch action {
	case "up":
		if err := m.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := m.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("last migration rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
	case "status":
		statuses, err := m.Status()
		if err != nil {
			return err
		}
		for _, st := range statuses {
			mark := " "
			if st.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %06d %s\n", mark, st.Version, st.Name)
		}
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down, status or version)", action)
	}
	return nil
}

// openHistoryDB opens the history database without running migrations,
// using the same pure-Go drivers as the history store.
func openHistoryDB(cfg config.HistoryConfig) (*sql.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "mysql", "mariadb":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return db.DB()
}
