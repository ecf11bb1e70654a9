// Package history persists answered questions so teams can audit what
// was asked, what SQL ran, and how the generation loop behaved.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/internal/migration"
	"github.com/querysense/querysense/types"
)

// DefaultPageSize bounds List when the caller passes no limit.
const DefaultPageSize = 50

// Store reads and writes query history records.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the history database and applies pending migrations.
func Open(cfg config.HistoryConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "mysql", "mariadb":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, types.NewError(types.ErrInvalidRequest,
			"unsupported history driver "+cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "failed to open history store").WithCause(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to access history connection").WithCause(err)
	}
	migrator, err := migration.New(sqlDB, cfg.Driver)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build history migrator").WithCause(err)
	}
	if err := migrator.Up(); err != nil {
		return nil, types.NewError(types.ErrInternalError, "history migration failed").WithCause(err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Record persists one entry. The ID and timestamp are filled when empty.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to record query history").WithCause(err)
	}
	s.logger.Debug("query recorded",
		zap.String("id", rec.ID),
		zap.String("source", rec.Source),
		zap.Bool("accepted", rec.Accepted))
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Source string
	Limit  int
	Offset int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	q := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset)
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list query history").WithCause(err)
	}
	return records, nil
}

// Get returns one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "history record not found").WithHTTPStatus(404)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load history record").WithCause(err)
	}
	return &rec, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
