// Package store persists user accounts and clinical records.
//
// Two tables are managed, usuarios (accounts) and historias (records), and
// both are created idempotently by Open. SQLite (pure Go, default) and
// PostgreSQL are supported through gorm.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chaz8081/ambudictate/internal/config"
)

var (
	// ErrStorage wraps every persistence I/O failure.
	ErrStorage = errors.New("store: storage failure")
	// ErrUnknownOwner is returned when a record names an owner without an account.
	ErrUnknownOwner = errors.New("store: unknown owner")
	// ErrRecordNotFound is returned when no record matches an owner and sequence id.
	ErrRecordNotFound = errors.New("store: record not found")
)

// Store is the record database. It is safe for concurrent use.
type Store struct {
	db         *gorm.DB
	now        func() time.Time
	bcryptCost int

	// mu serializes sequence id reservation within this process. The UNIQUE
	// index on consecutivo guards against other processes.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for creation timestamps and the year
// in sequence ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost for new accounts.
func WithPasswordCost(cost int) Option {
	return func(s *Store) { s.bcryptCost = cost }
}

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (*Store, error) {
	gcfg := &gorm.Config{
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		db, err = openSQLite(cfg.DSN, gcfg)
	case "postgres":
		db, err = openPostgres(ctx, cfg.DSN, gcfg)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&User{}, &Record{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("%w: migrating schema: %w", ErrStorage, err)
	}

	s := &Store{db: db, now: time.Now, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("store: opened", "driver", cfg.Driver)
	return s, nil
}

func openSQLite(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(ctx context.Context, dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opening gorm postgres: %w", err)
	}
	return db, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// isDuplicate reports whether err is a unique constraint violation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// slogWriter routes gorm's logger output to slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn("store: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
