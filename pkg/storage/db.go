package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/retry"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type config struct {
	busyTimeout   time.Duration
	retryAttempts int
	backoff       retry.BackoffStrategy
	logger        logger.Logger
	now           func() time.Time
}

func defaults() config {
	return config{
		busyTimeout:   5 * time.Second,
		retryAttempts: 3,
		backoff:       retry.DefaultExponentialBackoff(),
		now:           time.Now,
	}
}

// Option customises Open
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout
func WithBusyTimeout(d time.Duration) Option { return func(c *config) { c.busyTimeout = d } }

// WithRetryAttempts bounds how often a write is retried while the database is locked
func WithRetryAttempts(n int) Option { return func(c *config) { c.retryAttempts = n } }

// WithBackoff replaces the delay schedule between retries
func WithBackoff(b retry.BackoffStrategy) Option { return func(c *config) { c.backoff = b } }

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(c *config) { c.logger = l } }

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// Store is the SQLite-backed result store
type Store struct {
	db     *sql.DB
	cfg    config
	logger logger.Logger

	posts *PostRepository
	reels *ReelRepository
}

// Open opens the database at path, creating parent directories, and applies
// pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.GetLogger()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, cfg: cfg, logger: cfg.logger}
	s.posts = &PostRepository{store: s}
	s.reels = &ReelRepository{store: s}

	s.logger.InfoWithFields("Database ready", map[string]interface{}{
		"path":           path,
		"schema_version": version,
	})
	return s, nil
}

// dsn applies the pragmas on every pooled connection, not only the first
func dsn(path string, cfg config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout.Milliseconds()))
	q.Add("_pragma", "synchronous(NORMAL)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return path + "?" + q.Encode()
}

func runMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return 0, fmt.Errorf("storage: migrate driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("storage: migrate source: %w", err)
	}

	// m.Close would close db as well, so m is left for the collector
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("storage: migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("storage: run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("storage: migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("storage: schema version %d is dirty", version)
	}
	return version, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Posts returns the post repository
func (s *Store) Posts() *PostRepository { return s.posts }

// Reels returns the reel repository
func (s *Store) Reels() *ReelRepository { return s.reels }

// write runs op, retrying while SQLite reports the database as locked
func (s *Store) write(ctx context.Context, op retry.Operation) error {
	return retry.Do(ctx, op, &retry.Config{
		MaxAttempts: s.cfg.retryAttempts,
		Backoff:     s.cfg.backoff,
		Logger:      s.logger,
	})
}

// classify maps a driver error onto the error taxonomy
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			if isUniqueViolation(code, se.Error()) {
				return errs.Wrap(err, errs.ErrorTypePersistenceConflict, format, args...)
			}
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errs.Wrap(err, errs.ErrorTypeStoreBusy, format, args...)
		}
	}
	return errs.Wrap(err, errs.ErrorTypeInternal, format, args...)
}

// isUniqueViolation accepts the primary code too, for connections without
// extended result codes
func isUniqueViolation(code int, msg string) bool {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "PRIMARY KEY constraint failed")
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
