// Package sqlite persists trade cycles, their price tracking, and settings in
// a single SQLite database.
//
// Every cycle mutation runs in one IMMEDIATE transaction. A partial unique
// index on (user_id, symbol) WHERE status = 'OPEN' enforces at most one open
// cycle, so concurrent buys cannot both succeed even across processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/trading.db"
}

// Store is a SQLite-backed CycleStore and settings repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode, creates the schema and seeds the
// global default settings.
func New(cfg Config) (*Store, error) {
	dsn := cfg.DBPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer connection; concurrent transactions queue on the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trade_cycles (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                 INTEGER NOT NULL,
			symbol                  TEXT    NOT NULL,
			cycle_number            INTEGER NOT NULL,
			status                  TEXT    NOT NULL CHECK (status IN ('OPEN', 'CLOSED')),
			buy_date                TEXT    NOT NULL,
			buy_price               REAL    NOT NULL,
			buy_rsi                 REAL    NOT NULL,
			highest_price_after_buy REAL    NOT NULL,
			tsl_trigger_price       REAL    NOT NULL,
			sell_date               TEXT,
			sell_price              REAL,
			sell_rsi                REAL,
			profit_loss             REAL,
			profit_loss_percent     REAL,
			sell_reason             TEXT,
			created_at              INTEGER NOT NULL,
			updated_at              INTEGER NOT NULL,
			UNIQUE (user_id, symbol, cycle_number)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_cycles_one_open
			ON trade_cycles (user_id, symbol) WHERE status = 'OPEN';

		CREATE INDEX IF NOT EXISTS idx_trade_cycles_user
			ON trade_cycles (user_id, id DESC);

		CREATE TABLE IF NOT EXISTS price_tracking (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    INTEGER NOT NULL REFERENCES trade_cycles (id) ON DELETE CASCADE,
			date        TEXT    NOT NULL,
			close_price REAL    NOT NULL,
			tsl_price   REAL    NOT NULL,
			is_new_high INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			UNIQUE (cycle_id, date)
		);

		CREATE TABLE IF NOT EXISTS user_settings (
			user_id    INTEGER NOT NULL,
			key        TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (user_id, key)
		);

		CREATE TABLE IF NOT EXISTS global_settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		INSERT OR IGNORE INTO global_settings (key, value) VALUES
			('default_rsi_period', '14'),
			('default_upper_threshold', '70'),
			('default_lower_threshold', '30'),
			('default_tsl_percent', '5');
	`)
	return err
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
