// Package history persists run outcomes and verification reports to SQLite,
// so demo and harness invocations can be compared across sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one executor run as stored in the history database.
type RunRecord struct {
	ID        int64
	Mode      string // "sequential" or "parallel"
	Workers   int    // 0 for sequential runs
	Duration  time.Duration
	TaskOrder []string // task names in completion order
	Snapshot  string   // JSON-encoded final snapshot
	Error     string   // empty on success
	CreatedAt time.Time
}

// VerificationRecord is one determinism-verification outcome.
type VerificationRecord struct {
	ID             int64
	Trials         int
	Deterministic  bool
	DivergingTrial int // -1 when deterministic
	CreatedAt      time.Time
}

// Store defines the persistence interface for runs and verifications.
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) (int64, error)
	GetRun(ctx context.Context, id int64) (*RunRecord, error)
	ListRuns(ctx context.Context) ([]*RunRecord, error)

	SaveVerification(ctx context.Context, v *VerificationRecord) (int64, error)
	ListVerifications(ctx context.Context) ([]*VerificationRecord, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and
// busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in the
	// connection string, hence the PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initStore(ctx, db)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return initStore(ctx, db)
}

func initStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for primary queries, one for the per-run order subquery.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
