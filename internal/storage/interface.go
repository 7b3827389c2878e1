/*
Package storage implements the durable store for execution feedback and policy state.

This package provides SQLite-based persistence for execution records, per-tool
aggregate metrics, Q-learning policy entries, and session episodes, with graceful
degradation if the database is unavailable.

The database is stored at ~/.planagent/agent.db and uses modernc.org/sqlite
(a pure Go, CGo-free implementation).
*/
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

var (
	// ErrUnavailable indicates the store is disabled or the write failed.
	// Callers on the feedback path treat it as best-effort and carry on.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRating indicates a rating outside the 1-5 range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Storage defines the interface for persistent feedback and policy operations.
type Storage interface {
	// Init initializes the database and runs migrations.
	Init() error

	// LogExecution writes an execution record and updates the tool's
	// aggregate metrics. Returns the durable record id.
	LogExecution(rec ExecutionRecord) (int64, error)

	// RateExecution attaches a 1-5 rating to an existing record and
	// recomputes the tool's mean rating over all rated records.
	RateExecution(id int64, rating int, comment string) error

	// GetExecution returns one record by id.
	GetExecution(id int64) (*ExecutionRecord, error)

	// GetToolMetrics returns aggregate rows, optionally filtered to one tool.
	GetToolMetrics(toolName string) ([]ToolMetrics, error)

	// GetRecentExecutions returns the most recent records, newest first.
	GetRecentExecutions(toolName string, limit int) ([]ExecutionRecord, error)

	// GetPolicyEntry returns the entry for a (tool, context) pair, or ErrNotFound.
	GetPolicyEntry(toolName, contextKey string) (*PolicyEntry, error)

	// UpdatePolicyEntry atomically applies a read-modify-write to a single
	// policy row, creating it with zero values if absent.
	UpdatePolicyEntry(toolName, contextKey string, apply func(cur PolicyEntry) PolicyEntry) (*PolicyEntry, error)

	// AllPolicyEntries returns every policy row (cache reload).
	AllPolicyEntries() ([]PolicyEntry, error)

	// ListToolPolicies returns all entries for one tool across contexts.
	ListToolPolicies(toolName string) ([]PolicyEntry, error)

	// LogEpisode appends an immutable episode record.
	LogEpisode(ep Episode) error

	// SuccessfulEpisodes returns the highest-reward successful episodes,
	// optionally filtered to those containing a tool.
	SuccessfulEpisodes(toolName string, limit int) ([]Episode, error)

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
}

// New creates a SQLite storage instance at the given path.
func New(dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
	}
}

// NewDefault creates a storage instance at ~/.planagent/agent.db.
//
// If the home directory cannot be determined, the storage is disabled but
// operations will not fail.
func NewDefault() *SQLiteStorage {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: failed to get home directory: %v", err)
		return &SQLiteStorage{enabled: false}
	}

	return New(filepath.Join(home, ".planagent", "agent.db"))
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// degrade to no-ops (reads return empty, writes return ErrUnavailable).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
	})

	return initErr
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// available reports whether the store can serve queries.
func (s *SQLiteStorage) available() bool {
	return s.enabled && s.db != nil
}
