package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// GetPolicyEntry returns the entry for a (tool, context) pair, or ErrNotFound.
func (s *SQLiteStorage) GetPolicyEntry(toolName, contextKey string) (*PolicyEntry, error) {
	if !s.available() {
		return nil, ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT tool_name, context_key, action_value, visit_count, last_updated
		FROM policy WHERE tool_name = ? AND context_key = ?
	`, toolName, contextKey)

	entry, err := scanPolicyEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: policy %s:%s", ErrNotFound, toolName, contextKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy entry: %w", err)
	}

	return entry, nil
}

// UpdatePolicyEntry atomically applies a read-modify-write to one policy row.
//
// The row is created with action value 0 and visit count 0 before apply runs,
// so the update rule always sees a concrete current state. The whole operation
// commits or leaves prior state unchanged.
func (s *SQLiteStorage) UpdatePolicyEntry(toolName, contextKey string, apply func(cur PolicyEntry) PolicyEntry) (*PolicyEntry, error) {
	if !s.available() {
		return nil, ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cur := PolicyEntry{ToolName: toolName, ContextKey: contextKey}
	var lastUpdated string
	err = tx.QueryRow(`
		SELECT action_value, visit_count, last_updated
		FROM policy WHERE tool_name = ? AND context_key = ?
	`, toolName, contextKey).Scan(&cur.ActionValue, &cur.VisitCount, &lastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read policy entry: %w", err)
	}
	cur.LastUpdated = parseTime(lastUpdated)

	next := apply(cur)
	next.ToolName = toolName
	next.ContextKey = contextKey
	next.LastUpdated = time.Now().UTC()

	_, err = tx.Exec(`
		INSERT INTO policy (tool_name, context_key, action_value, visit_count, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tool_name, context_key) DO UPDATE SET
			action_value = excluded.action_value,
			visit_count = excluded.visit_count,
			last_updated = excluded.last_updated
	`, toolName, contextKey, next.ActionValue, next.VisitCount, next.LastUpdated.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to write policy entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit policy update: %w", err)
	}

	return &next, nil
}

// AllPolicyEntries returns every policy row, used for the cache reload.
func (s *SQLiteStorage) AllPolicyEntries() ([]PolicyEntry, error) {
	if !s.available() {
		return []PolicyEntry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT tool_name, context_key, action_value, visit_count, last_updated
		FROM policy
	`)
	if err != nil {
		log.Printf("Warning: failed to query policy entries: %v", err)
		return []PolicyEntry{}, nil
	}
	defer rows.Close()

	return collectPolicyEntries(rows), nil
}

// ListToolPolicies returns all entries for one tool across contexts.
func (s *SQLiteStorage) ListToolPolicies(toolName string) ([]PolicyEntry, error) {
	if !s.available() {
		return []PolicyEntry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT tool_name, context_key, action_value, visit_count, last_updated
		FROM policy WHERE tool_name = ?
		ORDER BY action_value DESC
	`, toolName)
	if err != nil {
		log.Printf("Warning: failed to query tool policies: %v", err)
		return []PolicyEntry{}, nil
	}
	defer rows.Close()

	return collectPolicyEntries(rows), nil
}

// collectPolicyEntries drains a result set, skipping malformed rows.
func collectPolicyEntries(rows *sql.Rows) []PolicyEntry {
	var entries []PolicyEntry
	for rows.Next() {
		entry, err := scanPolicyEntry(rows)
		if err != nil {
			log.Printf("Warning: failed to scan policy row: %v", err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries
}

// scanPolicyEntry reads one policy row.
func scanPolicyEntry(row rowScanner) (*PolicyEntry, error) {
	var entry PolicyEntry
	var lastUpdated string

	if err := row.Scan(&entry.ToolName, &entry.ContextKey, &entry.ActionValue,
		&entry.VisitCount, &lastUpdated); err != nil {
		return nil, err
	}

	entry.LastUpdated = parseTime(lastUpdated)
	return &entry, nil
}
