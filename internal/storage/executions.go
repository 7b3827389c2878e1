package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// LogExecution writes an execution record and returns its durable id.
//
// The tool's aggregate metrics row is updated in its own transaction after the
// record is written; a metrics failure is logged and does not undo the record.
func (s *SQLiteStorage) LogExecution(rec ExecutionRecord) (int64, error) {
	if !s.available() {
		return 0, ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Result is discarded on failure.
	resultJSON := ""
	if rec.Success {
		resultJSON = toJSON(rec.Result)
	}

	res, err := s.db.Exec(`
		INSERT INTO executions (session_id, tool_name, arguments, result, success, error, latency_ms, created_at, context_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SessionID,
		rec.ToolName,
		toJSON(rec.Arguments),
		resultJSON,
		boolToInt(rec.Success),
		rec.ErrorMessage,
		rec.LatencyMS,
		createdAt.Format(time.RFC3339Nano),
		rec.ContextKey,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert execution: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read execution id: %w", err)
	}

	if err := s.updateMetrics(rec.ToolName, rec.Success, rec.LatencyMS); err != nil {
		log.Printf("Warning: failed to update metrics: %v", err)
	}

	return id, nil
}

// updateMetrics applies one finalized execution to the tool's aggregate row
// as a single-row transactional read-modify-write.
//
// The running latency mean is maintained incrementally:
// new_mean = (old_mean * old_count + latency) / (old_count + 1).
func (s *SQLiteStorage) updateMetrics(toolName string, success bool, latencyMS float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var total, successes, failures int64
	var avgLatency float64
	err = tx.QueryRow(`
		SELECT total_calls, success_count, failure_count, avg_latency_ms
		FROM tool_metrics WHERE tool_name = ?
	`, toolName).Scan(&total, &successes, &failures, &avgLatency)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	newAvg := (avgLatency*float64(total) + latencyMS) / float64(total+1)
	total++
	if success {
		successes++
	} else {
		failures++
	}

	_, err = tx.Exec(`
		INSERT INTO tool_metrics (tool_name, total_calls, success_count, failure_count, avg_latency_ms, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_name) DO UPDATE SET
			total_calls = excluded.total_calls,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			avg_latency_ms = excluded.avg_latency_ms,
			last_updated = excluded.last_updated
	`, toolName, total, successes, failures, newAvg, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// RateExecution attaches a 1-5 rating to an existing record and recomputes the
// tool's mean rating as a full aggregate over all rated records for the tool.
func (s *SQLiteStorage) RateExecution(id int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	if !s.available() {
		return ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var toolName string
	err = tx.QueryRow("SELECT tool_name FROM executions WHERE id = ?", id).Scan(&toolName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: execution %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up execution: %w", err)
	}

	if _, err := tx.Exec("UPDATE executions SET rating = ?, comment = ? WHERE id = ?", rating, comment, id); err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}

	var avgRating sql.NullFloat64
	err = tx.QueryRow(`
		SELECT AVG(rating) FROM executions
		WHERE tool_name = ? AND rating IS NOT NULL
	`, toolName).Scan(&avgRating)
	if err != nil {
		return fmt.Errorf("failed to recompute rating mean: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE tool_metrics SET avg_rating = ?, last_updated = ? WHERE tool_name = ?
	`, avgRating, time.Now().UTC().Format(time.RFC3339Nano), toolName); err != nil {
		return fmt.Errorf("failed to update rating mean: %w", err)
	}

	return tx.Commit()
}

// GetExecution returns one record by id, or ErrNotFound.
func (s *SQLiteStorage) GetExecution(id int64) (*ExecutionRecord, error) {
	if !s.available() {
		return nil, ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, session_id, tool_name, arguments, success, error, latency_ms, created_at,
		       COALESCE(rating, 0), COALESCE(comment, ''), COALESCE(context_key, '')
		FROM executions WHERE id = ?
	`, id)

	rec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: execution %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read execution: %w", err)
	}

	return rec, nil
}

// GetToolMetrics returns aggregate rows, optionally filtered to one tool.
func (s *SQLiteStorage) GetToolMetrics(toolName string) ([]ToolMetrics, error) {
	if !s.available() {
		return []ToolMetrics{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT tool_name, total_calls, success_count, failure_count, avg_latency_ms,
		       COALESCE(avg_rating, 0), last_updated
		FROM tool_metrics
	`
	args := []any{}
	if toolName != "" {
		query += " WHERE tool_name = ?"
		args = append(args, toolName)
	}
	query += " ORDER BY tool_name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("Warning: failed to query tool metrics: %v", err)
		return []ToolMetrics{}, nil
	}
	defer rows.Close()

	var metrics []ToolMetrics
	for rows.Next() {
		var m ToolMetrics
		var lastUpdated string
		if err := rows.Scan(&m.ToolName, &m.TotalCalls, &m.SuccessCount, &m.FailureCount,
			&m.AvgLatencyMS, &m.AvgRating, &lastUpdated); err != nil {
			log.Printf("Warning: failed to scan metrics row: %v", err)
			continue
		}
		m.LastUpdated = parseTime(lastUpdated)
		metrics = append(metrics, m)
	}

	return metrics, nil
}

// GetRecentExecutions returns the most recent records, newest first.
func (s *SQLiteStorage) GetRecentExecutions(toolName string, limit int) ([]ExecutionRecord, error) {
	if !s.available() {
		return []ExecutionRecord{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, session_id, tool_name, arguments, success, error, latency_ms, created_at,
		       COALESCE(rating, 0), COALESCE(comment, ''), COALESCE(context_key, '')
		FROM executions
	`
	args := []any{}
	if toolName != "" {
		query += " WHERE tool_name = ?"
		args = append(args, toolName)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("Warning: failed to query executions: %v", err)
		return []ExecutionRecord{}, nil
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			log.Printf("Warning: failed to scan execution row: %v", err)
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanExecution reads one execution row.
func scanExecution(row rowScanner) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	var argsJSON, createdAt string
	var success int

	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.ToolName, &argsJSON, &success,
		&rec.ErrorMessage, &rec.LatencyMS, &createdAt, &rec.Rating, &rec.Comment,
		&rec.ContextKey); err != nil {
		return nil, err
	}

	rec.Success = success == 1
	rec.CreatedAt = parseTime(createdAt)

	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &rec.Arguments); err != nil {
			log.Printf("Warning: failed to parse execution arguments: %v", err)
		}
	}

	return &rec, nil
}

// parseTime parses a stored RFC3339 timestamp, zero time on failure.
func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05", value)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// boolToInt maps a bool to its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
