package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// LogEpisode appends an immutable episode record for a finalized session.
func (s *SQLiteStorage) LogEpisode(ep Episode) error {
	if !s.available() {
		return ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := ep.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (session_id, episode_reward, tool_sequence, outcome, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		ep.SessionID,
		ep.EpisodeReward,
		toJSON(ep.ToolSequence),
		ep.Outcome,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	return nil
}

// SuccessfulEpisodes returns the highest-reward successful episodes, optionally
// filtered to those whose tool sequence contains toolName.
func (s *SQLiteStorage) SuccessfulEpisodes(toolName string, limit int) ([]Episode, error) {
	if !s.available() {
		return []Episode{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Over-fetch when filtering by tool, since the sequence filter runs here
	// rather than in SQL.
	fetchLimit := limit
	if toolName != "" {
		fetchLimit = limit * 2
	}

	rows, err := s.db.Query(`
		SELECT session_id, episode_reward, tool_sequence, outcome, created_at
		FROM episodes
		WHERE outcome = 'success'
		ORDER BY episode_reward DESC
		LIMIT ?
	`, fetchLimit)
	if err != nil {
		log.Printf("Warning: failed to query episodes: %v", err)
		return []Episode{}, nil
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var sequenceJSON, createdAt string

		if err := rows.Scan(&ep.SessionID, &ep.EpisodeReward, &sequenceJSON, &ep.Outcome, &createdAt); err != nil {
			log.Printf("Warning: failed to scan episode row: %v", err)
			continue
		}

		if sequenceJSON != "" {
			if err := json.Unmarshal([]byte(sequenceJSON), &ep.ToolSequence); err != nil {
				log.Printf("Warning: failed to parse tool sequence: %v", err)
			}
		}
		ep.CreatedAt = parseTime(createdAt)

		if toolName != "" && !containsTool(ep.ToolSequence, toolName) {
			continue
		}

		episodes = append(episodes, ep)
		if len(episodes) >= limit {
			break
		}
	}

	return episodes, nil
}

// containsTool reports whether a tool appears in a sequence.
func containsTool(sequence []string, toolName string) bool {
	for _, name := range sequence {
		if name == toolName {
			return true
		}
	}
	return false
}
