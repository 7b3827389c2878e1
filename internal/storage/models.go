/*
Package storage provides data models for the execution feedback and policy system.

These models represent tool execution records, per-tool aggregate metrics,
learned policy entries, and finalized session episodes.
*/
package storage

import "time"

// ExecutionRecord represents a single tool invocation attempt.
type ExecutionRecord struct {
	// ID is the durable identifier assigned by the store.
	ID int64 `json:"id"`

	// SessionID identifies the agent session that issued the call.
	SessionID string `json:"session_id"`

	// ToolName is the name of the tool that was invoked.
	ToolName string `json:"tool_name"`

	// Arguments is the opaque structured input, serialized as JSON.
	Arguments map[string]any `json:"arguments,omitempty"`

	// Result is the opaque structured output. Discarded on failure.
	Result any `json:"result,omitempty"`

	// Success reports whether the invocation succeeded.
	Success bool `json:"success"`

	// ErrorMessage holds the failure reason, empty on success.
	ErrorMessage string `json:"error_message,omitempty"`

	// LatencyMS is the execution latency in milliseconds, recorded even on failure.
	LatencyMS float64 `json:"latency_ms"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`

	// Rating is the user's feedback rating (1-5), or 0 if not rated.
	Rating int `json:"rating,omitempty"`

	// Comment is optional free-text feedback attached with the rating.
	Comment string `json:"comment,omitempty"`

	// ContextKey is the digest of the situation the call was made in,
	// empty when no context was supplied.
	ContextKey string `json:"context_key,omitempty"`
}

// ToolMetrics is the derived aggregate row for one tool.
//
// Invariant: SuccessCount + FailureCount == TotalCalls.
type ToolMetrics struct {
	ToolName     string    `json:"tool_name"`
	TotalCalls   int64     `json:"total_calls"`
	SuccessCount int64     `json:"success_count"`
	FailureCount int64     `json:"failure_count"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	AvgRating    float64   `json:"avg_rating,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SuccessRate is computed on read, 0 when the tool has never been called.
func (m ToolMetrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.TotalCalls)
}

// PolicyEntry is one learned action value for a (tool, context) pair.
type PolicyEntry struct {
	ToolName    string    `json:"tool_name"`
	ContextKey  string    `json:"context_key"`
	ActionValue float64   `json:"action_value"`
	VisitCount  int64     `json:"visit_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Episode is one finalized session: the ordered tool sequence and its outcome.
type Episode struct {
	SessionID     string    `json:"session_id"`
	ToolSequence  []string  `json:"tool_sequence"`
	EpisodeReward float64   `json:"episode_reward"`
	Outcome       string    `json:"outcome"`
	CreatedAt     time.Time `json:"created_at"`
}
