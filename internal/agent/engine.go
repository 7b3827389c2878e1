/*
Package agent wires tool execution, feedback recording, and reinforcement
learning into one engine.

Every tool call flows through the engine: it hashes the session context,
runs the tool, records the execution, and applies the Q-learning update.
Feedback arriving later is folded back into both the aggregates and the
policy. All learning writes are best-effort; a broken store never blocks
tool execution.
*/
package agent

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/planops/planagent/internal/learning"
	"github.com/planops/planagent/internal/storage"
)

// ToolRunner executes one named tool with arguments.
type ToolRunner interface {
	Run(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// sessionState tracks the per-session context the learner hashes over.
type sessionState struct {
	toolSequence  []string
	previousTool  string
	sessionLength int
	userQuery     string

	// lastExecutionID supports quick good/bad feedback on the most
	// recent call without knowing its id.
	lastExecutionID int64
}

// ExecutionResult is the outcome of one engine-mediated tool call.
type ExecutionResult struct {
	ExecutionID int64   `json:"execution_id"`
	ToolName    string  `json:"tool_name"`
	Success     bool    `json:"success"`
	Result      any     `json:"result,omitempty"`
	Error       string  `json:"error,omitempty"`
	LatencyMS   float64 `json:"latency_ms"`
	Confidence  float64 `json:"confidence"`
	ContextKey  string  `json:"context_key"`
}

// Summary aggregates learning state for reporting.
type Summary struct {
	TotalTools     int     `json:"total_tools"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
	AvgRating      float64 `json:"avg_user_rating"`
	PolicyEntries  int     `json:"policy_entries"`
	AvgActionValue float64 `json:"avg_action_value"`
}

// Engine coordinates tool execution with feedback and policy learning.
type Engine struct {
	store       storage.Storage
	policy      *learning.Policy
	recommender *learning.Recommender
	selector    *learning.EpsilonGreedy
	runner      ToolRunner
	candidates  []string

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// Options configures an engine.
type Options struct {
	// Candidates is the tool name universe for recommendations and for
	// the future-value scan in Q-updates.
	Candidates []string

	// MinSamples is the call count at which metrics are trusted enough
	// to earn a confidence bonus.
	MinSamples int

	// ExplorationRate is epsilon for the greedy selector.
	ExplorationRate float64

	// Learning holds the Q-learning parameters.
	Learning learning.Params
}

// NewEngine builds an engine over a store and a tool runner.
func NewEngine(store storage.Storage, runner ToolRunner, opts Options) *Engine {
	policy := learning.NewPolicy(store, opts.Learning)
	return &Engine{
		store:       store,
		policy:      policy,
		recommender: learning.NewRecommender(store, policy, opts.MinSamples),
		selector:    learning.NewEpsilonGreedy(opts.ExplorationRate, time.Now().UnixNano()),
		runner:      runner,
		candidates:  opts.Candidates,
		sessions:    make(map[string]*sessionState),
	}
}

// session returns the state for a session id, creating it on first use.
// Caller must hold e.mu.
func (e *Engine) session(sessionID, userQuery string) *sessionState {
	state, ok := e.sessions[sessionID]
	if !ok {
		state = &sessionState{userQuery: userQuery}
		e.sessions[sessionID] = state
	}
	if userQuery != "" {
		state.userQuery = userQuery
	}
	return state
}

// ExecutionToken marks an in-flight tool call started with BeginExecution.
type ExecutionToken struct {
	sessionID  string
	toolName   string
	arguments  map[string]any
	contextKey string
	start      time.Time
}

// ContextKey returns the context digest the call was issued under.
func (t ExecutionToken) ContextKey() string { return t.contextKey }

// BeginExecution captures the pre-call context and start time for a tool
// call the caller runs itself. Pass the token to FinishExecution with the
// outcome.
func (e *Engine) BeginExecution(sessionID, toolName string, args map[string]any, userQuery string) ExecutionToken {
	e.mu.Lock()
	state := e.session(sessionID, userQuery)
	contextKey := learning.ContextHash(state.userQuery, state.previousTool, state.sessionLength)
	e.mu.Unlock()

	return ExecutionToken{
		sessionID:  sessionID,
		toolName:   toolName,
		arguments:  args,
		contextKey: contextKey,
		start:      time.Now(),
	}
}

// FinishExecution records the outcome of a call started with BeginExecution:
// it advances the session, logs the execution, and applies the Q-update.
// A failing store degrades silently; the execution id is -1 then.
func (e *Engine) FinishExecution(token ExecutionToken, result any, runErr error) *ExecutionResult {
	latencyMS := float64(time.Since(token.start).Microseconds()) / 1000.0

	errorMessage := ""
	if runErr != nil {
		errorMessage = runErr.Error()
	}

	// Advance the session before computing the next context hash.
	e.mu.Lock()
	state := e.session(token.sessionID, "")
	state.toolSequence = append(state.toolSequence, token.toolName)
	state.previousTool = token.toolName
	state.sessionLength++
	nextContextKey := learning.ContextHash(state.userQuery, state.previousTool, state.sessionLength)
	e.mu.Unlock()

	execution := &ExecutionResult{
		ToolName:   token.toolName,
		Success:    runErr == nil,
		Result:     result,
		Error:      errorMessage,
		LatencyMS:  latencyMS,
		ContextKey: token.contextKey,
	}

	id, err := e.store.LogExecution(storage.ExecutionRecord{
		SessionID:    token.sessionID,
		ToolName:     token.toolName,
		Arguments:    token.arguments,
		Result:       result,
		Success:      runErr == nil,
		ErrorMessage: errorMessage,
		LatencyMS:    latencyMS,
		ContextKey:   token.contextKey,
	})
	if err != nil {
		if !errors.Is(err, storage.ErrUnavailable) {
			log.Printf("Warning: failed to log execution of %s: %v", token.toolName, err)
		}
		execution.ExecutionID = -1
		execution.Confidence = e.policy.Confidence(token.toolName, token.contextKey)
		return execution
	}
	execution.ExecutionID = id

	e.mu.Lock()
	state.lastExecutionID = id
	e.mu.Unlock()

	// Reference latency is read after logging, so the aggregate already
	// includes this execution.
	refLatency := 0.0
	if metrics, err := e.store.GetToolMetrics(token.toolName); err == nil && len(metrics) > 0 {
		refLatency = metrics[0].AvgLatencyMS
	}

	reward := learning.Reward(runErr == nil, 0, latencyMS, refLatency)
	if err := e.policy.Update(token.toolName, token.contextKey, reward, nextContextKey, e.candidates, false); err != nil {
		log.Printf("Warning: policy update failed for %s: %v", token.toolName, err)
	}

	execution.Confidence = e.policy.Confidence(token.toolName, token.contextKey)
	return execution
}

// Execute runs one tool through the configured runner and records the
// execution for learning. The tool's own error is returned alongside the
// recorded result.
func (e *Engine) Execute(ctx context.Context, sessionID, toolName string, args map[string]any, userQuery string) (*ExecutionResult, error) {
	token := e.BeginExecution(sessionID, toolName, args, userQuery)
	result, runErr := e.runner.Run(ctx, toolName, args)
	return e.FinishExecution(token, result, runErr), runErr
}

// SubmitFeedback rates a past execution and folds the rating back into the
// policy. The metrics recompute happens in the store; the policy adjustment
// is the retroactive reward delta.
func (e *Engine) SubmitFeedback(executionID int64, rating int, comment string) error {
	if err := e.store.RateExecution(executionID, rating, comment); err != nil {
		return err
	}

	if _, err := e.policy.RetroactiveAdjust(executionID, rating); err != nil {
		log.Printf("Warning: retroactive policy adjustment failed for execution %d: %v", executionID, err)
	}
	return nil
}

// RateLast applies a quick verdict to the most recent execution in a session.
// "good" maps to a 5-star rating, "bad" to 1 star.
func (e *Engine) RateLast(sessionID, verdict string) (int64, error) {
	var rating int
	switch verdict {
	case "good":
		rating = 5
	case "bad":
		rating = 1
	default:
		return 0, errors.New(`verdict must be "good" or "bad"`)
	}

	e.mu.Lock()
	state, ok := e.sessions[sessionID]
	var id int64
	if ok {
		id = state.lastExecutionID
	}
	e.mu.Unlock()

	if id == 0 {
		return 0, errors.New("no execution to rate in this session")
	}

	if err := e.SubmitFeedback(id, rating, ""); err != nil {
		return 0, err
	}
	return id, nil
}

// Recommendations ranks candidate tools for the session's current context.
// A nil candidate list means the full configured tool universe.
func (e *Engine) Recommendations(sessionID, userQuery string, candidateTools []string) []learning.Recommendation {
	e.mu.Lock()
	state := e.session(sessionID, userQuery)
	contextKey := learning.ContextHash(state.userQuery, state.previousTool, state.sessionLength)
	e.mu.Unlock()

	if candidateTools == nil {
		candidateTools = e.candidates
	}
	return e.recommender.Recommend(contextKey, candidateTools)
}

// RecommendationsForContext ranks candidates for an explicitly described
// context instead of tracked session state. Callers that reconstruct a
// context (previous tool, step count) use this.
func (e *Engine) RecommendationsForContext(userQuery, previousTool string, sessionLength int, candidateTools []string) []learning.Recommendation {
	contextKey := learning.ContextHash(userQuery, previousTool, sessionLength)
	if candidateTools == nil {
		candidateTools = e.candidates
	}
	return e.recommender.Recommend(contextKey, candidateTools)
}

// ChooseTool picks the next tool for a session using epsilon-greedy
// selection over the ranked recommendations. Reports whether the pick was
// exploratory.
func (e *Engine) ChooseTool(sessionID, userQuery string, candidateTools []string) (string, bool, error) {
	recs := e.Recommendations(sessionID, userQuery, candidateTools)
	if len(recs) == 0 {
		return "", false, errors.New("no candidate tools")
	}
	tool, explored := e.selector.Choose(recs)
	return tool, explored, nil
}

// FinalizeSession closes a session: the last action gets a terminal
// outcome reward and the full tool sequence is logged as an episode.
// Outcomes are "success", "partial", or "failure". Unknown or empty
// sessions are a no-op.
func (e *Engine) FinalizeSession(sessionID, outcome string) error {
	var episodeReward float64
	switch outcome {
	case "success":
		episodeReward = 10
	case "partial":
		episodeReward = 5
	case "failure":
		episodeReward = -5
	default:
		return errors.New(`outcome must be "success", "partial", or "failure"`)
	}

	e.mu.Lock()
	state, ok := e.sessions[sessionID]
	if !ok || len(state.toolSequence) == 0 {
		e.mu.Unlock()
		return nil
	}
	sequence := make([]string, len(state.toolSequence))
	copy(sequence, state.toolSequence)
	userQuery := state.userQuery
	e.mu.Unlock()

	lastTool := sequence[len(sequence)-1]
	previousTool := ""
	if len(sequence) > 1 {
		previousTool = sequence[len(sequence)-2]
	}
	lastContextKey := learning.ContextHash(userQuery, previousTool, len(sequence)-1)

	if err := e.policy.Update(lastTool, lastContextKey, episodeReward, "", e.candidates, true); err != nil {
		log.Printf("Warning: terminal policy update failed for session %s: %v", sessionID, err)
	}

	if err := e.policy.LogEpisode(sessionID, sequence, episodeReward, outcome); err != nil {
		if !errors.Is(err, storage.ErrUnavailable) {
			log.Printf("Warning: failed to log episode for session %s: %v", sessionID, err)
		}
	}

	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	return nil
}

// Metrics returns aggregate metrics, optionally filtered to one tool.
func (e *Engine) Metrics(toolName string) ([]storage.ToolMetrics, error) {
	return e.store.GetToolMetrics(toolName)
}

// RecentExecutions returns the newest executions, optionally filtered.
func (e *Engine) RecentExecutions(toolName string, limit int) ([]storage.ExecutionRecord, error) {
	return e.store.GetRecentExecutions(toolName, limit)
}

// ToolPolicies returns the learned policy rows for one tool across contexts.
func (e *Engine) ToolPolicies(toolName string) ([]storage.PolicyEntry, error) {
	return e.store.ListToolPolicies(toolName)
}

// Episodes returns the highest-reward successful episodes.
func (e *Engine) Episodes(toolName string, limit int) ([]storage.Episode, error) {
	return e.store.SuccessfulEpisodes(toolName, limit)
}

// Summarize computes the aggregate learning summary used by the reporting
// surfaces.
func (e *Engine) Summarize() (*Summary, error) {
	metrics, err := e.store.GetToolMetrics("")
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalTools: len(metrics)}
	if len(metrics) > 0 {
		var successSum, ratingSum float64
		for _, m := range metrics {
			successSum += m.SuccessRate()
			ratingSum += m.AvgRating
		}
		summary.AvgSuccessRate = successSum / float64(len(metrics))
		summary.AvgRating = ratingSum / float64(len(metrics))
	}

	values := e.policy.CachedValues()
	summary.PolicyEntries = len(values)
	if len(values) > 0 {
		var sum float64
		for _, v := range values {
			sum += v
		}
		summary.AvgActionValue = sum / float64(len(values))
	}

	return summary, nil
}
