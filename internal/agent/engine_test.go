package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/planops/planagent/internal/learning"
	"github.com/planops/planagent/internal/storage"
)

// stubRunner executes tools from a canned table and records calls.
type stubRunner struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (r *stubRunner) Run(_ context.Context, toolName string, _ map[string]any) (any, error) {
	r.calls = append(r.calls, toolName)
	if err, ok := r.errs[toolName]; ok {
		return nil, err
	}
	if result, ok := r.results[toolName]; ok {
		return result, nil
	}
	return map[string]any{"status": "ok"}, nil
}

func newTestEngine(t *testing.T) (*Engine, *stubRunner, *storage.SQLiteStorage) {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runner := &stubRunner{
		results: map[string]any{},
		errs:    map[string]error{},
	}
	engine := NewEngine(store, runner, Options{
		Candidates: []string{"get_dimensions", "export_data_slice", "list_jobs"},
		MinSamples: 5,
		Learning:   learning.DefaultParams(),
	})
	return engine, runner, store
}

func TestExecuteRecordsAndLearns(t *testing.T) {
	engine, _, store := newTestEngine(t)

	result, err := engine.Execute(context.Background(), "s1", "get_dimensions", nil, "list dimensions")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.ExecutionID == 0 {
		t.Error("expected a durable execution id")
	}
	if result.ContextKey == "" {
		t.Error("expected a context key")
	}
	if result.Confidence <= 0.5 {
		t.Errorf("expected confidence above neutral after a success, got %v", result.Confidence)
	}

	rec, err := store.GetExecution(result.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if rec.ToolName != "get_dimensions" || !rec.Success {
		t.Errorf("unexpected stored record: %+v", rec)
	}
	if rec.ContextKey != result.ContextKey {
		t.Error("context key not persisted with the record")
	}

	entry, err := store.GetPolicyEntry("get_dimensions", result.ContextKey)
	if err != nil {
		t.Fatalf("expected a policy entry: %v", err)
	}
	if entry.ActionValue <= 0 {
		t.Errorf("expected positive action value after success, got %v", entry.ActionValue)
	}
}

func TestExecuteFailureReturnsToolError(t *testing.T) {
	engine, runner, store := newTestEngine(t)
	runner.errs["export_data_slice"] = errors.New("grid rejected")

	result, err := engine.Execute(context.Background(), "s1", "export_data_slice", nil, "")
	if err == nil {
		t.Fatal("expected tool error surfaced")
	}
	if result == nil || result.Success {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if result.Error != "grid rejected" {
		t.Errorf("unexpected error message: %q", result.Error)
	}

	// The failure is still recorded.
	rec, err := store.GetExecution(result.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if rec.Success || rec.ErrorMessage != "grid rejected" {
		t.Errorf("unexpected stored record: %+v", rec)
	}
}

// TestExecuteAdvancesSessionContext verifies that consecutive calls in one
// session hash different contexts while a fresh session repeats the first.
func TestExecuteAdvancesSessionContext(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, _ := engine.Execute(ctx, "s1", "get_dimensions", nil, "export data")
	second, _ := engine.Execute(ctx, "s1", "export_data_slice", nil, "")

	if first.ContextKey == second.ContextKey {
		t.Error("expected context to change after first call")
	}

	other, _ := engine.Execute(ctx, "s2", "get_dimensions", nil, "export data")
	if other.ContextKey != first.ContextKey {
		t.Error("expected identical starting context for an identical fresh session")
	}
}

func TestSubmitFeedbackAdjustsPolicy(t *testing.T) {
	engine, _, store := newTestEngine(t)

	result, err := engine.Execute(context.Background(), "s1", "get_dimensions", nil, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	before, _ := store.GetPolicyEntry("get_dimensions", result.ContextKey)

	if err := engine.SubmitFeedback(result.ExecutionID, 5, "perfect"); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}

	rec, _ := store.GetExecution(result.ExecutionID)
	if rec.Rating != 5 || rec.Comment != "perfect" {
		t.Errorf("rating not stored: %+v", rec)
	}

	after, _ := store.GetPolicyEntry("get_dimensions", result.ContextKey)
	if after.ActionValue <= before.ActionValue {
		t.Errorf("expected policy boost from 5-star rating: %v -> %v",
			before.ActionValue, after.ActionValue)
	}
	// Retroactive adjustments never count as visits.
	if after.VisitCount != before.VisitCount {
		t.Errorf("visit count changed: %d -> %d", before.VisitCount, after.VisitCount)
	}
}

func TestSubmitFeedbackValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	result, _ := engine.Execute(context.Background(), "s1", "get_dimensions", nil, "")

	if err := engine.SubmitFeedback(result.ExecutionID, 6, ""); !errors.Is(err, storage.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
	if err := engine.SubmitFeedback(99999, 4, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRateLast(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()

	engine.Execute(ctx, "s1", "get_dimensions", nil, "")
	second, _ := engine.Execute(ctx, "s1", "export_data_slice", nil, "")

	id, err := engine.RateLast("s1", "good")
	if err != nil {
		t.Fatalf("RateLast failed: %v", err)
	}
	if id != second.ExecutionID {
		t.Errorf("expected last execution %d rated, got %d", second.ExecutionID, id)
	}

	rec, _ := store.GetExecution(id)
	if rec.Rating != 5 {
		t.Errorf("expected good -> 5 stars, got %d", rec.Rating)
	}

	if _, err := engine.RateLast("s1", "meh"); err == nil {
		t.Error("expected error for unknown verdict")
	}
	if _, err := engine.RateLast("empty-session", "bad"); err == nil {
		t.Error("expected error when nothing to rate")
	}
}

func TestRecommendationsUseSessionContext(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Build up history for one tool so it outranks the others.
	for i := 0; i < 6; i++ {
		engine.Execute(ctx, "warmup", "get_dimensions", nil, "")
	}

	recs := engine.Recommendations("s1", "export data", nil)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations over the default candidates, got %d", len(recs))
	}
	if recs[0].ToolName != "get_dimensions" {
		t.Errorf("expected get_dimensions ranked first, got %q", recs[0].ToolName)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Confidence > recs[i-1].Confidence {
			t.Error("recommendations not sorted by confidence")
		}
	}
}

func TestChooseTool(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	tool, _, err := engine.ChooseTool("s1", "", []string{"list_jobs"})
	if err != nil {
		t.Fatalf("ChooseTool failed: %v", err)
	}
	if tool != "list_jobs" {
		t.Errorf("expected single candidate chosen, got %q", tool)
	}

	if _, _, err := engine.ChooseTool("s1", "", []string{}); err == nil {
		t.Error("expected error with no candidates")
	}
}

func TestFinalizeSession(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()

	engine.Execute(ctx, "s1", "get_dimensions", nil, "export data")
	engine.Execute(ctx, "s1", "export_data_slice", nil, "")

	if err := engine.FinalizeSession("s1", "success"); err != nil {
		t.Fatalf("FinalizeSession failed: %v", err)
	}

	episodes, err := store.SuccessfulEpisodes("", 10)
	if err != nil {
		t.Fatalf("SuccessfulEpisodes failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	if episodes[0].EpisodeReward != 10 {
		t.Errorf("expected terminal reward 10, got %v", episodes[0].EpisodeReward)
	}
	if len(episodes[0].ToolSequence) != 2 || episodes[0].ToolSequence[1] != "export_data_slice" {
		t.Errorf("unexpected tool sequence: %v", episodes[0].ToolSequence)
	}

	// The session is gone; finalizing again is a no-op.
	if err := engine.FinalizeSession("s1", "success"); err != nil {
		t.Errorf("second finalize should be a no-op: %v", err)
	}
	episodes, _ = store.SuccessfulEpisodes("", 10)
	if len(episodes) != 1 {
		t.Errorf("expected no duplicate episode, got %d", len(episodes))
	}
}

func TestFinalizeSessionOutcomes(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if err := engine.FinalizeSession("s1", "glorious"); err == nil {
		t.Error("expected error for unknown outcome")
	}
	// Unknown session with a valid outcome is fine.
	if err := engine.FinalizeSession("never-seen", "failure"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.Execute(ctx, "s1", "get_dimensions", nil, "")
	engine.Execute(ctx, "s1", "list_jobs", nil, "")

	summary, err := engine.Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalTools != 2 {
		t.Errorf("expected 2 tracked tools, got %d", summary.TotalTools)
	}
	if summary.AvgSuccessRate != 1.0 {
		t.Errorf("expected perfect success rate, got %v", summary.AvgSuccessRate)
	}
	if summary.PolicyEntries < 2 {
		t.Errorf("expected policy entries for both tools, got %d", summary.PolicyEntries)
	}
}
