package learning

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/planops/planagent/internal/storage"
)

// newTestPolicy creates a policy over a temp SQLite store.
func newTestPolicy(t *testing.T) (*Policy, *storage.SQLiteStorage) {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewPolicy(store, DefaultParams()), store
}

// TestUpdateFreshEntry covers the documented scenario: a terminal update with
// reward 10 on a fresh store yields Q = 0 + 0.1*(10 + 0.9*0 - 0) = 1.0 and
// confidence 1/(1+e^(-1/5)) ≈ 0.5498.
func TestUpdateFreshEntry(t *testing.T) {
	policy, _ := newTestPolicy(t)

	if err := policy.Update("toolA", "ctxA", 10, "", nil, true); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := policy.Value("toolA", "ctxA"); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected Q = 1.0, got %v", got)
	}

	if got := policy.Confidence("toolA", "ctxA"); math.Abs(got-0.5498) > 1e-4 {
		t.Errorf("expected confidence ≈ 0.5498, got %v", got)
	}
}

// TestUpdateZeroRewardDecay verifies that repeated zero-reward terminal
// updates scale the value by (1-α) each time, monotonically toward zero.
func TestUpdateZeroRewardDecay(t *testing.T) {
	policy, _ := newTestPolicy(t)

	policy.Update("toolA", "ctxA", 10, "", nil, true)
	prev := policy.Value("toolA", "ctxA")

	for i := 0; i < 5; i++ {
		if err := policy.Update("toolA", "ctxA", 0, "", nil, true); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		cur := policy.Value("toolA", "ctxA")
		if math.Abs(cur-prev*0.9) > 1e-9 {
			t.Errorf("step %d: expected %v, got %v", i, prev*0.9, cur)
		}
		if cur < 0 || cur > prev {
			t.Errorf("step %d: decay not monotone toward zero: %v -> %v", i, prev, cur)
		}
		prev = cur
	}
}

func TestUpdateUsesFutureValue(t *testing.T) {
	policy, _ := newTestPolicy(t)

	// Seed the next context with a known max Q.
	policy.Update("toolB", "ctxNext", 10, "", nil, true) // Q(toolB, ctxNext) = 1.0

	// Non-terminal update bootstraps from the next context.
	if err := policy.Update("toolA", "ctxA", 5, "ctxNext", nil, false); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Q = 0 + 0.1*(5 + 0.9*1.0 - 0) = 0.59
	if got := policy.Value("toolA", "ctxA"); math.Abs(got-0.59) > 1e-9 {
		t.Errorf("expected Q = 0.59, got %v", got)
	}
}

func TestMaxValue(t *testing.T) {
	policy, _ := newTestPolicy(t)

	policy.Update("toolA", "ctx1", 10, "", nil, true) // 1.0
	policy.Update("toolB", "ctx1", 20, "", nil, true) // 2.0
	policy.Update("toolC", "ctx2", 30, "", nil, true) // other context

	if got := policy.MaxValue("ctx1", nil); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected max 2.0, got %v", got)
	}

	// Restricted to candidates.
	if got := policy.MaxValue("ctx1", []string{"toolA"}); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected max 1.0 over candidates, got %v", got)
	}

	// Unknown context yields 0.
	if got := policy.MaxValue("ctxUnknown", nil); got != 0 {
		t.Errorf("expected 0 for unknown context, got %v", got)
	}

	// Negative values never push the max below 0.
	policy.Update("toolD", "ctx3", -10, "", nil, true)
	if got := policy.MaxValue("ctx3", nil); got != 0 {
		t.Errorf("expected 0 floor with only negative values, got %v", got)
	}
}

func TestVisitCountIncrement(t *testing.T) {
	policy, store := newTestPolicy(t)

	policy.Update("toolA", "ctxA", 1, "", nil, true)
	policy.Update("toolA", "ctxA", 1, "", nil, true)

	entry, err := store.GetPolicyEntry("toolA", "ctxA")
	if err != nil {
		t.Fatalf("GetPolicyEntry failed: %v", err)
	}
	if entry.VisitCount != 2 {
		t.Errorf("expected visit count 2, got %d", entry.VisitCount)
	}
}

func TestConfidenceUnseen(t *testing.T) {
	policy, _ := newTestPolicy(t)

	if got := policy.Confidence("never", "seen"); got != 0.5 {
		t.Errorf("expected exactly 0.5 for unseen pair, got %v", got)
	}
}

func TestRetroactiveAdjust(t *testing.T) {
	policy, store := newTestPolicy(t)

	ctx := ContextHash("export data", "", 0)
	id, err := store.LogExecution(storage.ExecutionRecord{
		SessionID:  "s1",
		ToolName:   "export_data_slice",
		Success:    true,
		LatencyMS:  100,
		ContextKey: ctx,
	})
	if err != nil {
		t.Fatalf("LogExecution failed: %v", err)
	}

	policy.Update("export_data_slice", ctx, 10, "", nil, true)
	before := policy.Value("export_data_slice", ctx)

	// Rating 5 where the original reward had no rating term:
	// delta = (5-3)*2 = 4, Q += 0.1*4 = 0.4.
	ok, err := policy.RetroactiveAdjust(id, 5)
	if err != nil {
		t.Fatalf("RetroactiveAdjust failed: %v", err)
	}
	if !ok {
		t.Fatal("expected adjustment to apply")
	}

	after := policy.Value("export_data_slice", ctx)
	if math.Abs(after-(before+0.4)) > 1e-9 {
		t.Errorf("expected Q %v, got %v", before+0.4, after)
	}

	// Visit count is untouched by retroactive adjustments.
	entry, _ := store.GetPolicyEntry("export_data_slice", ctx)
	if entry.VisitCount != 1 {
		t.Errorf("expected visit count 1, got %d", entry.VisitCount)
	}
}

// TestRetroactiveAdjustNeutral verifies the reward-delta consistency property:
// adjusting with a neutral rating (the same contribution as no rating) leaves
// the action value unchanged.
func TestRetroactiveAdjustNeutral(t *testing.T) {
	policy, store := newTestPolicy(t)

	ctx := ContextHash("list jobs", "", 0)
	id, _ := store.LogExecution(storage.ExecutionRecord{
		SessionID:  "s1",
		ToolName:   "list_jobs",
		Success:    true,
		LatencyMS:  50,
		ContextKey: ctx,
	})
	policy.Update("list_jobs", ctx, 10, "", nil, true)
	before := policy.Value("list_jobs", ctx)

	ok, err := policy.RetroactiveAdjust(id, 3)
	if err != nil || !ok {
		t.Fatalf("RetroactiveAdjust failed: ok=%v err=%v", ok, err)
	}

	if after := policy.Value("list_jobs", ctx); math.Abs(after-before) > 1e-9 {
		t.Errorf("expected zero net change, got %v -> %v", before, after)
	}
}

func TestRetroactiveAdjustMissing(t *testing.T) {
	policy, store := newTestPolicy(t)

	// Unknown record.
	ok, err := policy.RetroactiveAdjust(9999, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for unknown record")
	}

	// Record without a context key.
	id, _ := store.LogExecution(storage.ExecutionRecord{
		SessionID: "s1",
		ToolName:  "get_documents",
		Success:   true,
	})
	ok, err = policy.RetroactiveAdjust(id, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for record without context key")
	}
}

func TestCacheReloadAfterInvalidate(t *testing.T) {
	policy, _ := newTestPolicy(t)

	policy.Update("toolA", "ctxA", 10, "", nil, true)
	policy.Invalidate()

	// Next read reloads from the durable store.
	if got := policy.Value("toolA", "ctxA"); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected reloaded Q = 1.0, got %v", got)
	}
}

func TestLogEpisode(t *testing.T) {
	policy, store := newTestPolicy(t)

	err := policy.LogEpisode("s1", []string{"get_dimensions", "export_data_slice"}, 10, "success")
	if err != nil {
		t.Fatalf("LogEpisode failed: %v", err)
	}

	episodes, _ := store.SuccessfulEpisodes("", 10)
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	if episodes[0].EpisodeReward != 10 {
		t.Errorf("expected reward 10, got %v", episodes[0].EpisodeReward)
	}
}
