package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/planops/planagent/internal/agent"
	"github.com/planops/planagent/internal/catalog"
	"github.com/planops/planagent/internal/config"
	"github.com/planops/planagent/internal/learning"
	"github.com/planops/planagent/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type okRunner struct{}

func (okRunner) Run(_ context.Context, toolName string, _ map[string]any) (any, error) {
	return map[string]any{"tool": toolName}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := agent.NewEngine(store, okRunner{}, agent.Options{
		Candidates: catalog.Names(),
		MinSamples: 5,
		Learning:   learning.DefaultParams(),
	})

	index, err := catalog.NewIndex()
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	cfg := config.NewConfig()
	cfg.Planning.MockMode = true
	return NewServer(engine, index, cfg)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
	if body["mock_mode"] != true {
		t.Errorf("expected mock_mode true, got %v", body["mock_mode"])
	}
}

func TestToolsListing(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodGet, "/tools", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	tools, ok := body["tools"].([]any)
	if !ok || len(tools) != len(catalog.All()) {
		t.Errorf("expected full catalog listed, got %v", body)
	}
}

func TestExecuteAndFeedback(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/execute", map[string]any{
		"tool_name": "get_dimensions",
		"query":     "list dimensions",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected status: %v", body)
	}
	if body["session_id"] == "" {
		t.Error("expected a generated session id")
	}

	result := body["result"].(map[string]any)
	id := result["execution_id"].(float64)
	if id == 0 {
		t.Fatal("expected a durable execution id")
	}

	w, _ = doJSON(t, s, http.MethodPost, "/feedback", map[string]any{
		"execution_id": id,
		"rating":       5,
		"feedback":     "spot on",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("feedback failed: %d", w.Code)
	}

	// The rating shows in the executions listing.
	_, body = doJSON(t, s, http.MethodGet, "/executions?limit=5", nil)
	executions := body["executions"].([]any)
	if len(executions) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(executions))
	}
	first := executions[0].(map[string]any)
	if first["rating"].(float64) != 5 {
		t.Errorf("expected rating persisted, got %v", first["rating"])
	}
}

func TestExecuteValidation(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, http.MethodPost, "/execute", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing tool_name, got %d", w.Code)
	}

	w, _ = doJSON(t, s, http.MethodPost, "/execute", map[string]any{
		"tool_name": "not_a_tool",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown tool, got %d", w.Code)
	}
}

func TestFeedbackValidation(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, http.MethodPost, "/feedback", map[string]any{
		"execution_id": 12345,
		"rating":       3,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown execution, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/execute", map[string]any{"tool_name": "list_jobs"})

	_, body := doJSON(t, s, http.MethodGet, "/metrics?tool_name=list_jobs", nil)
	metrics := body["metrics"].([]any)
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metrics row, got %d", len(metrics))
	}
	row := metrics[0].(map[string]any)
	if row["tool_name"] != "list_jobs" || row["total_calls"].(float64) != 1 {
		t.Errorf("unexpected metrics row: %v", row)
	}
}

func TestRLMetrics(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/execute", map[string]any{"tool_name": "get_documents"})

	w, body := doJSON(t, s, http.MethodGet, "/rl/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["rl_enabled"] != true {
		t.Errorf("expected rl_enabled, got %v", body)
	}
	cfg := body["config"].(map[string]any)
	if cfg["learning_rate"].(float64) != 0.1 {
		t.Errorf("unexpected config block: %v", cfg)
	}
	policy := body["policy_metrics"].(map[string]any)
	if policy["total_policies"].(float64) < 1 {
		t.Errorf("expected policy entries counted, got %v", policy)
	}
}

func TestRLPolicyEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/execute", map[string]any{"tool_name": "get_dimensions"})

	_, body := doJSON(t, s, http.MethodGet, "/rl/policy/get_dimensions", nil)
	if body["tool_name"] != "get_dimensions" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["total_contexts"].(float64) != 1 {
		t.Errorf("expected 1 context, got %v", body["total_contexts"])
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/rl/recommendations", map[string]any{
		"query": "substitution variables",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	recs := body["recommendations"].([]any)
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	// The index narrows the candidates to relevant tools.
	found := false
	for _, r := range recs {
		if r.(map[string]any)["tool_name"] == "get_substitution_variables" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected get_substitution_variables among %v", recs)
	}
}

func TestRecommendationsExplicitContext(t *testing.T) {
	s := newTestServer(t)

	// The top-level alias accepts a caller-described context.
	w, body := doJSON(t, s, http.MethodPost, "/recommendations", map[string]any{
		"query":          "list jobs",
		"previous_tool":  "get_application_info",
		"session_length": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if recs := body["recommendations"].([]any); len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
}

func TestFinalizeEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/execute", map[string]any{
		"tool_name":  "get_dimensions",
		"session_id": "s1",
	})

	w, body := doJSON(t, s, http.MethodPost, "/sessions/s1/finalize?outcome=success", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["outcome"] != "success" {
		t.Errorf("unexpected body: %v", body)
	}

	_, body = doJSON(t, s, http.MethodGet, "/rl/episodes", nil)
	episodes := body["episodes"].([]any)
	if len(episodes) != 1 {
		t.Errorf("expected 1 episode, got %d", len(episodes))
	}

	w, _ = doJSON(t, s, http.MethodPost, "/sessions/s1/finalize?outcome=amazing", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad outcome, got %d", w.Code)
	}
}
