/*
Package web exposes the agent over HTTP.

The API mirrors the MCP surface: tool execution, feedback, metrics, and the
learning endpoints, plus session finalization. Requests without a session id
get a generated one so context tracking still works for one-shot callers.
*/
package web

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/planops/planagent/internal/agent"
	"github.com/planops/planagent/internal/catalog"
	"github.com/planops/planagent/internal/config"
	"github.com/planops/planagent/internal/learning"
	"github.com/planops/planagent/internal/version"
)

// Server is the HTTP API over the agent engine.
type Server struct {
	engine *agent.Engine
	index  *catalog.Index
	cfg    *config.Config
	router *gin.Engine
}

// NewServer builds the HTTP server and its routes. The catalog index is
// optional; without it recommendation queries rank the full catalog.
func NewServer(engine *agent.Engine, index *catalog.Index, cfg *config.Config) *Server {
	s := &Server{
		engine: engine,
		index:  index,
		cfg:    cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleHealth)
	router.GET("/health", s.handleHealth)
	router.GET("/tools", s.handleTools)
	router.POST("/execute", s.handleExecute)
	router.POST("/feedback", s.handleFeedback)
	router.GET("/metrics", s.handleMetrics)
	router.GET("/executions", s.handleExecutions)

	rl := router.Group("/rl")
	{
		rl.GET("/metrics", s.handleRLMetrics)
		rl.GET("/policy/:tool_name", s.handleRLPolicy)
		rl.POST("/recommendations", s.handleRecommendations)
		rl.GET("/episodes", s.handleEpisodes)
	}
	router.POST("/recommendations", s.handleRecommendations)

	router.POST("/sessions/:session_id/finalize", s.handleFinalize)

	s.router = router
	return s
}

// Handler returns the http.Handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured port until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	log.Printf("HTTP API listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      "planagent",
		"version":   version.Version,
		"status":    "healthy",
		"mock_mode": s.cfg.Planning.MockMode,
	})
}

func (s *Server) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": catalog.All()})
}

// executeRequest is the body for POST /execute.
type executeRequest struct {
	ToolName  string         `json:"tool_name" binding:"required"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id"`
	Query     string         `json:"query"`
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if _, ok := catalog.Get(req.ToolName); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown tool: %s", req.ToolName)})
		return
	}

	result, err := s.engine.Execute(c.Request.Context(), req.SessionID, req.ToolName, req.Arguments, req.Query)
	status := "success"
	if err != nil {
		status = "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"session_id": req.SessionID,
		"result":     result,
	})
}

// feedbackRequest is the body for POST /feedback.
type feedbackRequest struct {
	ExecutionID int64  `json:"execution_id" binding:"required"`
	Rating      int    `json:"rating" binding:"required"`
	Feedback    string `json:"feedback"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.engine.SubmitFeedback(req.ExecutionID, req.Rating, req.Feedback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleMetrics(c *gin.Context) {
	metrics, err := s.engine.Metrics(c.Query("tool_name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

func (s *Server) handleExecutions(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 {
		limit = v
	}

	executions, err := s.engine.RecentExecutions(c.Query("tool_name"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

func (s *Server) handleRLMetrics(c *gin.Context) {
	summary, err := s.engine.Summarize()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rl_enabled": s.cfg.Learning.Enabled,
		"tool_metrics": gin.H{
			"total_tools":      summary.TotalTools,
			"avg_success_rate": summary.AvgSuccessRate,
			"avg_user_rating":  summary.AvgRating,
		},
		"policy_metrics": gin.H{
			"total_policies":   summary.PolicyEntries,
			"avg_action_value": summary.AvgActionValue,
		},
		"config": gin.H{
			"exploration_rate": s.cfg.Learning.ExplorationRate,
			"learning_rate":    s.cfg.Learning.LearningRate,
			"discount_factor":  s.cfg.Learning.DiscountFactor,
			"min_samples":      s.cfg.Learning.MinSamples,
		},
	})
}

func (s *Server) handleRLPolicy(c *gin.Context) {
	toolName := c.Param("tool_name")

	policies, err := s.engine.ToolPolicies(toolName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tool_name":      toolName,
		"policies":       policies,
		"total_contexts": len(policies),
	})
}

// recommendationsRequest is the body for POST /rl/recommendations. Callers
// either name a tracked session or describe the context themselves with
// previous_tool and session_length.
type recommendationsRequest struct {
	Query         string `json:"query"`
	SessionID     string `json:"session_id"`
	PreviousTool  string `json:"previous_tool"`
	SessionLength int    `json:"session_length"`
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var req recommendationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A query narrows the candidate set through the catalog index when one
	// is available; no hits means the full catalog.
	var candidates []string
	if s.index != nil && req.Query != "" {
		if hits, err := s.index.Search(req.Query, 10); err == nil && len(hits) > 0 {
			candidates = hits
		}
	}

	var recs []learning.Recommendation
	if req.PreviousTool != "" || req.SessionLength > 0 {
		recs = s.engine.RecommendationsForContext(req.Query, req.PreviousTool, req.SessionLength, candidates)
	} else {
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		recs = s.engine.Recommendations(req.SessionID, req.Query, candidates)
	}
	if len(recs) > 10 {
		recs = recs[:10]
	}

	c.JSON(http.StatusOK, gin.H{
		"query":           req.Query,
		"recommendations": recs,
	})
}

func (s *Server) handleEpisodes(c *gin.Context) {
	limit := 20
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 {
		limit = v
	}

	episodes, err := s.engine.Episodes(c.Query("tool_name"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes": episodes})
}

func (s *Server) handleFinalize(c *gin.Context) {
	sessionID := c.Param("session_id")
	outcome := c.DefaultQuery("outcome", "success")

	if err := s.engine.FinalizeSession(sessionID, outcome); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": sessionID,
		"outcome":    outcome,
	})
}
