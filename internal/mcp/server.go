/*
Package mcp implements the MCP server that exposes the planning tools.

The server uses stdio transport. It lists every catalog tool plus the
feedback meta-tools (submit_feedback, get_recent_executions,
get_recommendations, rate_last_tool, finalize_session) and routes
tools/call requests through the agent engine so every execution feeds
the learner.
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/planops/planagent/internal/agent"
	"github.com/planops/planagent/internal/catalog"
	"github.com/planops/planagent/internal/version"
)

// Server represents the planagent MCP server.
type Server struct {
	engine *agent.Engine
	out    io.Writer
}

// NewServer creates an MCP server over the given engine.
func NewServer(engine *agent.Engine) *Server {
	return &Server{
		engine: engine,
		out:    os.Stdout,
	}
}

// Run starts the MCP server using stdio transport.
// This blocks until stdin is closed.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		response, err := s.handleRequest(ctx, scanner.Bytes())
		if err != nil {
			s.sendError(err)
			continue
		}

		if response != nil {
			s.sendResponse(response)
		}
	}

	return scanner.Err()
}

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRequest processes an incoming MCP request.
func (s *Server) handleRequest(ctx context.Context, data []byte) (*MCPResponse, error) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(&req)
	case "tools/list":
		return s.handleToolsList(&req)
	case "tools/call":
		return s.handleToolsCall(ctx, &req)
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32601, Message: "Method not found"},
		}, nil
	}
}

// handleInitialize handles the MCP initialize request.
func (s *Server) handleInitialize(req *MCPRequest) (*MCPResponse, error) {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "planagent",
				"version": version.Version,
			},
		},
	}, nil
}

// feedbackTools are the meta-tools layered over the planning catalog. They
// operate on the engine directly instead of going through a planning call.
func feedbackTools() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name": "submit_feedback",
			"description": "Submit a 1-5 star rating for a past tool execution. " +
				"Ratings feed the learning policy and improve future recommendations.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"execution_id": map[string]interface{}{
						"type":        "integer",
						"description": "Execution id from a previous tool result",
					},
					"rating": map[string]interface{}{
						"type":        "integer",
						"description": "Rating from 1 (poor) to 5 (excellent)",
					},
					"feedback": map[string]interface{}{
						"type":        "string",
						"description": "Optional text feedback",
					},
				},
				"required": []string{"execution_id", "rating"},
			},
		},
		{
			"name": "get_recent_executions",
			"description": "List recent tool executions, newest first, so they can be rated.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tool_name": map[string]interface{}{
						"type":        "string",
						"description": "Optional filter by tool name",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of executions to return",
					},
				},
			},
		},
		{
			"name": "get_recommendations",
			"description": "Get confidence-ranked tool recommendations for a query in the current session.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "What the user wants to do",
					},
				},
			},
		},
		{
			"name": "rate_last_tool",
			"description": `Quick feedback on the most recent tool call: "good" or "bad".`,
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"rating": map[string]interface{}{
						"type":        "string",
						"description": `Either "good" or "bad"`,
						"enum":        []string{"good", "bad"},
					},
				},
				"required": []string{"rating"},
			},
		},
		{
			"name": "finalize_session",
			"description": "Close the current session with an outcome so the whole tool sequence is scored as an episode.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"outcome": map[string]interface{}{
						"type":        "string",
						"description": "How the session ended",
						"enum":        []string{"success", "partial", "failure"},
					},
				},
			},
		},
	}
}

// handleToolsList returns the planning catalog plus the feedback meta-tools.
func (s *Server) handleToolsList(req *MCPRequest) (*MCPResponse, error) {
	tools := make([]map[string]interface{}, 0, len(catalog.All())+5)
	for _, tool := range catalog.All() {
		tools = append(tools, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		})
	}
	tools = append(tools, feedbackTools()...)

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": tools,
		},
	}, nil
}

// callParams are the tools/call request parameters. The optional session
// and query fields scope the call for context hashing.
type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	SessionID string                 `json:"session_id"`
	Query     string                 `json:"query"`
}

// handleToolsCall handles tool execution requests.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) (*MCPResponse, error) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	var result interface{}
	var err error

	switch params.Name {
	case "submit_feedback":
		result, err = s.execSubmitFeedback(params.Arguments)
	case "get_recent_executions":
		result, err = s.execRecentExecutions(params.Arguments)
	case "get_recommendations":
		query, _ := params.Arguments["query"].(string)
		result = map[string]interface{}{
			"recommendations": s.engine.Recommendations(sessionID, query, nil),
		}
	case "rate_last_tool":
		result, err = s.execRateLast(sessionID, params.Arguments)
	case "finalize_session":
		result, err = s.execFinalize(sessionID, params.Arguments)
	default:
		if _, ok := catalog.Get(params.Name); !ok {
			return &MCPResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &MCPError{Code: -32602, Message: fmt.Sprintf("Unknown tool: %s", params.Name)},
			}, nil
		}
		result, err = s.engine.Execute(ctx, sessionID, params.Name, params.Arguments, params.Query)
	}

	if err != nil {
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32000, Message: err.Error()},
		}, nil
	}

	text, merr := json.Marshal(result)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode result: %w", merr)
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": string(text),
				},
			},
		},
	}, nil
}

// execSubmitFeedback rates a past execution.
func (s *Server) execSubmitFeedback(args map[string]interface{}) (interface{}, error) {
	idValue, ok := args["execution_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("execution_id is required")
	}
	ratingValue, ok := args["rating"].(float64)
	if !ok {
		return nil, fmt.Errorf("rating is required")
	}
	comment, _ := args["feedback"].(string)

	if err := s.engine.SubmitFeedback(int64(idValue), int(ratingValue), comment); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":       "success",
		"message":      fmt.Sprintf("Feedback submitted: %d stars", int(ratingValue)),
		"execution_id": int64(idValue),
		"rating":       int(ratingValue),
	}, nil
}

// execRecentExecutions lists recent executions for rating.
func (s *Server) execRecentExecutions(args map[string]interface{}) (interface{}, error) {
	toolName, _ := args["tool_name"].(string)
	limit := 10
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	executions, err := s.engine.RecentExecutions(toolName, limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"executions": executions,
		"total":      len(executions),
	}, nil
}

// execRateLast applies a quick good/bad verdict to the session's last call.
func (s *Server) execRateLast(sessionID string, args map[string]interface{}) (interface{}, error) {
	verdict, _ := args["rating"].(string)

	id, err := s.engine.RateLast(sessionID, verdict)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":       "success",
		"execution_id": id,
		"rating":       verdict,
	}, nil
}

// execFinalize ends the session and scores its tool sequence as an episode.
func (s *Server) execFinalize(sessionID string, args map[string]interface{}) (interface{}, error) {
	outcome, _ := args["outcome"].(string)
	if outcome == "" {
		outcome = "success"
	}

	if err := s.engine.FinalizeSession(sessionID, outcome); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":     "success",
		"session_id": sessionID,
		"outcome":    outcome,
	}, nil
}

// sendResponse writes a JSON-RPC response to stdout.
func (s *Server) sendResponse(resp *MCPResponse) {
	data, _ := json.Marshal(resp)
	fmt.Fprintln(s.out, string(data))
}

// sendError writes an error response to stdout.
func (s *Server) sendError(err error) {
	s.sendResponse(&MCPResponse{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   &MCPError{Code: -32700, Message: err.Error()},
	})
}
