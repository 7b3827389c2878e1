package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planops/planagent/internal/config"
	"github.com/planops/planagent/internal/mcp"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the planagent MCP server using stdio transport.

The server exposes the Planning tool catalog plus feedback meta-tools:
  • submit_feedback        - Rate a past tool execution (1-5 stars)
  • get_recent_executions  - List executions available for rating
  • get_recommendations    - Confidence-ranked tool suggestions
  • rate_last_tool         - Quick good/bad verdict on the last call

Every tool call is recorded and feeds the reinforcement learner, so
recommendations improve as the agent is used.`,
		Example: `  # Run directly
  planagent serve

  # Run against mock data
  PLANNING_MOCK_MODE=true planagent serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// Implements graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	server := mcp.NewServer(engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down gracefully...", sig)
		cancel()
		log.Println("Shutdown complete")
		return nil

	case err := <-errChan:
		// Run returned: stdin closed or a transport error.
		if err != nil && err != context.Canceled {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
