/*
Package main is the entry point for the planagent CLI.

planagent is an agentic gateway for Oracle Planning that records every tool
execution, learns from outcomes and user feedback via tabular Q-learning,
and recommends the best tool for each context.

Usage:
  planagent [command]

Available Commands:
  serve       Run the MCP server (stdio transport)
  web         Run the HTTP API server
  tools       List the planning tool catalog
  learning    Inspect the feedback and learning state
  version     Show version information
  help        Help about any command

Examples:
  # Run as MCP server against mock data
  PLANNING_MOCK_MODE=true planagent serve

  # Run the HTTP API
  planagent web --port 8080

  # See what the learner would recommend
  planagent learning recommend "export revenue data"
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planops/planagent/internal/cli"
	"github.com/planops/planagent/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planagent",
		Short: "Self-improving agent gateway for Oracle Planning",
		Long: `planagent exposes the Oracle Planning REST API as a set of agent tools,
records every execution, and uses reinforcement learning to recommend
the right tool for each context.

Every tool call is logged with its latency and outcome; user ratings
(1-5 stars or a quick good/bad) are folded back into a Q-learning
policy, so recommendations improve with use.`,
		Version: version.GetVersion(),
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewWebCmd())
	rootCmd.AddCommand(cli.NewToolsCmd())
	rootCmd.AddCommand(cli.NewLearningCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
