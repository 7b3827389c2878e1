package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/planops/planagent/internal/agent"
	"github.com/planops/planagent/internal/config"
)

// withEngine loads config, builds the engine, runs fn, and cleans up.
func withEngine(fn func(*agent.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(engine)
}

// newLearningStatusCmd shows aggregate learning statistics.
func newLearningStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aggregate learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(engine *agent.Engine) error {
				summary, err := engine.Summarize()
				if err != nil {
					return fmt.Errorf("failed to summarize: %w", err)
				}

				fmt.Println("Learning System Status")
				fmt.Println("======================")
				fmt.Printf("Tracked tools:      %d\n", summary.TotalTools)
				fmt.Printf("Avg success rate:   %.3f\n", summary.AvgSuccessRate)
				fmt.Printf("Avg user rating:    %.2f\n", summary.AvgRating)
				fmt.Printf("Policy entries:     %d\n", summary.PolicyEntries)
				fmt.Printf("Avg action value:   %.3f\n", summary.AvgActionValue)
				return nil
			})
		},
	}
}

// newLearningMetricsCmd lists per-tool metrics.
func newLearningMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [tool]",
		Short: "Show per-tool execution metrics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolName := ""
			if len(args) > 0 {
				toolName = args[0]
			}

			return withEngine(func(engine *agent.Engine) error {
				metrics, err := engine.Metrics(toolName)
				if err != nil {
					return fmt.Errorf("failed to load metrics: %w", err)
				}
				if len(metrics) == 0 {
					fmt.Println("No executions recorded yet")
					return nil
				}

				fmt.Printf("%-30s %8s %8s %10s %8s\n", "TOOL", "CALLS", "SUCCESS", "AVG MS", "RATING")
				for _, m := range metrics {
					rating := "-"
					if m.AvgRating > 0 {
						rating = fmt.Sprintf("%.2f", m.AvgRating)
					}
					fmt.Printf("%-30s %8d %7.0f%% %10.1f %8s\n",
						m.ToolName, m.TotalCalls, m.SuccessRate()*100, m.AvgLatencyMS, rating)
				}
				return nil
			})
		},
	}
}

// newLearningExecutionsCmd lists recent executions.
func newLearningExecutionsCmd() *cobra.Command {
	var toolName string
	var limit int

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List recent executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(engine *agent.Engine) error {
				executions, err := engine.RecentExecutions(toolName, limit)
				if err != nil {
					return fmt.Errorf("failed to load executions: %w", err)
				}
				if len(executions) == 0 {
					fmt.Println("No executions recorded yet")
					return nil
				}

				for _, e := range executions {
					status := "ok"
					if !e.Success {
						status = "FAILED"
					}
					rating := ""
					if e.Rating > 0 {
						rating = fmt.Sprintf("  rated %d/5", e.Rating)
					}
					fmt.Printf("#%-6d %-30s %-7s %8.1fms%s\n",
						e.ID, e.ToolName, status, e.LatencyMS, rating)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&toolName, "tool", "t", "", "Filter by tool name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum executions to show")
	return cmd
}

// newLearningRecommendCmd ranks tools for a query.
func newLearningRecommendCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "Rank tools for a query by confidence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			return withEngine(func(engine *agent.Engine) error {
				recs := engine.Recommendations(uuid.NewString(), query, nil)
				if top > 0 && len(recs) > top {
					recs = recs[:top]
				}

				fmt.Printf("Recommendations for %q:\n\n", query)
				for i, rec := range recs {
					fmt.Printf("%2d. %-30s %.3f  (%s)\n",
						i+1, rec.ToolName, rec.Confidence, rec.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "Number of recommendations to show")
	return cmd
}

// newLearningPolicyCmd shows the learned policy rows for one tool.
func newLearningPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy <tool>",
		Short: "Show learned policy rows for a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(engine *agent.Engine) error {
				policies, err := engine.ToolPolicies(args[0])
				if err != nil {
					return fmt.Errorf("failed to load policy: %w", err)
				}
				if len(policies) == 0 {
					fmt.Printf("No policy entries for %s yet\n", args[0])
					return nil
				}

				fmt.Printf("%-20s %12s %8s\n", "CONTEXT", "VALUE", "VISITS")
				for _, p := range policies {
					fmt.Printf("%-20s %12.4f %8d\n",
						truncateKey(p.ContextKey), p.ActionValue, p.VisitCount)
				}
				return nil
			})
		},
	}
}

// newLearningEpisodesCmd lists the best successful sessions.
func newLearningEpisodesCmd() *cobra.Command {
	var toolName string
	var limit int

	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List highest-reward successful sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(engine *agent.Engine) error {
				episodes, err := engine.Episodes(toolName, limit)
				if err != nil {
					return fmt.Errorf("failed to load episodes: %w", err)
				}
				if len(episodes) == 0 {
					fmt.Println("No successful episodes recorded yet")
					return nil
				}

				for _, ep := range episodes {
					fmt.Printf("%-12s reward %6.1f  %s\n",
						ep.SessionID, ep.EpisodeReward, strings.Join(ep.ToolSequence, " -> "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&toolName, "tool", "t", "", "Only episodes containing this tool")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum episodes to show")
	return cmd
}

// truncateKey shortens a context digest for display.
func truncateKey(key string) string {
	if len(key) <= 16 {
		return key
	}
	return key[:16] + "..."
}

// newLearningRateCmd rates a past execution.
func newLearningRateCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "rate <execution-id> <rating>",
		Short: "Rate a past execution (1-5 stars)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid execution id %q", args[0])
			}
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q", args[1])
			}

			return withEngine(func(engine *agent.Engine) error {
				if err := engine.SubmitFeedback(id, rating, comment); err != nil {
					return fmt.Errorf("failed to submit feedback: %w", err)
				}
				fmt.Printf("Execution #%d rated %d/5\n", id, rating)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Optional text feedback")
	return cmd
}
