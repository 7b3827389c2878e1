package cli

import (
	"github.com/spf13/cobra"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect the feedback and reinforcement learning state",
		Long: `The learning system records every tool execution, aggregates per-tool
metrics, and maintains a tabular Q-learning policy keyed by hashed
session context. All data is stored locally in ~/.planagent/agent.db.

Commands:
  status      Aggregate learning statistics
  metrics     Per-tool execution metrics
  executions  Recent executions, newest first
  recommend   Confidence-ranked tool suggestions for a query
  policy      Learned policy rows for one tool
  episodes    Highest-reward successful sessions
  rate        Rate a past execution (1-5 stars)`,
	}

	cmd.AddCommand(newLearningStatusCmd())
	cmd.AddCommand(newLearningMetricsCmd())
	cmd.AddCommand(newLearningExecutionsCmd())
	cmd.AddCommand(newLearningRecommendCmd())
	cmd.AddCommand(newLearningPolicyCmd())
	cmd.AddCommand(newLearningEpisodesCmd())
	cmd.AddCommand(newLearningRateCmd())

	return cmd
}
