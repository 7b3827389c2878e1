package learning

import (
	"math"
	"sort"
	"strings"

	"github.com/planops/planagent/internal/storage"
)

const (
	baselineConfidence = 0.5

	highSuccessRate = 0.8
	lowSuccessRate  = 0.5

	highRating = 4.0
	lowRating  = 3.0

	// fastLatencyMS is the latency below which a tool counts as fast.
	fastLatencyMS = 1000.0

	// maxPolicyBoost caps the confidence contribution of the action value.
	maxPolicyBoost = 0.2
)

// MetricsSummary is the slice of aggregate metrics attached to a recommendation.
type MetricsSummary struct {
	SuccessRate float64 `json:"success_rate"`
	AvgRating   float64 `json:"avg_rating,omitempty"`
	TotalCalls  int64   `json:"total_calls"`
}

// Recommendation is one ranked candidate tool with its confidence and the
// human-readable factors that produced it.
type Recommendation struct {
	ToolName   string         `json:"tool_name"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Metrics    MetricsSummary `json:"metrics"`
}

// Recommender ranks candidate tools for a context by combining execution
// aggregates with learned policy values. Pure read path: it never writes.
type Recommender struct {
	store      storage.Storage
	policy     *Policy
	minSamples int
}

// NewRecommender creates a recommender over the given store and policy.
func NewRecommender(store storage.Storage, policy *Policy, minSamples int) *Recommender {
	return &Recommender{
		store:      store,
		policy:     policy,
		minSamples: minSamples,
	}
}

// Recommend returns the candidate tools ranked by confidence, highest first.
// Ties keep their input order.
func (r *Recommender) Recommend(contextKey string, candidateTools []string) []Recommendation {
	allMetrics, _ := r.store.GetToolMetrics("")
	metricsByTool := make(map[string]storage.ToolMetrics, len(allMetrics))
	for _, m := range allMetrics {
		metricsByTool[m.ToolName] = m
	}

	recommendations := make([]Recommendation, 0, len(candidateTools))

	for _, toolName := range candidateTools {
		confidence := baselineConfidence
		var factors []string

		m, tracked := metricsByTool[toolName]

		// An untracked tool gets a neutral success rate so neither
		// success factor fires.
		successRate := 0.5
		if tracked {
			successRate = m.SuccessRate()
		}
		if successRate > highSuccessRate {
			confidence += 0.2
			factors = append(factors, "high success rate")
		} else if successRate < lowSuccessRate {
			confidence -= 0.2
			factors = append(factors, "low success rate")
		}

		if m.AvgRating > 0 {
			if m.AvgRating >= highRating {
				confidence += 0.15
				factors = append(factors, "high user rating")
			} else if m.AvgRating < lowRating {
				confidence -= 0.15
				factors = append(factors, "low user rating")
			}
		}

		if m.AvgLatencyMS > 0 && m.AvgLatencyMS < fastLatencyMS {
			confidence += 0.1
			factors = append(factors, "fast execution")
		}

		if value := r.policy.Value(toolName, contextKey); value > 0 {
			confidence += math.Min(maxPolicyBoost, value/10.0)
			factors = append(factors, "RL policy favor")
		}

		if m.TotalCalls >= int64(r.minSamples) {
			confidence += 0.05
			factors = append(factors, "sufficient samples")
		}

		confidence = math.Max(0, math.Min(1, confidence))

		reason := "Baseline recommendation"
		if len(factors) > 0 {
			reason = strings.Join(factors, ", ")
		}

		recommendations = append(recommendations, Recommendation{
			ToolName:   toolName,
			Confidence: math.Round(confidence*1000) / 1000,
			Reason:     reason,
			Metrics: MetricsSummary{
				SuccessRate: successRate,
				AvgRating:   m.AvgRating,
				TotalCalls:  m.TotalCalls,
			},
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})

	return recommendations
}
