package learning

const (
	successReward  = 10.0
	failurePenalty = -5.0

	// ratingNeutral is the rating that contributes no reward.
	ratingNeutral = 3

	// latencyPenaltyPerSecond penalizes slow executions.
	latencyPenaltyPerSecond = 0.1

	// efficiencyBonus rewards executions faster than 80% of the tool's mean.
	efficiencyBonus          = 2.0
	efficiencyLatencyFactor  = 0.8
)

// Reward computes the scalar reward for one execution outcome.
//
// rating 0 means unrated; latencyMS 0 means no latency signal. refLatencyMS is
// the tool's current mean latency, fetched from the execution store by the
// caller. The result is intentionally unclamped.
func Reward(success bool, rating int, latencyMS, refLatencyMS float64) float64 {
	reward := failurePenalty
	if success {
		reward = successReward
	}

	if rating != 0 {
		reward += float64(rating-ratingNeutral) * 2.0
	}

	if latencyMS > 0 {
		reward -= latencyPenaltyPerSecond * (latencyMS / 1000.0)

		if refLatencyMS > 0 && latencyMS < refLatencyMS*efficiencyLatencyFactor {
			reward += efficiencyBonus
		}
	}

	return reward
}
