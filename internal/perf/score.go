// ABOUTME: Pure scoring and EMA math used by the router and allocator.
// ABOUTME: Kept free of agent/task types so the formulas are trivially unit-testable.

package perf

// emaAlpha is the smoothing factor for the response-time average.
const emaAlpha = 0.1

// responseTimeCap caps the average response time (seconds) considered
// by the performance score; anything slower scores zero on that axis.
const responseTimeCap = 10.0

// NextEMA folds a new sample into an exponential moving average.
// The first sample becomes the average as-is.
func NextEMA(prev, sample float64, hasPrev bool) float64 {
	if !hasPrev {
		return sample
	}
	return prev*(1-emaAlpha) + sample*emaAlpha
}

// Weights for the composite routing score.
const (
	WeightCapability  = 0.4
	WeightPerformance = 0.3
	WeightLoad        = 0.2
	WeightPriority    = 0.1
)

// CompositeScore combines the four per-agent axes with the fixed
// routing weights. All inputs are expected in [0,1].
func CompositeScore(capability, performance, load, priority float64) float64 {
	return WeightCapability*capability +
		WeightPerformance*performance +
		WeightLoad*load +
		WeightPriority*priority
}

// CapabilityScore is 1 when the agent declares the capability and 0
// otherwise. Capability matching is binary; there is no partial match.
func CapabilityScore(declared bool) float64 {
	if declared {
		return 1.0
	}
	return 0.0
}

// PerformanceScore blends inverse capped response time with the
// success rate. avgResponse is in seconds. Unmeasured agents should be
// given the neutral score 0.5 by the caller.
func PerformanceScore(avgResponse, successRate float64) float64 {
	speed := 1.0 - avgResponse/responseTimeCap
	if speed < 0 {
		speed = 0
	}
	return 0.5*speed + 0.5*successRate
}

// LoadScore is the remaining headroom fraction: 1 - current/max.
func LoadScore(current, max int) float64 {
	if max <= 0 {
		return 0
	}
	score := 1.0 - float64(current)/float64(max)
	if score < 0 {
		return 0
	}
	return score
}

// PriorityScore averages the task's priority weight with the agent's
// static priority.
func PriorityScore(taskWeight, agentPriority float64) float64 {
	return (taskWeight + agentPriority) / 2
}
