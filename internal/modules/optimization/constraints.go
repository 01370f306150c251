package optimization

import "math"

const turnoverSlack = 1e-8

// ApplyWeightLimits clamps weights to the optional per-position bounds
// (maximum first, then minimum) and re-projects onto the simplex. Note the
// projection renormalizes, so individual weights can end slightly off the
// clamp; bounds are guardrails, not hard constraints.
func ApplyWeightLimits(weights []float64, minW, maxW *float64) []float64 {
	out := make([]float64, len(weights))
	copy(out, weights)
	if maxW != nil {
		for i := range out {
			out[i] = math.Min(out[i], *maxW)
		}
	}
	if minW != nil {
		for i := range out {
			out[i] = math.Max(out[i], *minW)
		}
	}
	return ProjectSimplex(out)
}

// EnforceTurnover caps total absolute turnover against the current weights.
// When the target exceeds the cap it is blended toward current by the ratio
// cap/turnover, then re-projected.
func EnforceTurnover(target, current []float64, maxTurnover *float64) []float64 {
	if maxTurnover == nil {
		return target
	}
	var turnover float64
	for i := range target {
		turnover += math.Abs(target[i] - current[i])
	}
	if turnover <= *maxTurnover+turnoverSlack {
		return target
	}
	blend := 0.0
	if turnover > 0 {
		blend = *maxTurnover / turnover
	}
	adjusted := make([]float64, len(target))
	for i := range target {
		adjusted[i] = current[i] + (target[i]-current[i])*blend
	}
	return ProjectSimplex(adjusted)
}
