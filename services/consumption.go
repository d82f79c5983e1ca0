package services

// ComputeConsumption derives usage between two readings of the same meter.
// Negative results (rollback, tamper, typo) are passed through untouched;
// plausibility is a human problem, not this layer's.
func ComputeConsumption(previous, current int) int {
	return current - previous
}

// ReplacementConsumption computes the final usage of a meter being swapped
// out. finalValue is the dial value read off the old meter at removal,
// baseline the last value recorded for it. When nothing moved since the last
// recording the result is 0; otherwise the plain difference. The caller
// stores the result on the new meter's baseline row, because once the swap
// happens it can never be re-derived from adjacent rows.
func ReplacementConsumption(baseline, finalValue int) int {
	if baseline == finalValue {
		return 0
	}
	return finalValue - baseline
}
