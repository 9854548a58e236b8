package workflow

// DefaultMarkingFeeCents is the fixed marking fee charged per sample in a
// submission, in cents (TZS 10,000.00).  Deployments may override it via
// MARKING_FEE_CENTS.
const DefaultMarkingFeeCents int64 = 1000000

// AmountDueCents computes the payment total for a submission: the sum of
// the selected ingredient prices across all samples plus the marking fee
// charged once per sample.
func AmountDueCents(ingredientPrices []int64, sampleCount int, feeCents int64) int64 {
	var total int64
	for _, p := range ingredientPrices {
		total += p
	}
	return total + feeCents*int64(sampleCount)
}
