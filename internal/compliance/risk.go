package compliance

// Risk bucket labels. The set and its order are fixed.
const (
	BucketLow    = "Low"
	BucketMedium = "Medium"
	BucketHigh   = "High"
)

// Buckets lists the risk buckets in axis order.
var Buckets = []string{BucketLow, BucketMedium, BucketHigh}

const (
	pepPoints          = 60
	sanctionPoints     = 40
	latePaymentPoints  = 10
	latePaymentCeiling = 30
	maxScore           = 100
)

// RiskBucket maps a score onto its bucket label.
func RiskBucket(score int) string {
	switch {
	case score <= 39:
		return BucketLow
	case score <= 69:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// RiskScore computes the 0..100 score for the given inputs.
func RiskScore(in RiskInputs) int {
	score := 0
	if in.PEPFlag {
		score += pepPoints
	}
	if in.SanctionListed {
		score += sanctionPoints
	}
	if in.LatePayments > 0 {
		late := in.LatePayments * latePaymentPoints
		if late > latePaymentCeiling {
			late = latePaymentCeiling
		}
		score += late
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}
