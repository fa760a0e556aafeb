package matching

// Classify maps a score to a confidence tier. Boundaries are inclusive.
// Scores below the low threshold return ConfidenceNone.
func Classify(score float64, t Thresholds) Confidence {
	switch {
	case score >= t.High:
		return ConfidenceHigh
	case score >= t.Medium:
		return ConfidenceMedium
	case score >= t.Low:
		return ConfidenceLow
	}
	return ConfidenceNone
}

// ParseConfidence converts a tier name back to a Confidence.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s), true
	}
	return ConfidenceNone, false
}
