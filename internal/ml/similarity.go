package ml

import "math"

// Weights and threshold for the nearest-neighbor fallback. This is a
// best-effort heuristic for users without a trained model, not a learned
// model itself.
const (
	descriptionWeight = 0.7
	amountWeight      = 0.3
	matchThreshold    = 0.3

	// HistoryLimit is how many recent categorized expenses the matcher
	// considers.
	HistoryLimit = 100
)

// Match finds the most similar historical expense and returns its category
// when the combined score clears the threshold. history must be the user's
// recent categorized expenses, newest first.
func Match(description string, amountCents int64, history []Example) PredictionResult {
	queryTokens := tokenSet(Normalize(description))

	bestScore := 0.0
	bestCategory := ""
	for _, ex := range history {
		score := descriptionWeight*jaccard(queryTokens, tokenSet(Normalize(ex.Description))) +
			amountWeight*amountCloseness(amountCents, ex.AmountCents)
		if score > bestScore {
			bestScore = score
			bestCategory = ex.CategoryID
		}
	}

	if bestScore > matchThreshold && bestCategory != "" {
		return PredictionResult{CategoryID: bestCategory, Confidence: bestScore}
	}
	return PredictionResult{}
}

// jaccard is |intersection| / |union| over two token sets, 0 when both are
// empty.
func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// amountCloseness is 1 − min(|Δ| / max(a, b), 1). Amounts are positive in
// this domain; a non-positive max scores 0.
func amountCloseness(a, b int64) float64 {
	max := math.Max(float64(a), float64(b))
	if max <= 0 {
		return 0
	}
	ratio := math.Abs(float64(a)-float64(b)) / max
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}
