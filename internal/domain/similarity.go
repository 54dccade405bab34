package domain

import "math"

// CosineSimilarity computes dot(a,b) / (||a||*||b||) with float64
// accumulators. A zero-magnitude operand yields 0, not NaN: a vector
// with no direction matches nothing. Both vectors must have the same
// length; the ranker validates dimensions before calling.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

// MinMaxScale maps raw scores onto [0, 100] relative to the population:
// the minimum maps to exactly 0, the maximum to exactly 100. When every
// value is identical (including a single-element input) all entries map
// to exactly 100. Raw cosine scores for text embeddings compress into a
// narrow band, so the stretch makes the spread readable; the cost is
// that scores are only comparable within one population.
func MinMaxScale(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	minRaw, maxRaw := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < minRaw {
			minRaw = v
		}
		if v > maxRaw {
			maxRaw = v
		}
	}

	scaled := make([]float64, len(raw))
	if maxRaw == minRaw {
		for i := range scaled {
			scaled[i] = 100.0
		}
		return scaled
	}
	span := maxRaw - minRaw
	for i, v := range raw {
		scaled[i] = (v - minRaw) / span * 100.0
	}
	return scaled
}
