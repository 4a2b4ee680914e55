package scale

// DefaultTickCount is the number of axis ticks produced when none is given.
const DefaultTickCount = 5

// Ticks returns count evenly spaced values from 0 to domainMax inclusive.
// A non-positive domainMax yields the single tick 0.
func Ticks(domainMax float64, count int) []float64 {
	if count <= 0 {
		count = DefaultTickCount
	}
	if !(domainMax > 0) {
		return []float64{0}
	}
	if count == 1 {
		return []float64{0}
	}
	ticks := make([]float64, count)
	for i := range ticks {
		ticks[i] = domainMax * float64(i) / float64(count-1)
	}
	ticks[count-1] = domainMax
	return ticks
}
