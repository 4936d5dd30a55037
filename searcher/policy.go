package searcher

import "math"

// Exploration constant used when none is configured.
const DefaultExploration = 0.5

// ucb scores a branch visited visits times under a parent visited parentVisits
// times. Unvisited branches always win.
func ucb(value float64, visits, parentVisits int, c float64) float64 {
	if visits == 0 {
		return math.Inf(1)
	}
	return value + c*math.Sqrt(2*math.Log(float64(parentVisits))/float64(visits))
}

// pickUCB returns the index of the highest scoring branch, the first one on
// ties, or -1 when there are no branches.
func pickUCB(n int, stats func(i int) Stats, parentVisits int, c float64) int {
	maxIndex := -1
	maxScore := math.Inf(-1)
	for i := 0; i < n; i++ {
		s := stats(i)
		score := ucb(s.Value, s.Visits, parentVisits, c)
		if math.IsInf(score, 1) {
			return i
		}
		if maxIndex < 0 || score > maxScore {
			maxScore = score
			maxIndex = i
		}
	}
	return maxIndex
}

// pickGreedy returns the index of the visited branch with the highest value,
// the first one on ties, or -1 when no branch has been visited.
func pickGreedy(n int, stats func(i int) Stats) int {
	maxIndex := -1
	maxValue := math.Inf(-1)
	for i := 0; i < n; i++ {
		s := stats(i)
		if s.Visits == 0 {
			continue
		}
		if maxIndex < 0 || s.Value > maxValue {
			maxValue = s.Value
			maxIndex = i
		}
	}
	return maxIndex
}
