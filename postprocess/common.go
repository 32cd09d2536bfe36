package postprocess

import (
	"sort"
)

// clamp01 restricts a normalized coordinate to the [0,1] range
func clamp01(val float32) float32 {

	if val < 0 {
		return 0
	}

	if val > 1 {
		return 1
	}

	return val
}

// argMaxGroups splits data into groups of groupLen elements and returns the
// index of the maximum value within each group.  The index is returned, not
// the maximum value itself, as the downstream box regression uses the bucket
// position as a discretized offset magnitude
func argMaxGroups(data []float32, groupLen int) []int {

	numGroups := len(data) / groupLen
	idxs := make([]int, numGroups)

	for g := 0; g < numGroups; g++ {
		best := 0
		bestVal := data[g*groupLen]

		for k := 1; k < groupLen; k++ {
			if data[g*groupLen+k] > bestVal {
				bestVal = data[g*groupLen+k]
				best = k
			}
		}

		idxs[g] = best
	}

	return idxs
}

// calculateOverlap works out the Intersection over Union (IoU) value of two
// boxes in normalized coordinates
func calculateOverlap(a, b Rect) float32 {

	w := minF32(a.X2, b.X2) - maxF32(a.X1, b.X1)
	h := minF32(a.Y2, b.Y2) - maxF32(a.Y1, b.Y1)

	if w <= 0 || h <= 0 {
		return 0
	}

	intersection := w * h
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// Suppress reduces the candidate set to a ranked non-overlapping set using
// greedy Non-Maximum Suppression over the normalized boxes.  Candidates from
// all strides and classes are suppressed as one combined set.  The result is
// sorted by descending score and capped at maxResults.  An empty input
// returns an empty result
func Suppress(candidates []Candidate, maxResults int, iouThreshold float32) []Candidate {

	if len(candidates) == 0 {
		return []Candidate{}
	}

	// sort a copy so the caller's slice order is left alone.  sort.SliceStable
	// keeps insertion order for tied scores
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	keep := make([]Candidate, 0, len(ordered))
	discarded := make([]bool, len(ordered))

	for i := 0; i < len(ordered); i++ {

		if discarded[i] {
			continue
		}

		keep = append(keep, ordered[i])

		if maxResults > 0 && len(keep) >= maxResults {
			break
		}

		for j := i + 1; j < len(ordered); j++ {
			if discarded[j] {
				continue
			}

			if calculateOverlap(ordered[i].Box, ordered[j].Box) >= iouThreshold {
				discarded[j] = true
			}
		}
	}

	return keep
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
