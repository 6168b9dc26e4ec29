// Package dtw implements the dynamic-time-warping comparator used for
// gesture verification. It aligns two variable-length motion sequences and
// produces a cumulative distance despite differing lengths and sampling
// offsets.
package dtw

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/authentix/biomatch/gesture"
)

var (
	// ErrEmptySequence is returned when either input sequence has no readings.
	ErrEmptySequence = errors.New("dtw: empty sequence")

	// ErrNoEnrolledSequences is returned by BestMatch when the enrolled list
	// is empty. Callers are expected to treat this as a no-enrollment
	// condition, not a comparison failure.
	ErrNoEnrolledSequences = errors.New("dtw: no enrolled sequences")
)

// Distance computes the minimal cumulative alignment cost between a and b
// using dynamic time warping with the three standard moves (insertion,
// deletion, match) and Euclidean local cost between readings.
//
// The full (n+1)x(m+1) cost table is collapsed to a rolling two-row buffer,
// which reduces memory to O(min(n, m)) without changing the returned value.
// Time complexity stays O(n*m).
func Distance(a, b gesture.Sequence) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptySequence
	}

	// DTW is symmetric under the three standard moves; keep the shorter
	// sequence on the inner axis so the rolling rows stay small.
	if len(b) > len(a) {
		a, b = b, a
	}
	n, m := len(a), len(b)

	rowsB := make([][gesture.NumChannels]float64, m)
	for j := range b {
		rowsB[j] = b[j].Row()
	}

	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = math.Inf(1)
	}

	for i := 1; i <= n; i++ {
		rowA := a[i-1].Row()
		curr[0] = math.Inf(1)
		for j := 1; j <= m; j++ {
			cost := floats.Distance(rowA[:], rowsB[j-1][:], 2)
			curr[j] = cost + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}

	return prev[m], nil
}

// BestMatch returns the minimum DTW distance between candidate and every
// sequence in enrolled. ErrNoEnrolledSequences is returned when enrolled is
// empty.
func BestMatch(candidate gesture.Sequence, enrolled []gesture.Sequence) (float64, error) {
	if len(enrolled) == 0 {
		return 0, ErrNoEnrolledSequences
	}

	best := math.Inf(1)
	for _, seq := range enrolled {
		d, err := Distance(candidate, seq)
		if err != nil {
			return 0, err
		}
		if d < best {
			best = d
		}
	}
	return best, nil
}

// Similarity maps a DTW distance to a similarity in [0, 1] via the linear
// mapping max(0, 1 - distance/maxDistance).
//
// maxDistance is a fixed calibration constant, not derived from data, so
// behavior is stable across deployments; it needs re-tuning if the feature
// scaling of sequences changes.
func Similarity(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 0
	}
	s := 1 - distance/maxDistance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
