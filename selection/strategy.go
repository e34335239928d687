// Package selection turns a ranked candidate list into a bounded,
// dynamically sized result set. Strategies analyze the score distribution to
// find a natural cutoff instead of taking a fixed top-k.
package selection

import (
	"math"

	"github.com/convoworks/scenariomesh/core"
)

const eps = 1e-9

// Strategy selects a prefix of a score-sorted candidate list.
//
// Contract:
//   - Input MUST already be sorted descending by score. Unsorted input is a
//     caller bug and fails fast with a ValidationError; strategies never
//     re-sort because callers rely on stable tie ordering upstream.
//   - The result is a prefix of the input (still sorted descending) whose
//     length is within [minK, maxK], except when fewer than minK candidates
//     exist at all, in which case every candidate is returned.
type Strategy interface {
	Select(candidates []core.Candidate, minK, maxK int) ([]core.Candidate, error)
}

func validate(candidates []core.Candidate, minK, maxK int) error {
	if minK < 0 {
		return &core.ValidationError{Field: "min_k", Reason: "must not be negative"}
	}
	if maxK < minK {
		return &core.ValidationError{Field: "max_k", Reason: "must be >= min_k"}
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			return &core.ValidationError{Field: "candidates", Reason: "scores must be sorted descending"}
		}
	}
	return nil
}

// prefix returns a defensive copy of the first k candidates.
func prefix(candidates []core.Candidate, k int) []core.Candidate {
	out := make([]core.Candidate, k)
	copy(out, candidates[:k])
	return out
}

// Elbow selects by the largest relative drop between consecutive scores
// within the [minK, maxK] window. When no drop exists (uniform scores) it
// keeps everything up to maxK.
type Elbow struct{}

// NewElbow creates an elbow-cutoff strategy.
func NewElbow() *Elbow { return &Elbow{} }

// Select implements Strategy.
func (e *Elbow) Select(candidates []core.Candidate, minK, maxK int) ([]core.Candidate, error) {
	if err := validate(candidates, minK, maxK); err != nil {
		return nil, err
	}
	n := len(candidates)
	if n == 0 {
		return []core.Candidate{}, nil
	}
	if n <= minK {
		return prefix(candidates, n), nil
	}

	hi := maxK
	if hi > n {
		hi = n
	}
	lo := minK
	if lo < 1 {
		lo = 1
	}

	bestK := hi
	bestDrop := 0.0
	for k := lo; k <= hi && k < n; k++ {
		drop := candidates[k-1].Score - candidates[k].Score
		rel := drop / math.Max(math.Abs(candidates[k-1].Score), eps)
		if rel > bestDrop {
			bestDrop = rel
			bestK = k
		}
	}
	return prefix(candidates, bestK), nil
}

// ZScore selects every candidate whose score clears mean + Threshold*stddev,
// clamped to [minK, maxK]. A zero standard deviation keeps everything up to
// maxK.
type ZScore struct {
	// Threshold is the number of standard deviations above the mean a score
	// must reach to clear the cutoff.
	Threshold float64
}

// NewZScore creates a z-score cutoff strategy.
func NewZScore(threshold float64) *ZScore { return &ZScore{Threshold: threshold} }

// Select implements Strategy.
func (z *ZScore) Select(candidates []core.Candidate, minK, maxK int) ([]core.Candidate, error) {
	if err := validate(candidates, minK, maxK); err != nil {
		return nil, err
	}
	n := len(candidates)
	if n == 0 {
		return []core.Candidate{}, nil
	}
	if n <= minK {
		return prefix(candidates, n), nil
	}

	var sum float64
	for _, c := range candidates {
		sum += c.Score
	}
	mean := sum / float64(n)
	var variance float64
	for _, c := range candidates {
		d := c.Score - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(n))

	k := n
	if stddev > eps {
		cutoff := mean + z.Threshold*stddev
		k = 0
		for k < n && candidates[k].Score >= cutoff {
			k++
		}
	}
	if k < minK {
		k = minK
	}
	if k > maxK {
		k = maxK
	}
	if k > n {
		k = n
	}
	return prefix(candidates, k), nil
}
