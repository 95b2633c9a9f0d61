// Package malis computes structured (MALIS) training weights for affinity
// graphs and boundary maps.
//
// Edges of the voxel lattice are visited in descending predicted affinity
// while a union-find forest grows into the maximum spanning forest. Every
// union connects two domains for the first time, and the edge that does
// so is the maximin edge of all the voxel pairs across them. Pairs with
// different ground-truth ids are charged to the edge as merge error, pairs
// with the same id as split error. The weights are the sum of both.
package malis

import (
	"fmt"
	"runtime"
)

// NormType selects how the combined weight volume is normalized.
type NormType string

const (
	// NormNone leaves raw pair counts.
	NormNone NormType = "none"

	// NormFracCount divides by the number of labeled voxels N.
	NormFracCount NormType = "frac-count"

	// NormFracPair divides by N*(N-1).
	NormFracPair NormType = "frac-pair"
)

// ParseNormType validates a normalization name. The empty string selects
// NormNone.
func ParseNormType(s string) (NormType, error) {
	switch NormType(s) {
	case "", NormNone:
		return NormNone, nil
	case NormFracCount, NormFracPair:
		return NormType(s), nil
	}
	return "", fmt.Errorf("unknown malis normalization %q", s)
}

// Options configures a weight computation.
type Options struct {
	// Norm normalizes the combined weight volume
	Norm NormType

	// Threshold binarizes the prediction for the rand error: edges above
	// it count as connected
	Threshold float64

	// LabelThreshold binarizes a 3-channel affinity ground truth before
	// connected components
	LabelThreshold float64

	// Constrained computes boundary-map weights with the label-constrained
	// variant
	Constrained bool

	// Workers bounds how many boundary-map slices are weighed concurrently
	Workers int

	// VerifyForest recomputes the maximum spanning forest with gonum's
	// Kruskal and fails the call when its total value differs from the
	// forest the tracker built
	VerifyForest bool
}

// DefaultOptions returns unnormalized weights thresholded at 0.5.
func DefaultOptions() Options {
	return Options{
		Norm:      NormNone,
		Threshold: 0.5,
		Workers:   runtime.NumCPU(),
	}
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// divisor returns the normalization denominator for n labeled voxels, or
// 0 when the weights stay unscaled.
func (o Options) divisor(n int64) float64 {
	switch o.Norm {
	case NormFracCount:
		return float64(n)
	case NormFracPair:
		return float64(n) * float64(n-1)
	}
	return 0
}
