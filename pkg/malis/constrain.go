package malis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"malisweight/pkg/volume"
)

// ConstrainLabel builds the two label-constrained copies of a boundary
// map slice. In the merge map every labeled voxel is forced to 1, so only
// true boundaries can separate segments; in the split map every boundary
// voxel is forced to 0, so only segment interiors can connect. bdm is not
// modified.
func ConstrainLabel(bdm []float64, labels []uint32) (merge, split []float64) {
	merge = make([]float64, len(bdm))
	split = make([]float64, len(bdm))
	copy(merge, bdm)
	copy(split, bdm)
	for i, id := range labels {
		if id != 0 {
			merge[i] = 1
		} else {
			split[i] = 0
		}
	}
	return merge, split
}

// ConstrainedBoundaryWeights2D weighs a boundary-map slice with the
// label-constrained variant: the merge error comes from the merge map run
// and the split error from the split map run, so neither error type is
// masked by the other. The rand error is that of the unconstrained slice.
func ConstrainedBoundaryWeights2D(bdm []float64, labels []uint32, height, width int, threshold float64) (*SliceWeights, error) {
	if len(bdm) != height*width || len(labels) != height*width {
		return nil, fmt.Errorf("boundary slice of %d and labels of %d voxels for %dx%d: %w",
			len(bdm), len(labels), height, width, volume.ErrShapeMismatch)
	}

	mbdm, sbdm := ConstrainLabel(bdm, labels)
	mw, err := BoundaryWeights2D(mbdm, labels, height, width, threshold)
	if err != nil {
		return nil, err
	}
	sw, err := BoundaryWeights2D(sbdm, labels, height, width, threshold)
	if err != nil {
		return nil, err
	}
	raw, err := BoundaryWeights2D(bdm, labels, height, width, threshold)
	if err != nil {
		return nil, err
	}

	out := &SliceWeights{
		Weights: make([]float64, height*width),
		Merge:   mw.Merge,
		Split:   sw.Split,
		stats:   raw.stats,
	}
	floats.AddTo(out.Weights, out.Merge, out.Split)
	return out, nil
}
