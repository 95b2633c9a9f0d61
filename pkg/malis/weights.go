package malis

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"malisweight/pkg/graph"
	"malisweight/pkg/segment"
	"malisweight/pkg/volume"
)

// ErrForestMismatch reports a union-find pass whose spanning forest does
// not have the maximum total value.
var ErrForestMismatch = errors.New("spanning forest is not maximal")

// Result holds the weights of one prediction volume together with the
// error volumes they were assembled from. All volumes have the shape of
// the prediction.
type Result struct {
	// Weights is Merge + Split, normalized per Options.Norm
	Weights *volume.Volume

	// Merge holds, at each maximin edge, the number of pairs with
	// different ground-truth ids it connected
	Merge *volume.Volume

	// Split holds, at each maximin edge, the number of pairs with the same
	// ground-truth id it connected
	Split *volume.Volume

	// RandError is the fraction of labeled voxel pairs misclassified by
	// the prediction thresholded at Options.Threshold
	RandError float64

	// LabeledVoxels is the number of voxels with a non-zero segment id
	LabeledVoxels int64

	// Scale is the factor applied to Merge + Split to obtain Weights
	Scale float64
}

// pairStats accumulates the pair counts needed for the rand error.
type pairStats struct {
	// same and diff pairs joined by edges above the threshold
	sameAbove, diffAbove int64

	// labeled pairs and same-id pairs in the whole domain
	totalPairs, totalSame int64

	// forest is the total value of the edges that joined two domains
	forest float64
}

func (s *pairStats) add(o pairStats) {
	s.sameAbove += o.sameAbove
	s.diffAbove += o.diffAbove
	s.totalPairs += o.totalPairs
	s.totalSame += o.totalSame
	s.forest += o.forest
}

func (s pairStats) randError() float64 {
	if s.totalPairs == 0 {
		return 0
	}
	wrong := s.diffAbove + (s.totalSame - s.sameAbove)
	return float64(wrong) / float64(s.totalPairs)
}

// labelPairs counts the labeled voxel pairs and the same-id pairs.
func labelPairs(labels []uint32) (total, same int64) {
	hist := make(map[uint32]int64)
	var n int64
	for _, id := range labels {
		if id != 0 {
			hist[id]++
			n++
		}
	}
	for _, c := range hist {
		same += c * (c - 1) / 2
	}
	return n * (n - 1) / 2, same
}

// weigh runs the union-find pass over edges in their given order and
// hands each union's pair counts to scatter.
func weigh(edges []graph.Edge, labels []uint32, threshold float64, scatter func(e graph.Edge, same, diff int64)) pairStats {
	var stats pairStats
	stats.totalPairs, stats.totalSame = labelPairs(labels)

	t := NewTracker(labels)
	for _, e := range edges {
		same, diff, merged := t.Union(e.V1, e.V2)
		if !merged {
			continue
		}
		stats.forest += e.Value
		if e.Value > threshold {
			stats.sameAbove += same
			stats.diffAbove += diff
		}
		if same != 0 || diff != 0 {
			scatter(e, same, diff)
		}
	}
	return stats
}

// verifyForest checks the forest value of a pass over edges against
// gonum's Kruskal on the same n-voxel graph.
func verifyForest(edges []graph.Edge, n int, forest float64) error {
	want := graph.MaxSpanningForestWeight(edges, n)
	if math.Abs(want-forest) > 1e-9*math.Max(1, math.Abs(want)) {
		return fmt.Errorf("forest value %g, maximum %g: %w", forest, want, ErrForestMismatch)
	}
	return nil
}

func newResult(shape volume.Shape) *Result {
	return &Result{
		Weights: volume.New(shape),
		Merge:   volume.New(shape),
		Split:   volume.New(shape),
		Scale:   1,
	}
}

// assemble combines merge and split errors into the weights and applies
// the normalization.
func (r *Result) assemble(opts Options) {
	floats.AddTo(r.Weights.Data, r.Merge.Data, r.Split.Data)
	if d := opts.divisor(r.LabeledVoxels); d > 0 {
		r.Scale = 1 / d
		floats.Scale(r.Scale, r.Weights.Data)
	}
}

// AffinityWeights computes the weights of a 3-channel affinity graph
// against a ground-truth segmentation of the same spatial shape. Merge
// and split counts land at the (axis, z, y, x) of the maximin edge.
func AffinityWeights(aff *volume.Volume, labels *volume.Labels, opts Options) (*Result, error) {
	if err := aff.Validate(); err != nil {
		return nil, fmt.Errorf("affinity graph: %w", err)
	}
	if err := labels.Validate(); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	if aff.Channels != 3 {
		return nil, fmt.Errorf("affinity graph %s: %w", aff.Shape, volume.ErrUnsupportedChannelCount)
	}
	if !aff.SameSpatial(labels.Shape()) {
		return nil, fmt.Errorf("affinity graph %s with labels %s: %w", aff.Shape, labels.Shape(), volume.ErrShapeMismatch)
	}

	edges, err := graph.AffinityEdges(aff)
	if err != nil {
		return nil, err
	}
	graph.SortDescending(edges)

	res := newResult(aff.Shape)
	stats := weigh(edges, labels.Data, opts.Threshold, func(e graph.Edge, same, diff int64) {
		i := aff.Index(e.Axis, e.Z, e.Y, e.X)
		res.Merge.Data[i] += float64(diff)
		res.Split.Data[i] += float64(same)
	})
	if opts.VerifyForest {
		if err := verifyForest(edges, aff.Voxels(), stats.forest); err != nil {
			return nil, err
		}
	}

	res.LabeledVoxels = labels.Labeled()
	res.RandError = stats.randError()
	res.assemble(opts)
	return res, nil
}

// SliceWeights are the weights of one height×width boundary-map slice.
type SliceWeights struct {
	Weights, Merge, Split []float64

	stats pairStats
}

// BoundaryWeights2D computes the weights of a single boundary-map slice.
// Each edge takes the smaller value of its endpoints, and its errors land
// on the voxel that holds that value.
func BoundaryWeights2D(bdm []float64, labels []uint32, height, width int, threshold float64) (*SliceWeights, error) {
	if height < 1 || width < 1 {
		return nil, fmt.Errorf("boundary slice %dx%d: %w", height, width, volume.ErrInvalidShape)
	}
	if len(bdm) != height*width || len(labels) != height*width {
		return nil, fmt.Errorf("boundary slice of %d and labels of %d voxels for %dx%d: %w",
			len(bdm), len(labels), height, width, volume.ErrShapeMismatch)
	}

	edges := graph.BoundaryEdges2D(bdm, height, width)
	graph.SortDescending(edges)

	sw := &SliceWeights{
		Weights: make([]float64, height*width),
		Merge:   make([]float64, height*width),
		Split:   make([]float64, height*width),
	}
	sw.stats = weigh(edges, labels, threshold, func(e graph.Edge, same, diff int64) {
		sw.Merge[e.V1] += float64(diff)
		sw.Split[e.V1] += float64(same)
	})
	floats.AddTo(sw.Weights, sw.Merge, sw.Split)
	return sw, nil
}

// RandError returns the rand error of the slice's thresholded prediction.
func (sw *SliceWeights) RandError() float64 {
	return sw.stats.randError()
}

// BoundaryWeights computes the weights of a boundary map slice by slice
// along z. Only the first channel is weighed; its weights are broadcast
// to every channel of the slice. Slices run concurrently, bounded by
// opts.Workers.
func BoundaryWeights(bdm *volume.Volume, labels *volume.Labels, opts Options) (*Result, error) {
	if err := bdm.Validate(); err != nil {
		return nil, fmt.Errorf("boundary map: %w", err)
	}
	if err := labels.Validate(); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	if !bdm.SameSpatial(labels.Shape()) {
		return nil, fmt.Errorf("boundary map %s with labels %s: %w", bdm.Shape, labels.Shape(), volume.ErrShapeMismatch)
	}
	h, w := bdm.Height, bdm.Width

	slices := make([]*SliceWeights, bdm.Depth)
	var g errgroup.Group
	g.SetLimit(opts.workers())
	for z := 0; z < bdm.Depth; z++ {
		z := z
		g.Go(func() error {
			var (
				sw  *SliceWeights
				err error
			)
			if opts.Constrained {
				sw, err = ConstrainedBoundaryWeights2D(bdm.Slice(0, z), labels.Slice(z), h, w, opts.Threshold)
			} else {
				sw, err = BoundaryWeights2D(bdm.Slice(0, z), labels.Slice(z), h, w, opts.Threshold)
			}
			if err != nil {
				return fmt.Errorf("slice %d: %w", z, err)
			}
			if opts.VerifyForest {
				plane := bdm.Slice(0, z)
				if err := verifyForest(graph.BoundaryEdges2D(plane, h, w), h*w, sw.stats.forest); err != nil {
					return fmt.Errorf("slice %d: %w", z, err)
				}
			}
			slices[z] = sw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := newResult(bdm.Shape)
	var stats pairStats
	for z, sw := range slices {
		for c := 0; c < bdm.Channels; c++ {
			copy(res.Merge.Slice(c, z), sw.Merge)
			copy(res.Split.Slice(c, z), sw.Split)
		}
		stats.add(sw.stats)
	}

	res.LabeledVoxels = labels.Labeled()
	res.RandError = stats.randError()
	res.assemble(opts)
	return res, nil
}

// Compute resolves the ground truth for pred and weighs it: a 3-channel
// prediction as an affinity graph, a single channel one as a boundary
// map.
func Compute(pred, truth *volume.Volume, opts Options) (*Result, error) {
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("prediction: %w", err)
	}
	switch pred.Channels {
	case 3:
		labels, err := segment.ForAffinity(truth, pred.Shape, opts.LabelThreshold)
		if err != nil {
			return nil, err
		}
		return AffinityWeights(pred, labels, opts)
	case 1:
		labels, err := segment.ForBoundary(truth, pred.Shape)
		if err != nil {
			return nil, err
		}
		return BoundaryWeights(pred, labels, opts)
	}
	return nil, fmt.Errorf("prediction %s: %w", pred.Shape, volume.ErrUnsupportedChannelCount)
}

// Loss returns the classical MALIS loss of pred under the result:
// merge errors pull affinities toward 0 and split errors toward 1.
func (r *Result) Loss(pred *volume.Volume) (float64, error) {
	if pred.Shape != r.Merge.Shape {
		return 0, fmt.Errorf("prediction %s for weights %s: %w", pred.Shape, r.Merge.Shape, volume.ErrShapeMismatch)
	}
	var loss float64
	for i, p := range pred.Data {
		if m := r.Merge.Data[i]; m != 0 {
			loss += m * p * p
		}
		if s := r.Split.Data[i]; s != 0 {
			loss += s * (1 - p) * (1 - p)
		}
	}
	return loss * r.Scale, nil
}
