// Package segment derives a canonical ground-truth segmentation (voxel to
// segment id, 0 for background) from the ground truth forms accepted by
// the weight computation: a 3-channel affinity graph, a precomputed id
// volume, or a binary boundary map.
package segment

import (
	"fmt"
	"math"

	"malisweight/pkg/graph"
	"malisweight/pkg/volume"
)

// DefaultAffinityThreshold separates connecting from non-connecting true
// affinities: any positive affinity connects.
const DefaultAffinityThreshold = 0.0

// FromAffinity labels the 6-connected components formed by the true
// affinity edges whose value exceeds threshold. Voxels touched by no such
// edge are boundary and get id 0. Ids are numbered from 1 in raster order
// of each component's first voxel.
func FromAffinity(trueAff *volume.Volume, threshold float64) (*volume.Labels, error) {
	if err := trueAff.Validate(); err != nil {
		return nil, fmt.Errorf("affinity ground truth: %w", err)
	}
	if trueAff.Channels != 3 {
		return nil, fmt.Errorf("affinity ground truth with %d channels: %w",
			trueAff.Channels, volume.ErrInvalidGroundTruthShape)
	}
	edges, err := graph.AffinityEdges(trueAff)
	if err != nil {
		return nil, err
	}

	ds := graph.NewDisjointSet(trueAff.Voxels())
	touched := make([]bool, trueAff.Voxels())
	for _, e := range edges {
		if e.Value > threshold {
			ds.Union(e.V1, e.V2)
			touched[e.V1] = true
			touched[e.V2] = true
		}
	}

	return relabel(ds, touched, trueAff.Depth, trueAff.Height, trueAff.Width), nil
}

// FromIDs uses a single channel volume of precomputed segment ids
// directly. Values are rounded to the nearest integer.
func FromIDs(ids *volume.Volume) (*volume.Labels, error) {
	if err := ids.Validate(); err != nil {
		return nil, fmt.Errorf("segment id volume: %w", err)
	}
	if ids.Channels != 1 {
		return nil, fmt.Errorf("segment id volume with %d channels: %w",
			ids.Channels, volume.ErrInvalidGroundTruthShape)
	}

	lbl := volume.NewLabels(ids.Depth, ids.Height, ids.Width)
	for i, v := range ids.Data {
		r := math.Round(v)
		if r < 0 || r > math.MaxUint32 || math.IsNaN(r) {
			return nil, fmt.Errorf("segment id %v at voxel %d out of range", v, i)
		}
		lbl.Data[i] = uint32(r)
	}
	return lbl, nil
}

// FromBoundary labels a boundary ground truth: non-zero voxels are
// segment interior, zero voxels are boundary. Neighboring interior voxels
// with equal values are grouped into 4-connected components within each
// z-slice, since boundary-map weights are computed slice by slice. A
// binary map thus yields its connected regions, and an id map keeps
// adjacent ids apart. Ids are unique across the volume. Only the first
// channel is read.
func FromBoundary(bdm *volume.Volume) (*volume.Labels, error) {
	if err := bdm.Validate(); err != nil {
		return nil, fmt.Errorf("boundary ground truth: %w", err)
	}
	d, h, w := bdm.Depth, bdm.Height, bdm.Width
	plane := bdm.Channel(0)

	ds := graph.NewDisjointSet(d * h * w)
	interior := make([]bool, d*h*w)
	for i, v := range plane {
		interior[i] = v != 0
	}

	for z := 0; z < d; z++ {
		off := z * h * w
		for _, e := range graph.BoundaryEdges2D(plane[off:off+h*w], h, w) {
			a, b := off+e.V1, off+e.V2
			if interior[a] && plane[a] == plane[b] {
				ds.Union(a, b)
			}
		}
	}

	return relabel(ds, interior, d, h, w), nil
}

// relabel assigns consecutive ids to the components of ds restricted to
// the voxels marked in keep.
func relabel(ds *graph.DisjointSet, keep []bool, d, h, w int) *volume.Labels {
	lbl := volume.NewLabels(d, h, w)
	ids := make(map[int]uint32)
	next := uint32(1)
	for v := range lbl.Data {
		if !keep[v] {
			continue
		}
		root := ds.Find(v)
		id, ok := ids[root]
		if !ok {
			id = next
			ids[root] = id
			next++
		}
		lbl.Data[v] = id
	}
	return lbl
}

// ForAffinity resolves the ground truth of an affinity-graph prediction
// with shape pred: a 3-channel true affinity graph is segmented with
// FromAffinity, a single channel volume is taken as segment ids.
func ForAffinity(truth *volume.Volume, pred volume.Shape, threshold float64) (*volume.Labels, error) {
	if err := truth.Validate(); err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}
	if truth.Channels != 3 && truth.Channels != 1 {
		return nil, fmt.Errorf("ground truth %s for prediction %s: %w", truth.Shape, pred, volume.ErrInvalidGroundTruthShape)
	}
	if !truth.SameSpatial(pred) {
		return nil, fmt.Errorf("ground truth %s for prediction %s: %w", truth.Shape, pred, volume.ErrShapeMismatch)
	}
	if truth.Channels == 3 {
		return FromAffinity(truth, threshold)
	}
	return FromIDs(truth)
}

// ForBoundary resolves the ground truth of a boundary-map prediction with
// shape pred. The ground truth must be single channel or have the
// prediction's channel count.
func ForBoundary(truth *volume.Volume, pred volume.Shape) (*volume.Labels, error) {
	if err := truth.Validate(); err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}
	if truth.Channels != 1 && truth.Channels != pred.Channels {
		return nil, fmt.Errorf("ground truth %s for prediction %s: %w", truth.Shape, pred, volume.ErrInvalidGroundTruthShape)
	}
	if !truth.SameSpatial(pred) {
		return nil, fmt.Errorf("ground truth %s for prediction %s: %w", truth.Shape, pred, volume.ErrShapeMismatch)
	}
	return FromBoundary(truth)
}
