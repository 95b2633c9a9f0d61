// Package graph builds voxel-adjacency edge lists over the regular 3D
// lattice from dense affinity graphs and boundary maps.
//
// Voxel ids are assigned in raster order (z-major, then y, then x), so the
// id of (z, y, x) in a Z×Y×X volume is (z*Y+y)*X+x.
package graph

import (
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"malisweight/pkg/volume"
)

// Axis channels of an affinity graph.
const (
	AxisZ = 0
	AxisY = 1
	AxisX = 2
)

// Edge connects two lattice-adjacent voxels along one axis.
type Edge struct {
	// Value is the affinity (or minimal boundary map value) of the edge
	Value float64

	// V1 and V2 are the voxel ids of the endpoints
	V1, V2 int

	// Axis is the affinity channel the edge was read from
	Axis int

	// Z, Y, X locate the edge in the affinity volume
	Z, Y, X int
}

// AffinityEdges enumerates every interior lattice edge of a 3-channel
// affinity graph. Edge (c, z, y, x) connects voxel (z, y, x) with its lower
// neighbor along axis c; the x-edges come first, then y, then z. The axes
// are built concurrently into disjoint ranges, so the order is fixed.
func AffinityEdges(aff *volume.Volume) ([]Edge, error) {
	if err := aff.Validate(); err != nil {
		return nil, fmt.Errorf("affinity graph: %w", err)
	}
	if aff.Channels != 3 {
		return nil, fmt.Errorf("affinity graph with %d channels: %w", aff.Channels, volume.ErrUnsupportedChannelCount)
	}
	d, h, w := aff.Depth, aff.Height, aff.Width

	nx := d * h * (w - 1)
	ny := d * (h - 1) * w
	nz := (d - 1) * h * w
	edges := make([]Edge, nx+ny+nz)

	ranges := []struct {
		axis   int
		offset int
	}{
		{AxisX, 0},
		{AxisY, nx},
		{AxisZ, nx + ny},
	}

	var g errgroup.Group
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			fillAxis(edges[r.offset:], aff, r.axis)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return edges, nil
}

func fillAxis(dst []Edge, aff *volume.Volume, axis int) {
	d, h, w := aff.Depth, aff.Height, aff.Width
	z0, y0, x0 := 0, 0, 0
	step := 0
	switch axis {
	case AxisX:
		x0, step = 1, 1
	case AxisY:
		y0, step = 1, w
	case AxisZ:
		z0, step = 1, h*w
	}

	i := 0
	for z := z0; z < d; z++ {
		for y := y0; y < h; y++ {
			for x := x0; x < w; x++ {
				vid := (z*h+y)*w + x
				dst[i] = Edge{
					Value: aff.At(axis, z, y, x),
					V1:    vid,
					V2:    vid - step,
					Axis:  axis,
					Z:     z,
					Y:     y,
					X:     x,
				}
				i++
			}
		}
	}
}

// BoundaryEdges2D enumerates the in-plane edges of a height×width boundary
// map. An edge takes the smaller of its two endpoint values, and V1 is
// the endpoint holding that value. The edge coordinate is the V1 voxel.
// height and width must be positive and bdm must hold height*width values.
func BoundaryEdges2D(bdm []float64, height, width int) []Edge {
	edges := make([]Edge, 0, height*(width-1)+(height-1)*width)

	add := func(axis, a, b int) {
		va, vb := bdm[a], bdm[b]
		if va > vb {
			a, b = b, a
			va = vb
		}
		edges = append(edges, Edge{
			Value: va,
			V1:    a,
			V2:    b,
			Axis:  axis,
			Y:     a / width,
			X:     a % width,
		})
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width-1; x++ {
			add(AxisX, y*width+x, y*width+x+1)
		}
	}
	for y := 0; y < height-1; y++ {
		for x := 0; x < width; x++ {
			add(AxisY, y*width+x, (y+1)*width+x)
		}
	}
	return edges
}

// SortDescending orders edges by decreasing value. Equal values keep
// their enumeration order.
func SortDescending(edges []Edge) {
	slices.SortStableFunc(edges, func(a, b Edge) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
}
