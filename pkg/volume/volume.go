// Package volume provides the dense voxel data model shared by the graph
// builder, the segment labeler and the weight computation.
package volume

import (
	"fmt"
)

// Shape describes a channel-first volume (channel, z, y, x).
type Shape struct {
	// Channels is the number of stacked 3D volumes; 3 for affinity graphs,
	// 1 for boundary maps
	Channels int `yaml:"channels"`

	// Depth, Height and Width are the spatial extents along z, y and x
	Depth  int `yaml:"depth"`
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// Voxels returns the number of voxels in one channel.
func (s Shape) Voxels() int {
	return s.Depth * s.Height * s.Width
}

// Len returns the total number of scalars across all channels.
func (s Shape) Len() int {
	return s.Channels * s.Voxels()
}

// SameSpatial reports whether two shapes share z, y and x extents.
func (s Shape) SameSpatial(o Shape) bool {
	return s.Depth == o.Depth && s.Height == o.Height && s.Width == o.Width
}

// Validate reports an empty channel or spatial extent.
func (s Shape) Validate() error {
	if s.Channels < 1 || s.Depth < 1 || s.Height < 1 || s.Width < 1 {
		return fmt.Errorf("shape %s: %w", s, ErrInvalidShape)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%dx%d", s.Channels, s.Depth, s.Height, s.Width)
}

// Volume is a dense array of scalars in row-major (c, z, y, x) order.
type Volume struct {
	Shape

	// Data is the volume as a 1D array in row-major order
	Data []float64
}

// New allocates a zero-filled volume.
func New(shape Shape) *Volume {
	return &Volume{Shape: shape, Data: make([]float64, shape.Len())}
}

// FromData wraps data with the given shape. The slice is not copied.
func FromData(shape Shape, data []float64) (*Volume, error) {
	v := &Volume{Shape: shape, Data: data}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks that v has non-empty extents and holds exactly
// Shape.Len() values.
func (v *Volume) Validate() error {
	if err := v.Shape.Validate(); err != nil {
		return err
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("data length %d for shape %s: %w", len(v.Data), v.Shape, ErrInvalidShape)
	}
	return nil
}

// From2D builds a single channel, single slice volume from a Y×X grid.
func From2D(rows [][]float64) (*Volume, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	h, w := len(rows), len(rows[0])
	v := New(Shape{Channels: 1, Depth: 1, Height: h, Width: w})
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), w)
		}
		copy(v.Data[y*w:(y+1)*w], row)
	}
	return v, nil
}

// Index returns the flat offset of (c, z, y, x).
func (v *Volume) Index(c, z, y, x int) int {
	return ((c*v.Depth+z)*v.Height+y)*v.Width + x
}

// At returns the value at (c, z, y, x).
func (v *Volume) At(c, z, y, x int) float64 {
	return v.Data[v.Index(c, z, y, x)]
}

// Set stores a value at (c, z, y, x).
func (v *Volume) Set(c, z, y, x int, val float64) {
	v.Data[v.Index(c, z, y, x)] = val
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := &Volume{Shape: v.Shape, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// Channel returns the raw data of channel c. The returned slice aliases v.
func (v *Volume) Channel(c int) []float64 {
	n := v.Voxels()
	return v.Data[c*n : (c+1)*n]
}

// Slice returns the raw data of the z-th Y×X plane of channel c. The
// returned slice aliases v.
func (v *Volume) Slice(c, z int) []float64 {
	n := v.Height * v.Width
	off := (c*v.Depth + z) * n
	return v.Data[off : off+n]
}

// Labels holds a ground-truth segmentation: one segment id per voxel,
// 0 reserved for background / boundary.
type Labels struct {
	Depth, Height, Width int

	Data []uint32
}

// NewLabels allocates an all-background label volume.
func NewLabels(depth, height, width int) *Labels {
	return &Labels{
		Depth:  depth,
		Height: height,
		Width:  width,
		Data:   make([]uint32, depth*height*width),
	}
}

// LabelsFrom2D builds a single slice label volume from a Y×X grid.
func LabelsFrom2D(rows [][]uint32) (*Labels, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	h, w := len(rows), len(rows[0])
	l := NewLabels(1, h, w)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), w)
		}
		copy(l.Data[y*w:(y+1)*w], row)
	}
	return l, nil
}

// Shape returns the single channel shape of the label volume.
func (l *Labels) Shape() Shape {
	return Shape{Channels: 1, Depth: l.Depth, Height: l.Height, Width: l.Width}
}

// Validate checks that l has non-empty extents and one id per voxel.
func (l *Labels) Validate() error {
	shape := l.Shape()
	if err := shape.Validate(); err != nil {
		return err
	}
	if len(l.Data) != shape.Voxels() {
		return fmt.Errorf("%d labels for shape %s: %w", len(l.Data), shape, ErrInvalidShape)
	}
	return nil
}

// Slice returns the z-th plane. The returned slice aliases l.
func (l *Labels) Slice(z int) []uint32 {
	n := l.Height * l.Width
	return l.Data[z*n : (z+1)*n]
}

// Labeled returns the number of voxels with a non-zero segment id.
func (l *Labels) Labeled() int64 {
	var n int64
	for _, id := range l.Data {
		if id != 0 {
			n++
		}
	}
	return n
}
