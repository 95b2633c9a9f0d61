// Package visualization renders weight and error volumes as grayscale
// slice images so the edges that carry structured error can be inspected.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"malisweight/pkg/volume"
)

// Viewer extracts slices of one channel of a volume.
type Viewer struct {
	// data holds the channel's voxels in z, y, x order
	data []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// scale maps a voxel value to [0, 1]
	scale float64

	// logScale compresses pair counts, which span several orders of
	// magnitude, with log1p before scaling
	logScale bool
}

// NewViewer creates a viewer over channel c of v. Values are scaled by the
// channel maximum; with logScale they are compressed by log1p first.
func NewViewer(v *volume.Volume, c int, logScale bool) (*Viewer, error) {
	if c < 0 || c >= v.Channels {
		return nil, fmt.Errorf("channel %d out of range for %s", c, v.Shape)
	}
	data := v.Channel(c)

	viewer := &Viewer{
		data:     data,
		width:    v.Width,
		height:   v.Height,
		depth:    v.Depth,
		logScale: logScale,
	}
	if m := floats.Max(data); m > 0 {
		viewer.scale = 1 / viewer.transform(m)
	}
	return viewer, nil
}

func (v *Viewer) transform(val float64) float64 {
	if v.logScale {
		return math.Log1p(math.Max(0, val))
	}
	return val
}

func (v *Viewer) gray(val float64) color.Gray16 {
	g := v.transform(val) * v.scale
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(65535, g*65535))))}
}

// ExtractSlice extracts a 2D slice along the given axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.data[(z*v.height+y)*v.width+position]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.data[(z*v.height+position)*v.width+x]))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.data[(position*v.height+y)*v.width+x]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveVolume writes the z slices of every channel of v under
// outputDir/<name>/channel_<c>.
func SaveVolume(v *volume.Volume, name, outputDir string, logScale bool) error {
	for c := 0; c < v.Channels; c++ {
		viewer, err := NewViewer(v, c, logScale)
		if err != nil {
			return err
		}
		dir := filepath.Join(outputDir, name, fmt.Sprintf("channel_%d", c))
		if err := viewer.SaveSliceSequence("z", dir); err != nil {
			return fmt.Errorf("failed to save %s channel %d: %w", name, c, err)
		}
	}
	return nil
}
