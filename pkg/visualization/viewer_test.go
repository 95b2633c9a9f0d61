package visualization

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"malisweight/pkg/volume"
)

// newWeightVolume builds a 2-channel volume where every z slice of channel 0
// holds the value z and channel 1 holds 10*z.
func newWeightVolume(width, height, depth int) *volume.Volume {
	v := volume.New(volume.Shape{Channels: 2, Depth: depth, Height: height, Width: width})
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v.Set(0, z, y, x, float64(z))
				v.Set(1, z, y, x, float64(10*z))
			}
		}
	}
	return v
}

// TestNewViewer verifies that a viewer picks the requested channel
func TestNewViewer(t *testing.T) {
	width, height, depth := 10, 8, 5
	v := newWeightVolume(width, height, depth)

	viewer, err := NewViewer(v, 1, false)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	if viewer.width != width || viewer.height != height || viewer.depth != depth {
		t.Errorf("Expected dimensions %dx%dx%d, got %dx%dx%d",
			width, height, depth, viewer.width, viewer.height, viewer.depth)
	}

	if len(viewer.data) != width*height*depth {
		t.Errorf("Expected channel length %d, got %d", width*height*depth, len(viewer.data))
	}

	// channel maximum is 10*(depth-1)
	if expected := 1 / float64(10*(depth-1)); math.Abs(viewer.scale-expected) > 1e-12 {
		t.Errorf("Expected scale %f, got %f", expected, viewer.scale)
	}

	if _, err := NewViewer(v, 2, false); err == nil {
		t.Error("Expected error for out of range channel, got nil")
	}
}

// TestExtractSlice verifies that slices are correctly extracted and scaled
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 10, 5
	v := newWeightVolume(width, height, depth)

	viewer, err := NewViewer(v, 0, false)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		// values are scaled by the maximum, depth-1
		expectedValue := float64(z) / float64(depth-1) * 65535
		centerValue := float64(gray16Img.Gray16At(width/2, height/2).Y)
		if math.Abs(centerValue-expectedValue) > 1.0 {
			t.Errorf("Expected Z slice value ~%.0f at center, got %.0f", expectedValue, centerValue)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestLogScale verifies that log scaling keeps the maximum at full intensity
// and lifts small counts
func TestLogScale(t *testing.T) {
	v := volume.New(volume.Shape{Channels: 1, Depth: 1, Height: 1, Width: 3})
	v.Data = []float64{0, 1, 1000}

	viewer, err := NewViewer(v, 0, true)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	gray := img.(*image.Gray16)

	if got := gray.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected 0 for zero weight, got %d", got)
	}
	if got := gray.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("Expected 65535 for maximum weight, got %d", got)
	}
	if got := gray.Gray16At(1, 0).Y; got < 65535/20 {
		t.Errorf("Expected log scaling to lift small weights, got %d", got)
	}
}

// TestZeroVolume verifies that an all-zero volume renders black
func TestZeroVolume(t *testing.T) {
	v := volume.New(volume.Shape{Channels: 1, Depth: 1, Height: 2, Width: 2})

	viewer, err := NewViewer(v, 0, false)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 1).Y; got != 0 {
		t.Errorf("Expected black pixel, got %d", got)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()

	width, height, depth := 5, 5, 3
	viewer, err := NewViewer(newWeightVolume(width, height, depth), 0, false)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestSaveVolume verifies that every channel gets its own directory
func TestSaveVolume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	v := newWeightVolume(4, 4, 2)

	if err := SaveVolume(v, "weights", tempDir, true); err != nil {
		t.Fatalf("Failed to save volume: %v", err)
	}

	for c := 0; c < v.Channels; c++ {
		for z := 0; z < v.Depth; z++ {
			filename := filepath.Join(tempDir, "weights", fmt.Sprintf("channel_%d", c), fmt.Sprintf("slice_z_%03d.jpg", z))
			if _, err := os.Stat(filename); os.IsNotExist(err) {
				t.Errorf("Expected slice file does not exist: %s", filename)
			}
		}
	}
}
