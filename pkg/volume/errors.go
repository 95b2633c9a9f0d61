package volume

import "errors"

// Input contract violations. They are detected before any union-find work
// starts, so a call that returns one of them produced no partial output.
var (
	// ErrInvalidGroundTruthShape indicates a ground truth whose rank or
	// channel count is neither a 3-channel affinity graph, a single channel
	// segment volume, nor the shape of the prediction.
	ErrInvalidGroundTruthShape = errors.New("invalid ground truth shape")

	// ErrShapeMismatch indicates prediction and ground truth with different
	// spatial extents.
	ErrShapeMismatch = errors.New("prediction and ground truth shapes differ")

	// ErrInvalidShape indicates a volume with an empty extent or whose data
	// length does not match its shape.
	ErrInvalidShape = errors.New("invalid volume shape")

	// ErrUnsupportedChannelCount indicates a prediction that is neither a
	// boundary map (1 channel) nor an affinity graph (3 channels).
	ErrUnsupportedChannelCount = errors.New("unsupported channel count")
)
