package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"malisweight/pkg/volume"
)

func outputs(t *testing.T, shape volume.Shape, data ...float64) *volume.Outputs {
	t.Helper()
	v, err := volume.FromData(shape, data)
	require.NoError(t, err)
	o := volume.NewOutputs()
	o.Set("output", v)
	return o
}

var line = volume.Shape{Channels: 1, Depth: 1, Height: 1, Width: 4}

func get(t *testing.T, o *volume.Outputs) []float64 {
	t.Helper()
	v, ok := o.Get("output")
	require.True(t, ok)
	return v.Data
}

func TestSquareLoss(t *testing.T) {
	props := outputs(t, line, 0.9, 0.1, 0.5, 0.3)
	lbls := outputs(t, line, 1, 0, 0, 1)

	costs, grdts, err := SquareLoss(props, lbls)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.01, 0.01, 0.25, 0.49}, get(t, costs), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.2, 0.2, 1, -1.4}, get(t, grdts), 1e-12)

	// inputs are untouched
	assert.Equal(t, []float64{0.9, 0.1, 0.5, 0.3}, get(t, props))
}

func TestSquareSquareLossMargin(t *testing.T) {
	props := outputs(t, line, 0.9, 0.1, 0.5, 0.3)
	lbls := outputs(t, line, 1, 0, 0, 1)

	costs, grdts, err := SquareSquareLoss(props, lbls, 0.2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0.25, 0.49}, get(t, costs), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 1, -1.4}, get(t, grdts), 1e-12)
}

func TestBinomialCrossEntropy(t *testing.T) {
	props := outputs(t, line, 0.9, 0.1, 0.5, 0.3)
	lbls := outputs(t, line, 1, 0, 0, 1)

	costs, grdts, err := BinomialCrossEntropyLoss(props, lbls)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-math.Log(0.9), -math.Log(0.9), -math.Log(0.5), -math.Log(0.3)}, get(t, costs), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.1, 0.1, 0.5, -0.7}, get(t, grdts), 1e-12)
}

func TestSoftmax(t *testing.T) {
	two := volume.Shape{Channels: 2, Depth: 1, Height: 1, Width: 2}
	props := outputs(t, two, 1000, 0, 0, 0)

	sm := get(t, Softmax(props))
	assert.InDelta(t, 1.0, sm[0], 1e-12)
	assert.InDelta(t, 0.5, sm[1], 1e-12)
	assert.InDelta(t, 1.0, sm[0]+sm[2], 1e-12)
	assert.InDelta(t, 1.0, sm[1]+sm[3], 1e-12)
	assert.False(t, math.IsNaN(sm[0]))

	// no in-place rebasing
	assert.Equal(t, []float64{1000, 0, 0, 0}, get(t, props))
}

func TestSoftmaxCrossEntropy(t *testing.T) {
	two := volume.Shape{Channels: 2, Depth: 1, Height: 1, Width: 1}
	props := outputs(t, two, 0, 0)
	lbls := outputs(t, two, 1, 0)

	costs, grdts, err := SoftmaxCrossEntropyLoss(props, lbls)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{math.Log(2), 0}, get(t, costs), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.5, 0.5}, get(t, grdts), 1e-12)
}

func TestClassificationError(t *testing.T) {
	props := outputs(t, line, 0.9, 0.6, 0.5, 0.3)
	lbls := outputs(t, line, 1, 0, 0, 0)

	errs, err := ClassificationError(props, lbls, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0}, get(t, errs))
}

func TestLossErrors(t *testing.T) {
	props := outputs(t, line, 0, 0, 0, 0)

	_, _, err := SquareLoss(props, volume.NewOutputs())
	assert.Error(t, err)

	_, _, err = SquareLoss(props, outputs(t, volume.Shape{Channels: 1, Depth: 1, Height: 2, Width: 2}, 0, 0, 0, 0))
	assert.ErrorIs(t, err, volume.ErrShapeMismatch)

	_, err = ByType("hinge", 0)
	assert.Error(t, err)
}

func TestByType(t *testing.T) {
	props := outputs(t, line, 0.9, 0.1, 0.5, 0.3)
	lbls := outputs(t, line, 1, 0, 0, 1)

	for _, typ := range []Type{Square, SquareSquare, BinomialCrossEntropy} {
		fn, err := ByType(typ, 0.2)
		require.NoError(t, err, typ)
		costs, _, err := fn(props, lbls)
		require.NoError(t, err, typ)
		assert.Greater(t, Sum(costs), 0.0, typ)
	}
}

func TestWeigh(t *testing.T) {
	vols := outputs(t, line, 1, 2, 3, 4)
	weights := outputs(t, line, 0, 1, 0.5, 2)

	got, err := Weigh(vols, weights)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 1.5, 8}, get(t, got))
	assert.Equal(t, 11.5, Sum(got))

	unweighted, err := Weigh(vols, volume.NewOutputs())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, get(t, unweighted))

	_, err = Weigh(vols, outputs(t, volume.Shape{Channels: 1, Depth: 1, Height: 2, Width: 2}, 0, 0, 0, 0))
	assert.ErrorIs(t, err, volume.ErrShapeMismatch)
}
