// Package loss provides the elementwise cost functions whose cost and
// gradient volumes the structured weights are multiplied into. Every
// function works on ordered named outputs and returns fresh volumes;
// inputs are never modified.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"malisweight/pkg/volume"
)

// Type names a cost function.
type Type string

const (
	Square               Type = "square"
	SquareSquare         Type = "square-square"
	BinomialCrossEntropy Type = "binomial-cross-entropy"
	SoftmaxLoss          Type = "softmax"
)

// Func computes cost and gradient volumes for every named prediction.
type Func func(props, lbls *volume.Outputs) (costs, grdts *volume.Outputs, err error)

// ByType returns the cost function for t. margin only affects
// SquareSquare.
func ByType(t Type, margin float64) (Func, error) {
	switch t {
	case Square:
		return SquareLoss, nil
	case SquareSquare:
		return func(props, lbls *volume.Outputs) (*volume.Outputs, *volume.Outputs, error) {
			return SquareSquareLoss(props, lbls, margin)
		}, nil
	case BinomialCrossEntropy:
		return BinomialCrossEntropyLoss, nil
	case SoftmaxLoss:
		return SoftmaxCrossEntropyLoss, nil
	}
	return nil, fmt.Errorf("unknown loss type %q", t)
}

// pairs walks the predictions with their labels, checking shapes.
func pairs(props, lbls *volume.Outputs, fn func(name string, prop, lbl *volume.Volume)) error {
	return props.Each(func(name string, prop *volume.Volume) error {
		lbl, ok := lbls.Get(name)
		if !ok {
			return fmt.Errorf("no label for output %q", name)
		}
		if lbl.Shape != prop.Shape {
			return fmt.Errorf("output %q: prediction %s, label %s: %w", name, prop.Shape, lbl.Shape, volume.ErrShapeMismatch)
		}
		fn(name, prop, lbl)
		return nil
	})
}

// ClassificationError marks the voxels where prediction and label fall on
// different sides of thresh.
func ClassificationError(props, lbls *volume.Outputs, thresh float64) (*volume.Outputs, error) {
	errs := volume.NewOutputs()
	err := pairs(props, lbls, func(name string, prop, lbl *volume.Volume) {
		out := volume.New(prop.Shape)
		for i, p := range prop.Data {
			if (p > thresh) != (lbl.Data[i] > thresh) {
				out.Data[i] = 1
			}
		}
		errs.Set(name, out)
	})
	return errs, err
}

// SquareLoss is (p-l)^2 with gradient 2(p-l).
func SquareLoss(props, lbls *volume.Outputs) (*volume.Outputs, *volume.Outputs, error) {
	return SquareSquareLoss(props, lbls, 0)
}

// SquareSquareLoss is the square loss with differences within margin
// treated as zero.
func SquareSquareLoss(props, lbls *volume.Outputs, margin float64) (*volume.Outputs, *volume.Outputs, error) {
	costs, grdts := volume.NewOutputs(), volume.NewOutputs()
	err := pairs(props, lbls, func(name string, prop, lbl *volume.Volume) {
		grdt := volume.New(prop.Shape)
		floats.SubTo(grdt.Data, prop.Data, lbl.Data)
		if margin > 0 {
			for i, g := range grdt.Data {
				if math.Abs(g) <= margin {
					grdt.Data[i] = 0
				}
			}
		}

		cost := volume.New(prop.Shape)
		floats.MulTo(cost.Data, grdt.Data, grdt.Data)
		floats.Scale(2, grdt.Data)

		costs.Set(name, cost)
		grdts.Set(name, grdt)
	})
	return costs, grdts, err
}

// BinomialCrossEntropyLoss is -l log p - (1-l) log(1-p) with gradient p-l.
func BinomialCrossEntropyLoss(props, lbls *volume.Outputs) (*volume.Outputs, *volume.Outputs, error) {
	costs, grdts := volume.NewOutputs(), volume.NewOutputs()
	err := pairs(props, lbls, func(name string, prop, lbl *volume.Volume) {
		cost := volume.New(prop.Shape)
		grdt := volume.New(prop.Shape)
		for i, p := range prop.Data {
			l := lbl.Data[i]
			cost.Data[i] = -l*math.Log(p) - (1-l)*math.Log(1-p)
		}
		floats.SubTo(grdt.Data, prop.Data, lbl.Data)

		costs.Set(name, cost)
		grdts.Set(name, grdt)
	})
	return costs, grdts, err
}

// Softmax normalizes each voxel across channels. The per-voxel maximum is
// subtracted before exponentiation on a copy, leaving props unchanged.
func Softmax(props *volume.Outputs) *volume.Outputs {
	out := volume.NewOutputs()
	_ = props.Each(func(name string, prop *volume.Volume) error {
		out.Set(name, softmax(prop))
		return nil
	})
	return out
}

func softmax(prop *volume.Volume) *volume.Volume {
	n := prop.Voxels()
	ret := volume.New(prop.Shape)
	col := make([]float64, prop.Channels)
	for v := 0; v < n; v++ {
		for c := range col {
			col[c] = prop.Data[c*n+v]
		}
		m := floats.Max(col)
		var sum float64
		for c := range col {
			col[c] = math.Exp(col[c] - m)
			sum += col[c]
		}
		for c := range col {
			ret.Data[c*n+v] = col[c] / sum
		}
	}
	return ret
}

// MultinomialCrossEntropyLoss is -l log p with gradient p-l, for
// predictions that are already class probabilities.
func MultinomialCrossEntropyLoss(props, lbls *volume.Outputs) (*volume.Outputs, *volume.Outputs, error) {
	costs, grdts := volume.NewOutputs(), volume.NewOutputs()
	err := pairs(props, lbls, func(name string, prop, lbl *volume.Volume) {
		cost := volume.New(prop.Shape)
		grdt := volume.New(prop.Shape)
		for i, p := range prop.Data {
			if l := lbl.Data[i]; l != 0 {
				cost.Data[i] = -l * math.Log(p)
			}
		}
		floats.SubTo(grdt.Data, prop.Data, lbl.Data)

		costs.Set(name, cost)
		grdts.Set(name, grdt)
	})
	return costs, grdts, err
}

// SoftmaxCrossEntropyLoss applies Softmax and then the multinomial cross
// entropy.
func SoftmaxCrossEntropyLoss(props, lbls *volume.Outputs) (*volume.Outputs, *volume.Outputs, error) {
	return MultinomialCrossEntropyLoss(Softmax(props), lbls)
}

// Weigh multiplies each named volume of vols elementwise by the weight
// volume of the same name and returns the products. Volumes without a
// weight are copied unchanged.
func Weigh(vols, weights *volume.Outputs) (*volume.Outputs, error) {
	out := volume.NewOutputs()
	err := vols.Each(func(name string, v *volume.Volume) error {
		w, ok := weights.Get(name)
		if !ok {
			out.Set(name, v.Clone())
			return nil
		}
		if w.Shape != v.Shape {
			return fmt.Errorf("output %q: volume %s, weight %s: %w", name, v.Shape, w.Shape, volume.ErrShapeMismatch)
		}
		prod := volume.New(v.Shape)
		floats.MulTo(prod.Data, v.Data, w.Data)
		out.Set(name, prod)
		return nil
	})
	return out, err
}

// Sum returns the sum of all scalars of all named volumes.
func Sum(vols *volume.Outputs) float64 {
	var total float64
	_ = vols.Each(func(_ string, v *volume.Volume) error {
		total += floats.Sum(v.Data)
		return nil
	})
	return total
}
