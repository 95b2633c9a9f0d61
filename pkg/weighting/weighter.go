// Package weighting runs the structured weight computation over every
// named output of a network and applies the weights to the elementwise
// cost and gradient volumes.
package weighting

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"malisweight/pkg/loss"
	"malisweight/pkg/malis"
	"malisweight/pkg/visualization"
	"malisweight/pkg/volume"
)

// Params holds the weighting configuration.
type Params struct {
	// Malis configures the structured weight computation
	Malis malis.Options

	// Loss is the elementwise cost the weights multiply into
	Loss loss.Type

	// Margin is passed to the square-square loss
	Margin float64

	// SaveSlices writes weight, merge and split volumes as JPEG slices
	// under SlicesDir
	SaveSlices bool
	SlicesDir  string
}

// Weights are the structured weights of every output, in output order.
type Weights struct {
	// Volumes maps output name to weight volume
	Volumes *volume.Outputs

	// Results keeps the full computation per output, including the error
	// volumes
	Results map[string]*malis.Result
}

// RandError returns the rand error of the named output.
func (w *Weights) RandError(name string) float64 {
	if r, ok := w.Results[name]; ok {
		return r.RandError
	}
	return 0
}

// Report is the outcome of one weighted cost evaluation.
type Report struct {
	Weights *Weights

	// Costs and Gradients are the elementwise volumes after weighting
	Costs     *volume.Outputs
	Gradients *volume.Outputs

	// Cost is the sum of the weighted costs
	Cost float64

	// ClassificationError is the number of voxels on the wrong side of
	// the threshold
	ClassificationError float64
}

// Weighter computes structured weights for named network outputs.
type Weighter struct {
	params *Params
	logger zerolog.Logger
}

// NewWeighter creates a weighter that logs through logger.
func NewWeighter(params *Params, logger zerolog.Logger) *Weighter {
	return &Weighter{
		params: params,
		logger: logger.With().Str("component", "weighting").Logger(),
	}
}

// Compute weighs every prediction in props against the label of the same
// name. Outputs are processed in props order; the first failing output
// aborts the call.
func (w *Weighter) Compute(props, lbls *volume.Outputs) (*Weights, error) {
	out := &Weights{
		Volumes: volume.NewOutputs(),
		Results: make(map[string]*malis.Result, props.Len()),
	}

	err := props.Each(func(name string, prop *volume.Volume) error {
		lbl, ok := lbls.Get(name)
		if !ok {
			return fmt.Errorf("no label for output %q", name)
		}

		start := time.Now()
		res, err := malis.Compute(prop, lbl, w.params.Malis)
		if err != nil {
			return fmt.Errorf("output %q: %w", name, err)
		}

		mean, std := stat.MeanStdDev(res.Weights.Data, nil)
		w.logger.Debug().
			Str("output", name).
			Stringer("shape", prop.Shape).
			Int64("labeled_voxels", res.LabeledVoxels).
			Float64("rand_error", res.RandError).
			Float64("weight_mean", mean).
			Float64("weight_std", std).
			Dur("elapsed", time.Since(start)).
			Msg("structured weights computed")

		if w.params.SaveSlices {
			if err := w.saveSlices(name, res); err != nil {
				w.logger.Warn().Err(err).Str("output", name).Msg("failed to save weight slices")
			}
		}

		out.Volumes.Set(name, res.Weights)
		out.Results[name] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Process evaluates the configured elementwise loss, computes the
// structured weights and multiplies them into costs and gradients.
func (w *Weighter) Process(props, lbls *volume.Outputs) (*Report, error) {
	costFn, err := loss.ByType(w.params.Loss, w.params.Margin)
	if err != nil {
		return nil, err
	}

	costs, grdts, err := costFn(props, lbls)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s loss: %w", w.params.Loss, err)
	}

	weights, err := w.Compute(props, lbls)
	if err != nil {
		return nil, err
	}

	report := &Report{Weights: weights}
	if report.Costs, err = loss.Weigh(costs, weights.Volumes); err != nil {
		return nil, err
	}
	if report.Gradients, err = loss.Weigh(grdts, weights.Volumes); err != nil {
		return nil, err
	}
	report.Cost = loss.Sum(report.Costs)

	cls, err := loss.ClassificationError(props, lbls, w.params.Malis.Threshold)
	if err != nil {
		return nil, err
	}
	report.ClassificationError = loss.Sum(cls)

	for _, name := range props.Names() {
		cost, _ := report.Costs.Get(name)
		clsErr, _ := cls.Get(name)
		w.logger.Info().
			Str("output", name).
			Float64("rand_error", weights.RandError(name)).
			Float64("cost", floats.Sum(cost.Data)).
			Float64("cls", floats.Sum(clsErr.Data)).
			Msg("weighted cost")
	}
	w.logger.Debug().
		Float64("cost", report.Cost).
		Float64("cls", report.ClassificationError).
		Msg("total weighted cost")
	return report, nil
}

func (w *Weighter) saveSlices(name string, res *malis.Result) error {
	dir := filepath.Join(w.params.SlicesDir, name)
	for _, v := range []struct {
		name string
		vol  *volume.Volume
	}{
		{"weights", res.Weights},
		{"merge", res.Merge},
		{"split", res.Split},
	} {
		if err := visualization.SaveVolume(v.vol, v.name, dir, true); err != nil {
			return err
		}
	}
	return nil
}
