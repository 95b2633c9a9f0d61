package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"malisweight/internal/logging"
	"malisweight/pkg/config"
	"malisweight/pkg/loss"
	"malisweight/pkg/volume"
	"malisweight/pkg/weighting"
)

const outputName = "output"

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	predPath := flag.String("pred", "", "Raw float32 prediction volume")
	truthPath := flag.String("truth", "", "Raw float32 ground-truth volume")
	channels := flag.Int("channels", 3, "Prediction channels (3 for affinity graphs, 1 for boundary maps)")
	truthChannels := flag.Int("truth-channels", 0, "Ground-truth channels (default: same as -channels)")
	depth := flag.Int("depth", 1, "Volume depth (z)")
	height := flag.Int("height", 0, "Volume height (y)")
	width := flag.Int("width", 0, "Volume width (x)")
	outPrefix := flag.String("out", "malis", "Prefix of the raw weight, merge and split volumes written")
	compress := flag.Bool("compress", false, "Write zstd-compressed .raw.zst volumes")
	cost := flag.Bool("cost", false, "Also evaluate the configured loss weighted by the structured weights")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *predPath == "" || *truthPath == "" || *height <= 0 || *width <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Output.Verbose)
	if err != nil {
		logger = logging.Default()
		logger.Warn().Err(err).Msg("falling back to info level logging")
	}

	opts, err := cfg.MalisOptions()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid malis options")
	}

	predShape := volume.Shape{Channels: *channels, Depth: *depth, Height: *height, Width: *width}
	truthShape := predShape
	if *truthChannels > 0 {
		truthShape.Channels = *truthChannels
	}

	pred, err := volume.ReadRaw(*predPath, predShape)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *predPath).Msg("failed to read prediction")
	}
	truth, err := volume.ReadRaw(*truthPath, truthShape)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *truthPath).Msg("failed to read ground truth")
	}

	props, lbls := volume.NewOutputs(), volume.NewOutputs()
	props.Set(outputName, pred)
	lbls.Set(outputName, truth)

	weighter := weighting.NewWeighter(&weighting.Params{
		Malis:      opts,
		Loss:       loss.Type(cfg.Loss.Type),
		Margin:     cfg.Loss.Margin,
		SaveSlices: cfg.Output.SaveSlices,
		SlicesDir:  cfg.Output.SlicesDir,
	}, logger)

	logger.Info().
		Stringer("prediction", predShape).
		Stringer("truth", truthShape).
		Str("norm", string(opts.Norm)).
		Bool("constrained", opts.Constrained).
		Msg("computing structured weights")

	startTime := time.Now()
	var weights *weighting.Weights
	if *cost {
		report, err := weighter.Process(props, lbls)
		if err != nil {
			logger.Fatal().Err(err).Msg("weighted cost evaluation failed")
		}
		weights = report.Weights
	} else {
		weights, err = weighter.Compute(props, lbls)
		if err != nil {
			logger.Fatal().Err(err).Msg("weight computation failed")
		}
	}
	processingTime := time.Since(startTime)

	res := weights.Results[outputName]
	for suffix, v := range map[string]*volume.Volume{
		"weights": res.Weights,
		"merge":   res.Merge,
		"split":   res.Split,
	} {
		path := fmt.Sprintf("%s_%s.raw", *outPrefix, suffix)
		if *compress {
			path += ".zst"
		}
		if err := volume.WriteRaw(path, v); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to write volume")
		}
		logger.Debug().Str("path", filepath.Clean(path)).Msg("volume written")
	}

	logger.Info().
		Float64("rand_error", res.RandError).
		Int64("labeled_voxels", res.LabeledVoxels).
		Float64("scale", res.Scale).
		Dur("elapsed", processingTime).
		Msg("structured weights written")
}
