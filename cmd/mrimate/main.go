package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"mrimate/pkg/config"
	"mrimate/pkg/export"
	"mrimate/pkg/reconstruction"
	"mrimate/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Optional YAML configuration file")
	experimentDir := flag.String("dir", "", "Directory containing the PAR and REC files")
	name := flag.String("name", "", "Experiment file stem (<name>.par / <name>.rec)")
	outputFile := flag.String("out", "", "Output NetCDF filename")
	saveSlices := flag.Bool("extract-slices", false, "Extract and save slice images for each channel")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices")
	flag.Parse()

	log := logrus.StandardLogger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override the configuration file
	if *experimentDir != "" {
		cfg.Experiment.Dir = *experimentDir
	}
	if *name != "" {
		cfg.Experiment.Name = *name
	}
	if *outputFile != "" {
		cfg.Output.DataFile = *outputFile
	}
	if *saveSlices {
		cfg.Output.SaveSlices = true
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}

	if cfg.Experiment.Dir == "" || cfg.Experiment.Name == "" {
		flag.Usage()
		os.Exit(1)
	}
	if cfg.Output.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	// Decode the experiment
	experiment := reconstruction.NewExperiment(&reconstruction.Params{
		ExperimentDir: cfg.Experiment.Dir,
		Name:          cfg.Experiment.Name,
	})
	experiment.Log = log

	log.WithFields(logrus.Fields{
		"par": experiment.ParFile(),
		"rec": experiment.RecFile(),
	}).Info("loading experiment")
	if err := experiment.Load(); err != nil {
		log.Fatalf("Failed to decode experiment: %v", err)
	}

	desc, err := experiment.Describe()
	if err != nil {
		log.Fatalf("Failed to describe experiment: %v", err)
	}
	fmt.Println(desc)

	// Collect the channels that exist for this acquisition
	channels := export.Channels{}
	channels.SpinDensity, err = experiment.SpinDensity()
	if err != nil {
		log.Fatalf("Failed to access spin density: %v", err)
	}

	channels.Phase, err = experiment.Phase()
	if err != nil && !errors.Is(err, reconstruction.ErrPhaseUnavailable) {
		log.Fatalf("Failed to access phase: %v", err)
	}

	if channels.Phase != nil && cfg.Output.ComputeVelocity {
		channels.Velocity, err = experiment.ComputeVelocity()
		if err != nil {
			log.Fatalf("Failed to compute velocity: %v", err)
		}
	}

	// Write the NetCDF container
	if err := export.WriteFile(cfg.Output.DataFile, channels); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	log.WithField("file", cfg.Output.DataFile).Info("channels written")

	// Optionally extract slice images per channel
	if cfg.Output.SaveSlices {
		saveChannelSlices(log, cfg.Output.SlicesDir, "spin_density", channels.SpinDensity)
		if channels.Phase != nil {
			saveChannelSlices(log, cfg.Output.SlicesDir, "phase", channels.Phase)
		}
		if channels.Velocity != nil {
			saveChannelSlices(log, cfg.Output.SlicesDir, "velocity", channels.Velocity)
		}
	}
}

// saveChannelSlices writes JPEG slice sequences for every frame of one
// channel. Failures are logged, not fatal: presentation output must not
// abort an otherwise successful decode.
func saveChannelSlices(log logrus.FieldLogger, dir, name string, channel *sparse.DenseArray) {
	viewer, err := visualization.NewViewer(channel)
	if err != nil {
		log.WithField("channel", name).Warnf("Skipping slice extraction: %v", err)
		return
	}

	outputDir := filepath.Join(dir, name)
	for frame := 0; frame < channel.Shape[3]; frame++ {
		if err := viewer.SaveSliceSequence(outputDir, frame); err != nil {
			log.WithField("channel", name).Warnf("Failed to save slices: %v", err)
			return
		}
	}
	log.WithFields(logrus.Fields{
		"channel": name,
		"dir":     outputDir,
	}).Info("slice images written")
}
