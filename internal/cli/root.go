// Package cli provides the fabmatrix command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"fabmatrix/internal/config"
	"fabmatrix/internal/driver"
	"fabmatrix/internal/gridfinity"
	"fabmatrix/internal/logging"
	"fabmatrix/internal/matrix"
)

var (
	logLevel     string
	pretty       bool
	pipelinePath string

	openscadBin string
	slicerBin   string
	modelRoot   string
	gcodeRoot   string
)

var rootCmd = &cobra.Command{
	Use:   "fabmatrix",
	Short: "Combinatorial fabrication pipeline runner",
	Long: `fabmatrix enumerates every combination of a set of design and process
factors, synthesizes the external-tool command line for each combination, and
executes it in an isolated working directory, producing one mesh or toolpath
artifact per combination.

Without --pipeline it runs the built-in Gridfinity pipeline (OpenSCAD bins
and baseplates, then slicing); with --pipeline it loads a YAML definition.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{Level: logging.ParseLevel(logLevel), Pretty: pretty})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human-readable console logs")
	rootCmd.PersistentFlags().StringVarP(&pipelinePath, "pipeline", "p", "", "Pipeline definition file (YAML)")

	rootCmd.PersistentFlags().StringVar(&openscadBin, "openscad-bin", "", "OpenSCAD binary for the built-in pipeline")
	rootCmd.PersistentFlags().StringVar(&slicerBin, "slicer-bin", "", "Slicer binary for the built-in pipeline")
	rootCmd.PersistentFlags().StringVar(&modelRoot, "models-dir", "", "Mesh artifact root for the built-in pipeline")
	rootCmd.PersistentFlags().StringVar(&gcodeRoot, "gcode-dir", "", "Toolpath artifact root for the built-in pipeline")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(planCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadPipeline resolves the stages and overlay to operate on: a YAML
// definition when given, the built-in Gridfinity pipeline otherwise.
func loadPipeline() ([]driver.Stage, matrix.Metadata, error) {
	if pipelinePath != "" {
		p, err := config.Load(pipelinePath)
		if err != nil {
			return nil, nil, err
		}
		return p.Stages, p.Overlay, nil
	}

	cfg := gridfinity.DefaultConfig()
	if env := os.Getenv("OPENSCAD_BIN"); env != "" {
		cfg.OpenSCADBin = env
	}
	if env := os.Getenv("SLICER_BIN"); env != "" {
		cfg.SlicerBin = env
	}
	if openscadBin != "" {
		cfg.OpenSCADBin = openscadBin
	}
	if slicerBin != "" {
		cfg.SlicerBin = slicerBin
	}
	if modelRoot != "" {
		cfg.ModelRoot = modelRoot
	}
	if gcodeRoot != "" {
		cfg.GCodeRoot = gcodeRoot
	}
	stages, err := gridfinity.Pipeline(cfg)
	if err != nil {
		return nil, nil, err
	}
	return stages, cfg.Overlay(), nil
}
