package cli

import (
	"os"

	"github.com/spf13/cobra"

	"fabmatrix/internal/driver"
	"fabmatrix/internal/logging"
	"fabmatrix/internal/report"
	"fabmatrix/internal/sandbox"
)

var reportPath string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Expand the pipeline and execute every combination",
	Long: `Expand each stage's factor matrix and run the resulting external-tool
commands one at a time, each inside a fresh sandbox directory. Stages with an
existence-check policy skip combinations whose artifact is already on disk.
A failing tool invocation is logged and the walk continues; only a malformed
pipeline definition aborts the run.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&reportPath, "report", "", "Write the per-combination outcome report (JSON) to this file")
}

func runBuild(cmd *cobra.Command, args []string) error {
	stages, overlay, err := loadPipeline()
	if err != nil {
		return err
	}

	log := logging.Logger
	runner := sandbox.NewRunner(log)
	recorder := report.NewRecorder()

	runErr := driver.RunPipeline(log, stages, overlay, runner, recorder)

	summary := recorder.Summary()
	log.Info().
		Int("executed", summary[report.OutcomeExecuted]).
		Int("failed", summary[report.OutcomeFailed]).
		Int("already_exists", summary[report.OutcomeSkippedExists]).
		Int("dropped", summary[report.OutcomeDropped]).
		Int("staging_errors", summary[report.OutcomeStagingError]).
		Msg("pipeline finished")

	if reportPath != "" {
		f, err := os.Create(reportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := recorder.WriteJSON(f); err != nil {
			return err
		}
	}
	return runErr
}
