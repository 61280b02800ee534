// Package driver sequences matrix expansion into runner invocations.
//
// Execution is strictly sequential and synchronous: one combination at a
// time, in enumeration order, each owning its sandbox exclusively. A failed
// tool invocation is logged and the walk continues; only a configuration
// error aborts the run, because it means the definitions themselves are
// wrong and every later combination would be built from the same bad state.
package driver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"fabmatrix/internal/matrix"
	"fabmatrix/internal/report"
)

// Runner executes one resolved command and reports the tool's exit code.
// A non-nil error means the combination could not be attempted at all.
type Runner interface {
	Run(cmd *matrix.ResolvedCommand) (int, error)
}

// Options is the per-stage execution policy.
type Options struct {
	// CheckExists skips a combination when its destination path already
	// exists. Existence is the only skip criterion; content is never hashed.
	CheckExists bool

	// OutputIsDir marks stages whose destination path is a directory tree
	// (sliced toolpath output): the destination itself is created rather
	// than its parent, and the existence check looks for a directory.
	OutputIsDir bool
}

// Stage pairs a matrix with its execution policy. A pipeline is an ordered
// list of stages; a later stage's nested factors may wrap an earlier
// stage's matrix.
type Stage struct {
	Matrix  *matrix.Matrix
	Options Options
}

// RunPipeline executes the stages in order against a shared metadata
// overlay. The overlay is written once by the caller and only read here.
func RunPipeline(log zerolog.Logger, stages []Stage, overlay matrix.Metadata, runner Runner, sink report.Sink) error {
	for _, stage := range stages {
		if err := RunStage(log, stage, overlay, runner, sink); err != nil {
			return err
		}
	}
	return nil
}

// RunStage expands one matrix and drives each surviving combination through
// the skip policy and the runner.
func RunStage(log zerolog.Logger, stage Stage, overlay matrix.Metadata, runner Runner, sink report.Sink) error {
	m := stage.Matrix
	log = log.With().Str("matrix", m.Name).Logger()

	seq := 0
	onDrop := func(matrix.Metadata) {
		sink.Record(report.Record{Seq: seq, Matrix: m.Name, Outcome: report.OutcomeDropped})
	}

	for cmd, err := range m.ExpandObserved(overlay, onDrop) {
		if err != nil {
			return err
		}
		seq++

		if stage.Options.CheckExists && destinationExists(cmd.Path, stage.Options.OutputIsDir) {
			log.Info().Int("seq", seq).Str("path", cmd.Path).Msg("already exists, skipped")
			sink.Record(report.Record{Seq: seq, Matrix: m.Name, Path: cmd.Path, Outcome: report.OutcomeSkippedExists})
			continue
		}

		if err := ensureDestination(cmd.Path, stage.Options.OutputIsDir); err != nil {
			return err
		}

		log.Info().Int("seq", seq).Str("path", cmd.Path).Str("cmd", strings.Join(cmd.Argv(), " ")).Msg("executing")
		exitCode, runErr := runner.Run(cmd)
		switch {
		case runErr != nil:
			log.Error().Int("seq", seq).Str("path", cmd.Path).Err(runErr).Msg("combination not run")
			sink.Record(report.Record{Seq: seq, Matrix: m.Name, Path: cmd.Path, Outcome: report.OutcomeStagingError})
		case exitCode != 0:
			log.Error().Int("seq", seq).Str("path", cmd.Path).Int("exit_code", exitCode).Msg("executed, non-zero exit")
			sink.Record(report.Record{Seq: seq, Matrix: m.Name, Path: cmd.Path, Outcome: report.OutcomeFailed, ExitCode: exitCode})
		default:
			sink.Record(report.Record{Seq: seq, Matrix: m.Name, Path: cmd.Path, Outcome: report.OutcomeExecuted})
		}
	}
	return nil
}

func destinationExists(path string, isDir bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir() == isDir
}

func ensureDestination(path string, isDir bool) error {
	if isDir {
		return os.MkdirAll(path, 0o755)
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
