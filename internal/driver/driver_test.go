package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabmatrix/internal/matrix"
	"fabmatrix/internal/report"
)

// fakeRunner records invocations and plays back scripted exit codes.
type fakeRunner struct {
	calls []*matrix.ResolvedCommand
	exits map[string]int
	errs  map[string]error
}

func (f *fakeRunner) Run(cmd *matrix.ResolvedCommand) (int, error) {
	f.calls = append(f.calls, cmd)
	if err := f.errs[cmd.Path]; err != nil {
		return 0, err
	}
	return f.exits[cmd.Path], nil
}

func testMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	f, err := matrix.NewFactor("size", matrix.Val("1x1"), matrix.Val("2x2"))
	require.NoError(t, err)
	m, err := matrix.New("meshes",
		[]matrix.Arg{matrix.Lit("mesher"), matrix.Lit("-o"), matrix.Output("{{ stl_path }}")},
		[]*matrix.Factor{f},
		[]matrix.Var{{Name: "stl_path", Template: "{{ root }}/{{ size }}.stl"}},
		"{{ stl_path }}")
	require.NoError(t, err)
	return m
}

func TestRunStage_ExecutesEveryCombination(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	rec := report.NewRecorder()

	stage := Stage{Matrix: testMatrix(t)}
	err := RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, runner, rec)
	require.NoError(t, err)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, filepath.Join(root, "1x1.stl"), filepath.FromSlash(runner.calls[0].Path))
	sum := rec.Summary()
	assert.Equal(t, 2, sum[report.OutcomeExecuted])
}

func TestRunStage_CheckExistsSkipsWithoutLaunching(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "1x1.stl")
	require.NoError(t, os.WriteFile(existing, []byte("stl"), 0o644))

	runner := &fakeRunner{}
	rec := report.NewRecorder()
	stage := Stage{Matrix: testMatrix(t), Options: Options{CheckExists: true}}
	err := RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, runner, rec)
	require.NoError(t, err)

	// Only the missing artifact's command ran.
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].Path, "2x2")

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, report.OutcomeSkippedExists, records[0].Outcome)
	assert.Equal(t, report.OutcomeExecuted, records[1].Outcome)
}

func TestRunStage_NonZeroExitDoesNotStopTheWalk(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{exits: map[string]int{root + "/1x1.stl": 2}}
	rec := report.NewRecorder()

	stage := Stage{Matrix: testMatrix(t)}
	err := RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, runner, rec)
	require.NoError(t, err)
	require.Len(t, runner.calls, 2)

	records := rec.Records()
	assert.Equal(t, report.OutcomeFailed, records[0].Outcome)
	assert.Equal(t, 2, records[0].ExitCode)
	assert.Equal(t, report.OutcomeExecuted, records[1].Outcome)
}

func TestRunStage_StagingErrorRecordedAndWalkContinues(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{errs: map[string]error{root + "/1x1.stl": os.ErrNotExist}}
	rec := report.NewRecorder()

	stage := Stage{Matrix: testMatrix(t)}
	err := RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, runner, rec)
	require.NoError(t, err)
	require.Len(t, runner.calls, 2)

	records := rec.Records()
	assert.Equal(t, report.OutcomeStagingError, records[0].Outcome)
	assert.Equal(t, report.OutcomeExecuted, records[1].Outcome)
}

func TestRunStage_EnsuresDestinationParent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet", "created")
	runner := &fakeRunner{}
	stage := Stage{Matrix: testMatrix(t)}
	err := RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, runner, report.NopSink{})
	require.NoError(t, err)
	assert.DirExists(t, root)
}

func TestRunStage_OutputIsDirCreatesDestination(t *testing.T) {
	root := t.TempDir()
	f, err := matrix.NewFactor("filament", matrix.Val("pla"))
	require.NoError(t, err)
	m, err := matrix.New("slices",
		[]matrix.Arg{matrix.Lit("slicer"), matrix.OutputDir("{{ root }}/{{ filament }}")},
		[]*matrix.Factor{f}, nil, "{{ root }}/{{ filament }}")
	require.NoError(t, err)

	stage := Stage{Matrix: m, Options: Options{OutputIsDir: true}}
	err = RunStage(zerolog.Nop(), stage, matrix.Metadata{"root": root}, &fakeRunner{}, report.NopSink{})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "pla"))
}

func TestRunStage_ConfigErrorAborts(t *testing.T) {
	f, err := matrix.NewFactor("a", matrix.Val("1"))
	require.NoError(t, err)
	m, err := matrix.New("bad",
		[]matrix.Arg{matrix.Lit("tool")},
		[]*matrix.Factor{f}, nil, "{{ undefined_root }}/x")
	require.NoError(t, err)

	runner := &fakeRunner{}
	err = RunStage(zerolog.Nop(), Stage{Matrix: m}, nil, runner, report.NopSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, matrix.ErrUndefinedVariable)
	assert.Empty(t, runner.calls, "no process may be spawned after a configuration error")
}

func TestRunStage_DroppedCombinationsAreRecorded(t *testing.T) {
	size, err := matrix.NewFactor("size", matrix.Val("1x1"), matrix.Val("3x3"))
	require.NoError(t, err)
	count, err := matrix.NewFactor("count", matrix.Val("1"), matrix.Val("4"))
	require.NoError(t, err)
	count, err = count.When(`count == "1" or size == "1x1"`)
	require.NoError(t, err)
	m, err := matrix.New("filtered",
		[]matrix.Arg{matrix.Lit("tool")},
		[]*matrix.Factor{size, count}, nil, "{{ root }}/{{ size }}-{{ count }}")
	require.NoError(t, err)

	rec := report.NewRecorder()
	err = RunStage(zerolog.Nop(), Stage{Matrix: m}, matrix.Metadata{"root": t.TempDir()}, &fakeRunner{}, rec)
	require.NoError(t, err)

	sum := rec.Summary()
	assert.Equal(t, 3, sum[report.OutcomeExecuted])
	assert.Equal(t, 1, sum[report.OutcomeDropped])
}

func TestRunPipeline_NestedStageDropsAreCountedOnce(t *testing.T) {
	size, err := matrix.NewFactor("size", matrix.Val("1x1"), matrix.Val("2x2"), matrix.Val("3x3"))
	require.NoError(t, err)
	size, err = size.When(`size != "3x3"`)
	require.NoError(t, err)
	inner, err := matrix.New("meshes",
		[]matrix.Arg{matrix.Lit("mesher")},
		[]*matrix.Factor{size}, nil, "{{ root }}/{{ size }}.stl")
	require.NoError(t, err)

	model, err := matrix.NewNestedFactor("model", inner)
	require.NoError(t, err)
	filament, err := matrix.NewFactor("filament", matrix.Val("pla"), matrix.Val("petg"))
	require.NoError(t, err)
	outer, err := matrix.New("slices",
		[]matrix.Arg{matrix.Lit("slicer")},
		[]*matrix.Factor{model, filament}, nil, "{{ root }}/{{ filament }}/{{ size }}")
	require.NoError(t, err)

	rec := report.NewRecorder()
	stages := []Stage{{Matrix: inner}, {Matrix: outer}}
	err = RunPipeline(zerolog.Nop(), stages, matrix.Metadata{"root": t.TempDir()}, &fakeRunner{}, rec)
	require.NoError(t, err)

	// The inner matrix's predicate drop is reported by its own stage only;
	// re-expanding it as the nested domain of the second stage must not
	// produce a second dropped record.
	sum := rec.Summary()
	assert.Equal(t, 1, sum[report.OutcomeDropped])
	assert.Equal(t, 6, sum[report.OutcomeExecuted])
	for _, r := range rec.Records() {
		if r.Outcome == report.OutcomeDropped {
			assert.Equal(t, "meshes", r.Matrix)
		}
	}
}

func TestRunPipeline_StagesRunInOrder(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	stages := []Stage{
		{Matrix: testMatrix(t)},
		{Matrix: testMatrix(t)},
	}
	err := RunPipeline(zerolog.Nop(), stages, matrix.Metadata{"root": root}, runner, report.NopSink{})
	require.NoError(t, err)
	assert.Len(t, runner.calls, 4)
}
