package sandbox

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"fabmatrix/internal/matrix"
)

// Runner executes resolved commands, one sandbox per call.
type Runner struct {
	// Log receives per-run diagnostics; tool output is logged at debug level.
	Log zerolog.Logger

	// TempRoot, when set, hosts the ephemeral directories. Empty means the
	// system default temp location.
	TempRoot string
}

// NewRunner creates a Runner logging to the given logger.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{Log: log}
}

// Run executes cmd in a fresh sandbox and returns the external process's
// exit code.
//
// A non-zero exit code is reported through the return value, never as an
// error: the matrix walk continues past failed tool invocations. A non-nil
// error means this combination could not be run at all (staging failure,
// unstartable binary); the caller skips the combination and keeps walking.
// The sandbox is removed on every exit path.
func (r *Runner) Run(cmd *matrix.ResolvedCommand) (exitCode int, err error) {
	dir, err := os.MkdirTemp(r.TempRoot, "fabmatrix-sandbox-*")
	if err != nil {
		return 0, fmt.Errorf("creating sandbox: %w", err)
	}
	defer os.RemoveAll(dir)

	argv, inputs, outputs := partition(cmd.Args)
	if len(argv) == 0 {
		return 0, fmt.Errorf("command for %q rendered to an empty argument list", cmd.Path)
	}

	for _, in := range inputs {
		if err := r.stage(dir, in); err != nil {
			return 0, fmt.Errorf("staging input: %w", err)
		}
	}
	for _, out := range outputs {
		if out.Kind != matrix.KindDirectory {
			continue
		}
		// Pre-create declared output directories so the tool can write into
		// them without creating anything itself.
		if err := os.MkdirAll(filepath.Join(dir, filepath.Base(out.Path)), 0o755); err != nil {
			return 0, fmt.Errorf("preparing output directory: %w", err)
		}
	}

	exitCode, runErr := r.invoke(dir, argv)
	if runErr != nil {
		return 0, runErr
	}

	for _, out := range outputs {
		if err := r.harvest(dir, out); err != nil {
			return exitCode, fmt.Errorf("harvesting output: %w", err)
		}
	}
	return exitCode, nil
}

// partition splits rendered arguments into the sandbox-local argv and the
// declared input/output references. File arguments appear in argv by base
// name only: the external process never sees a real source or destination
// path.
func partition(args []matrix.Arg) (argv []string, inputs, outputs []matrix.FileRef) {
	argv = make([]string, 0, len(args))
	for _, a := range args {
		if a.File == nil {
			argv = append(argv, a.Text)
			continue
		}
		argv = append(argv, filepath.Base(a.File.Path))
		switch a.File.Purpose {
		case matrix.PurposeInput:
			inputs = append(inputs, *a.File)
		case matrix.PurposeOutput:
			outputs = append(outputs, *a.File)
		}
	}
	return argv, inputs, outputs
}

// stage copies one declared input into the sandbox. A source with include
// directives brings its transitive include closure along, mirrored at the
// same relative locations so the directives still resolve; anything else is
// copied flat under its base name.
func (r *Runner) stage(dir string, in matrix.FileRef) error {
	info, err := os.Stat(in.Path)
	if err != nil {
		return fmt.Errorf("declared input %q: %w", in.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("declared input %q is a directory, want a file", in.Path)
	}

	if hasIncludes(in.Path) {
		deps, err := includeClosure(in.Path)
		if err != nil {
			return err
		}
		srcDir := filepath.Dir(in.Path)
		for _, rel := range deps {
			if err := copyFile(filepath.Join(srcDir, rel), filepath.Join(dir, rel)); err != nil {
				return err
			}
		}
	}
	return copyFile(in.Path, filepath.Join(dir, filepath.Base(in.Path)))
}

// invoke runs argv with the sandbox as working directory, capturing output.
func (r *Runner) invoke(dir string, argv []string) (int, error) {
	proc := exec.Command(argv[0], argv[1:]...)
	proc.Dir = dir
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	r.Log.Debug().
		Str("sandbox", dir).
		Strs("argv", argv).
		Str("stdout", stdout.String()).
		Str("stderr", stderr.String()).
		Msg("external process finished")

	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	// The process never started (missing binary, permission).
	return 0, fmt.Errorf("starting %q: %w", argv[0], err)
}

// harvest reconciles one declared output from the sandbox to its stable
// destination path.
//
// File outputs are copied to the destination, creating parent directories as
// needed. Directory outputs are walked recursively and every discovered file
// is copied into the destination root under its base name — structure is
// flattened, which is an intentional simplification of the artifact layout.
// A missing artifact is logged, not fatal: the tool may legitimately have
// produced nothing after a failed run.
func (r *Runner) harvest(dir string, out matrix.FileRef) error {
	local := filepath.Join(dir, filepath.Base(out.Path))
	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			r.Log.Warn().Str("artifact", out.Path).Msg("declared output was not produced")
			return nil
		}
		return err
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
			return err
		}
		return copyFile(local, out.Path)
	}

	if err := os.MkdirAll(out.Path, 0o755); err != nil {
		return err
	}
	return filepath.WalkDir(local, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return copyFile(path, filepath.Join(out.Path, d.Name()))
	})
}

// copyFile copies src to dst by content, creating dst's parent directory.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
