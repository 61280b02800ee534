package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		pipelinePath = ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestPlan_BuiltInPipeline(t *testing.T) {
	out, err := runCLI(t, "plan")
	require.NoError(t, err)

	assert.Contains(t, out, "# bins")
	assert.Contains(t, out, "# slice-bins")
	assert.Contains(t, out, "# baseplates")
	assert.Contains(t, out, "# slice-baseplates")
	assert.Contains(t, out,
		"[1] openscad --export-format=binstl --enable fast-csg -o "+
			"output/gridfinity/models/bins/flat-stackable/bin-1x1-2h-flat-stackable.stl "+
			"gridfinity-rebuilt-bins.scad -D gridx=1 -D gridy=1 -D gridz=2 "+
			"-D style_hole=0 -D style_lip=0 -D style_tab=5 -D scoop=0 -> "+
			"output/gridfinity/models/bins/flat-stackable/bin-1x1-2h-flat-stackable.stl")
}

func TestPlan_YAMLDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  echoer: /bin/echo
matrices:
  - name: greetings
    command:
      - "{{ echoer_bin }}"
      - "{{ word }}"
    factors:
      - name: word
        values: [hello, world]
    path: "out/{{ word }}.txt"
`), 0o644))

	out, err := runCLI(t, "plan", "--pipeline", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# greetings")
	assert.Contains(t, out, "[1] /bin/echo hello -> out/hello.txt")
	assert.Contains(t, out, "[2] /bin/echo world -> out/world.txt")
}

func TestPlan_BadDefinitionFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
matrices:
  - name: broken
    command: ["tool"]
    path: "out/{{ nowhere }}"
`), 0o644))

	_, err := runCLI(t, "plan", "--pipeline", path)
	require.Error(t, err)
}
