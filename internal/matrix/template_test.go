package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_IdentityFastPath(t *testing.T) {
	// Plain strings pass through untouched, even when they would be invalid
	// templates: the resolver must not engage at all without a marker.
	for _, s := range []string{"", "plain", "-D", "gridx=5", "almost { single } brace"} {
		out, err := Render(s, Metadata{})
		require.NoError(t, err)
		assert.Equal(t, s, out)
	}
}

func TestRender_Substitution(t *testing.T) {
	ctx := Metadata{"base": "flat", "lip": "open"}

	out, err := Render("{{ base }}-{{ lip }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "flat-open", out)

	// Whitespace inside the markers is insignificant.
	out, err = Render("{{base}}/{{  lip  }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "flat/open", out)
}

func TestRender_UndefinedVariableFailsLoud(t *testing.T) {
	_, err := Render("bin-{{ height }}.stl", Metadata{"base": "flat"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndefinedVariable)
	assert.Contains(t, err.Error(), "height")
}

func TestRender_UnparseableMarkerIsConfigError(t *testing.T) {
	_, err := Render("{{ 1bad name }}", Metadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRenderArg_FileRefKeepsTags(t *testing.T) {
	ctx := Metadata{"stl_path": "out/bin.stl"}

	arg, err := RenderArg(Output("{{ stl_path }}"), ctx)
	require.NoError(t, err)
	require.NotNil(t, arg.File)
	assert.Equal(t, "out/bin.stl", arg.File.Path)
	assert.Equal(t, PurposeOutput, arg.File.Purpose)
	assert.Equal(t, KindFile, arg.File.Kind)

	arg, err = RenderArg(OutputDir("{{ stl_path }}"), ctx)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, arg.File.Kind)

	lit, err := RenderArg(Lit("--load"), ctx)
	require.NoError(t, err)
	assert.Nil(t, lit.File)
	assert.Equal(t, "--load", lit.Text)
}
