package matrix

import (
	"regexp"
	"strings"
)

// Metadata is the accumulated key -> tag context a combination is rendered
// against. Values are plain strings; factor tags, resolved template
// variables, and overlay constants all live in the same namespace.
type Metadata map[string]string

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into m. Later keys win on collision.
func (m Metadata) Merge(other Metadata) {
	for k, v := range other {
		m[k] = v
	}
}

// marker is the substring whose presence means a string needs template
// resolution at all. Metadata strings vastly outnumber templated ones, so
// plain strings must pass through without touching the regexp machinery.
const marker = "{{"

var refPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render resolves every {{ name }} reference in s against ctx.
//
// Strings without template markers are returned unchanged (identity fast
// path). Referencing a key absent from ctx fails with ErrUndefinedVariable;
// a marker that does not parse as a reference at all fails with ErrConfig.
// Producing a malformed path silently is never acceptable.
func Render(s string, ctx Metadata) (string, error) {
	if !strings.Contains(s, marker) {
		return s, nil
	}

	var missing string
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, ok := ctx[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return v
	})
	if missing != "" {
		return "", undefinedf("%q in template %q", missing, s)
	}
	if strings.Contains(out, marker) {
		return "", configf("unresolvable template syntax in %q", s)
	}
	return out, nil
}

// RenderArg resolves an argument template. Literal tokens are rendered
// directly; file references render their inner path and keep the
// purpose/kind tags unchanged.
func RenderArg(a Arg, ctx Metadata) (Arg, error) {
	if a.File == nil {
		text, err := Render(a.Text, ctx)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Text: text}, nil
	}
	path, err := Render(a.File.Path, ctx)
	if err != nil {
		return Arg{}, err
	}
	return Arg{File: &FileRef{Path: path, Purpose: a.File.Purpose, Kind: a.File.Kind}}, nil
}
