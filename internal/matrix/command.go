package matrix

import "iter"

// Purpose classifies what a file reference means to the external process.
type Purpose string

const (
	PurposeInput  Purpose = "input"
	PurposeOutput Purpose = "output"
)

// Kind distinguishes single-file references from directory references.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// FileRef is a command argument that names a file or directory the external
// process reads or produces. Declared inputs are staged into the sandbox
// before execution; declared outputs are harvested back out afterwards.
type FileRef struct {
	Path    string
	Purpose Purpose
	Kind    Kind
}

// Arg is one command token: either a literal string (File == nil) or a
// tagged file reference. Both forms may contain template references until
// rendered.
type Arg struct {
	Text string
	File *FileRef
}

// Lit builds a literal argument token.
func Lit(text string) Arg { return Arg{Text: text} }

// Input builds an argument referencing a file the process reads.
func Input(path string) Arg {
	return Arg{File: &FileRef{Path: path, Purpose: PurposeInput, Kind: KindFile}}
}

// Output builds an argument referencing a file the process produces.
func Output(path string) Arg {
	return Arg{File: &FileRef{Path: path, Purpose: PurposeOutput, Kind: KindFile}}
}

// OutputDir builds an argument referencing a directory the process writes
// into. The sandbox pre-creates it so the tool never has to.
func OutputDir(path string) Arg {
	return Arg{File: &FileRef{Path: path, Purpose: PurposeOutput, Kind: KindDirectory}}
}

// token returns the raw string form of the argument.
func (a Arg) token() string {
	if a.File != nil {
		return a.File.Path
	}
	return a.Text
}

// ResolvedCommand is one fully rendered combination: the destination artifact
// path, the exact argument list for the external tool, and the complete
// accumulated metadata (including anything inherited from a nested matrix).
//
// It is a value type: immutable once produced, regenerated on every Expand
// call, never persisted.
type ResolvedCommand struct {
	Path     string
	Args     []Arg
	Metadata Metadata
}

// Argv returns the raw argument strings in order. Argument order and flag
// spelling are the complete contract with the external binary and must
// round-trip unchanged through rendering.
func (c *ResolvedCommand) Argv() []string {
	argv := make([]string, len(c.Args))
	for i, a := range c.Args {
		argv[i] = a.token()
	}
	return argv
}

// Expandable is anything that can produce a sequence of resolved commands.
// Both Matrix and any leaf command source implement it, so a factor whose
// domain is "the output of another generator" needs no special casing.
type Expandable interface {
	// Expand re-walks the full combination space from scratch. The sequence
	// is finite, restartable, and deterministic for a given overlay. A
	// non-nil error is a fatal configuration failure; iteration stops there.
	Expand(overlay Metadata) iter.Seq2[*ResolvedCommand, error]
}
