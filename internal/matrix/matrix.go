package matrix

import (
	"iter"

	"github.com/rs/zerolog/log"
)

// Var is one named template variable. Vars resolve after all factor tags are
// accumulated, in declaration order, each writing its resolved value back
// into the accumulator immediately — so a later var may reference an earlier
// one, in a single left-to-right pass. A var referencing a var declared
// after it is a configuration error, not a fixpoint to iterate.
type Var struct {
	Name     string
	Template string
}

// Matrix is an immutable command generator: an ordered factor list, a
// command-token template, ordered vars, and an output-path template.
// Construct via New; expansion never mutates it.
type Matrix struct {
	Name    string
	Command []Arg
	Factors []*Factor
	Vars    []Var
	Path    string
}

// New validates the definition and returns the matrix. Validation is
// front-loaded: a malformed definition fails here, before any expansion or
// external process is attempted.
func New(name string, command []Arg, factors []*Factor, vars []Var, path string) (*Matrix, error) {
	if name == "" {
		return nil, configf("matrix name is required")
	}
	if len(command) == 0 {
		return nil, configf("matrix %q has an empty command template", name)
	}
	if path == "" {
		return nil, configf("matrix %q has no output path template", name)
	}
	names := make(map[string]struct{}, len(factors)+len(vars))
	for _, f := range factors {
		if f == nil {
			return nil, configf("matrix %q contains a nil factor", name)
		}
		if _, dup := names[f.name]; dup {
			return nil, configf("matrix %q declares factor %q twice", name, f.name)
		}
		names[f.name] = struct{}{}
	}
	for _, v := range vars {
		if v.Name == "" {
			return nil, configf("matrix %q declares a var with no name", name)
		}
		if _, dup := names[v.Name]; dup {
			return nil, configf("matrix %q: var %q collides with an earlier factor or var", name, v.Name)
		}
		names[v.Name] = struct{}{}
	}
	return &Matrix{
		Name:    name,
		Command: command,
		Factors: factors,
		Vars:    vars,
		Path:    path,
	}, nil
}

// element is one drawn domain value during a walk: a literal factor value or
// a resolved command from a nested generator — never partially-resolved
// state.
type element struct {
	value *Value
	inner *ResolvedCommand
}

// Expand walks the full Cartesian product in row-major order over the factor
// list (outermost factor varies slowest). The enumeration order is an
// observable contract. Each call re-walks from scratch; the overlay supplies
// shared constants (output roots, tool paths) and is only read.
//
// A yielded error is always fatal configuration trouble; the walk stops
// there. Predicate-filtered combinations yield nothing and are logged as
// dropped.
func (m *Matrix) Expand(overlay Metadata) iter.Seq2[*ResolvedCommand, error] {
	return m.ExpandObserved(overlay, nil)
}

// ExpandObserved is Expand with a per-walk drop observer: onDrop, when
// non-nil, receives the metadata of every combination this walk's predicates
// reject. The observer belongs to the walk, not the matrix, so a matrix that
// is both a pipeline stage and nested inside a later stage reports each
// stage's drops to that stage alone. Nested expansions run unobserved; their
// drops are still logged by the inner matrix itself.
func (m *Matrix) ExpandObserved(overlay Metadata, onDrop func(Metadata)) iter.Seq2[*ResolvedCommand, error] {
	return func(yield func(*ResolvedCommand, error) bool) {
		elems := make([]element, len(m.Factors))
		m.walk(0, elems, overlay, onDrop, yield)
	}
}

// walk recurses over factor positions; returns false once iteration must
// stop (consumer break or fatal error).
func (m *Matrix) walk(pos int, elems []element, overlay Metadata, onDrop func(Metadata), yield func(*ResolvedCommand, error) bool) bool {
	if pos == len(m.Factors) {
		return m.finalize(elems, overlay, onDrop, yield)
	}
	f := m.Factors[pos]
	if f.source != nil {
		for rc, err := range f.source.Expand(overlay) {
			if err != nil {
				yield(nil, err)
				return false
			}
			elems[pos] = element{inner: rc}
			if !m.walk(pos+1, elems, overlay, onDrop, yield) {
				return false
			}
		}
		return true
	}
	for i := range f.values {
		elems[pos] = element{value: &f.values[i]}
		if !m.walk(pos+1, elems, overlay, onDrop, yield) {
			return false
		}
	}
	return true
}

// finalize turns one candidate combination into a ResolvedCommand, or drops
// it. Order of operations is fixed: factor accumulation, var resolution,
// predicate conjunction, final rendering.
func (m *Matrix) finalize(elems []element, overlay Metadata, onDrop func(Metadata), yield func(*ResolvedCommand, error) bool) bool {
	meta := overlay.Clone()
	args := make([]Arg, 0, len(m.Command)+4)
	args = append(args, m.Command...)

	for i, el := range elems {
		f := m.Factors[i]
		if el.inner != nil {
			// Nested draw: inherit the inner combination's metadata
			// wholesale; the factor contributes no fragment or tag.
			meta.Merge(el.inner.Metadata)
			continue
		}
		meta[f.name] = el.value.tag()
		for k, v := range el.value.Meta {
			meta[k] = v
		}
		for _, tok := range el.value.Fragment {
			args = append(args, Lit(tok))
		}
	}

	for _, v := range m.Vars {
		resolved, err := Render(v.Template, meta)
		if err != nil {
			yield(nil, err)
			return false
		}
		meta[v.Name] = resolved
	}

	for _, f := range m.Factors {
		ok, err := f.evalWhen(meta)
		if err != nil {
			yield(nil, err)
			return false
		}
		if !ok {
			log.Debug().
				Str("matrix", m.Name).
				Str("factor", f.name).
				Str("predicate", f.when).
				Interface("metadata", meta).
				Msg("combination dropped by filter")
			if onDrop != nil {
				onDrop(meta)
			}
			return true
		}
	}

	rendered := make([]Arg, len(args))
	for i, a := range args {
		ra, err := RenderArg(a, meta)
		if err != nil {
			yield(nil, err)
			return false
		}
		rendered[i] = ra
	}
	path, err := Render(m.Path, meta)
	if err != nil {
		yield(nil, err)
		return false
	}

	return yield(&ResolvedCommand{Path: path, Args: rendered, Metadata: meta}, nil)
}
