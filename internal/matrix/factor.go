package matrix

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// Value is one element of a factor's literal domain: the raw value, the
// command-token fragment it contributes, the human-readable metadata tag it
// stores under the factor's name, and optional extra metadata keys.
//
// The explicit table replaces per-value transformer callbacks so the mapping
// is validated exhaustively at construction time instead of failing on first
// use.
type Value struct {
	// Raw is the underlying value, unique within the factor.
	Raw string

	// Tag is the metadata string recorded under the factor name.
	// Empty means Raw is used as-is.
	Tag string

	// Fragment is the ordered list of command tokens this value appends.
	// Tokens may contain template references.
	Fragment []string

	// Meta holds additional metadata keys the value contributes beyond the
	// factor's own tag (e.g. which source file a variant is built from).
	Meta map[string]string
}

func (v Value) tag() string {
	if v.Tag != "" {
		return v.Tag
	}
	return v.Raw
}

// Val is shorthand for a Value whose tag equals its raw form.
func Val(raw string, fragment ...string) Value {
	return Value{Raw: raw, Fragment: fragment}
}

// Factor is a named axis of variation: a finite ordered domain of values, or
// a nested Expandable whose produced commands become the domain. Factors are
// constructed once and read-only during expansion.
type Factor struct {
	name   string
	values []Value
	source Expandable
	when   string
}

// NewFactor builds a factor over a literal value domain, in declaration
// order. The order is significant: it defines iteration order and therefore
// the enumeration order of every matrix the factor participates in.
func NewFactor(name string, values ...Value) (*Factor, error) {
	if name == "" {
		return nil, configf("factor name is required")
	}
	if len(values) == 0 {
		return nil, configf("factor %q has an empty domain", name)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.Raw == "" {
			return nil, configf("factor %q has a value with no raw form", name)
		}
		if _, dup := seen[v.Raw]; dup {
			return nil, configf("factor %q declares value %q twice", name, v.Raw)
		}
		seen[v.Raw] = struct{}{}
	}
	return &Factor{name: name, values: values}, nil
}

// NewNestedFactor builds a factor whose domain is the resolved command
// sequence of another generator. During expansion the inner command's
// metadata is merged wholesale into the outer combination; the factor itself
// contributes no fragment or tag of its own.
func NewNestedFactor(name string, source Expandable) (*Factor, error) {
	if name == "" {
		return nil, configf("factor name is required")
	}
	if source == nil {
		return nil, configf("nested factor %q has no source", name)
	}
	return &Factor{name: name, source: source}, nil
}

// Name returns the factor's identity within its matrix.
func (f *Factor) Name() string { return f.name }

// When attaches a validity predicate: a boolean expression evaluated against
// the combination's fully accumulated metadata. A predicate may reference
// tags of factors declared at or before this factor's position plus resolved
// template variables; referencing anything else fails the expansion with a
// configuration error. The expression syntax is checked immediately.
func (f *Factor) When(src string) (*Factor, error) {
	if src == "" {
		return nil, configf("factor %q: empty predicate", f.name)
	}
	// Syntax check only; identifiers are resolved against real metadata at
	// evaluation time. Builtins are disabled in both compiles: the predicate
	// language is plain operators over metadata keys, and names like "count"
	// or "len" must resolve to factor tags, not shadowing functions.
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.DisableAllBuiltins(), expr.AsBool()); err != nil {
		return nil, configf("factor %q: predicate %q: %v", f.name, src, err)
	}
	f.when = src
	return f, nil
}

// evalWhen evaluates the factor's predicate against the accumulated
// metadata. Compiling against the concrete environment makes a reference to
// an unknown key a hard configuration error rather than a silent false.
func (f *Factor) evalWhen(meta Metadata) (bool, error) {
	if f.when == "" {
		return true, nil
	}
	env := make(map[string]any, len(meta))
	for k, v := range meta {
		env[k] = v
	}
	program, err := expr.Compile(f.when, expr.Env(env), expr.DisableAllBuiltins(), expr.AsBool())
	if err != nil {
		return false, configf("factor %q: predicate %q: %v", f.name, f.when, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, configf("factor %q: predicate %q: %v", f.name, f.when, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, configf("factor %q: predicate %q returned %T, want bool", f.name, f.when, out)
	}
	return ok, nil
}

func (f *Factor) String() string {
	if f.source != nil {
		return fmt.Sprintf("factor(%s, nested)", f.name)
	}
	return fmt.Sprintf("factor(%s, %d values)", f.name, len(f.values))
}
