// Package config loads a fabrication pipeline definition from YAML.
//
// A definition file declares external tool locations, shared metadata
// constants, matrices (command template, factor tables, ordered vars, output
// path template), and the ordered pipeline of stages. The file is data only;
// it compiles into the same internal/matrix values the built-in pipeline
// uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fabmatrix/internal/driver"
	"fabmatrix/internal/matrix"
)

// File is the on-disk schema.
type File struct {
	// Tools maps a tool name to its binary. Each entry becomes an overlay
	// key "<name>_bin" for command templates; the environment variable
	// <NAME>_BIN (optionally from a .env next to the file) overrides it.
	Tools map[string]string `yaml:"tools"`

	// Shared is the metadata overlay injected into every expansion.
	Shared map[string]string `yaml:"shared"`

	Matrices []MatrixDef `yaml:"matrices"`

	// Pipeline orders the stages. When omitted, every matrix runs once in
	// declaration order with default options.
	Pipeline []StageDef `yaml:"pipeline"`
}

// MatrixDef declares one command matrix.
type MatrixDef struct {
	Name    string      `yaml:"name"`
	Command []ArgDef    `yaml:"command"`
	Factors []FactorDef `yaml:"factors"`
	Vars    []VarDef    `yaml:"vars"`
	Path    string      `yaml:"path"`
}

// ArgDef is one command token: a plain scalar is a literal, a mapping tags a
// file reference:
//
//	- "--export-format=binstl"
//	- input: "{{ scad_source }}"
//	- output: "{{ stl_path }}"
//	- output: "{{ gcode_path }}"
//	  kind: directory
type ArgDef struct {
	Text   string
	Input  string
	Output string
	Kind   string
}

func (a *ArgDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&a.Text)
	}
	var ref struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Kind   string `yaml:"kind"`
	}
	if err := node.Decode(&ref); err != nil {
		return err
	}
	a.Input, a.Output, a.Kind = ref.Input, ref.Output, ref.Kind
	return nil
}

func (a ArgDef) build() (matrix.Arg, error) {
	switch {
	case a.Input != "" && a.Output != "":
		return matrix.Arg{}, fmt.Errorf("argument cannot be both input and output")
	case a.Input != "":
		if a.Kind != "" && a.Kind != string(matrix.KindFile) {
			return matrix.Arg{}, fmt.Errorf("input %q: only file inputs are supported", a.Input)
		}
		return matrix.Input(a.Input), nil
	case a.Output != "":
		switch a.Kind {
		case "", string(matrix.KindFile):
			return matrix.Output(a.Output), nil
		case string(matrix.KindDirectory):
			return matrix.OutputDir(a.Output), nil
		default:
			return matrix.Arg{}, fmt.Errorf("output %q: unknown kind %q", a.Output, a.Kind)
		}
	default:
		return matrix.Lit(a.Text), nil
	}
}

// FactorDef declares one factor. Exactly one domain form is allowed: an
// explicit value table, a file glob, or a reference to an earlier matrix.
type FactorDef struct {
	Name   string     `yaml:"name"`
	Values []ValueDef `yaml:"values"`

	// Glob turns files matching a doublestar pattern into the domain, in
	// sorted order. Each value tags the file's stem and contributes a
	// "<factor>_path" metadata key holding the full path.
	Glob string `yaml:"glob"`

	// From nests a previously declared matrix as this factor's domain.
	From string `yaml:"from"`

	// When is a boolean expression over the accumulated metadata; a false
	// result drops the combination.
	When string `yaml:"when"`
}

// ValueDef is one domain value. A plain scalar is shorthand for a value
// whose tag and fragment-free form equal the scalar.
type ValueDef struct {
	Value    string            `yaml:"value"`
	Tag      string            `yaml:"tag"`
	Fragment []string          `yaml:"fragment"`
	Meta     map[string]string `yaml:"meta"`
}

func (v *ValueDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&v.Value)
	}
	type plain ValueDef
	return node.Decode((*plain)(v))
}

// VarDef is one ordered template variable. Declaration order is resolution
// order.
type VarDef struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// StageDef orders a matrix into the pipeline with its execution policy.
type StageDef struct {
	Matrix       string `yaml:"matrix"`
	SkipExisting bool   `yaml:"skip_existing"`
	OutputIsDir  bool   `yaml:"output_is_dir"`
}

// Pipeline is the compiled form: stages ready for the driver plus the shared
// metadata overlay.
type Pipeline struct {
	Stages  []driver.Stage
	Overlay matrix.Metadata
}

// Load reads, decodes, and compiles a pipeline definition. Unknown YAML
// fields are rejected: a misspelled key silently changing the parameter
// space is exactly the class of error this tool exists to avoid.
func Load(path string) (*Pipeline, error) {
	// Tool locations may live in a .env next to the definition; absence is
	// fine, the shell environment still applies.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return file.Compile(filepath.Dir(path))
}

// Compile builds the matrices and stages. Matrices may only nest matrices
// declared before them, so the chain is acyclic by construction.
func (f *File) Compile(baseDir string) (*Pipeline, error) {
	overlay := matrix.Metadata{}
	for k, v := range f.Shared {
		overlay[k] = v
	}
	for name, bin := range f.Tools {
		if env := os.Getenv(strings.ToUpper(name) + "_BIN"); env != "" {
			bin = env
		}
		overlay[name+"_bin"] = bin
	}

	byName := make(map[string]*matrix.Matrix, len(f.Matrices))
	var ordered []*matrix.Matrix
	for _, def := range f.Matrices {
		m, err := def.build(byName, baseDir)
		if err != nil {
			return nil, err
		}
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("matrix %q declared twice", m.Name)
		}
		byName[m.Name] = m
		ordered = append(ordered, m)
	}

	var stages []driver.Stage
	if len(f.Pipeline) == 0 {
		for _, m := range ordered {
			stages = append(stages, driver.Stage{Matrix: m})
		}
	}
	for _, s := range f.Pipeline {
		m, ok := byName[s.Matrix]
		if !ok {
			return nil, fmt.Errorf("pipeline references unknown matrix %q", s.Matrix)
		}
		stages = append(stages, driver.Stage{
			Matrix:  m,
			Options: driver.Options{CheckExists: s.SkipExisting, OutputIsDir: s.OutputIsDir},
		})
	}
	return &Pipeline{Stages: stages, Overlay: overlay}, nil
}

func (d MatrixDef) build(byName map[string]*matrix.Matrix, baseDir string) (*matrix.Matrix, error) {
	command := make([]matrix.Arg, 0, len(d.Command))
	for _, a := range d.Command {
		arg, err := a.build()
		if err != nil {
			return nil, fmt.Errorf("matrix %q: %w", d.Name, err)
		}
		command = append(command, arg)
	}

	factors := make([]*matrix.Factor, 0, len(d.Factors))
	for _, fd := range d.Factors {
		factor, err := fd.build(byName, baseDir)
		if err != nil {
			return nil, fmt.Errorf("matrix %q: %w", d.Name, err)
		}
		factors = append(factors, factor)
	}

	vars := make([]matrix.Var, 0, len(d.Vars))
	for _, v := range d.Vars {
		vars = append(vars, matrix.Var{Name: v.Name, Template: v.Template})
	}
	return matrix.New(d.Name, command, factors, vars, d.Path)
}

func (d FactorDef) build(byName map[string]*matrix.Matrix, baseDir string) (*matrix.Factor, error) {
	domains := 0
	for _, set := range []bool{len(d.Values) > 0, d.Glob != "", d.From != ""} {
		if set {
			domains++
		}
	}
	if domains != 1 {
		return nil, fmt.Errorf("factor %q needs exactly one of values, glob, or from", d.Name)
	}

	var factor *matrix.Factor
	var err error
	switch {
	case d.From != "":
		inner, ok := byName[d.From]
		if !ok {
			return nil, fmt.Errorf("factor %q nests unknown matrix %q (matrices can only nest earlier ones)", d.Name, d.From)
		}
		factor, err = matrix.NewNestedFactor(d.Name, inner)
	case d.Glob != "":
		values, globErr := globValues(d.Name, d.Glob, baseDir)
		if globErr != nil {
			return nil, globErr
		}
		factor, err = matrix.NewFactor(d.Name, values...)
	default:
		values := make([]matrix.Value, 0, len(d.Values))
		for _, v := range d.Values {
			values = append(values, matrix.Value{Raw: v.Value, Tag: v.Tag, Fragment: v.Fragment, Meta: v.Meta})
		}
		factor, err = matrix.NewFactor(d.Name, values...)
	}
	if err != nil {
		return nil, err
	}
	if d.When != "" {
		return factor.When(d.When)
	}
	return factor, nil
}

// globValues expands a file glob into a sorted, deterministic domain.
func globValues(name, pattern, baseDir string) ([]matrix.Value, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(baseDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("factor %q: glob %q: %w", name, pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("factor %q: glob %q matched nothing", name, pattern)
	}
	sort.Strings(matches)

	values := make([]matrix.Value, 0, len(matches))
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), filepath.Ext(m))
		values = append(values, matrix.Value{
			Raw:  m,
			Tag:  stem,
			Meta: map[string]string{name + "_path": m},
		})
	}
	return values, nil
}
