// Package gridfinity defines the built-in fabrication pipeline: parametric
// Gridfinity bins and baseplates meshed with OpenSCAD, then sliced to g-code
// with a PrusaSlicer-compatible slicer. Each matrix here is data; the
// generation and execution machinery lives in internal/matrix and
// internal/sandbox.
package gridfinity

import (
	"fmt"

	"fabmatrix/internal/driver"
	"fabmatrix/internal/matrix"
)

// Config locates the external tool binaries and the artifact roots.
type Config struct {
	OpenSCADBin string
	SlicerBin   string
	ModelRoot   string
	GCodeRoot   string
}

// DefaultConfig assumes the tools are on PATH and writes under ./output.
func DefaultConfig() Config {
	return Config{
		OpenSCADBin: "openscad",
		SlicerBin:   "prusa-slicer",
		ModelRoot:   "output/gridfinity/models",
		GCodeRoot:   "output/gridfinity/gcode",
	}
}

// Overlay returns the shared constants every matrix template may reference.
func (c Config) Overlay() matrix.Metadata {
	return matrix.Metadata{
		"output_models": c.ModelRoot,
		"output_gcode":  c.GCodeRoot,
	}
}

// ExpandXY enumerates grid footprints from min x min up to max x max as
// x<=y pairs (a 2x3 bin is a rotated 3x2), skipping blocked pairs. Tags read
// like "2x3".
func ExpandXY(min, max int, blocked ...[2]int) []matrix.Value {
	var values []matrix.Value
	for x := min; x <= max; x++ {
	next:
		for y := x; y <= max; y++ {
			for _, b := range blocked {
				if b[0] == x && b[1] == y {
					continue next
				}
			}
			values = append(values, matrix.Value{
				Raw:      fmt.Sprintf("%dx%d", x, y),
				Fragment: []string{"-D", fmt.Sprintf("gridx=%d", x), "-D", fmt.Sprintf("gridy=%d", y)},
			})
		}
	}
	return values
}

// define builds the OpenSCAD -D name=value customizer fragment.
func define(name, value string) []string {
	return []string{"-D", name + "=" + value}
}

// builder accumulates factor/matrix construction with a sticky error, so
// pipeline definitions read as data instead of error plumbing.
type builder struct {
	err error
}

func (b *builder) factor(name string, values ...matrix.Value) *matrix.Factor {
	if b.err != nil {
		return nil
	}
	f, err := matrix.NewFactor(name, values...)
	b.err = err
	return f
}

func (b *builder) nested(name string, source matrix.Expandable) *matrix.Factor {
	if b.err != nil {
		return nil
	}
	f, err := matrix.NewNestedFactor(name, source)
	b.err = err
	return f
}

func (b *builder) matrix(name string, command []matrix.Arg, factors []*matrix.Factor, vars []matrix.Var, path string) (*matrix.Matrix, error) {
	if b.err != nil {
		return nil, b.err
	}
	return matrix.New(name, command, factors, vars, path)
}

// Bins builds the bin meshing matrix: footprint x height x base style x lip
// style x tab x scoop. The lite base variant is generated from a different
// source file, carried as per-value metadata so the command template stays
// uniform.
func Bins(cfg Config) (*matrix.Matrix, error) {
	b := &builder{}
	return b.matrix("bins",
		[]matrix.Arg{
			matrix.Lit(cfg.OpenSCADBin),
			matrix.Lit("--export-format=binstl"),
			matrix.Lit("--enable"), matrix.Lit("fast-csg"),
			matrix.Lit("-o"), matrix.Output("{{ stl_path }}"),
			matrix.Input("{{ scad_source }}"),
		},
		[]*matrix.Factor{
			b.factor("base_size", ExpandXY(1, 5, [2]int{5, 5})...),
			b.factor("height",
				matrix.Val("2", define("gridz", "2")...),
				matrix.Val("4", define("gridz", "4")...),
				matrix.Val("6", define("gridz", "6")...),
				matrix.Val("8", define("gridz", "8")...),
				matrix.Val("10", define("gridz", "10")...),
				matrix.Val("12", define("gridz", "12")...),
			),
			b.factor("base",
				matrix.Value{Raw: "0", Tag: "flat", Fragment: define("style_hole", "0"),
					Meta: map[string]string{"scad_source": "gridfinity-rebuilt-bins.scad"}},
				matrix.Value{Raw: "1", Tag: "magnet", Fragment: define("style_hole", "1"),
					Meta: map[string]string{"scad_source": "gridfinity-rebuilt-bins.scad"}},
				matrix.Value{Raw: "lite", Tag: "lite", Fragment: []string{"-D", "divx=1", "-D", "divy=1"},
					Meta: map[string]string{"scad_source": "gridfinity-rebuilt-lite.scad"}},
			),
			b.factor("lip",
				matrix.Value{Raw: "0", Tag: "stackable", Fragment: define("style_lip", "0")},
				matrix.Value{Raw: "2", Tag: "open", Fragment: define("style_lip", "2")},
			),
			b.factor("tab",
				matrix.Value{Raw: "5", Tag: "no-tab", Fragment: define("style_tab", "5")},
			),
			b.factor("scoop",
				matrix.Val("0", define("scoop", "0")...),
			),
		},
		[]matrix.Var{
			{Name: "stl_path", Template: "{{ output_models }}/bins/" +
				"{{ base }}-{{ lip }}/" +
				"bin-{{ base_size }}-{{ height }}h-{{ base }}-{{ lip }}.stl"},
		},
		"{{ stl_path }}",
	)
}

// Baseplates builds the baseplate meshing matrix.
func Baseplates(cfg Config) (*matrix.Matrix, error) {
	b := &builder{}
	return b.matrix("baseplates",
		[]matrix.Arg{
			matrix.Lit(cfg.OpenSCADBin),
			matrix.Lit("--export-format=binstl"),
			matrix.Lit("--enable"), matrix.Lit("fast-csg"),
			matrix.Lit("-o"), matrix.Output("{{ stl_path }}"),
			matrix.Input("gridfinity-rebuilt-baseplate.scad"),
		},
		[]*matrix.Factor{
			b.factor("size", ExpandXY(1, 5, [2]int{5, 5})...),
			b.factor("plate",
				matrix.Value{Raw: "0", Tag: "thin", Fragment: define("style_plate", "0")},
				matrix.Value{Raw: "1", Tag: "weighted", Fragment: define("style_plate", "1")},
				matrix.Value{Raw: "2", Tag: "skeletonized", Fragment: define("style_plate", "2")},
				matrix.Value{Raw: "3", Tag: "screw-together", Fragment: define("style_plate", "3")},
			),
			b.factor("magnet",
				// Disabling magnets only plausibly makes sense for the
				// weighted plate; keep them on everywhere.
				matrix.Value{Raw: "true", Tag: "magnet", Fragment: define("enable_magnet", "true")},
			),
			b.factor("hole",
				matrix.Value{Raw: "0", Tag: "none", Fragment: define("style_hole", "0")},
			),
		},
		[]matrix.Var{
			{Name: "stl_path", Template: "{{ output_models }}/baseplate/" +
				"{{ plate }}/" +
				"plate-{{ size }}-{{ plate }}.stl"},
		},
		"{{ stl_path }}",
	)
}

// SlicerFor builds a slicing matrix whose model domain is the command
// sequence of a meshing matrix. The inner combination's metadata (stl_path,
// base, lip, ...) flows into the slicer's templates; that inherited map is
// the sole coupling between the chained matrices.
func SlicerFor(name string, models matrix.Expandable, cfg Config, gcodePathTemplate string) (*matrix.Matrix, error) {
	b := &builder{}
	return b.matrix(name,
		[]matrix.Arg{
			matrix.Lit(cfg.SlicerBin),
			matrix.Lit("--export-gcode"),
			matrix.Lit("--load"), matrix.Input("profile_{{ filament_type }}_n{{ nozzle_diameter }}.ini"),
			matrix.Lit("--output"), matrix.OutputDir("{{ gcode_path }}"),
			matrix.Input("{{ stl_path }}"),
		},
		[]*matrix.Factor{
			b.nested("model", models),
			b.factor("filament_type", matrix.Val("pla"), matrix.Val("petg")),
			b.factor("nozzle_diameter", matrix.Val("06")),
		},
		[]matrix.Var{
			{Name: "gcode_path", Template: gcodePathTemplate},
		},
		"{{ gcode_path }}",
	)
}

// Pipeline assembles the four stages in build order: bins are meshed, then
// sliced; baseplates are meshed, then sliced. Meshing stages skip models
// that already exist; slicing stages write into per-profile directories.
func Pipeline(cfg Config) ([]driver.Stage, error) {
	bins, err := Bins(cfg)
	if err != nil {
		return nil, err
	}
	baseplates, err := Baseplates(cfg)
	if err != nil {
		return nil, err
	}
	binsGcode, err := SlicerFor("slice-bins", bins, cfg,
		"{{ output_gcode }}/bins/{{ filament_type }}-n{{ nozzle_diameter }}/{{ base }}-{{ lip }}")
	if err != nil {
		return nil, err
	}
	baseplatesGcode, err := SlicerFor("slice-baseplates", baseplates, cfg,
		"{{ output_gcode }}/baseplate/{{ filament_type }}-n{{ nozzle_diameter }}/{{ plate }}")
	if err != nil {
		return nil, err
	}
	return []driver.Stage{
		{Matrix: bins, Options: driver.Options{CheckExists: true}},
		{Matrix: binsGcode, Options: driver.Options{OutputIsDir: true}},
		{Matrix: baseplates, Options: driver.Options{CheckExists: true}},
		{Matrix: baseplatesGcode, Options: driver.Options{OutputIsDir: true}},
	}, nil
}
