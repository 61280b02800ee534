// Package packing explores first-fit placement of rectangular gridfinity
// bins on a fixed drawer grid. It is an independent geometry experiment with
// no dependency on the command engine; cell units are grid cells, not
// millimeters.
package packing

import "fmt"

// Point is a grid cell coordinate.
type Point struct {
	X, Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Size is a rectangular extent in grid cells.
type Size struct {
	X, Y int
}

// Area returns the covered cell count.
func (s Size) Area() int { return s.X * s.Y }

// Bin is a rectangular bin footprint.
type Bin struct {
	Size
}

func (b Bin) String() string { return fmt.Sprintf("bin-(%dx%d)", b.X, b.Y) }

// Placement records one placed bin.
type Placement struct {
	At  Point
	Bin Bin
}

// Container is a drawer grid accepting non-overlapping bin placements.
type Container struct {
	Size     Size
	cells    [][]*Bin
	contents []Placement
	fill     int
}

// NewContainer returns an empty container of the given size.
func NewContainer(size Size) *Container {
	c := &Container{Size: size}
	c.Clear()
	return c
}

// Clear removes all placements.
func (c *Container) Clear() {
	c.cells = make([][]*Bin, c.Size.X)
	for x := range c.cells {
		c.cells[x] = make([]*Bin, c.Size.Y)
	}
	c.contents = nil
	c.fill = 0
}

// Filled returns the covered fraction of the grid.
func (c *Container) Filled() float64 {
	return float64(c.fill) / float64(c.Size.Area())
}

// Contents returns the placements in placement order.
func (c *Container) Contents() []Placement {
	out := make([]Placement, len(c.contents))
	copy(out, c.contents)
	return out
}

// Populated reports whether the cell at (x, y) is covered.
func (c *Container) Populated(x, y int) bool {
	return c.cells[x][y] != nil
}

// Overlaps reports whether placing bin at (x, y) would cover an occupied
// cell. A footprint extending past the container edge counts as an overlap.
func (c *Container) Overlaps(bin Bin, x, y int) bool {
	if x+bin.X > c.Size.X || y+bin.Y > c.Size.Y {
		return true
	}
	for cx := x; cx < x+bin.X; cx++ {
		for cy := y; cy < y+bin.Y; cy++ {
			if c.Populated(cx, cy) {
				return true
			}
		}
	}
	return false
}

// PlaceBin places bin with its corner at (x, y); false if it overlaps.
func (c *Container) PlaceBin(bin Bin, x, y int) bool {
	if c.Overlaps(bin, x, y) {
		return false
	}
	b := bin
	for cx := x; cx < x+bin.X; cx++ {
		for cy := y; cy < y+bin.Y; cy++ {
			c.cells[cx][cy] = &b
		}
	}
	c.contents = append(c.contents, Placement{At: Point{X: x, Y: y}, Bin: bin})
	c.fill += bin.Area()
	return true
}

// FindNextOpen scans row-major from start for the next unoccupied cell;
// returns false when the grid is full past start. Start itself is returned
// if nothing occupies it.
func (c *Container) FindNextOpen(start Point) (Point, bool) {
	for x := start.X; x < c.Size.X; x++ {
		y0 := 0
		if x == start.X {
			y0 = start.Y
		}
		for y := y0; y < c.Size.Y; y++ {
			if !c.Populated(x, y) {
				return Point{X: x, Y: y}, true
			}
		}
	}
	return Point{}, false
}
