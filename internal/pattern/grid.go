// Package pattern turns canonical luminance grids into the rotation-invariant
// descriptor documents consumed by the marker-tracking engine.
package pattern

import "gonum.org/v1/gonum/stat"

// Grid is a square matrix of luminance values stored row-major.
type Grid struct {
	Size  int
	Cells []uint8
}

// NewGrid returns a zeroed size×size grid.
func NewGrid(size int) *Grid {
	return &Grid{Size: size, Cells: make([]uint8, size*size)}
}

// At returns the cell at row r, column c.
func (g *Grid) At(r, c int) uint8 {
	return g.Cells[r*g.Size+c]
}

// Set stores v at row r, column c.
func (g *Grid) Set(r, c int, v uint8) {
	g.Cells[r*g.Size+c] = v
}

// Rotate90 returns a copy rotated 90° clockwise: out[r][c] = g[N-1-c][r].
func (g *Grid) Rotate90() *Grid {
	n := g.Size
	out := NewGrid(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out.Cells[r*n+c] = g.Cells[(n-1-c)*n+r]
		}
	}
	return out
}

// Equal reports whether both grids have the same size and cells.
func (g *Grid) Equal(o *Grid) bool {
	if g.Size != o.Size || len(g.Cells) != len(o.Cells) {
		return false
	}
	for i := range g.Cells {
		if g.Cells[i] != o.Cells[i] {
			return false
		}
	}
	return true
}

// Variance is the population variance of the cell values.
func (g *Grid) Variance() float64 {
	if len(g.Cells) == 0 {
		return 0
	}
	xs := make([]float64, len(g.Cells))
	for i, v := range g.Cells {
		xs[i] = float64(v)
	}
	return stat.PopVariance(xs, nil)
}
