package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGrid reports an empty or non-rectangular grid input.
var ErrInvalidGrid = errors.New("invalid grid")

// Grid is a fixed-width, fixed-height playfield. Row 0 is the top row;
// row Height()-1 is the floor. Cells are occupied or empty.
type Grid struct {
	width  int
	height int
	cells  [][]bool
}

func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be > 0, got %dx%d", ErrInvalidGrid, width, height)
	}
	cells := make([][]bool, height)
	for row := range cells {
		cells[row] = make([]bool, width)
	}
	return &Grid{width: width, height: height, cells: cells}, nil
}

// FromCells builds a grid from a row-major cell matrix. The matrix must be
// non-empty and rectangular.
func FromCells(cells [][]bool) (*Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, fmt.Errorf("%w: empty cell matrix", ErrInvalidGrid)
	}
	width := len(cells[0])
	copied := make([][]bool, len(cells))
	for row := range cells {
		if len(cells[row]) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidGrid, row, len(cells[row]), width)
		}
		copied[row] = append([]bool(nil), cells[row]...)
	}
	return &Grid{width: width, height: len(cells), cells: copied}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) Occupied(col, row int) bool {
	return g.cells[row][col]
}

func (g *Grid) Set(col, row int, occupied bool) {
	g.cells[row][col] = occupied
}

func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && col < g.width && row >= 0 && row < g.height
}

// Clone returns an independent copy. Workers evaluating genomes in parallel
// must each run on their own clone; grids are never shared for mutation.
func (g *Grid) Clone() *Grid {
	cells := make([][]bool, g.height)
	for row := range g.cells {
		cells[row] = append([]bool(nil), g.cells[row]...)
	}
	return &Grid{width: g.width, height: g.height, cells: cells}
}

// ColumnHeight measures from the first occupied cell downward: height minus
// the index of the topmost occupied cell, or 0 for an empty column.
func (g *Grid) ColumnHeight(col int) int {
	for row := 0; row < g.height; row++ {
		if g.cells[row][col] {
			return g.height - row
		}
	}
	return 0
}

func (g *Grid) RowFull(row int) bool {
	for col := 0; col < g.width; col++ {
		if !g.cells[row][col] {
			return false
		}
	}
	return true
}

// ClearFullRows removes every complete row, shifts the remainder down, and
// returns the number of rows cleared.
func (g *Grid) ClearFullRows() int {
	cleared := 0
	dst := g.height - 1
	for src := g.height - 1; src >= 0; src-- {
		if g.RowFull(src) {
			cleared++
			continue
		}
		if dst != src {
			copy(g.cells[dst], g.cells[src])
		}
		dst--
	}
	for ; dst >= 0; dst-- {
		for col := 0; col < g.width; col++ {
			g.cells[dst][col] = false
		}
	}
	return cleared
}

// String renders the grid for terminal replay, top row first.
func (g *Grid) String() string {
	var sb strings.Builder
	for row := 0; row < g.height; row++ {
		sb.WriteString("|")
		for col := 0; col < g.width; col++ {
			if g.cells[row][col] {
				sb.WriteString("[]")
			} else {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString(" ")
	for col := 0; col < g.width; col++ {
		sb.WriteString("--")
	}
	return sb.String()
}
