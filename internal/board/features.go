package board

import "fmt"

// Features are the four scalars the placement evaluator consumes. All values
// are raw non-negative magnitudes; the evaluator applies sign conventions.
type Features struct {
	AggregateHeight int
	Holes           int
	Bumpiness       int
	CompleteLines   int
}

// Extract computes the feature vector for a grid in a single column sweep.
// A hole is an empty cell with at least one occupied cell above it in the
// same column, so overhangs count toward holes.
func Extract(g *Grid) (Features, error) {
	if g == nil || g.width <= 0 || g.height <= 0 {
		return Features{}, fmt.Errorf("%w: nil or zero-sized grid", ErrInvalidGrid)
	}

	var f Features
	prevHeight := 0
	for col := 0; col < g.width; col++ {
		top := -1
		holes := 0
		for row := 0; row < g.height; row++ {
			if g.cells[row][col] {
				if top < 0 {
					top = row
				}
			} else if top >= 0 {
				holes++
			}
		}
		height := 0
		if top >= 0 {
			height = g.height - top
		}
		f.AggregateHeight += height
		f.Holes += holes
		if col > 0 {
			f.Bumpiness += abs(height - prevHeight)
		}
		prevHeight = height
	}
	for row := 0; row < g.height; row++ {
		if g.RowFull(row) {
			f.CompleteLines++
		}
	}
	return f, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
