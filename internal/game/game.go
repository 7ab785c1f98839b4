// Package game is the game-rules engine: piece shapes, rotation, gravity and
// line clears. It enumerates every reachable placement (all rotation forms
// across all horizontal offsets, dropped under gravity) and lets the caller's
// evaluator pick among them.
package game

import (
	"errors"
	"fmt"
	"math/rand"

	"tetrevo/internal/board"
	"tetrevo/internal/eval"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

// lineValues holds points for clearing 1-4 lines at once.
var lineValues = [5]float64{0, 40, 100, 300, 1200}

// survivalCredit is added per locked piece so longer survival always counts
// toward fitness even when no lines clear.
const survivalCredit = 1.0

// Candidate is one reachable placement outcome: the grid as it would look
// with the piece locked, before any line clear.
type Candidate struct {
	Grid *board.Grid
	Form int
	Col  int
	Row  int
}

// Config drives one simulated game. MaxPieces is the hard termination cap
// required even when the board never fills.
type Config struct {
	Width     int
	Height    int
	MaxPieces int
	Seed      int64

	// Garbage pre-fills the bottom rows, leaving one random gap per row.
	GarbageRows int

	// OnLock, when set, observes each locked placement (replay rendering).
	OnLock func(piece Piece, g *board.Grid, lines int)
}

// Result is the outcome of one game.
type Result struct {
	Score        float64
	LinesCleared int
	PiecesPlaced int
	ToppedOut    bool
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: board must be %dx%d", board.ErrInvalidGrid, c.Width, c.Height)
	}
	if c.MaxPieces <= 0 {
		return errors.New("max pieces must be > 0")
	}
	if c.GarbageRows < 0 || c.GarbageRows >= c.Height {
		return fmt.Errorf("garbage rows must be in [0, height), got %d", c.GarbageRows)
	}
	return nil
}

// dropRow returns the resting top row for a form dropped at column col, or
// -1 when the form cannot enter the board at that column.
func dropRow(g *board.Grid, f Form, col int) int {
	if col < 0 || col+f.Width > g.Width() {
		return -1
	}
	if !fits(g, f, col, 0) {
		return -1
	}
	row := 0
	for fits(g, f, col, row+1) {
		row++
	}
	return row
}

func fits(g *board.Grid, f Form, col, row int) bool {
	for _, c := range f.Cells {
		r := row + c.Row
		x := col + c.Col
		if !g.InBounds(x, r) || g.Occupied(x, r) {
			return false
		}
	}
	return true
}

func lock(g *board.Grid, f Form, col, row int) *board.Grid {
	out := g.Clone()
	for _, c := range f.Cells {
		out.Set(col+c.Col, row+c.Row, true)
	}
	return out
}

// EnumeratePlacements produces every reachable placement of piece on g:
// each rotation form at each horizontal offset, dropped straight down under
// gravity. Candidates appear in form-major, column-minor order, which is the
// stable order the evaluator's tie-break relies on.
func EnumeratePlacements(g *board.Grid, piece Piece) []Candidate {
	candidates := make([]Candidate, 0, g.Width()*len(piece.Forms))
	for formIdx, f := range piece.Forms {
		for col := 0; col+f.Width <= g.Width(); col++ {
			row := dropRow(g, f, col)
			if row < 0 {
				continue
			}
			candidates = append(candidates, Candidate{
				Grid: lock(g, f, col, row),
				Form: formIdx,
				Col:  col,
				Row:  row,
			})
		}
	}
	return candidates
}

// Play runs one full game for a weight vector: a seeded piece sequence, the
// evaluator choosing among enumerated placements every turn, line clears and
// scoring, until top-out or the piece cap. Identical (weights, config) pairs
// replay identically.
func Play(w model.Weights, cfg Config) (Result, error) {
	if err := genome.Validate(w); err != nil {
		return Result{}, err
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	g, err := board.New(cfg.Width, cfg.Height)
	if err != nil {
		return Result{}, err
	}
	for i := 0; i < cfg.GarbageRows; i++ {
		row := cfg.Height - 1 - i
		gap := rng.Intn(cfg.Width)
		for col := 0; col < cfg.Width; col++ {
			g.Set(col, row, col != gap)
		}
	}

	var result Result
	grids := make([]*board.Grid, 0, cfg.Width*4)
	for result.PiecesPlaced < cfg.MaxPieces {
		piece := Pieces[rng.Intn(len(Pieces))]
		candidates := EnumeratePlacements(g, piece)
		if len(candidates) == 0 {
			result.ToppedOut = true
			break
		}

		grids = grids[:0]
		for _, c := range candidates {
			grids = append(grids, c.Grid)
		}
		idx, _, err := eval.Best(grids, w)
		if err != nil {
			return Result{}, err
		}

		g = candidates[idx].Grid
		lines := g.ClearFullRows()
		result.PiecesPlaced++
		result.LinesCleared += lines
		result.Score += lineValues[lines] + survivalCredit
		if cfg.OnLock != nil {
			cfg.OnLock(piece, g, lines)
		}
	}
	return result, nil
}
