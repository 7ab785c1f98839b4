package eval

import (
	"errors"
	"math"
	"testing"

	"tetrevo/internal/board"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

func mustGrid(t *testing.T, rows ...string) *board.Grid {
	t.Helper()
	cells := make([][]bool, len(rows))
	for i, row := range rows {
		cells[i] = make([]bool, len(row))
		for j, ch := range row {
			cells[i][j] = ch == 'X'
		}
	}
	g, err := board.FromCells(cells)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	return g
}

func TestScoreSignConvention(t *testing.T) {
	g := mustGrid(t,
		"....",
		"X...",
		"XXXX",
	)
	// Features: aggregateHeight=5, holes=0, bumpiness=2+1+1... compute:
	// heights 2,1,1,1 -> aggregate 5, bumpiness 1, completeLines 1.
	w := model.Weights{Height: -0.5, Lines: 0.7, Holes: -0.4, Bumpiness: -0.2}
	got, err := Score(g, w)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	want := 0.7*1 + (-0.5)*(-5) + (-0.4)*(-0) + (-0.2)*(-1)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("score: got %v, want %v", got, want)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	g := mustGrid(t,
		"X..X",
		".XX.",
		"XXXX",
	)
	w := model.Weights{Height: -0.51, Lines: 0.76, Holes: -0.36, Bumpiness: -0.18}
	first, err := Score(g, w)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Score(g, w)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		if again != first {
			t.Fatalf("iteration %d: score %v differs from %v", i, again, first)
		}
	}
}

func TestScoreRejectsInvalidWeights(t *testing.T) {
	g := mustGrid(t, "..", "..")
	if _, err := Score(g, model.Weights{Height: math.NaN()}); !errors.Is(err, genome.ErrInvalidGenome) {
		t.Fatalf("got %v, want ErrInvalidGenome", err)
	}
	if _, _, err := Best([]*board.Grid{g}, model.Weights{Lines: math.Inf(1)}); !errors.Is(err, genome.ErrInvalidGenome) {
		t.Fatalf("best: got %v, want ErrInvalidGenome", err)
	}
}

func TestScoreRejectsNilGrid(t *testing.T) {
	if _, err := Score(nil, model.Weights{}); !errors.Is(err, board.ErrInvalidGrid) {
		t.Fatalf("got %v, want ErrInvalidGrid", err)
	}
}

func TestBestPrefersHighestScore(t *testing.T) {
	flat := mustGrid(t,
		"....",
		"....",
		"XX..",
	)
	tall := mustGrid(t,
		"X...",
		"X...",
		"X...",
	)
	w := model.Weights{Height: 1}
	idx, _, err := Best([]*board.Grid{tall, flat}, w)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if idx != 1 {
		t.Fatalf("best index: got %d, want 1 (flat board)", idx)
	}
}

func TestBestNegativeHeightWeightRewardsTallness(t *testing.T) {
	flat := mustGrid(t,
		"....",
		"....",
		"XX..",
	)
	tall := mustGrid(t,
		"X...",
		"X...",
		"X...",
	)
	idx, _, err := Best([]*board.Grid{tall, flat}, model.Weights{Height: -1})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if idx != 0 {
		t.Fatalf("best index: got %d, want 0 (tall board)", idx)
	}
}

func TestBestTieBreaksOnFirstEncountered(t *testing.T) {
	a := mustGrid(t, "..", "X.")
	b := mustGrid(t, "..", ".X")
	c := mustGrid(t, "..", "X.")
	idx, _, err := Best([]*board.Grid{a, b, c}, model.Weights{Height: 1, Holes: 1, Bumpiness: 0})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if idx != 0 {
		t.Fatalf("tie break: got index %d, want 0", idx)
	}
}

func TestBestEmptyCandidates(t *testing.T) {
	idx, _, err := Best(nil, model.Weights{})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if idx != -1 {
		t.Fatalf("empty candidates: got index %d, want -1", idx)
	}
}
