// Package eval scores candidate placements with a genome's weight vector.
// It never judges placement legality; callers hand it grids that a game-rules
// engine already considers reachable.
package eval

import (
	"math"

	"tetrevo/internal/board"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

// Score is the placement-desirability heuristic. Height, holes and bumpiness
// enter negated, so the weight's sign alone decides penalty versus reward.
// No clamping, no normalization, no randomness.
func Score(g *board.Grid, w model.Weights) (float64, error) {
	if err := genome.Validate(w); err != nil {
		return 0, err
	}
	f, err := board.Extract(g)
	if err != nil {
		return 0, err
	}
	return ScoreFeatures(f, w), nil
}

// ScoreFeatures applies the linear combination to an already-extracted
// feature vector. Height, holes and bumpiness enter negated: a positive
// weight on them is a penalty, a negative one a reward.
func ScoreFeatures(f board.Features, w model.Weights) float64 {
	return w.Lines*float64(f.CompleteLines) +
		w.Height*(-float64(f.AggregateHeight)) +
		w.Holes*(-float64(f.Holes)) +
		w.Bumpiness*(-float64(f.Bumpiness))
}

// Best returns the index of the highest-scoring candidate grid. Ties keep the
// first-encountered candidate so genome behavior stays reproducible for a
// fixed piece sequence. Returns -1 for an empty candidate list.
func Best(candidates []*board.Grid, w model.Weights) (int, float64, error) {
	if err := genome.Validate(w); err != nil {
		return -1, 0, err
	}

	bestIdx := -1
	bestScore := math.Inf(-1)
	for i, candidate := range candidates {
		f, err := board.Extract(candidate)
		if err != nil {
			return -1, 0, err
		}
		score := ScoreFeatures(f, w)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return -1, 0, nil
	}
	return bestIdx, bestScore, nil
}
