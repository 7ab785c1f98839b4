package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"tetrevo/internal/model"
)

// HillClimb perturbs one weight at a time and keeps the change only when the
// arena score improves by at least MinImprovement. The spread shrinks by
// AnnealingFactor with each step inside an attempt.
type HillClimb struct {
	Steps           int
	StepSize        float64
	AnnealingFactor float64
	MinImprovement  float64
	GoalFitness     float64
}

func (h HillClimb) Name() string { return "hillclimb" }

func (h HillClimb) Tune(ctx context.Context, rng *rand.Rand, w model.Weights, baseline float64, attempts int, eval EvalFunc) (model.Weights, float64, error) {
	if err := ctx.Err(); err != nil {
		return model.Weights{}, 0, err
	}
	if rng == nil {
		return model.Weights{}, 0, errors.New("random source is required")
	}
	if eval == nil {
		return model.Weights{}, 0, errors.New("eval function is required")
	}
	if attempts <= 0 {
		return w, baseline, nil
	}

	steps := h.Steps
	if steps <= 0 {
		steps = 2
	}
	stepSize := h.StepSize
	if stepSize <= 0 {
		stepSize = 0.05
	}
	annealing := h.AnnealingFactor
	if annealing <= 0 {
		annealing = 1.0
	}

	best := w
	bestFitness := baseline
	if h.GoalFitness > 0 && bestFitness >= h.GoalFitness {
		return best, bestFitness, nil
	}

	for a := 0; a < attempts; a++ {
		if err := ctx.Err(); err != nil {
			return model.Weights{}, 0, err
		}
		candidate := best
		for s := 0; s < steps; s++ {
			field := fieldPtr(&candidate, rng.Intn(4))
			spread := stepSize * math.Pow(annealing, float64(s))
			*field += (rng.Float64()*2 - 1) * spread
		}
		candidateFitness, err := eval(ctx, candidate)
		if err != nil {
			return model.Weights{}, 0, err
		}
		if candidateFitness > bestFitness+h.MinImprovement {
			best = candidate
			bestFitness = candidateFitness
		}
		if h.GoalFitness > 0 && bestFitness >= h.GoalFitness {
			break
		}
	}

	return best, bestFitness, nil
}

func fieldPtr(w *model.Weights, idx int) *float64 {
	switch idx {
	case 0:
		return &w.Height
	case 1:
		return &w.Lines
	case 2:
		return &w.Holes
	default:
		return &w.Bumpiness
	}
}
