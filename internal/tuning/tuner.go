package tuning

import (
	"context"
	"math/rand"

	"tetrevo/internal/model"
)

// EvalFunc measures a candidate weight vector. Implementations are expected
// to use the same arena seed for every call so candidates stay comparable.
type EvalFunc func(ctx context.Context, w model.Weights) (float64, error)

// Tuner refines a weight vector locally after its arena evaluation. The
// returned fitness belongs to the returned weights; when no candidate beats
// the baseline the input weights and baseline come back unchanged.
type Tuner interface {
	Name() string
	Tune(ctx context.Context, rng *rand.Rand, w model.Weights, baseline float64, attempts int, eval EvalFunc) (model.Weights, float64, error)
}
