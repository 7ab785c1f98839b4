// Package arena defines named evaluation environments. An arena plays a
// fixed batch of games for a weight vector and reports a single fitness, so
// the evolution loop never needs to know game rules.
package arena

import (
	"context"

	"tetrevo/internal/model"
)

type Fitness float64

type Trace map[string]any

type Arena interface {
	Name() string
	Description() string
	// Evaluate plays the arena's game batch for one genome. The seed pins the
	// piece sequences so identical (weights, seed) pairs reproduce exactly.
	Evaluate(ctx context.Context, w model.Weights, seed int64) (Fitness, Trace, error)
}
