package evo

import (
	"errors"
	"math/rand"

	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

// BlendCrossover mixes two parent weight vectors field by field:
// child = parent1*alpha + parent2*(1-alpha), parent1 being the fitter one.
// Jitter > 0 draws alpha per crossover event uniformly from
// [Alpha-Jitter, Alpha+Jitter] instead of using the fixed ratio.
//
// The zero value is usable: Alpha 0 means the default ratio 0.6. An alpha
// of exactly zero, which would copy parent2 verbatim, cannot be configured.
type BlendCrossover struct {
	Alpha  float64
	Jitter float64
}

func (c BlendCrossover) Name() string {
	return "blend_crossover"
}

func (c BlendCrossover) alpha(rng *rand.Rand) float64 {
	alpha := c.Alpha
	if alpha == 0 {
		alpha = 0.6
	}
	if c.Jitter > 0 {
		alpha += (rng.Float64()*2 - 1) * c.Jitter
	}
	return alpha
}

func (c BlendCrossover) Combine(rng *rand.Rand, parent1, parent2 model.Weights) (model.Weights, error) {
	if rng == nil {
		return model.Weights{}, errors.New("random source is required")
	}
	if err := genome.Validate(parent1); err != nil {
		return model.Weights{}, err
	}
	if err := genome.Validate(parent2); err != nil {
		return model.Weights{}, err
	}
	return genome.Blend(parent1, parent2, c.alpha(rng)), nil
}

// UniformPerturb is the bounded mutation operator: each weight is perturbed
// independently with probability Rate by a uniform delta in
// [-Strength, Strength]. Applied after crossover, never instead of it.
type UniformPerturb struct {
	Strength float64
	Rate     float64
}

func (m UniformPerturb) Name() string {
	return "uniform_perturb"
}

func (m UniformPerturb) Mutate(rng *rand.Rand, w model.Weights) (model.Weights, error) {
	if rng == nil {
		return model.Weights{}, errors.New("random source is required")
	}
	if err := genome.Validate(w); err != nil {
		return model.Weights{}, err
	}
	return genome.Perturb(w, rng, m.Strength, m.Rate), nil
}
