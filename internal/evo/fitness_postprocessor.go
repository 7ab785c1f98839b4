package evo

import "math"

const magnitudePenaltyEfficiency = 0.02

// FitnessPostprocessor adjusts fitness values after arena evaluation and
// before ranking/selection.
type FitnessPostprocessor interface {
	Name() string
	Process(scored []ScoredGenome) []ScoredGenome
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(scored []ScoredGenome) []ScoredGenome {
	return cloneScored(scored)
}

// MagnitudePenaltyPostprocessor mildly discounts genomes with large weight
// magnitudes, keeping the search near the origin where the heuristic's
// relative proportions matter more than its scale.
type MagnitudePenaltyPostprocessor struct{}

func (MagnitudePenaltyPostprocessor) Name() string {
	return "magnitude_penalty"
}

func (MagnitudePenaltyPostprocessor) Process(scored []ScoredGenome) []ScoredGenome {
	out := cloneScored(scored)
	for i := range out {
		w := out[i].Genome.Weights
		magnitude := math.Abs(w.Height) + math.Abs(w.Lines) + math.Abs(w.Holes) + math.Abs(w.Bumpiness)
		if magnitude < 1 {
			magnitude = 1
		}
		out[i].Fitness = out[i].Fitness / math.Pow(magnitude, magnitudePenaltyEfficiency)
	}
	return out
}

func cloneScored(scored []ScoredGenome) []ScoredGenome {
	out := make([]ScoredGenome, len(scored))
	copy(out, scored)
	return out
}
