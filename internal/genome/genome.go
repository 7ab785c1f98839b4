package genome

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"tetrevo/internal/model"
)

// ErrInvalidGenome reports a weight vector containing NaN or infinite values.
var ErrInvalidGenome = errors.New("invalid genome")

// weightField names one of the four weights and exposes it by pointer so the
// blend/perturb/validate paths iterate a fixed, statically declared field set.
type weightField struct {
	name string
	get  func(*model.Weights) *float64
}

var weightFields = []weightField{
	{"height", func(w *model.Weights) *float64 { return &w.Height }},
	{"lines", func(w *model.Weights) *float64 { return &w.Lines }},
	{"holes", func(w *model.Weights) *float64 { return &w.Holes }},
	{"bumpiness", func(w *model.Weights) *float64 { return &w.Bumpiness }},
}

// ID derives the genome identifier from the weight vector alone. Identical
// weights always produce the identical ID regardless of lineage, which is what
// makes deduplication and convergence detection possible.
func ID(w model.Weights) string {
	parts := make([]string, 0, len(weightFields))
	for _, field := range weightFields {
		parts = append(parts, fmt.Sprintf("%s=%s", field.name, strconv.FormatFloat(*field.get(&w), 'g', -1, 64)))
	}
	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:8])
}

func Validate(w model.Weights) error {
	for _, field := range weightFields {
		v := *field.get(&w)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %s is %v", ErrInvalidGenome, field.name, v)
		}
	}
	return nil
}

// New builds a genome from a weight vector and its parents. Founders carry
// generation 0; derived genomes carry max(parent generations)+1. The fitness
// record starts empty.
func New(w model.Weights, parents ...model.Genome) (model.Genome, error) {
	if err := Validate(w); err != nil {
		return model.Genome{}, err
	}
	if len(parents) > 2 {
		return model.Genome{}, fmt.Errorf("%w: at most 2 parents, got %d", ErrInvalidGenome, len(parents))
	}

	generation := 0
	parentIDs := make([]string, 0, len(parents))
	for _, parent := range parents {
		parentIDs = append(parentIDs, parent.ID)
		if parent.Generation+1 > generation {
			generation = parent.Generation + 1
		}
	}
	if len(parentIDs) == 0 {
		parentIDs = nil
	}

	return model.Genome{
		VersionedRecord: model.NewVersionedRecord(),
		ID:              ID(w),
		Weights:         w,
		ParentIDs:       parentIDs,
		Generation:      generation,
		Fitness:         model.FitnessRecord{},
	}, nil
}

// Clone copies a genome, including its accumulated fitness record.
func Clone(g model.Genome) model.Genome {
	out := g
	out.ParentIDs = append([]string(nil), g.ParentIDs...)
	return out
}

// Random draws a founder weight vector uniformly from [-scale, scale] per field.
func Random(rng *rand.Rand, scale float64) model.Weights {
	var w model.Weights
	for _, field := range weightFields {
		*field.get(&w) = (rng.Float64()*2 - 1) * scale
	}
	return w
}

// Blend computes the weighted crossover of two parent vectors:
// child = a*alpha + b*(1-alpha), field by field.
func Blend(a, b model.Weights, alpha float64) model.Weights {
	var out model.Weights
	for _, field := range weightFields {
		*field.get(&out) = *field.get(&a)*alpha + *field.get(&b)*(1-alpha)
	}
	return out
}

// Perturb adds uniform noise from [-strength, strength] to each weight
// independently, gated per weight by rate. strength 0 or rate 0 returns the
// vector unchanged.
func Perturb(w model.Weights, rng *rand.Rand, strength, rate float64) model.Weights {
	out := w
	if strength == 0 || rate <= 0 {
		return out
	}
	for _, field := range weightFields {
		if rng.Float64() < rate {
			*field.get(&out) += (rng.Float64()*2 - 1) * strength
		}
	}
	return out
}

// RecordGame folds one finished game into the fitness record. Best score
// never decreases.
func RecordGame(g *model.Genome, score float64) {
	played := g.Fitness.GamesPlayed
	g.Fitness.MeanScore = (g.Fitness.MeanScore*float64(played) + score) / float64(played+1)
	g.Fitness.GamesPlayed = played + 1
	if score > g.Fitness.BestScore || played == 0 {
		g.Fitness.BestScore = score
	}
}
