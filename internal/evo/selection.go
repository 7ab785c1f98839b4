package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"tetrevo/internal/model"
)

// ErrPopulationTooSmall reports that fewer genomes are available than the
// selection step needs. Callers fall back to cloning instead of crashing.
var ErrPopulationTooSmall = errors.New("population too small")

// Selector chooses parents from ranked genomes for replication.
type Selector interface {
	Name() string
	// PickParents returns two parents ordered fitter-first. When the ranked
	// set holds fewer than two genomes it returns ErrPopulationTooSmall,
	// with the single genome (if any) as both parents.
	PickParents(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, model.Genome, error)
}

// TournamentSelector samples a fixed-size random subset per parent and keeps
// the highest-fitness member. Both parents come from independent tournaments.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParents(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, model.Genome, error) {
	if rng == nil {
		return model.Genome{}, model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, model.Genome{}, fmt.Errorf("%w: no genomes to select from", ErrPopulationTooSmall)
	}
	if len(ranked) == 1 {
		only := ranked[0].Genome
		return only, only, fmt.Errorf("%w: need 2 genomes, have 1", ErrPopulationTooSmall)
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > len(ranked) {
		size = len(ranked)
	}

	first := s.pickOne(rng, ranked, size)
	second := s.pickOne(rng, ranked, size)
	if second.Fitness > first.Fitness {
		first, second = second, first
	}
	return first.Genome, second.Genome, nil
}

func (s TournamentSelector) pickOne(rng *rand.Rand, ranked []ScoredGenome, size int) ScoredGenome {
	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// EliteSelector picks both parents uniformly from the top elite set. Useful
// for aggressive convergence runs.
type EliteSelector struct {
	EliteCount int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParents(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, model.Genome, error) {
	if rng == nil {
		return model.Genome{}, model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, model.Genome{}, fmt.Errorf("%w: no genomes to select from", ErrPopulationTooSmall)
	}
	if len(ranked) == 1 {
		only := ranked[0].Genome
		return only, only, fmt.Errorf("%w: need 2 genomes, have 1", ErrPopulationTooSmall)
	}

	count := s.EliteCount
	if count <= 0 || count > len(ranked) {
		count = len(ranked) / 5
		if count < 2 {
			count = 2
		}
	}
	if count > len(ranked) {
		count = len(ranked)
	}

	a := ranked[rng.Intn(count)]
	b := ranked[rng.Intn(count)]
	if b.Fitness > a.Fitness {
		a, b = b, a
	}
	return a.Genome, b.Genome, nil
}

// SelectorFromName maps a config string to a selector.
func SelectorFromName(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{TournamentSize: tournamentSize}, nil
	case "elite":
		return EliteSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}
