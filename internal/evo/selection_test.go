package evo

import (
	"errors"
	"math/rand"
	"testing"

	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

func scoredSet(t *testing.T, fitnesses ...float64) []ScoredGenome {
	t.Helper()
	out := make([]ScoredGenome, 0, len(fitnesses))
	for i, f := range fitnesses {
		g, err := genome.New(model.Weights{
			Height:    -0.5 - float64(i)*0.01,
			Lines:     0.7,
			Holes:     -0.3,
			Bumpiness: -0.2,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out = append(out, ScoredGenome{Genome: g, Fitness: f})
	}
	return out
}

func TestTournamentReturnsFitterParentFirst(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ranked := scoredSet(t, 90, 70, 50, 30, 10)
	selector := TournamentSelector{TournamentSize: 3}

	fitnessByID := make(map[string]float64, len(ranked))
	for _, item := range ranked {
		fitnessByID[item.Genome.ID] = item.Fitness
	}

	for i := 0; i < 200; i++ {
		first, second, err := selector.PickParents(rng, ranked)
		if err != nil {
			t.Fatalf("PickParents: %v", err)
		}
		if fitnessByID[first.ID] < fitnessByID[second.ID] {
			t.Fatalf("iteration %d: parents out of order: %v < %v", i, fitnessByID[first.ID], fitnessByID[second.ID])
		}
	}
}

func TestTournamentSingleGenomeDegradesGracefully(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ranked := scoredSet(t, 42)

	first, second, err := TournamentSelector{}.PickParents(rng, ranked)
	if !errors.Is(err, ErrPopulationTooSmall) {
		t.Fatalf("expected ErrPopulationTooSmall, got %v", err)
	}
	if first.ID != ranked[0].Genome.ID || second.ID != ranked[0].Genome.ID {
		t.Fatalf("expected the lone genome as both parents")
	}
}

func TestTournamentEmptyPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, _, err := (TournamentSelector{}).PickParents(rng, nil); !errors.Is(err, ErrPopulationTooSmall) {
		t.Fatalf("expected ErrPopulationTooSmall, got %v", err)
	}
}

func TestTournamentNeedsRandomSource(t *testing.T) {
	ranked := scoredSet(t, 2, 1)
	if _, _, err := (TournamentSelector{}).PickParents(nil, ranked); err == nil {
		t.Fatal("expected an error without a random source")
	}
}

func TestEliteSelectorStaysInTopSet(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ranked := scoredSet(t, 100, 90, 80, 70, 60, 50, 40, 30, 20, 10)
	selector := EliteSelector{EliteCount: 2}

	topIDs := map[string]bool{
		ranked[0].Genome.ID: true,
		ranked[1].Genome.ID: true,
	}
	for i := 0; i < 100; i++ {
		first, second, err := selector.PickParents(rng, ranked)
		if err != nil {
			t.Fatalf("PickParents: %v", err)
		}
		if !topIDs[first.ID] || !topIDs[second.ID] {
			t.Fatalf("iteration %d: parent outside the elite set", i)
		}
	}
}

func TestSelectorFromName(t *testing.T) {
	sel, err := SelectorFromName("", 0)
	if err != nil {
		t.Fatalf("default selector: %v", err)
	}
	if sel.Name() != "tournament" {
		t.Fatalf("default selector = %q, want tournament", sel.Name())
	}

	sel, err = SelectorFromName("elite", 0)
	if err != nil {
		t.Fatalf("elite selector: %v", err)
	}
	if sel.Name() != "elite" {
		t.Fatalf("selector = %q, want elite", sel.Name())
	}

	if _, err := SelectorFromName("roulette", 0); err == nil {
		t.Fatal("expected an error for an unsupported strategy")
	}
}
