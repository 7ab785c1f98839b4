package genome

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"tetrevo/internal/model"
)

func TestIDIsPureFunctionOfWeights(t *testing.T) {
	w := model.Weights{Height: -0.51, Lines: 0.76, Holes: -0.36, Bumpiness: -0.18}

	founder, err := New(w)
	if err != nil {
		t.Fatalf("new founder: %v", err)
	}
	derived, err := New(w, founder)
	if err != nil {
		t.Fatalf("new derived: %v", err)
	}
	if founder.ID != derived.ID {
		t.Fatalf("same weights produced different ids: %s vs %s", founder.ID, derived.ID)
	}
	if ID(w) != founder.ID {
		t.Fatalf("ID() disagrees with New(): %s vs %s", ID(w), founder.ID)
	}

	other := w
	other.Holes += 1e-9
	if ID(other) == ID(w) {
		t.Fatal("distinct weights produced the same id")
	}
}

func TestValidateRejectsNaNAndInf(t *testing.T) {
	cases := []model.Weights{
		{Height: math.NaN()},
		{Lines: math.Inf(1)},
		{Holes: math.Inf(-1)},
		{Bumpiness: math.NaN()},
	}
	for i, w := range cases {
		if err := Validate(w); !errors.Is(err, ErrInvalidGenome) {
			t.Fatalf("case %d: got %v, want ErrInvalidGenome", i, err)
		}
	}
	if err := Validate(model.Weights{Height: -0.5, Lines: 0.7}); err != nil {
		t.Fatalf("valid weights rejected: %v", err)
	}
}

func TestGenerationRules(t *testing.T) {
	founder, err := New(model.Weights{Lines: 1})
	if err != nil {
		t.Fatalf("founder: %v", err)
	}
	if founder.Generation != 0 {
		t.Fatalf("founder generation: got %d, want 0", founder.Generation)
	}
	if founder.ParentIDs != nil {
		t.Fatalf("founder parents: got %v, want none", founder.ParentIDs)
	}

	older := founder
	older.Generation = 3
	child, err := New(model.Weights{Lines: 0.9}, founder, older)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if child.Generation != 4 {
		t.Fatalf("child generation: got %d, want 4", child.Generation)
	}
	if len(child.ParentIDs) != 2 {
		t.Fatalf("child parents: got %d, want 2", len(child.ParentIDs))
	}

	if _, err := New(model.Weights{}, founder, founder, founder); !errors.Is(err, ErrInvalidGenome) {
		t.Fatalf("three parents: got %v, want ErrInvalidGenome", err)
	}
}

func TestBlendBoundaries(t *testing.T) {
	a := model.Weights{Height: -0.5, Lines: 0.8, Holes: -0.3, Bumpiness: -0.2}
	b := model.Weights{Height: 0.1, Lines: -0.4, Holes: 0.6, Bumpiness: 0.9}

	if got := Blend(a, b, 1.0); got != a {
		t.Fatalf("alpha=1.0: got %+v, want parent1 %+v", got, a)
	}
	if got := Blend(a, b, 0.0); got != b {
		t.Fatalf("alpha=0.0: got %+v, want parent2 %+v", got, b)
	}

	mid := Blend(a, b, 0.6)
	want := a.Height*0.6 + b.Height*0.4
	if math.Abs(mid.Height-want) > 1e-12 {
		t.Fatalf("alpha=0.6 height: got %v, want %v", mid.Height, want)
	}
}

func TestPerturbZeroStrengthIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := model.Weights{Height: -0.5, Lines: 0.8, Holes: -0.3, Bumpiness: -0.2}
	if got := Perturb(w, rng, 0, 1.0); got != w {
		t.Fatalf("zero strength changed weights: %+v", got)
	}
	if got := Perturb(w, rng, 0.1, 0); got != w {
		t.Fatalf("zero rate changed weights: %+v", got)
	}
}

func TestPerturbStaysWithinStrength(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	w := model.Weights{Height: 1, Lines: 1, Holes: 1, Bumpiness: 1}
	for i := 0; i < 200; i++ {
		got := Perturb(w, rng, 0.1, 1.0)
		deltas := []float64{got.Height - 1, got.Lines - 1, got.Holes - 1, got.Bumpiness - 1}
		for j, d := range deltas {
			if math.Abs(d) > 0.1 {
				t.Fatalf("iteration %d field %d: delta %v exceeds strength", i, j, d)
			}
		}
	}
}

func TestRecordGameFoldsScores(t *testing.T) {
	g, err := New(model.Weights{Lines: 1})
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}

	RecordGame(&g, -5)
	if g.Fitness.BestScore != -5 || g.Fitness.GamesPlayed != 1 {
		t.Fatalf("after first game: %+v", g.Fitness)
	}
	RecordGame(&g, 15)
	RecordGame(&g, 5)
	if g.Fitness.BestScore != 15 {
		t.Fatalf("best score: got %v, want 15", g.Fitness.BestScore)
	}
	if g.Fitness.GamesPlayed != 3 {
		t.Fatalf("games played: got %d, want 3", g.Fitness.GamesPlayed)
	}
	if math.Abs(g.Fitness.MeanScore-5) > 1e-12 {
		t.Fatalf("mean score: got %v, want 5", g.Fitness.MeanScore)
	}
	RecordGame(&g, 0)
	if g.Fitness.BestScore != 15 {
		t.Fatal("best score decreased")
	}
}

func TestCloneCopiesParentSlice(t *testing.T) {
	founder, _ := New(model.Weights{Lines: 1})
	child, err := New(model.Weights{Lines: 0.5}, founder)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	c := Clone(child)
	c.ParentIDs[0] = "mutated"
	if child.ParentIDs[0] == "mutated" {
		t.Fatal("clone shares parent slice with source")
	}
}

func TestRandomFoundersAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		w := Random(rng, 1.0)
		if err := Validate(w); err != nil {
			t.Fatalf("random founder %d invalid: %v", i, err)
		}
		if math.Abs(w.Height) > 1 || math.Abs(w.Lines) > 1 || math.Abs(w.Holes) > 1 || math.Abs(w.Bumpiness) > 1 {
			t.Fatalf("random founder %d out of scale: %+v", i, w)
		}
	}
}
