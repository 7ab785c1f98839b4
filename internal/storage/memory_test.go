package storage

import (
	"context"
	"testing"

	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

func testGenome(t *testing.T) model.Genome {
	t.Helper()
	g, err := genome.New(model.Weights{Height: -0.51, Lines: 0.76, Holes: -0.36, Bumpiness: -0.18})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestMemoryStoreGenomeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	g := testGenome(t)
	if err := store.SaveGenome(ctx, g); err != nil {
		t.Fatalf("SaveGenome: %v", err)
	}
	got, ok, err := store.GetGenome(ctx, g.ID)
	if err != nil || !ok {
		t.Fatalf("GetGenome: ok=%v err=%v", ok, err)
	}
	if got.Weights != g.Weights {
		t.Fatalf("weights = %+v, want %+v", got.Weights, g.Weights)
	}

	if _, ok, err := store.GetGenome(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing genome: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStorePopulationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	pop := model.Population{
		VersionedRecord: model.NewVersionedRecord(),
		ID:              "pop-1",
		GenomeIDs:       []string{"a", "b"},
		Generation:      3,
	}
	if err := store.SavePopulation(ctx, pop); err != nil {
		t.Fatalf("SavePopulation: %v", err)
	}
	got, ok, err := store.GetPopulation(ctx, "pop-1")
	if err != nil || !ok {
		t.Fatalf("GetPopulation: ok=%v err=%v", ok, err)
	}
	if got.Generation != 3 || len(got.GenomeIDs) != 2 {
		t.Fatalf("unexpected population: %+v", got)
	}

	if err := store.DeletePopulation(ctx, "pop-1"); err != nil {
		t.Fatalf("DeletePopulation: %v", err)
	}
	if _, ok, _ := store.GetPopulation(ctx, "pop-1"); ok {
		t.Fatal("population survived deletion")
	}
}

func TestMemoryStoreRunArtifacts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	history := []float64{10, 25, 25, 40}
	if err := store.SaveFitnessHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("SaveFitnessHistory: %v", err)
	}
	got, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetFitnessHistory: ok=%v err=%v", ok, err)
	}
	got[0] = -1
	again, _, _ := store.GetFitnessHistory(ctx, "run-1")
	if again[0] != 10 {
		t.Fatal("stored history aliased the returned slice")
	}

	diags := []model.GenerationDiagnostics{{Generation: 0, BestFitness: 10}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diags); err != nil {
		t.Fatalf("SaveGenerationDiagnostics: %v", err)
	}
	gotDiags, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(gotDiags) != 1 {
		t.Fatalf("GetGenerationDiagnostics: %v %v %d", ok, err, len(gotDiags))
	}

	g := testGenome(t)
	top := []model.TopGenomeRecord{{Rank: 1, Fitness: 40, Genome: g}}
	if err := store.SaveTopGenomes(ctx, "run-1", top); err != nil {
		t.Fatalf("SaveTopGenomes: %v", err)
	}
	gotTop, ok, err := store.GetTopGenomes(ctx, "run-1")
	if err != nil || !ok || gotTop[0].Genome.ID != g.ID {
		t.Fatalf("GetTopGenomes: %v %v %+v", ok, err, gotTop)
	}

	lineage := []model.LineageRecord{{
		VersionedRecord: model.NewVersionedRecord(),
		GenomeID:        g.ID,
		Operation:       "seed",
	}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("SaveLineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok || gotLineage[0].Operation != "seed" {
		t.Fatalf("GetLineage: %v %v %+v", ok, err, gotLineage)
	}

	if _, ok, _ := store.GetFitnessHistory(ctx, "run-2"); ok {
		t.Fatal("unknown run reported history")
	}
}

func TestMemoryStoreArenaSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	summary := model.ArenaSummary{
		VersionedRecord: model.NewVersionedRecord(),
		Name:            "standard",
		Description:     "full boards, no garbage",
		BestScore:       1234,
	}
	if err := store.SaveArenaSummary(ctx, summary); err != nil {
		t.Fatalf("SaveArenaSummary: %v", err)
	}
	got, ok, err := store.GetArenaSummary(ctx, "standard")
	if err != nil || !ok {
		t.Fatalf("GetArenaSummary: ok=%v err=%v", ok, err)
	}
	if got.BestScore != 1234 {
		t.Fatalf("best score = %v, want 1234", got.BestScore)
	}
}
