//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "tetrevo.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestSQLiteGenomeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	g, err := genome.New(model.Weights{Height: -0.51, Lines: 0.76, Holes: -0.36, Bumpiness: -0.18})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
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

	// Upsert keeps a single row per genome.
	g.Fitness.BestScore = 900
	if err := store.SaveGenome(ctx, g); err != nil {
		t.Fatalf("SaveGenome upsert: %v", err)
	}
	got, _, err = store.GetGenome(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGenome after upsert: %v", err)
	}
	if got.Fitness.BestScore != 900 {
		t.Fatalf("best score = %v, want 900", got.Fitness.BestScore)
	}
}

func TestSQLiteRunArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{1, 2, 3}); err != nil {
		t.Fatalf("SaveFitnessHistory: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 3 {
		t.Fatalf("GetFitnessHistory: %v %v %v", ok, err, history)
	}

	diags := []model.GenerationDiagnostics{{Generation: 0, BestFitness: 3, UniqueGenomes: 4}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diags); err != nil {
		t.Fatalf("SaveGenerationDiagnostics: %v", err)
	}
	gotDiags, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || gotDiags[0].UniqueGenomes != 4 {
		t.Fatalf("GetGenerationDiagnostics: %v %v %+v", ok, err, gotDiags)
	}

	if _, ok, err := store.GetLineage(ctx, "run-1"); err != nil || ok {
		t.Fatalf("lineage should be absent: ok=%v err=%v", ok, err)
	}
}

func TestSQLitePopulationDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	pop := model.Population{
		VersionedRecord: model.NewVersionedRecord(),
		ID:              "pop-1",
		GenomeIDs:       []string{"a"},
	}
	if err := store.SavePopulation(ctx, pop); err != nil {
		t.Fatalf("SavePopulation: %v", err)
	}
	if err := store.DeletePopulation(ctx, "pop-1"); err != nil {
		t.Fatalf("DeletePopulation: %v", err)
	}
	if _, ok, _ := store.GetPopulation(ctx, "pop-1"); ok {
		t.Fatal("population survived deletion")
	}
}
