package evo

import (
	"context"
	"errors"
	"math"
	"testing"

	"tetrevo/internal/arena"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
)

// oracleArena reports the lines weight itself as fitness. It gives tests a
// deterministic fitness landscape with a known ordering.
type oracleArena struct{}

func (oracleArena) Name() string        { return "oracle" }
func (oracleArena) Description() string { return "fitness equals the lines weight" }

func (oracleArena) Evaluate(ctx context.Context, w model.Weights, seed int64) (arena.Fitness, arena.Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	return arena.Fitness(w.Lines), arena.Trace{"games": 1}, nil
}

func founders(t *testing.T, lines ...float64) []model.Genome {
	t.Helper()
	out := make([]model.Genome, 0, len(lines))
	for _, l := range lines {
		g, err := genome.New(model.Weights{Height: 0.5, Lines: l, Holes: 0.35, Bumpiness: 0.18})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out = append(out, g)
	}
	return out
}

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Arena:          oracleArena{},
		PopulationSize: 6,
		Generations:    10,
		EliteCount:     2,
		Workers:        3,
		Seed:           42,
		Mutation:       UniformPerturb{Strength: 0.1, Rate: 0.2},
	}
}

func TestMonitorBestNeverDecreases(t *testing.T) {
	m, err := NewPopulationMonitor(testMonitorConfig())
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	result, err := m.Run(context.Background(), founders(t, 0.1, 0.3, 0.5, 0.7, 0.2, 0.4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.BestByGeneration) != 10 {
		t.Fatalf("generations run = %d, want 10", len(result.BestByGeneration))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best fitness decreased at generation %d: %v -> %v",
				i, result.BestByGeneration[i-1], result.BestByGeneration[i])
		}
	}
	if result.FinalPopulation[0].Fitness < 0.7 {
		t.Fatalf("final best %v below the best founder", result.FinalPopulation[0].Fitness)
	}
}

func TestMonitorDeterministicAcrossRuns(t *testing.T) {
	run := func() RunResult {
		m, err := NewPopulationMonitor(testMonitorConfig())
		if err != nil {
			t.Fatalf("NewPopulationMonitor: %v", err)
		}
		result, err := m.Run(context.Background(), founders(t, 0.1, 0.3, 0.5, 0.7, 0.2, 0.4))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result
	}

	a, b := run(), run()
	if len(a.BestByGeneration) != len(b.BestByGeneration) {
		t.Fatalf("run lengths differ: %d vs %d", len(a.BestByGeneration), len(b.BestByGeneration))
	}
	for i := range a.BestByGeneration {
		if a.BestByGeneration[i] != b.BestByGeneration[i] {
			t.Fatalf("generation %d differs: %v vs %v", i, a.BestByGeneration[i], b.BestByGeneration[i])
		}
	}
	if a.FinalPopulation[0].Genome.ID != b.FinalPopulation[0].Genome.ID {
		t.Fatalf("final best genomes differ: %s vs %s",
			a.FinalPopulation[0].Genome.ID, b.FinalPopulation[0].Genome.ID)
	}
}

func TestMonitorSingleGenomeCloneFallback(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.PopulationSize = 3
	cfg.EliteCount = 1
	cfg.Generations = 2
	cfg.Mutation = UniformPerturb{Strength: 0.1, Rate: 1}

	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	result, err := m.Run(context.Background(), founders(t, 0.5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.GenerationDiagnostics[0].CloneFallbacks != 2 {
		t.Fatalf("clone fallbacks = %d, want 2", result.GenerationDiagnostics[0].CloneFallbacks)
	}
}

func TestMonitorSkipsInvalidGenomes(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.PopulationSize = 4
	cfg.Generations = 1

	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}

	initial := founders(t, 0.1, 0.3, 0.5)
	bad := model.Genome{
		VersionedRecord: model.NewVersionedRecord(),
		ID:              "corrupt",
		Weights:         model.Weights{Height: math.NaN()},
	}
	initial = append(initial, bad)

	result, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	diag := result.GenerationDiagnostics[0]
	if diag.SkippedInvalid != 1 {
		t.Fatalf("skipped invalid = %d, want 1", diag.SkippedInvalid)
	}
	for _, item := range result.FinalPopulation {
		if item.Genome.ID == "corrupt" {
			t.Fatal("invalid genome survived into the ranking")
		}
	}
}

func TestMonitorStopCommand(t *testing.T) {
	control := make(chan MonitorCommand, 3)
	control <- CommandPause
	control <- CommandContinue
	control <- CommandStop

	cfg := testMonitorConfig()
	cfg.Control = control

	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	result, err := m.Run(context.Background(), founders(t, 0.1, 0.2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Stopped {
		t.Fatal("expected the run to report an external stop")
	}
	if len(result.BestByGeneration) != 0 {
		t.Fatalf("stopped before any generation, got %d", len(result.BestByGeneration))
	}
}

func TestMonitorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := NewPopulationMonitor(testMonitorConfig())
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	if _, err := m.Run(ctx, founders(t, 0.1, 0.2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMonitorLineageRecords(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.Generations = 2

	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	initial := founders(t, 0.1, 0.3, 0.5, 0.7, 0.2, 0.4)
	result, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ops := make(map[string]int)
	for _, rec := range result.Lineage {
		ops[rec.Operation]++
	}
	if ops["seed"] != len(initial) {
		t.Fatalf("seed records = %d, want %d", ops["seed"], len(initial))
	}
	if ops["elite"] == 0 {
		t.Fatal("expected elite lineage records")
	}
	if ops["crossover+mutate"] == 0 {
		t.Fatal("expected crossover+mutate lineage records")
	}
}

func TestMonitorDefaultsZeroOperators(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.Mutation = UniformPerturb{}
	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	if got := m.cfg.Crossover; got.Alpha != 0.6 {
		t.Fatalf("crossover alpha = %v, want 0.6", got.Alpha)
	}
	want := UniformPerturb{Strength: 0.1, Rate: 0.1}
	if m.cfg.Mutation != want {
		t.Fatalf("mutation = %+v, want %+v", m.cfg.Mutation, want)
	}

	// Rate 0 with a positive strength is an explicit opt-out, not a zero
	// value, and must survive defaulting.
	cfg.Mutation = UniformPerturb{Strength: 0.2}
	m, err = NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	if m.cfg.Mutation.Rate != 0 || m.cfg.Mutation.Strength != 0.2 {
		t.Fatalf("mutation = %+v, want disabled rate preserved", m.cfg.Mutation)
	}
}

func TestMonitorRejectsBadConfig(t *testing.T) {
	if _, err := NewPopulationMonitor(MonitorConfig{PopulationSize: 4}); err == nil {
		t.Fatal("expected an error without an arena")
	}
	if _, err := NewPopulationMonitor(MonitorConfig{Arena: oracleArena{}}); err == nil {
		t.Fatal("expected an error for a zero population size")
	}
	if _, err := NewPopulationMonitor(MonitorConfig{Arena: oracleArena{}, PopulationSize: 2, EliteCount: 3}); err == nil {
		t.Fatal("expected an error for elite count above the population size")
	}

	m, err := NewPopulationMonitor(testMonitorConfig())
	if err != nil {
		t.Fatalf("NewPopulationMonitor: %v", err)
	}
	if _, err := m.Run(context.Background(), nil); !errors.Is(err, ErrPopulationTooSmall) {
		t.Fatalf("expected ErrPopulationTooSmall for an empty seed population, got %v", err)
	}
	excess := founders(t, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7)
	if _, err := m.Run(context.Background(), excess); err == nil {
		t.Fatal("expected an error when the seed population exceeds the cap")
	}
}
