package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"tetrevo/internal/arena"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
	"tetrevo/internal/tuning"
)

// MonitorCommand is an external control signal for a running evolution loop.
type MonitorCommand int

const (
	CommandPause MonitorCommand = iota + 1
	CommandContinue
	CommandStop
)

// ScoredGenome pairs a genome with its measured (possibly postprocessed)
// fitness for one generation.
type ScoredGenome struct {
	Genome  model.Genome
	Fitness float64
	Trace   arena.Trace
}

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []ScoredGenome
	Lineage               []model.LineageRecord
	Stopped               bool
}

// MonitorConfig drives one evolution run. Generations <= 0 runs the loop
// open-ended until the control channel stops it or the context is cancelled;
// evolutionary improvement has no natural terminal state.
//
// Zero-valued operator fields take defaults: Crossover.Alpha 0 becomes 0.6
// and an all-zero Mutation becomes {Strength: 0.1, Rate: 0.1}. Mutation can
// still be disabled outright by setting a positive Strength with Rate 0.
type MonitorConfig struct {
	Arena            arena.Arena
	PopulationSize   int
	Generations      int
	EliteCount       int
	Workers          int
	Seed             int64
	Selector         Selector
	Crossover        BlendCrossover
	Mutation         UniformPerturb
	Postprocessor    FitnessPostprocessor
	Tuner            tuning.Tuner
	TuneAttempts     int
	TunePolicy       tuning.AttemptPolicy
	Control          <-chan MonitorCommand
	OnGeneration     func(gen int, diag model.GenerationDiagnostics)
}

// PopulationMonitor owns one population and drives it through generations:
// arena evaluation, tournament selection, blend crossover, bounded mutation,
// replacement with elitism. Fitness records are merged back by this single
// driver after each generation's worker batch completes.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Arena == nil {
		return nil, fmt.Errorf("arena is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size]")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: 3}
	}
	if cfg.Crossover.Alpha == 0 {
		cfg.Crossover.Alpha = 0.6
	}
	if cfg.Mutation.Strength == 0 && cfg.Mutation.Rate == 0 {
		cfg.Mutation = UniformPerturb{Strength: 0.1, Rate: 0.1}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	if cfg.Tuner != nil && cfg.TuneAttempts <= 0 {
		cfg.TuneAttempts = 4
	}
	if cfg.TunePolicy == nil {
		cfg.TunePolicy = tuning.FixedAttemptPolicy{}
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run evolves the initial population. The initial slice is owned by the
// caller and copied; the returned final population is ranked fittest-first.
func (m *PopulationMonitor) Run(ctx context.Context, initial []model.Genome) (RunResult, error) {
	if len(initial) == 0 {
		return RunResult{}, fmt.Errorf("%w: initial population is empty", ErrPopulationTooSmall)
	}
	if len(initial) > m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population exceeds cap: got=%d cap=%d", len(initial), m.cfg.PopulationSize)
	}

	population := make([]model.Genome, len(initial))
	for i, g := range initial {
		population[i] = genome.Clone(g)
	}

	result := RunResult{
		BestByGeneration:      make([]float64, 0, max(m.cfg.Generations, 0)),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, max(m.cfg.Generations, 0)),
	}
	for _, g := range population {
		result.Lineage = append(result.Lineage, lineageRecord(g, "seed"))
	}

	for gen := 0; m.cfg.Generations <= 0 || gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		stop, err := m.waitControl(ctx)
		if err != nil {
			return RunResult{}, err
		}
		if stop {
			result.Stopped = true
			break
		}

		scored, skipped, err := m.evaluatePopulation(ctx, population, gen)
		if err != nil {
			return RunResult{}, err
		}
		if len(scored) == 0 {
			return RunResult{}, fmt.Errorf("%w: no valid genomes left to evaluate", genome.ErrInvalidGenome)
		}

		if m.cfg.Tuner != nil {
			inputs := make(map[string]struct{}, len(population))
			for _, g := range population {
				inputs[g.ID] = struct{}{}
			}
			for _, item := range scored {
				if _, known := inputs[item.Genome.ID]; !known {
					result.Lineage = append(result.Lineage, lineageRecord(item.Genome, "tune"))
				}
			}
		}

		// Single serialization point for fitness records: the driver folds
		// game outcomes into each genome after all workers are done.
		for i := range scored {
			genome.RecordGame(&scored[i].Genome, scored[i].Fitness)
		}

		scored = m.cfg.Postprocessor.Process(scored)
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Fitness > scored[j].Fitness
		})

		diag := summarizeGeneration(scored, gen, skipped)
		result.FinalPopulation = scored
		result.BestByGeneration = append(result.BestByGeneration, scored[0].Fitness)

		next, lineage, fallbacks, err := m.nextGeneration(ctx, scored, gen)
		if err != nil {
			return RunResult{}, err
		}
		diag.CloneFallbacks = fallbacks
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
		if m.cfg.OnGeneration != nil {
			m.cfg.OnGeneration(gen, diag)
		}
		result.Lineage = append(result.Lineage, lineage...)
		population = next
	}

	return result, nil
}

// waitControl drains pending commands; on pause it blocks until continue or
// stop. Returns true when the loop should stop.
func (m *PopulationMonitor) waitControl(ctx context.Context) (bool, error) {
	if m.cfg.Control == nil {
		return false, nil
	}
	paused := false
	for {
		if paused {
			select {
			case cmd := <-m.cfg.Control:
				switch cmd {
				case CommandContinue:
					paused = false
				case CommandStop:
					return true, nil
				}
			case <-ctx.Done():
				return false, ctx.Err()
			}
			continue
		}
		select {
		case cmd := <-m.cfg.Control:
			switch cmd {
			case CommandPause:
				paused = true
			case CommandStop:
				return true, nil
			}
		default:
			return false, nil
		}
	}
}

func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []model.Genome, generation int) ([]ScoredGenome, int, error) {
	type job struct {
		idx    int
		genome model.Genome
	}
	type result struct {
		idx    int
		scored ScoredGenome
		err    error
	}

	// Invalid genomes are excluded from evaluation, never silently defaulted.
	valid := make([]model.Genome, 0, len(population))
	skipped := 0
	for _, g := range population {
		if err := genome.Validate(g.Weights); err != nil {
			skipped++
			continue
		}
		valid = append(valid, g)
	}
	if len(valid) == 0 {
		return nil, skipped, nil
	}

	workerCount := m.cfg.Workers
	if workerCount > len(valid) {
		workerCount = len(valid)
	}
	evalSeed := m.cfg.Seed + int64(generation)*7919

	jobs := make(chan job)
	results := make(chan result, len(valid))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		workerRNG := rand.New(rand.NewSource(m.cfg.Seed + int64(generation)*31 + int64(w)))
		go func(rng *rand.Rand) {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				scored, err := m.evaluateGenome(ctx, rng, j.genome, evalSeed, generation)
				if err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				results <- result{idx: j.idx, scored: scored}
			}
		}(workerRNG)
	}

	for i := range valid {
		jobs <- job{idx: i, genome: valid[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	scored := make([]ScoredGenome, len(valid))
	for res := range results {
		if res.err != nil {
			return nil, skipped, res.err
		}
		scored[res.idx] = res.scored
	}
	return scored, skipped, nil
}

func (m *PopulationMonitor) evaluateGenome(ctx context.Context, rng *rand.Rand, g model.Genome, evalSeed int64, generation int) (ScoredGenome, error) {
	fitness, trace, err := m.cfg.Arena.Evaluate(ctx, g.Weights, evalSeed)
	if err != nil {
		return ScoredGenome{}, err
	}

	if m.cfg.Tuner != nil {
		attempts := m.cfg.TunePolicy.Attempts(m.cfg.TuneAttempts, generation, m.cfg.Generations)
		evalFn := func(ctx context.Context, w model.Weights) (float64, error) {
			f, _, err := m.cfg.Arena.Evaluate(ctx, w, evalSeed)
			return float64(f), err
		}
		tunedWeights, tunedFitness, err := m.cfg.Tuner.Tune(ctx, rng, g.Weights, float64(fitness), attempts, evalFn)
		if err != nil {
			return ScoredGenome{}, err
		}
		if tunedFitness > float64(fitness) && tunedWeights != g.Weights {
			tuned, err := genome.New(tunedWeights, g)
			if err != nil {
				return ScoredGenome{}, err
			}
			return ScoredGenome{Genome: tuned, Fitness: tunedFitness, Trace: trace}, nil
		}
	}

	return ScoredGenome{Genome: g, Fitness: float64(fitness), Trace: trace}, nil
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, ranked []ScoredGenome, generation int) ([]model.Genome, []model.LineageRecord, int, error) {
	next := make([]model.Genome, 0, m.cfg.PopulationSize)
	lineage := make([]model.LineageRecord, 0, m.cfg.PopulationSize)
	fallbacks := 0

	// Elitism: the best genomes move forward unchanged, so the best-known
	// fitness never decreases across generations.
	eliteCount := m.cfg.EliteCount
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}
	for i := 0; i < eliteCount; i++ {
		elite := genome.Clone(ranked[i].Genome)
		next = append(next, elite)
		lineage = append(lineage, lineageRecord(elite, "elite"))
	}

	for len(next) < m.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}

		parent1, parent2, err := m.cfg.Selector.PickParents(m.rng, ranked)
		if err != nil {
			if !errors.Is(err, ErrPopulationTooSmall) {
				return nil, nil, 0, err
			}
			// Degenerate to asexual reproduction: clone the available genome
			// and mutate it.
			child, record, cloneErr := m.cloneChild(ranked, generation)
			if cloneErr != nil {
				return nil, nil, 0, cloneErr
			}
			fallbacks++
			next = append(next, child)
			lineage = append(lineage, record)
			continue
		}

		weights, err := m.cfg.Crossover.Combine(m.rng, parent1.Weights, parent2.Weights)
		if err != nil {
			return nil, nil, 0, err
		}
		weights, err = m.cfg.Mutation.Mutate(m.rng, weights)
		if err != nil {
			return nil, nil, 0, err
		}
		child, err := genome.New(weights, parent1, parent2)
		if err != nil {
			return nil, nil, 0, err
		}
		next = append(next, child)
		lineage = append(lineage, lineageRecord(child, "crossover+mutate"))
	}

	return next, lineage, fallbacks, nil
}

func (m *PopulationMonitor) cloneChild(ranked []ScoredGenome, generation int) (model.Genome, model.LineageRecord, error) {
	if len(ranked) == 0 {
		return model.Genome{}, model.LineageRecord{}, fmt.Errorf("%w: nothing to clone", ErrPopulationTooSmall)
	}
	parent := ranked[0].Genome
	weights, err := m.cfg.Mutation.Mutate(m.rng, parent.Weights)
	if err != nil {
		return model.Genome{}, model.LineageRecord{}, err
	}
	child, err := genome.New(weights, parent)
	if err != nil {
		return model.Genome{}, model.LineageRecord{}, err
	}
	return child, lineageRecord(child, "clone+mutate"), nil
}

func lineageRecord(g model.Genome, operation string) model.LineageRecord {
	return model.LineageRecord{
		VersionedRecord: model.NewVersionedRecord(),
		GenomeID:        g.ID,
		ParentIDs:       append([]string(nil), g.ParentIDs...),
		Generation:      g.Generation,
		Operation:       operation,
		Weights:         g.Weights,
	}
}

func summarizeGeneration(scored []ScoredGenome, generation, skipped int) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation, SkippedInvalid: skipped}
	}

	fitnesses := make([]float64, 0, len(scored))
	minFitness := scored[0].Fitness
	unique := make(map[string]struct{}, len(scored))
	for _, item := range scored {
		fitnesses = append(fitnesses, item.Fitness)
		if item.Fitness < minFitness {
			minFitness = item.Fitness
		}
		unique[item.Genome.ID] = struct{}{}
	}

	return model.GenerationDiagnostics{
		Generation:     generation,
		BestFitness:    scored[0].Fitness,
		MeanFitness:    stat.Mean(fitnesses, nil),
		MinFitness:     minFitness,
		FitnessStdDev:  stat.StdDev(fitnesses, nil),
		UniqueGenomes:  len(unique),
		SkippedInvalid: skipped,
	}
}
