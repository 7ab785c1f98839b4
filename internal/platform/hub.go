// Package platform wires arenas, storage and the evolution loop into one
// long-lived hub. The hub owns run-control channels and persists every run's
// artifacts after the loop finishes.
package platform

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"tetrevo/internal/arena"
	"tetrevo/internal/evo"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
	"tetrevo/internal/storage"
	"tetrevo/internal/tuning"
)

type Config struct {
	Store  storage.Store
	Arenas []arena.Arena
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

const topGenomeCount = 5

type EvolutionConfig struct {
	RunID            string
	ArenaName        string
	PopulationSize   int
	Generations      int
	EliteCount       int
	Workers          int
	Seed             int64
	TournamentSize   int
	CrossoverAlpha   float64
	AlphaJitter      float64
	MutationStrength float64
	MutationRate     float64
	FounderScale     float64
	Selector         evo.Selector
	Postprocessor    evo.FitnessPostprocessor
	Tuner            tuning.Tuner
	TuneAttempts     int
	TunePolicy       tuning.AttemptPolicy
	Control          chan evo.MonitorCommand
	Initial          []model.Genome
}

type EvolutionResult struct {
	RunID                 string
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	BestFinalFitness      float64
	TopFinal              []evo.ScoredGenome
	Lineage               []model.LineageRecord
	Stopped               bool
}

type Hub struct {
	store storage.Store

	mu sync.RWMutex

	arenas         map[string]arena.Arena
	runs           map[string]chan evo.MonitorCommand
	started        bool
	lastStopReason StopReason

	config Config
}

var (
	defaultHubMu sync.Mutex
	defaultHub   *Hub
)

func NewHub(cfg Config) *Hub {
	return &Hub{
		store:          cfg.Store,
		arenas:         make(map[string]arena.Arena),
		runs:           make(map[string]chan evo.MonitorCommand),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Hub, error) {
	defaultHubMu.Lock()
	defer defaultHubMu.Unlock()

	if defaultHub != nil && defaultHub.Started() {
		return defaultHub, nil
	}

	h := NewHub(cfg)
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	defaultHub = h
	return defaultHub, nil
}

func Default() (*Hub, bool) {
	defaultHubMu.Lock()
	h := defaultHub
	defaultHubMu.Unlock()

	if h == nil || !h.Started() {
		return nil, false
	}
	return h, true
}

func StopDefault(reason StopReason) error {
	defaultHubMu.Lock()
	h := defaultHub
	defaultHubMu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.StopWithReason(reason); err != nil {
		return err
	}
	defaultHubMu.Lock()
	if defaultHub == h {
		defaultHub = nil
	}
	defaultHubMu.Unlock()
	return nil
}

func (h *Hub) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}

	for i, a := range h.config.Arenas {
		if a == nil {
			h.arenas = make(map[string]arena.Arena)
			return fmt.Errorf("arena is nil at index %d", i)
		}
		name := a.Name()
		if name == "" {
			h.arenas = make(map[string]arena.Arena)
			return fmt.Errorf("arena name is required at index %d", i)
		}
		if _, exists := h.arenas[name]; exists {
			h.arenas = make(map[string]arena.Arena)
			return fmt.Errorf("duplicate arena: %s", name)
		}
		h.arenas[name] = a
	}

	h.started = true
	return nil
}

func (h *Hub) Reset(ctx context.Context) error {
	_ = h.StopWithReason(StopReasonShutdown)
	if resetter, ok := h.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return h.Init(ctx)
}

func (h *Hub) RegisterArena(a arena.Arena) error {
	if a == nil {
		return fmt.Errorf("arena is nil")
	}
	name := a.Name()
	if name == "" {
		return fmt.Errorf("arena name is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return fmt.Errorf("hub is not initialized")
	}
	h.arenas[name] = a
	return nil
}

func (h *Hub) GetArena(name string) (arena.Arena, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.arenas[name]
	return a, ok
}

func (h *Hub) Stop() {
	_ = h.StopWithReason(StopReasonNormal)
}

func (h *Hub) Shutdown() {
	_ = h.StopWithReason(StopReasonShutdown)
}

func (h *Hub) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
	default:
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, control := range h.runs {
		select {
		case control <- evo.CommandStop:
		default:
		}
	}

	h.started = false
	h.lastStopReason = reason
	h.arenas = make(map[string]arena.Arena)
	h.runs = make(map[string]chan evo.MonitorCommand)
	return nil
}

func (h *Hub) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.ArenaName == "" {
		return EvolutionResult{}, fmt.Errorf("arena name is required")
	}
	if cfg.PopulationSize <= 0 {
		return EvolutionResult{}, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	h.mu.RLock()
	targetArena, ok := h.arenas[cfg.ArenaName]
	started := h.started
	h.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("hub is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("arena not registered: %s", cfg.ArenaName)
	}

	initial := cfg.Initial
	if len(initial) == 0 {
		founders, err := randomFounders(cfg.PopulationSize, cfg.Seed, cfg.FounderScale)
		if err != nil {
			return EvolutionResult{}, err
		}
		initial = founders
	}
	if len(initial) > cfg.PopulationSize {
		return EvolutionResult{}, fmt.Errorf("initial population mismatch: got=%d cap=%d", len(initial), cfg.PopulationSize)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("evo:%s:%d", cfg.ArenaName, cfg.Seed)
	}
	control := cfg.Control
	if control == nil {
		control = make(chan evo.MonitorCommand, 16)
	}
	if err := h.registerRunControl(runID, control); err != nil {
		return EvolutionResult{}, err
	}
	defer h.unregisterRunControl(runID)

	selector := cfg.Selector
	if selector == nil {
		selector = evo.TournamentSelector{TournamentSize: cfg.TournamentSize}
	}

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Arena:          targetArena,
		PopulationSize: cfg.PopulationSize,
		Generations:    cfg.Generations,
		EliteCount:     cfg.EliteCount,
		Workers:        cfg.Workers,
		Seed:           cfg.Seed,
		Selector:       selector,
		Crossover:      evo.BlendCrossover{Alpha: cfg.CrossoverAlpha, Jitter: cfg.AlphaJitter},
		Mutation:       evo.UniformPerturb{Strength: cfg.MutationStrength, Rate: cfg.MutationRate},
		Postprocessor:  cfg.Postprocessor,
		Tuner:          cfg.Tuner,
		TuneAttempts:   cfg.TuneAttempts,
		TunePolicy:     cfg.TunePolicy,
		Control:        control,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return EvolutionResult{}, err
	}

	if err := h.persistRun(ctx, runID, cfg.ArenaName, result); err != nil {
		return EvolutionResult{}, err
	}

	bestFinal := 0.0
	topFinal := []evo.ScoredGenome{}
	if len(result.FinalPopulation) > 0 {
		bestFinal = result.FinalPopulation[0].Fitness
		count := topGenomeCount
		if len(result.FinalPopulation) < count {
			count = len(result.FinalPopulation)
		}
		topFinal = append(topFinal, result.FinalPopulation[:count]...)
	}

	return EvolutionResult{
		RunID:                 runID,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		BestFinalFitness:      bestFinal,
		TopFinal:              topFinal,
		Lineage:               result.Lineage,
		Stopped:               result.Stopped,
	}, nil
}

func (h *Hub) persistRun(ctx context.Context, runID, arenaName string, result evo.RunResult) error {
	genomeIDs := make([]string, 0, len(result.FinalPopulation))
	for _, scored := range result.FinalPopulation {
		if err := h.store.SaveGenome(ctx, scored.Genome); err != nil {
			return err
		}
		genomeIDs = append(genomeIDs, scored.Genome.ID)
	}

	population := model.Population{
		VersionedRecord: model.NewVersionedRecord(),
		ID:              runID,
		GenomeIDs:       genomeIDs,
		Generation:      len(result.BestByGeneration),
	}
	if err := h.store.SavePopulation(ctx, population); err != nil {
		return err
	}
	if err := h.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return err
	}
	if err := h.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return err
	}
	if err := h.store.SaveLineage(ctx, runID, result.Lineage); err != nil {
		return err
	}

	top := make([]model.TopGenomeRecord, 0, topGenomeCount)
	for i, scored := range result.FinalPopulation {
		if i >= topGenomeCount {
			break
		}
		top = append(top, model.TopGenomeRecord{
			Rank:    i + 1,
			Fitness: scored.Fitness,
			Genome:  scored.Genome,
		})
	}
	if err := h.store.SaveTopGenomes(ctx, runID, top); err != nil {
		return err
	}

	bestFinal := 0.0
	if len(result.FinalPopulation) > 0 {
		bestFinal = result.FinalPopulation[0].Fitness
	}
	return h.updateArenaSummary(ctx, arenaName, bestFinal)
}

// updateArenaSummary keeps the per-arena record monotone: a worse run never
// lowers the recorded best.
func (h *Hub) updateArenaSummary(ctx context.Context, arenaName string, fitness float64) error {
	summary, ok, err := h.store.GetArenaSummary(ctx, arenaName)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.ArenaSummary{
			VersionedRecord: model.NewVersionedRecord(),
			Name:            arenaName,
		}
		if a, registered := h.GetArena(arenaName); registered {
			summary.Description = a.Description()
		}
	}
	if fitness > summary.BestScore {
		summary.BestScore = fitness
	}
	return h.store.SaveArenaSummary(ctx, summary)
}

func randomFounders(count int, seed int64, scale float64) ([]model.Genome, error) {
	if scale <= 0 {
		scale = 1.0
	}
	rng := rand.New(rand.NewSource(seed))
	founders := make([]model.Genome, 0, count)
	for i := 0; i < count; i++ {
		g, err := genome.New(genome.Random(rng, scale))
		if err != nil {
			return nil, err
		}
		founders = append(founders, g)
	}
	return founders, nil
}

func sortedStrings(names []string) []string {
	sort.Strings(names)
	return names
}

// SuperviseRun executes an evolution run in the background and restarts it
// on failure. StopRun or Supervisor.Stop ends it.
func (h *Hub) SuperviseRun(sup *Supervisor, cfg EvolutionConfig) error {
	if sup == nil {
		return fmt.Errorf("supervisor is required")
	}
	name := cfg.RunID
	if name == "" {
		name = fmt.Sprintf("evo:%s:%d", cfg.ArenaName, cfg.Seed)
		cfg.RunID = name
	}
	return sup.Start(name, RestartTransient, func(ctx context.Context) error {
		_, err := h.RunEvolution(ctx, cfg)
		return err
	})
}

func (h *Hub) PauseRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandPause)
}

func (h *Hub) ContinueRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandContinue)
}

func (h *Hub) StopRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandStop)
}

func (h *Hub) registerRunControl(runID string, control chan evo.MonitorCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return fmt.Errorf("hub is not initialized")
	}
	if _, exists := h.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	h.runs[runID] = control
	return nil
}

func (h *Hub) unregisterRunControl(runID string) {
	if runID == "" {
		return
	}
	h.mu.Lock()
	delete(h.runs, runID)
	h.mu.Unlock()
}

func (h *Hub) sendRunCommand(runID string, cmd evo.MonitorCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	h.mu.RLock()
	control, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}

func (h *Hub) RegisteredArenas() []model.ArenaSummary {
	h.mu.RLock()
	names := make([]string, 0, len(h.arenas))
	for name := range h.arenas {
		names = append(names, name)
	}
	h.mu.RUnlock()

	out := make([]model.ArenaSummary, 0, len(names))
	for _, name := range sortedStrings(names) {
		summary, ok, err := h.store.GetArenaSummary(context.Background(), name)
		if err != nil || !ok {
			a, _ := h.GetArena(name)
			summary = model.ArenaSummary{
				VersionedRecord: model.NewVersionedRecord(),
				Name:            name,
			}
			if a != nil {
				summary.Description = a.Description()
			}
		}
		out = append(out, summary)
	}
	return out
}

func (h *Hub) ActiveRuns() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.runs))
	for name := range h.runs {
		names = append(names, name)
	}
	return sortedStrings(names)
}

func (h *Hub) Store() storage.Store {
	return h.store
}

func (h *Hub) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

func (h *Hub) LastStopReason() StopReason {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastStopReason
}
