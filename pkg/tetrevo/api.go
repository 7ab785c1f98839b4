// Package tetrevo is the public client facade. It wires the storage
// backend, the arena hub and the run artifact directories together so
// callers (the CLI included) talk to one Client instead of the
// internal packages.
package tetrevo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"tetrevo/internal/arena"
	"tetrevo/internal/evo"
	"tetrevo/internal/genome"
	"tetrevo/internal/model"
	"tetrevo/internal/platform"
	"tetrevo/internal/stats"
	"tetrevo/internal/storage"
	"tetrevo/internal/tuning"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "tetrevo.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store storage.Store
	hub   *platform.Hub

	runsDir    string
	exportsDir string
}

type RunRequest struct {
	Arena                string
	Population           int
	Generations          int
	Seed                 int64
	Workers              int
	Selection            string
	FitnessPostprocessor string
	TournamentSize       int
	CrossoverAlpha       float64
	AlphaJitter          float64
	MutationStrength     float64
	MutationRate         float64
	FounderScale         float64
	EnableTuning         bool
	TuneAttempts         int
	TuneSteps            int
	TuneStepSize         float64
	TunePolicy           string
	TunePolicyParam      float64
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
	Stopped          bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Arena            string
	Seed             int64
	Population       int
	Generations      int
	TuningEnabled    bool
	FinalBestFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Arena     string
	Directory string
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageItem struct {
	GenomeID   string
	ParentIDs  []string
	Generation int
	Operation  string
	Weights    model.Weights
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopGenomesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ElitesRequest struct {
	Arena string
	Limit int
}

type EliteItem struct {
	GenomeID string
	RunID    string
	Fitness  float64
	Weights  model.Weights
}

type SubmitRequest struct {
	Weights  model.Weights
	Arena    string
	Evaluate bool
	Seed     int64
}

type SubmitSummary struct {
	SubmissionID string
	GenomeID     string
	Duplicate    bool
	Evaluated    bool
	Fitness      float64
}

type PlayRequest struct {
	GenomeID string
	Arena    string
	Seed     int64
	Weights  model.Weights
}

type PlaySummary struct {
	Arena   string
	Fitness float64
	Weights model.Weights
	Trace   map[string]any
}

type ArenaSummaryItem struct {
	Name        string
	Description string
	BestScore   float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureHub(ctx)
	return err
}

func (c *Client) Reset(ctx context.Context) error {
	h, err := c.ensureHub(ctx)
	if err != nil {
		return err
	}
	return h.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Arena == "" {
		req.Arena = "standard"
	}
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.Generations <= 0 {
		req.Generations = 30
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Selection == "" {
		req.Selection = "tournament"
	}
	if req.FitnessPostprocessor == "" {
		req.FitnessPostprocessor = "none"
	}
	if req.TournamentSize <= 0 {
		req.TournamentSize = 3
	}
	if req.CrossoverAlpha <= 0 {
		req.CrossoverAlpha = 0.6
	}
	if req.MutationStrength <= 0 {
		req.MutationStrength = 0.1
	}
	if req.MutationRate <= 0 {
		req.MutationRate = 0.1
	}
	if req.FounderScale <= 0 {
		req.FounderScale = 1.0
	}
	if req.TuneAttempts <= 0 {
		req.TuneAttempts = 4
	}
	if req.TuneSteps <= 0 {
		req.TuneSteps = 2
	}
	if req.TuneStepSize <= 0 {
		req.TuneStepSize = 0.05
	}
	if req.TunePolicy == "" {
		req.TunePolicy = "fixed"
	}

	selector, err := evo.SelectorFromName(req.Selection, req.TournamentSize)
	if err != nil {
		return RunSummary{}, err
	}
	postprocessor, err := postprocessorFromName(req.FitnessPostprocessor)
	if err != nil {
		return RunSummary{}, err
	}

	var tuner tuning.Tuner
	var tunePolicy tuning.AttemptPolicy
	if req.EnableTuning {
		tuner = tuning.HillClimb{
			Steps:    req.TuneSteps,
			StepSize: req.TuneStepSize,
		}
		tunePolicy, err = tuning.AttemptPolicyFromConfig(req.TunePolicy, req.TunePolicyParam)
		if err != nil {
			return RunSummary{}, err
		}
	}

	h, err := c.ensureHub(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	eliteCount := req.Population / 5
	if eliteCount < 1 {
		eliteCount = 1
	}
	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%d-%d", req.Arena, req.Seed, now.Unix())

	result, err := h.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:            runID,
		ArenaName:        req.Arena,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		EliteCount:       eliteCount,
		Workers:          req.Workers,
		Seed:             req.Seed,
		TournamentSize:   req.TournamentSize,
		CrossoverAlpha:   req.CrossoverAlpha,
		AlphaJitter:      req.AlphaJitter,
		MutationStrength: req.MutationStrength,
		MutationRate:     req.MutationRate,
		FounderScale:     req.FounderScale,
		Selector:         selector,
		Postprocessor:    postprocessor,
		Tuner:            tuner,
		TuneAttempts:     req.TuneAttempts,
		TunePolicy:       tunePolicy,
	})
	if err != nil {
		return RunSummary{}, err
	}

	top := make([]model.TopGenomeRecord, 0, len(result.TopFinal))
	for i, scored := range result.TopFinal {
		top = append(top, model.TopGenomeRecord{Rank: i + 1, Fitness: scored.Fitness, Genome: scored.Genome})
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                runID,
			Arena:                req.Arena,
			PopulationSize:       req.Population,
			Generations:          req.Generations,
			EliteCount:           eliteCount,
			Workers:              req.Workers,
			Seed:                 req.Seed,
			TournamentSize:       req.TournamentSize,
			CrossoverAlpha:       req.CrossoverAlpha,
			AlphaJitter:          req.AlphaJitter,
			MutationStrength:     req.MutationStrength,
			MutationRate:         req.MutationRate,
			FounderScale:         req.FounderScale,
			Selection:            req.Selection,
			FitnessPostprocessor: req.FitnessPostprocessor,
			TuningEnabled:        req.EnableTuning,
			TuneAttempts:         req.TuneAttempts,
			TunePolicy:           req.TunePolicy,
			TuneSteps:            req.TuneSteps,
			TuneStepSize:         req.TuneStepSize,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.BestFinalFitness,
		TopGenomes:            top,
		Lineage:               result.Lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		Arena:            req.Arena,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Workers:          req.Workers,
		EliteCount:       eliteCount,
		TuningEnabled:    req.EnableTuning,
		FinalBestFitness: result.BestFinalFitness,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: result.BestFinalFitness,
		Stopped:          result.Stopped,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Arena:            e.Arena,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			TuningEnabled:    e.TuningEnabled,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}

	summary := ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}
	if cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID); err != nil {
		return ExportSummary{}, err
	} else if ok {
		summary.Arena = cfg.Arena
	}
	return summary, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageItem, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit, "lineage")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}

	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}

	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			GenomeID:   rec.GenomeID,
			ParentIDs:  append([]string(nil), rec.ParentIDs...),
			Generation: rec.Generation,
			Operation:  rec.Operation,
			Weights:    rec.Weights,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit, "fitness history")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The store may be a fresh in-memory instance while the run
		// artifacts still live on disk.
		history, ok, err = stats.ReadFitnessSeriesCSV(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit, "diagnostics")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopGenomes(ctx context.Context, req TopGenomesRequest) ([]model.TopGenomeRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit, "top genomes")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopGenomes(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopGenomeRecord, len(top))
	copy(out, top)
	return out, nil
}

// Elites merges the recorded top genomes of every indexed run, newest
// first, dropping duplicate genome IDs. With Arena set only runs on
// that arena contribute.
func (c *Client) Elites(ctx context.Context, req ElitesRequest) ([]EliteItem, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]EliteItem, 0, req.Limit)
	for _, e := range entries {
		if req.Arena != "" && e.Arena != req.Arena {
			continue
		}
		top, ok, err := c.store.GetTopGenomes(ctx, e.RunID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, rec := range top {
			if _, dup := seen[rec.Genome.ID]; dup {
				continue
			}
			seen[rec.Genome.ID] = struct{}{}
			out = append(out, EliteItem{
				GenomeID: rec.Genome.ID,
				RunID:    e.RunID,
				Fitness:  rec.Fitness,
				Weights:  rec.Genome.Weights,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Fitness > out[j].Fitness })
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// SubmitGenome records an externally supplied weight vector. The genome
// ID derives from the weights, so resubmitting the same vector is
// detected and leaves the stored record untouched.
func (c *Client) SubmitGenome(ctx context.Context, req SubmitRequest) (SubmitSummary, error) {
	g, err := genome.New(req.Weights)
	if err != nil {
		return SubmitSummary{}, err
	}

	h, err := c.ensureHub(ctx)
	if err != nil {
		return SubmitSummary{}, err
	}

	summary := SubmitSummary{
		SubmissionID: uuid.NewString(),
		GenomeID:     g.ID,
	}

	existing, ok, err := c.store.GetGenome(ctx, g.ID)
	if err != nil {
		return SubmitSummary{}, err
	}
	if ok {
		summary.Duplicate = true
		summary.Fitness = existing.Fitness.BestScore
		return summary, nil
	}

	if req.Evaluate {
		arenaName := req.Arena
		if arenaName == "" {
			arenaName = "standard"
		}
		a, found := h.GetArena(arenaName)
		if !found {
			return SubmitSummary{}, fmt.Errorf("unknown arena: %s", arenaName)
		}
		fitness, _, err := a.Evaluate(ctx, g.Weights, req.Seed)
		if err != nil {
			return SubmitSummary{}, err
		}
		genome.RecordGame(&g, float64(fitness))
		summary.Evaluated = true
		summary.Fitness = float64(fitness)
	}

	if err := c.store.SaveGenome(ctx, g); err != nil {
		return SubmitSummary{}, err
	}
	return summary, nil
}

// Play evaluates one weight vector on an arena without touching any
// stored state. Either GenomeID or Weights selects the vector.
func (c *Client) Play(ctx context.Context, req PlayRequest) (PlaySummary, error) {
	h, err := c.ensureHub(ctx)
	if err != nil {
		return PlaySummary{}, err
	}

	w := req.Weights
	if req.GenomeID != "" {
		stored, ok, err := c.store.GetGenome(ctx, req.GenomeID)
		if err != nil {
			return PlaySummary{}, err
		}
		if !ok {
			return PlaySummary{}, fmt.Errorf("genome not found: %s", req.GenomeID)
		}
		w = stored.Weights
	}
	if err := genome.Validate(w); err != nil {
		return PlaySummary{}, err
	}

	arenaName := req.Arena
	if arenaName == "" {
		arenaName = "standard"
	}
	a, found := h.GetArena(arenaName)
	if !found {
		return PlaySummary{}, fmt.Errorf("unknown arena: %s", arenaName)
	}

	fitness, trace, err := a.Evaluate(ctx, w, req.Seed)
	if err != nil {
		return PlaySummary{}, err
	}
	return PlaySummary{Arena: arenaName, Fitness: float64(fitness), Weights: w, Trace: trace}, nil
}

func (c *Client) ArenaSummary(ctx context.Context, arenaName string) (ArenaSummaryItem, error) {
	if arenaName == "" {
		return ArenaSummaryItem{}, errors.New("arena name is required")
	}
	if _, err := c.ensureHub(ctx); err != nil {
		return ArenaSummaryItem{}, err
	}
	summary, ok, err := c.store.GetArenaSummary(ctx, arenaName)
	if err != nil {
		return ArenaSummaryItem{}, err
	}
	if !ok {
		return ArenaSummaryItem{}, fmt.Errorf("arena summary not found: %s", arenaName)
	}
	return ArenaSummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		BestScore:   summary.BestScore,
	}, nil
}

func (c *Client) Arenas(ctx context.Context) ([]ArenaSummaryItem, error) {
	h, err := c.ensureHub(ctx)
	if err != nil {
		return nil, err
	}
	summaries := h.RegisteredArenas()
	out := make([]ArenaSummaryItem, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ArenaSummaryItem{
			Name:        s.Name,
			Description: s.Description,
			BestScore:   s.BestScore,
		})
	}
	return out, nil
}

// RandomWeights produces a founder-style weight vector, handy for
// seeding submissions and local experiments.
func (c *Client) RandomWeights(seed int64, scale float64) model.Weights {
	if scale <= 0 {
		scale = 1.0
	}
	return genome.Random(rand.New(rand.NewSource(seed)), scale)
}

func (c *Client) resolveRunID(runID string, latest bool, limit int, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensureHub(ctx context.Context) (*platform.Hub, error) {
	if c.hub != nil {
		return c.hub, nil
	}
	h := platform.NewHub(platform.Config{Store: c.store, Arenas: arena.Defaults()})
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	c.hub = h
	return c.hub, nil
}

func postprocessorFromName(name string) (evo.FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return evo.NoopFitnessPostprocessor{}, nil
	case "magnitude_penalty":
		return evo.MagnitudePenaltyPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", name)
	}
}
