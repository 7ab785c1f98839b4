package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"tetrevo/internal/board"
	"tetrevo/internal/game"
	"tetrevo/internal/model"
	"tetrevo/internal/storage"
	"tetrevo/pkg/tetrevo"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "elites":
		return runElites(ctx, args[1:])
	case "submit":
		return runSubmit(ctx, args[1:])
	case "play":
		return runPlay(ctx, args[1:])
	case "arenas":
		return runArenas(ctx, args[1:])
	case "arena-summary":
		return runArenaSummary(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: tetrevoctl <init|reset|run|runs|fitness|diagnostics|lineage|top|elites|submit|play|arenas|arena-summary|export> [flags]", msg)
}

type clientFlags struct {
	storeKind  *string
	dbPath     *string
	runsDir    *string
	exportsDir *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:  fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", "tetrevo.db", "sqlite database path"),
		runsDir:    fs.String("runs-dir", "runs", "run artifacts directory"),
		exportsDir: fs.String("exports-dir", "exports", "export output directory"),
	}
}

func (cf clientFlags) newClient() (*tetrevo.Client, error) {
	return tetrevo.New(tetrevo.Options{
		StoreKind:  *cf.storeKind,
		DBPath:     *cf.dbPath,
		RunsDir:    *cf.runsDir,
		ExportsDir: *cf.exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *cf.storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := addClientFlags(fs)
	profilePath := fs.String("profile", "", "optional YAML run profile path")
	arenaName := fs.String("arena", "standard", "arena name: standard|garbage|sprint")
	population := fs.Int("pop", 50, "population size")
	generations := fs.Int("gens", 30, "generation count")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	selection := fs.String("selection", "tournament", "parent selection strategy: tournament|elite")
	postprocessor := fs.String("fitness-postprocessor", "none", "fitness postprocessor: none|magnitude_penalty")
	tournamentSize := fs.Int("tournament-size", 3, "tournament size for tournament selection")
	alpha := fs.Float64("alpha", 0.6, "blend crossover alpha")
	alphaJitter := fs.Float64("alpha-jitter", 0.0, "uniform jitter applied to alpha per crossover")
	mutationStrength := fs.Float64("mutation-strength", 0.1, "mutation perturbation magnitude")
	mutationRate := fs.Float64("mutation-rate", 0.1, "per-weight mutation probability")
	founderScale := fs.Float64("founder-scale", 1.0, "founder weight range")
	enableTuning := fs.Bool("tuning", false, "enable hill-climb weight tuning")
	tuneAttempts := fs.Int("attempts", 4, "tuning attempts per genome evaluation")
	tuneSteps := fs.Int("tune-steps", 2, "weights perturbed per tuning attempt")
	tuneStepSize := fs.Float64("tune-step-size", 0.05, "tuning perturbation magnitude")
	tunePolicy := fs.String("tune-policy", "fixed", "tuning attempt policy: fixed|linear_decay")
	tunePolicyParam := fs.Float64("tune-policy-param", 0.0, "tuning attempt policy parameter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req := tetrevo.RunRequest{
		Arena:                *arenaName,
		Population:           *population,
		Generations:          *generations,
		Seed:                 *seed,
		Workers:              *workers,
		Selection:            *selection,
		FitnessPostprocessor: *postprocessor,
		TournamentSize:       *tournamentSize,
		CrossoverAlpha:       *alpha,
		AlphaJitter:          *alphaJitter,
		MutationStrength:     *mutationStrength,
		MutationRate:         *mutationRate,
		FounderScale:         *founderScale,
		EnableTuning:         *enableTuning,
		TuneAttempts:         *tuneAttempts,
		TuneSteps:            *tuneSteps,
		TuneStepSize:         *tuneStepSize,
		TunePolicy:           *tunePolicy,
		TunePolicyParam:      *tunePolicyParam,
	}
	if *profilePath != "" {
		profile, err := loadRunProfile(*profilePath)
		if err != nil {
			return err
		}
		req = mergeProfile(profile.Request(), req, setFlags)
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run completed run_id=%s arena=%s pop=%d gens=%d seed=%d elapsed=%s\n",
		summary.RunID, req.Arena, req.Population, req.Generations, req.Seed,
		time.Since(started).Round(time.Millisecond))
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	fmt.Printf("final_best_fitness=%.6f\n", summary.FinalBestFitness)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := addClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, tetrevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s arena=%s seed=%d pop=%s gens=%d tuning=%t final_best_fitness=%.6f\n",
			r.RunID,
			formatCreated(r.CreatedAtUTC),
			r.Arena,
			r.Seed,
			humanize.Comma(int64(r.Population)),
			r.Generations,
			r.TuningEnabled,
			r.FinalBestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from the run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, tetrevo.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from the run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, tetrevo.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f stddev=%.6f unique=%d clone_fallbacks=%d skipped_invalid=%d\n",
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.FitnessStdDev,
			d.UniqueGenomes,
			d.CloneFallbacks,
			d.SkippedInvalid,
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from the run index")
	limit := fs.Int("limit", 50, "max lineage rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, tetrevo.LineageRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	if *jsonOut {
		return writeJSON(lineage)
	}

	for _, rec := range lineage {
		fmt.Printf("gen=%d genome_id=%s parents=%v op=%s weights=%s\n",
			rec.Generation,
			rec.GenomeID,
			rec.ParentIDs,
			rec.Operation,
			formatWeights(rec.Weights),
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from the run index")
	limit := fs.Int("limit", 5, "max top genomes to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, tetrevo.TopGenomesRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		return writeJSON(top)
	}

	for _, item := range top {
		fmt.Printf("rank=%d fitness=%.6f genome_id=%s weights=%s\n",
			item.Rank,
			item.Fitness,
			item.Genome.ID,
			formatWeights(item.Genome.Weights),
		)
	}
	return nil
}

func runElites(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("elites", flag.ContinueOnError)
	cf := addClientFlags(fs)
	arenaName := fs.String("arena", "", "restrict to runs on one arena (empty for all)")
	limit := fs.Int("limit", 10, "max elites to print")
	jsonOut := fs.Bool("json", false, "emit elites as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	elites, err := client.Elites(ctx, tetrevo.ElitesRequest{Arena: *arenaName, Limit: *limit})
	if err != nil {
		return err
	}
	if len(elites) == 0 {
		fmt.Println("no elites recorded")
		return nil
	}
	if *jsonOut {
		return writeJSON(elites)
	}

	for i, e := range elites {
		fmt.Printf("rank=%d fitness=%.6f genome_id=%s run_id=%s weights=%s\n",
			i+1,
			e.Fitness,
			e.GenomeID,
			e.RunID,
			formatWeights(e.Weights),
		)
	}
	return nil
}

func runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	cf := addClientFlags(fs)
	wf := addWeightFlags(fs)
	arenaName := fs.String("arena", "standard", "arena used when -evaluate is set")
	evaluate := fs.Bool("evaluate", false, "evaluate the submission before recording it")
	seed := fs.Int64("seed", 1, "evaluation rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.SubmitGenome(ctx, tetrevo.SubmitRequest{
		Weights:  wf.weights(),
		Arena:    *arenaName,
		Evaluate: *evaluate,
		Seed:     *seed,
	})
	if err != nil {
		return err
	}

	if summary.Duplicate {
		fmt.Printf("duplicate genome_id=%s submission_id=%s best_score=%.6f\n",
			summary.GenomeID, summary.SubmissionID, summary.Fitness)
		return nil
	}
	if summary.Evaluated {
		fmt.Printf("submitted genome_id=%s submission_id=%s fitness=%.6f\n",
			summary.GenomeID, summary.SubmissionID, summary.Fitness)
		return nil
	}
	fmt.Printf("submitted genome_id=%s submission_id=%s\n", summary.GenomeID, summary.SubmissionID)
	return nil
}

func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	cf := addClientFlags(fs)
	wf := addWeightFlags(fs)
	genomeID := fs.String("genome-id", "", "play a stored genome instead of explicit weights")
	arenaName := fs.String("arena", "standard", "arena name")
	seed := fs.Int64("seed", 1, "game rng seed")
	render := fs.Bool("render", false, "replay one regulation game and print the final board")
	jsonOut := fs.Bool("json", false, "emit the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Play(ctx, tetrevo.PlayRequest{
		GenomeID: *genomeID,
		Arena:    *arenaName,
		Seed:     *seed,
		Weights:  wf.weights(),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(result)
	}

	fmt.Printf("arena=%s fitness=%.6f\n", result.Arena, result.Fitness)
	for _, key := range []string{"games", "lines_cleared", "pieces_placed", "top_outs"} {
		if v, ok := result.Trace[key]; ok {
			fmt.Printf("%s=%v\n", key, v)
		}
	}
	if *render {
		return renderGame(result.Weights, *seed)
	}
	return nil
}

// renderGame replays one regulation game for the weights and prints the
// final board state.
func renderGame(w model.Weights, seed int64) error {
	var last *board.Grid
	gameResult, err := game.Play(w, game.Config{
		Width:     10,
		Height:    20,
		MaxPieces: 400,
		Seed:      seed,
		OnLock: func(_ game.Piece, g *board.Grid, _ int) {
			last = g
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("replay score=%.1f lines=%d pieces=%d topped_out=%t\n",
		gameResult.Score, gameResult.LinesCleared, gameResult.PiecesPlaced, gameResult.ToppedOut)
	if last != nil {
		fmt.Println(last.String())
	}
	return nil
}

func runArenas(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("arenas", flag.ContinueOnError)
	cf := addClientFlags(fs)
	jsonOut := fs.Bool("json", false, "emit arenas as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	arenas, err := client.Arenas(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(arenas)
	}
	for _, a := range arenas {
		fmt.Printf("arena=%s best_score=%.6f description=%q\n", a.Name, a.BestScore, a.Description)
	}
	return nil
}

func runArenaSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("arena-summary", flag.ContinueOnError)
	cf := addClientFlags(fs)
	arenaName := fs.String("arena", "standard", "arena name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.ArenaSummary(ctx, *arenaName)
	if err != nil {
		return err
	}
	fmt.Printf("arena=%s best_score=%.6f description=%q\n", summary.Name, summary.BestScore, summary.Description)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from the run index")
	outDir := fs.String("out", "", "output directory (defaults to exports dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, tetrevo.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

type weightFlags struct {
	height    *float64
	lines     *float64
	holes     *float64
	bumpiness *float64
}

func addWeightFlags(fs *flag.FlagSet) weightFlags {
	return weightFlags{
		height:    fs.Float64("height", 0, "aggregate height weight"),
		lines:     fs.Float64("lines", 0, "cleared lines weight"),
		holes:     fs.Float64("holes", 0, "holes weight"),
		bumpiness: fs.Float64("bumpiness", 0, "bumpiness weight"),
	}
}

func (wf weightFlags) weights() model.Weights {
	return model.Weights{
		Height:    *wf.height,
		Lines:     *wf.lines,
		Holes:     *wf.holes,
		Bumpiness: *wf.bumpiness,
	}
}

func formatWeights(w model.Weights) string {
	return fmt.Sprintf("[h=%.4f l=%.4f o=%.4f b=%.4f]", w.Height, w.Lines, w.Holes, w.Bumpiness)
}

// formatCreated shows relative age on interactive terminals and keeps the
// raw timestamp for pipes and scripts.
func formatCreated(createdAtUTC string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return createdAtUTC
	}
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
