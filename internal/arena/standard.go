package arena

import (
	"context"

	"tetrevo/internal/game"
	"tetrevo/internal/model"
)

const (
	defaultWidth     = 10
	defaultHeight    = 20
	defaultMaxPieces = 400
	defaultGames     = 2
)

// StandardArena plays full-rule games on the regulation 10x20 board. Fitness
// is the mean game score across the batch.
type StandardArena struct {
	Width     int
	Height    int
	MaxPieces int
	Games     int
}

func (StandardArena) Name() string { return "standard" }

func (StandardArena) Description() string {
	return "regulation 10x20 board, mean score over the game batch"
}

func (a StandardArena) Evaluate(ctx context.Context, w model.Weights, seed int64) (Fitness, Trace, error) {
	return runBatch(ctx, w, seed, a.config(), a.games(), 0)
}

func (a StandardArena) config() game.Config {
	cfg := game.Config{Width: a.Width, Height: a.Height, MaxPieces: a.MaxPieces}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.MaxPieces <= 0 {
		cfg.MaxPieces = defaultMaxPieces
	}
	return cfg
}

func (a StandardArena) games() int {
	if a.Games > 0 {
		return a.Games
	}
	return defaultGames
}

// GarbageArena starts every game with pre-filled garbage rows, selecting for
// genomes that can dig.
type GarbageArena struct {
	Rows  int
	Games int
}

func (GarbageArena) Name() string { return "garbage" }

func (GarbageArena) Description() string {
	return "10x20 board starting under garbage rows with single-cell gaps"
}

func (a GarbageArena) Evaluate(ctx context.Context, w model.Weights, seed int64) (Fitness, Trace, error) {
	rows := a.Rows
	if rows <= 0 {
		rows = 4
	}
	games := a.Games
	if games <= 0 {
		games = defaultGames
	}
	cfg := game.Config{Width: defaultWidth, Height: defaultHeight, MaxPieces: defaultMaxPieces, GarbageRows: rows}
	return runBatch(ctx, w, seed, cfg, games, 0)
}

// SprintArena rewards clearing lines quickly: each cleared line is worth a
// flat bonus on top of the game score, over a shorter piece budget.
type SprintArena struct {
	LineBonus float64
	Games     int
}

func (SprintArena) Name() string { return "sprint" }

func (SprintArena) Description() string {
	return "short games with a flat per-line bonus favoring fast clears"
}

func (a SprintArena) Evaluate(ctx context.Context, w model.Weights, seed int64) (Fitness, Trace, error) {
	bonus := a.LineBonus
	if bonus <= 0 {
		bonus = 50
	}
	games := a.Games
	if games <= 0 {
		games = defaultGames
	}
	cfg := game.Config{Width: defaultWidth, Height: defaultHeight, MaxPieces: 150}
	return runBatch(ctx, w, seed, cfg, games, bonus)
}

func runBatch(ctx context.Context, w model.Weights, seed int64, cfg game.Config, games int, lineBonus float64) (Fitness, Trace, error) {
	total := 0.0
	lines := 0
	pieces := 0
	topOuts := 0
	for i := 0; i < games; i++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		gameCfg := cfg
		gameCfg.Seed = seed + int64(i)
		result, err := game.Play(w, gameCfg)
		if err != nil {
			return 0, nil, err
		}
		total += result.Score + lineBonus*float64(result.LinesCleared)
		lines += result.LinesCleared
		pieces += result.PiecesPlaced
		if result.ToppedOut {
			topOuts++
		}
	}

	fitness := Fitness(total / float64(games))
	trace := Trace{
		"games":         games,
		"lines_cleared": lines,
		"pieces_placed": pieces,
		"top_outs":      topOuts,
	}
	return fitness, trace, nil
}

// Defaults returns the arenas every hub registers at start.
func Defaults() []Arena {
	return []Arena{
		StandardArena{},
		SprintArena{},
		GarbageArena{},
	}
}
