package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tetrevo/pkg/tetrevo"
)

// RunProfile is a YAML-backed run preset. Zero fields fall through to the
// client defaults, so a profile only needs to pin what it cares about.
type RunProfile struct {
	Arena                string        `yaml:"arena"`
	Population           int           `yaml:"population"`
	Generations          int           `yaml:"generations"`
	Seed                 int64         `yaml:"seed"`
	Workers              int           `yaml:"workers"`
	Selection            string        `yaml:"selection"`
	FitnessPostprocessor string        `yaml:"fitness_postprocessor"`
	TournamentSize       int           `yaml:"tournament_size"`
	CrossoverAlpha       float64       `yaml:"crossover_alpha"`
	AlphaJitter          float64       `yaml:"alpha_jitter"`
	MutationStrength     float64       `yaml:"mutation_strength"`
	MutationRate         float64       `yaml:"mutation_rate"`
	FounderScale         float64       `yaml:"founder_scale"`
	Tuning               TuningProfile `yaml:"tuning"`
}

type TuningProfile struct {
	Enabled     bool    `yaml:"enabled"`
	Attempts    int     `yaml:"attempts"`
	Steps       int     `yaml:"steps"`
	StepSize    float64 `yaml:"step_size"`
	Policy      string  `yaml:"policy"`
	PolicyParam float64 `yaml:"policy_param"`
}

func loadRunProfile(path string) (RunProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunProfile{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var profile RunProfile
	if err := dec.Decode(&profile); err != nil {
		return RunProfile{}, fmt.Errorf("parse run profile %s: %w", path, err)
	}
	return profile, nil
}

func (p RunProfile) Request() tetrevo.RunRequest {
	return tetrevo.RunRequest{
		Arena:                p.Arena,
		Population:           p.Population,
		Generations:          p.Generations,
		Seed:                 p.Seed,
		Workers:              p.Workers,
		Selection:            p.Selection,
		FitnessPostprocessor: p.FitnessPostprocessor,
		TournamentSize:       p.TournamentSize,
		CrossoverAlpha:       p.CrossoverAlpha,
		AlphaJitter:          p.AlphaJitter,
		MutationStrength:     p.MutationStrength,
		MutationRate:         p.MutationRate,
		FounderScale:         p.FounderScale,
		EnableTuning:         p.Tuning.Enabled,
		TuneAttempts:         p.Tuning.Attempts,
		TuneSteps:            p.Tuning.Steps,
		TuneStepSize:         p.Tuning.StepSize,
		TunePolicy:           p.Tuning.Policy,
		TunePolicyParam:      p.Tuning.PolicyParam,
	}
}

// mergeProfile lets flags the user actually passed win over profile values.
func mergeProfile(base, flags tetrevo.RunRequest, set map[string]bool) tetrevo.RunRequest {
	if set["arena"] {
		base.Arena = flags.Arena
	}
	if set["pop"] {
		base.Population = flags.Population
	}
	if set["gens"] {
		base.Generations = flags.Generations
	}
	if set["seed"] {
		base.Seed = flags.Seed
	}
	if set["workers"] {
		base.Workers = flags.Workers
	}
	if set["selection"] {
		base.Selection = flags.Selection
	}
	if set["fitness-postprocessor"] {
		base.FitnessPostprocessor = flags.FitnessPostprocessor
	}
	if set["tournament-size"] {
		base.TournamentSize = flags.TournamentSize
	}
	if set["alpha"] {
		base.CrossoverAlpha = flags.CrossoverAlpha
	}
	if set["alpha-jitter"] {
		base.AlphaJitter = flags.AlphaJitter
	}
	if set["mutation-strength"] {
		base.MutationStrength = flags.MutationStrength
	}
	if set["mutation-rate"] {
		base.MutationRate = flags.MutationRate
	}
	if set["founder-scale"] {
		base.FounderScale = flags.FounderScale
	}
	if set["tuning"] {
		base.EnableTuning = flags.EnableTuning
	}
	if set["attempts"] {
		base.TuneAttempts = flags.TuneAttempts
	}
	if set["tune-steps"] {
		base.TuneSteps = flags.TuneSteps
	}
	if set["tune-step-size"] {
		base.TuneStepSize = flags.TuneStepSize
	}
	if set["tune-policy"] {
		base.TunePolicy = flags.TunePolicy
	}
	if set["tune-policy-param"] {
		base.TunePolicyParam = flags.TunePolicyParam
	}
	return base
}
