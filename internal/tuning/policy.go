package tuning

import "fmt"

// AttemptPolicy decides how many tuning attempts a genome gets in a given
// generation.
type AttemptPolicy interface {
	Name() string
	Attempts(baseAttempts, generation, totalGenerations int) int
}

type FixedAttemptPolicy struct{}

func (FixedAttemptPolicy) Name() string { return "fixed" }

func (FixedAttemptPolicy) Attempts(baseAttempts, _generation, _totalGenerations int) int {
	if baseAttempts < 0 {
		return 0
	}
	return baseAttempts
}

// LinearDecayAttemptPolicy spends most of the tuning budget early and tapers
// off as the run approaches its final generation.
type LinearDecayAttemptPolicy struct {
	MinAttempts int
}

func (LinearDecayAttemptPolicy) Name() string { return "linear_decay" }

func (p LinearDecayAttemptPolicy) Attempts(baseAttempts, generation, totalGenerations int) int {
	if baseAttempts <= 0 {
		return 0
	}
	if totalGenerations <= 0 {
		return baseAttempts
	}
	remaining := totalGenerations - generation
	if remaining < 1 {
		remaining = 1
	}
	attempts := (baseAttempts * remaining) / totalGenerations
	if attempts < p.MinAttempts {
		attempts = p.MinAttempts
	}
	if attempts < 0 {
		return 0
	}
	return attempts
}

func AttemptPolicyFromConfig(name string, param float64) (AttemptPolicy, error) {
	switch name {
	case "", "fixed", "const":
		return FixedAttemptPolicy{}, nil
	case "linear_decay":
		min := int(param)
		if min < 1 {
			min = 1
		}
		return LinearDecayAttemptPolicy{MinAttempts: min}, nil
	default:
		return nil, fmt.Errorf("unsupported tune attempt policy: %s", name)
	}
}
