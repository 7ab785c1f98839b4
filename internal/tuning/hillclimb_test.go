package tuning

import (
	"context"
	"math/rand"
	"testing"

	"tetrevo/internal/model"
)

func linesOracle(calls *int) EvalFunc {
	return func(_ context.Context, w model.Weights) (float64, error) {
		if calls != nil {
			*calls++
		}
		return w.Lines, nil
	}
}

func TestHillClimbNeverRegresses(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	base := model.Weights{Height: -0.5, Lines: 0.4, Holes: -0.35, Bumpiness: -0.18}

	tuned, fitness, err := HillClimb{}.Tune(context.Background(), rng, base, base.Lines, 16, linesOracle(nil))
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if fitness < base.Lines {
		t.Fatalf("tuned fitness %v below baseline %v", fitness, base.Lines)
	}
	if fitness != tuned.Lines {
		t.Fatalf("reported fitness %v does not match tuned weights %v", fitness, tuned.Lines)
	}
}

func TestHillClimbFindsImprovement(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	base := model.Weights{Height: -0.5, Lines: 0.4, Holes: -0.35, Bumpiness: -0.18}

	calls := 0
	tuned, fitness, err := HillClimb{Steps: 2, StepSize: 0.05}.Tune(context.Background(), rng, base, base.Lines, 40, linesOracle(&calls))
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if calls != 40 {
		t.Fatalf("eval calls = %d, want 40", calls)
	}
	if fitness <= base.Lines {
		t.Fatalf("expected an improvement over %v, got %v", base.Lines, fitness)
	}
	if tuned == base {
		t.Fatal("expected tuned weights to differ from the baseline")
	}
}

func TestHillClimbZeroAttemptsIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := model.Weights{Lines: 0.4}
	tuned, fitness, err := HillClimb{}.Tune(context.Background(), rng, base, 0.4, 0, linesOracle(nil))
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if tuned != base || fitness != 0.4 {
		t.Fatalf("zero attempts changed the result: %+v %v", tuned, fitness)
	}
}

func TestHillClimbGoalStopsEarly(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	base := model.Weights{Lines: 0.9}
	calls := 0
	_, _, err := HillClimb{GoalFitness: 0.5}.Tune(context.Background(), rng, base, 0.9, 10, linesOracle(&calls))
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if calls != 0 {
		t.Fatalf("goal already met, expected 0 eval calls, got %d", calls)
	}
}

func TestHillClimbRequiresInputs(t *testing.T) {
	base := model.Weights{Lines: 0.4}
	if _, _, err := (HillClimb{}).Tune(context.Background(), nil, base, 0.4, 4, linesOracle(nil)); err == nil {
		t.Fatal("expected an error without a random source")
	}
	rng := rand.New(rand.NewSource(1))
	if _, _, err := (HillClimb{}).Tune(context.Background(), rng, base, 0.4, 4, nil); err == nil {
		t.Fatal("expected an error without an eval function")
	}
}

func TestAttemptPolicies(t *testing.T) {
	fixed := FixedAttemptPolicy{}
	if got := fixed.Attempts(8, 3, 10); got != 8 {
		t.Fatalf("fixed attempts = %d, want 8", got)
	}
	if got := fixed.Attempts(-1, 0, 10); got != 0 {
		t.Fatalf("negative base attempts = %d, want 0", got)
	}

	decay := LinearDecayAttemptPolicy{MinAttempts: 1}
	early := decay.Attempts(10, 0, 10)
	late := decay.Attempts(10, 9, 10)
	if early < late {
		t.Fatalf("decay should not grow over time: early=%d late=%d", early, late)
	}
	if late < decay.MinAttempts {
		t.Fatalf("late attempts %d below the floor", late)
	}
}

func TestAttemptPolicyFromConfig(t *testing.T) {
	p, err := AttemptPolicyFromConfig("", 0)
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	if p.Name() != "fixed" {
		t.Fatalf("default policy = %q, want fixed", p.Name())
	}
	if _, err := AttemptPolicyFromConfig("exponential", 0); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}
