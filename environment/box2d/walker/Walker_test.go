package walker

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"sfneuman.com/gosac/environment"
)

func newTestWalker(t *testing.T, cutoff int) environment.Environment {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: InitialX, Max: InitialX},
		{Min: InitialY, Max: InitialY},
		{Min: InitialRandom, Max: InitialRandom},
	}, 12)
	task := NewWalk(starter, cutoff)

	env, step, err := New(task, 0.99, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !step.First() {
		t.Fatalf("reset did not return the first timestep of an episode")
	}
	return env
}

func TestObservationDimensions(t *testing.T) {
	env := newTestWalker(t, 100)

	step := env.Reset()
	if step.Observation.Len() != StateObservations {
		t.Errorf("observation dimensions \n\twant(%v) \n\thave(%v)",
			StateObservations, step.Observation.Len())
	}
	if env.ObservationSpec().Shape.Len() != StateObservations {
		t.Errorf("observation spec dimensions \n\twant(%v) \n\thave(%v)",
			StateObservations, env.ObservationSpec().Shape.Len())
	}
	if env.ActionSpec().Shape.Len() != ActionDims {
		t.Errorf("action spec dimensions \n\twant(%v) \n\thave(%v)",
			ActionDims, env.ActionSpec().Shape.Len())
	}
}

func TestStepNumbersAndFiniteObservations(t *testing.T) {
	env := newTestWalker(t, 50)
	env.Reset()
	action := mat.NewVecDense(ActionDims, []float64{0.5, -0.5, 0.5, -0.5})

	for i := 1; i <= 10; i++ {
		step, last := env.Step(action)
		if step.Number != i {
			t.Fatalf("step number \n\twant(%v) \n\thave(%v)", i, step.Number)
		}
		for j := 0; j < step.Observation.Len(); j++ {
			if math.IsNaN(step.Observation.AtVec(j)) ||
				math.IsInf(step.Observation.AtVec(j), 0) {
				t.Fatalf("observation feature %v is not finite", j)
			}
		}
		if last {
			break
		}
	}
}

// TestEpisodeEnds ensures that every episode ends at or before the
// step limit, as a true terminal state when the walker falls and as a
// timeout otherwise
func TestEpisodeEnds(t *testing.T) {
	cutoff := 25
	env := newTestWalker(t, cutoff)

	for episode := 0; episode < 3; episode++ {
		env.Reset()
		action := mat.NewVecDense(ActionDims, nil)

		for i := 0; i < cutoff; i++ {
			step, last := env.Step(action)
			if last {
				if !step.TerminalEnd() && !step.TimeoutEnd() {
					t.Error("last step should be a terminal or a timeout")
				}
				break
			}
			if i == cutoff-1 {
				t.Errorf("episode did not end at the step limit")
			}
		}
	}
}

// TestStepDoesNotMutateAction ensures that out-of-bounds actions are
// clipped into a copy, leaving the caller's vector untouched
func TestStepDoesNotMutateAction(t *testing.T) {
	env := newTestWalker(t, 50)
	env.Reset()

	raw := []float64{2.0, -3.5, 0.5, 1.5}
	action := mat.NewVecDense(ActionDims, append([]float64{}, raw...))

	if _, last := env.Step(action); last {
		t.Fatal("episode ended on the first step")
	}

	for i, want := range raw {
		if have := action.AtVec(i); have != want {
			t.Errorf("action component %v mutated by Step \n\twant(%v) "+
				"\n\thave(%v)", i, want, have)
		}
	}
}

// TestFallIsTerminal ensures that the hull touching the ground ends
// the episode with the failure reward
func TestFallIsTerminal(t *testing.T) {
	// Start the hull too low, so that gravity brings it into ground
	// contact within the episode
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: InitialX, Max: InitialX},
		{Min: TerrainHeight + 0.1, Max: TerrainHeight + 0.1},
		{Min: 0.0, Max: 0.0},
	}, 12)
	task := NewWalk(starter, 1000)

	env, _, err := New(task, 0.99, 12)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(ActionDims, nil)
	for i := 0; i < 1000; i++ {
		step, last := env.Step(action)
		if last {
			if !step.TerminalEnd() {
				t.Error("a fall should be a terminal state, not a timeout")
			}
			if step.Reward != -100.0 {
				t.Errorf("fall reward \n\twant(-100) \n\thave(%v)",
					step.Reward)
			}
			return
		}
	}
	t.Error("walker with no ground clearance never fell")
}
