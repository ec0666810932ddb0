package wrappers

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/timestep"
)

// countEnv is a scripted environment whose observation is the current
// step number, whose reward on step n is n, and which terminates after
// terminateAt steps.
type countEnv struct {
	steps       int
	terminateAt int
}

func (c *countEnv) obs() *mat.VecDense {
	return mat.NewVecDense(2, []float64{float64(c.steps),
		float64(-c.steps)})
}

func (c *countEnv) Reset() timestep.TimeStep {
	c.steps = 0
	return timestep.New(timestep.First, 0, 1.0, c.obs(), 0)
}

func (c *countEnv) Step(_ *mat.VecDense) (timestep.TimeStep, bool) {
	c.steps++
	step := timestep.New(timestep.Mid, float64(c.steps), 1.0, c.obs(),
		c.steps)
	if c.steps >= c.terminateAt {
		step.SetEnd(timestep.TerminalStateReached)
	}
	return step, step.Last()
}

func (c *countEnv) ObservationSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(2, nil),
		environment.Observation,
		mat.NewVecDense(2, []float64{0.0, math.Inf(-1)}),
		mat.NewVecDense(2, []float64{math.Inf(1), 0.0}),
		environment.Continuous,
	)
}

func (c *countEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(1, nil),
		environment.Action,
		mat.NewVecDense(1, []float64{-1.0}),
		mat.NewVecDense(1, []float64{1.0}),
		environment.Continuous,
	)
}

func (c *countEnv) RewardSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(1, nil),
		environment.Reward,
		mat.NewVecDense(1, []float64{math.Inf(-1)}),
		mat.NewVecDense(1, []float64{math.Inf(1)}),
		environment.Continuous,
	)
}

func (c *countEnv) DiscountSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(1, nil),
		environment.Discount,
		mat.NewVecDense(1, []float64{1.0}),
		mat.NewVecDense(1, []float64{1.0}),
		environment.Continuous,
	)
}

// TestActionRepeatSumsRewards ensures that rewards are summed over
// repeated steps when no episode boundary is crossed
func TestActionRepeatSumsRewards(t *testing.T) {
	env, err := NewActionRepeat(&countEnv{terminateAt: 100}, 3)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()
	action := mat.NewVecDense(1, []float64{0.0})

	// Underlying rewards over the three repeated steps are 1, 2, 3
	step, last := env.Step(action)
	if last {
		t.Error("episode should not have ended")
	}
	if step.Reward != 6.0 {
		t.Errorf("rewards not summed over repeats \n\twant(6) "+
			"\n\thave(%v)", step.Reward)
	}

	// Next three underlying rewards are 4, 5, 6
	step, _ = env.Step(action)
	if step.Reward != 15.0 {
		t.Errorf("rewards not summed over repeats \n\twant(15) "+
			"\n\thave(%v)", step.Reward)
	}
}

// TestActionRepeatTerminalMidRepeat ensures that an episode ending
// partway through a repeat is returned immediately with zero reward
func TestActionRepeatTerminalMidRepeat(t *testing.T) {
	inner := &countEnv{terminateAt: 2}
	env, err := NewActionRepeat(inner, 3)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()
	action := mat.NewVecDense(1, []float64{0.0})

	step, last := env.Step(action)
	if !last || !step.TerminalEnd() {
		t.Error("terminal state mid-repeat should end the episode")
	}
	if step.Reward != 0.0 {
		t.Errorf("terminal step mid-repeat should carry no reward "+
			"\n\twant(0) \n\thave(%v)", step.Reward)
	}
	if inner.steps != 2 {
		t.Errorf("wrapped environment stepped past the terminal state "+
			"\n\twant(2) \n\thave(%v)", inner.steps)
	}
}

func TestActionRepeatRejectsNonPositiveRepeats(t *testing.T) {
	if _, err := NewActionRepeat(&countEnv{terminateAt: 1}, 0); err == nil {
		t.Error("expected an error for 0 repeats")
	}
}

// TestFrameStackReset ensures that on reset, every frame of the stack
// holds the initial observation
func TestFrameStackReset(t *testing.T) {
	env, err := NewFrameStack(&countEnv{terminateAt: 100}, 4)
	if err != nil {
		t.Fatal(err)
	}

	step := env.Reset()
	if step.Observation.Len() != 8 {
		t.Fatalf("stacked observation has the wrong size \n\twant(8) "+
			"\n\thave(%v)", step.Observation.Len())
	}
	for i := 0; i < 4; i++ {
		if step.Observation.AtVec(2*i) != 0.0 ||
			step.Observation.AtVec(2*i+1) != 0.0 {
			t.Errorf("frame %v does not hold the initial observation", i)
		}
	}
}

// TestFrameStackEvictsOldest ensures that stepping shifts the oldest
// frame out of the stack and appends the newest
func TestFrameStackEvictsOldest(t *testing.T) {
	env, err := NewFrameStack(&countEnv{terminateAt: 100}, 3)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()
	action := mat.NewVecDense(1, []float64{0.0})

	env.Step(action)
	env.Step(action)
	env.Step(action)
	step, _ := env.Step(action)

	// Underlying observations on the last three steps were
	// (2, -2), (3, -3), (4, -4)
	expected := []float64{2, -2, 3, -3, 4, -4}
	for i, e := range expected {
		if step.Observation.AtVec(i) != e {
			t.Errorf("stacked observation element %v \n\twant(%v) "+
				"\n\thave(%v)", i, e, step.Observation.AtVec(i))
		}
	}
}

// TestFrameStackObservationSpec ensures that the observation spec of
// the stacked environment tiles the bounds of the wrapped environment
func TestFrameStackObservationSpec(t *testing.T) {
	env, err := NewFrameStack(&countEnv{terminateAt: 100}, 3)
	if err != nil {
		t.Fatal(err)
	}

	spec := env.ObservationSpec()
	if spec.Shape.Len() != 6 {
		t.Fatalf("spec shape \n\twant(6) \n\thave(%v)", spec.Shape.Len())
	}
	for i := 0; i < 3; i++ {
		if spec.LowerBound.AtVec(2*i) != 0.0 {
			t.Errorf("lower bound %v not tiled", 2*i)
		}
		if spec.UpperBound.AtVec(2*i+1) != 0.0 {
			t.Errorf("upper bound %v not tiled", 2*i+1)
		}
	}
}
