package walker

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/timestep"
	"sfneuman.com/gosac/utils/floatutils"
)

// walkerTask combines the environmental interfaces needed to fully
// parameterize the walker: a reward scheme, a starting state
// distribution, and an episode ender. Tasks also need access to the
// physics state of the walker itself (hull position, ground contact,
// falls), so they register the environment they are used with.
type walkerTask interface {
	environment.Task
	environment.Starter
	environment.Ender
	registerEnv(*walker)
	reset()
}

// Walk rewards forward progress of the hull along the x axis, with a
// small cost for motor torque. Falling over, detected as the hull
// touching the ground, is a catastrophic failure with a reward of
// -100 and ends the episode. The goal is reached when the hull crosses
// FinishX.
type Walk struct {
	environment.Starter
	stepLimit environment.Ender

	prevShaping *float64

	env *walker
}

// NewWalk returns a new Walk task. Episodes end in failure when the
// walker falls, in success when the hull passes FinishX, and in a
// timeout at cutoff timesteps.
func NewWalk(s environment.Starter, cutoff int) walkerTask {
	stepLimit := environment.NewStepLimit(cutoff)

	return &Walk{Starter: s, stepLimit: stepLimit}
}

func (w *Walk) registerEnv(env *walker) {
	w.env = env
}

func (w *Walk) reset() {
	w.prevShaping = nil
}

// AtGoal returns whether the hull has walked past FinishX
func (w *Walk) AtGoal(state mat.Vector) bool {
	return w.env.hull.GetPosition().X >= FinishX
}

// GetReward returns the difference in reward shaping between
// consecutive states, less the cost of the motor torques applied. The
// shaping rewards forward hull progress and penalizes hull tilt. On
// the first step of an episode there is no previous shaping, and the
// reward is only the torque cost.
func (w *Walk) GetReward(s, a, nextState mat.Vector) float64 {
	shaping := 130.0*w.env.hull.GetPosition().X/Scale -
		5.0*math.Abs(nextState.AtVec(0))

	reward := 0.0
	if w.prevShaping != nil {
		reward = shaping - *w.prevShaping
	} else {
		w.prevShaping = new(float64)
	}
	*w.prevShaping = shaping

	for i := 0; i < a.Len(); i++ {
		reward -= 0.00035 * MotorsTorque *
			floatutils.Clip(math.Abs(a.AtVec(i)), 0.0, 1.0)
	}

	if w.env.gameOver {
		reward = -100
	}
	return reward
}

// End ends episodes on falls and goal completion, both of which are
// true terminal states, and on the step limit, which is a truncation
func (w *Walk) End(t *timestep.TimeStep) bool {
	if w.env.gameOver || w.AtGoal(t.Observation) {
		t.SetEnd(timestep.TerminalStateReached)
		return true
	}

	return w.stepLimit.End(t)
}
