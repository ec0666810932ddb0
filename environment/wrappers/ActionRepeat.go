// Package wrappers provides wrappers for environments
package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/timestep"
)

// ActionRepeat wraps an environment so that each action selected by
// an agent is repeated for a fixed number of environmental steps. The
// rewards accumulated over the repeated steps are summed into the
// single timestep returned to the agent.
//
// If the episode ends partway through a repeat, the last timestep is
// returned immediately with a reward of 0, so an agent never
// accumulates reward past the end of an episode.
type ActionRepeat struct {
	environment.Environment
	repeats int
}

// NewActionRepeat returns a new environment wrapping env so that
// every action is repeated the argument number of times
func NewActionRepeat(env environment.Environment,
	repeats int) (environment.Environment, error) {
	if repeats <= 0 {
		return nil, fmt.Errorf("newActionRepeat: repeats must be "+
			"positive \n\thave(%v)", repeats)
	}
	return &ActionRepeat{Environment: env, repeats: repeats}, nil
}

// Step repeats the argument action in the wrapped environment,
// summing the rewards of the intermediate steps
func (a *ActionRepeat) Step(action *mat.VecDense) (timestep.TimeStep,
	bool) {
	totalReward := 0.0
	var step timestep.TimeStep
	var last bool

	for i := 0; i < a.repeats; i++ {
		step, last = a.Environment.Step(action)
		if last {
			step.Reward = 0.0
			return step, last
		}
		totalReward += step.Reward
	}

	step.Reward = totalReward
	return step, last
}
