// Package environment outlines the interfaces and structs needed to implement
// concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/timestep"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() mat.Vector
}

// Task implements the reward scheme for taking actions in some environment
type Task interface {
	GetReward(state mat.Vector, action mat.Vector, nextState mat.Vector) float64
	AtGoal(state mat.Vector) bool
}

// Ender determines when episodes end. Enders modify a TimeStep in-place
// so that its StepType field is timestep.Last and its EndType field
// records the kind of ending.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated environment that an agent interacts
// with through Reset and Step.
//
// Environments are assumed synchronous: Step does not return until the
// next timestep is available, and no timeout logic wraps these calls.
type Environment interface {
	// Reset resets the environment between episodes, returning the
	// first timestep of the new episode
	Reset() timestep.TimeStep

	// Step takes one environmental step given an action, returning the
	// next timestep and whether that timestep is the last in the
	// episode
	Step(action *mat.VecDense) (timestep.TimeStep, bool)

	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
