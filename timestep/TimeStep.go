// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either the first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType denotes the way in which an episode ended. Episodes may end
// because the agent reached a terminal state of the environment or
// because some step limit cut the episode short. Value bootstrapping
// should treat these two endings differently.
type EndType int

const (
	// Nil denotes a step on which the episode did not end
	Nil EndType = iota

	// TerminalStateReached denotes an episode that ended because a
	// true terminal state of the environment was reached
	TerminalStateReached

	// Timeout denotes an episode that was cut at a step limit. The
	// final state is not a terminal state of the environment.
	Timeout
)

func (e EndType) String() string {
	switch e {
	case TerminalStateReached:
		return "TerminalStateReached"
	case Timeout:
		return "Timeout"
	default:
		return "Nil"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	Number      int
	EndType     EndType
}

// New constructs a new TimeStep
func New(t StepType, r, d float64, o mat.Vector, n int) TimeStep {
	return TimeStep{t, r, d, o, n, Nil}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// TerminalEnd returns whether the TimeStep ended an episode at a true
// terminal state of the environment
func (t *TimeStep) TerminalEnd() bool {
	return t.StepType == Last && t.EndType == TerminalStateReached
}

// TimeoutEnd returns whether the TimeStep ended an episode because a
// step limit was reached
func (t *TimeStep) TimeoutEnd() bool {
	return t.StepType == Last && t.EndType == Timeout
}

// SetEnd records how the episode ended and marks the step as the last
// in its episode
func (t *TimeStep) SetEnd(e EndType) {
	t.StepType = Last
	t.EndType = e
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number)
}

// Transition packages together a single transition of the
// agent-environment interaction: the agent took Action in State,
// received Reward, and observed NextState. Terminal records whether
// NextState is a true terminal state of the environment, in which case
// no value should be bootstrapped from it. Transitions are immutable
// once stored.
type Transition struct {
	State     mat.Vector
	Action    mat.Vector
	Reward    float64
	NextState mat.Vector
	Terminal  bool
}

// NewTransition constructs a Transition from two consecutive timesteps
// and the action that led from the first to the second. The terminal
// parameter records whether the transition ended the episode at a true
// terminal state, as opposed to a step-limit truncation.
func NewTransition(step TimeStep, action mat.Vector, nextStep TimeStep,
	terminal bool) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Terminal:  terminal,
	}
}
