package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/timestep"
)

// FrameStack wraps an environment so that observations are the
// concatenation of the last N observations of the wrapped
// environment, oldest first. On reset, every slot of the stack holds
// a copy of the initial observation. Stacking observations gives a
// memoryless agent a short history to infer velocities and other
// temporal structure from.
type FrameStack struct {
	environment.Environment
	numFrames int
	features  int
	frames    []float64
}

// NewFrameStack returns a new environment wrapping env whose
// observations stack the argument number of the wrapped environment's
// observations
func NewFrameStack(env environment.Environment,
	numFrames int) (environment.Environment, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("newFrameStack: number of frames must "+
			"be positive \n\thave(%v)", numFrames)
	}

	features := env.ObservationSpec().Shape.Len()
	return &FrameStack{
		Environment: env,
		numFrames:   numFrames,
		features:    features,
		frames:      make([]float64, numFrames*features),
	}, nil
}

// push appends an observation to the stack, dropping the oldest
func (f *FrameStack) push(obs mat.Vector) {
	copy(f.frames, f.frames[f.features:])
	newest := f.frames[(f.numFrames-1)*f.features:]
	for i := 0; i < f.features; i++ {
		newest[i] = obs.AtVec(i)
	}
}

// stacked returns the current stacked observation
func (f *FrameStack) stacked() *mat.VecDense {
	obs := make([]float64, len(f.frames))
	copy(obs, f.frames)
	return mat.NewVecDense(len(obs), obs)
}

// Reset resets the wrapped environment and fills every slot of the
// stack with the initial observation
func (f *FrameStack) Reset() timestep.TimeStep {
	step := f.Environment.Reset()

	for i := 0; i < f.numFrames; i++ {
		offset := i * f.features
		for j := 0; j < f.features; j++ {
			f.frames[offset+j] = step.Observation.AtVec(j)
		}
	}

	step.Observation = f.stacked()
	return step
}

// Step takes one environmental step, returning the stacked
// observation
func (f *FrameStack) Step(action *mat.VecDense) (timestep.TimeStep, bool) {
	step, last := f.Environment.Step(action)
	f.push(step.Observation)
	step.Observation = f.stacked()
	return step, last
}

// ObservationSpec returns the observation specification of the
// stacked environment
func (f *FrameStack) ObservationSpec() environment.Spec {
	inner := f.Environment.ObservationSpec()

	shape := mat.NewVecDense(f.numFrames*f.features, nil)
	low := make([]float64, f.numFrames*f.features)
	high := make([]float64, f.numFrames*f.features)
	for i := 0; i < f.numFrames; i++ {
		for j := 0; j < f.features; j++ {
			low[i*f.features+j] = inner.LowerBound.AtVec(j)
			high[i*f.features+j] = inner.UpperBound.AtVec(j)
		}
	}

	return environment.NewSpec(shape, environment.Observation,
		mat.NewVecDense(len(low), low), mat.NewVecDense(len(high), high),
		environment.Continuous)
}
