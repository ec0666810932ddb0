package environment

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an action, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// NewSpec constructs a new environment specification.
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// argument describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("shape length %v must match lower bounds length %v",
			shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("shape length %v must match upper bounds length %v",
			shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// UniformSampler samples vectors uniformly at random from within the
// bounds of some Spec. It implements the pure-exploration action
// selection used before an agent's policy takes over.
type UniformSampler struct {
	dists []distuv.Uniform
}

// NewUniformSampler returns a UniformSampler that samples uniformly
// from within the bounds of spec.
func NewUniformSampler(spec Spec, seed uint64) UniformSampler {
	source := rand.NewSource(seed)
	dists := make([]distuv.Uniform, spec.Shape.Len())
	for i := range dists {
		dists[i] = distuv.Uniform{
			Min: spec.LowerBound.AtVec(i),
			Max: spec.UpperBound.AtVec(i),
			Src: source,
		}
	}
	return UniformSampler{dists: dists}
}

// Sample draws a vector uniformly at random from within the bounds of
// the sampler's Spec.
func (u UniformSampler) Sample() *mat.VecDense {
	sample := make([]float64, len(u.dists))
	for i := range u.dists {
		sample[i] = u.dists[i].Rand()
	}
	return mat.NewVecDense(len(sample), sample)
}
