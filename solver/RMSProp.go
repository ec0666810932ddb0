package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// RMSPropConfig holds the hyperparameters of the RMSProp solver. A
// Clip of zero or below disables gradient clipping. Gorgonia only
// supports the default learning rate decay Eta = 0.001.
type RMSPropConfig struct {
	StepSize float64
	Epsilon  float64
	Eta      float64
	Rho      float64
	Batch    int
	Clip     float64
}

// NewDefaultRMSProp returns an RMSProp Solver using the conventional
// defaults epsilon = 1e-8 and rho = 0.999, with clipping disabled.
func NewDefaultRMSProp(stepSize float64, batchSize int) (*Solver, error) {
	return NewRMSProp(stepSize, 1e-8, 0.001, 0.999, batchSize, -1.0)
}

// NewRMSProp returns an RMSProp Solver with fully specified
// hyperparameters. Gradients are clipped to [-clip, clip] unless
// clip <= 0.
func NewRMSProp(stepSize, epsilon, eta, rho float64, batchSize int,
	clip float64) (*Solver, error) {
	if eta != 0.001 {
		return nil, fmt.Errorf("newRMSProp: only the default value of " +
			"η = 0.001 is currently supported")
	}

	return newSolver(RMSProp, RMSPropConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Eta:      eta,
		Rho:      rho,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create returns the Gorgonia solver that this configuration
// describes.
func (r RMSPropConfig) Create() G.Solver {
	opts := []G.SolverOpt{
		G.WithLearnRate(r.StepSize),
		G.WithEps(r.Epsilon),
		G.WithRho(r.Rho),
		G.WithBatchSize(float64(r.Batch)),
	}
	if r.Clip > 0 {
		opts = append(opts, G.WithClip(r.Clip))
	}

	return G.NewRMSPropSolver(opts...)
}

// ValidType returns whether Solvers of type t can be built from this
// configuration.
func (r RMSPropConfig) ValidType(t Type) bool {
	return t == RMSProp
}
