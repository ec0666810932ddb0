package solver

import G "gorgonia.org/gorgonia"

// VanillaConfig holds the hyperparameters of the vanilla stochastic
// gradient descent solver. A Clip of zero or below disables gradient
// clipping.
type VanillaConfig struct {
	StepSize float64
	Batch    int
	Clip     float64
}

// NewVanilla returns a vanilla gradient descent Solver. Gradients are
// clipped to [-clip, clip] unless clip <= 0.
func NewVanilla(stepSize float64, batchSize int,
	clip float64) (*Solver, error) {
	return newSolver(Vanilla, VanillaConfig{
		StepSize: stepSize,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create returns the Gorgonia solver that this configuration
// describes.
func (v VanillaConfig) Create() G.Solver {
	opts := []G.SolverOpt{
		G.WithLearnRate(v.StepSize),
		G.WithBatchSize(float64(v.Batch)),
	}
	if v.Clip > 0 {
		opts = append(opts, G.WithClip(v.Clip))
	}

	return G.NewVanillaSolver(opts...)
}

// ValidType returns whether Solvers of type t can be built from this
// configuration.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}
