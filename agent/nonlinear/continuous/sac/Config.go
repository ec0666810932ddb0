package sac

import (
	"fmt"

	"sfneuman.com/gosac/initwfn"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/solver"
)

// Config implements a configuration of the SAC agent. Solvers and
// weight initializers are stored through their wrapper types so that a
// Config can be JSON serialized into configuration files.
type Config struct {
	// Policy network architecture. The policy is a tree MLP: the root
	// network computes a shared representation of the state, and two
	// leaf networks predict the mean and log standard deviation of the
	// squashed Gaussian policy.
	RootHiddenSizes []int
	RootBiases      []bool
	RootActivations []*network.Activation
	LeafHiddenSizes [][]int
	LeafBiases      [][]bool
	LeafActivations [][]*network.Activation

	// Action-value network architecture, shared by both critics and
	// their targets
	QHiddenSizes []int
	QBiases      []bool
	QActivations []*network.Activation

	InitWFn *initwfn.InitWFn

	PolicySolver *solver.Solver
	CriticSolver *solver.Solver

	// AlphaSolver adjusts the entropy coefficient when LearnAlpha is
	// true. If nil, a default is derived from the policy solver with a
	// step size scaled down by 100.
	AlphaSolver *solver.Solver

	BatchSize      int
	ReplayCapacity int

	// Gamma is the discount factor and Tau the rate at which the
	// target networks move towards the learned critics on each update:
	// dest ← (1 - tau) * dest + tau * source
	Gamma float64
	Tau   float64

	// Alpha is the entropy coefficient, used only when LearnAlpha is
	// false. When LearnAlpha is true, the coefficient starts at
	// exp(InitialLogAlpha) and is adjusted towards TargetEntropy. A
	// TargetEntropy of 0 defaults to the negative action
	// dimensionality.
	Alpha         float64
	LearnAlpha    bool
	TargetEntropy float64

	// BootstrapOnTimeout determines how transitions that end an
	// episode due to a step limit are stored. When true, such
	// transitions are stored as non-terminal so the critic backup
	// still bootstraps off the next state. When false, step-limit
	// endings are treated like any other terminal state.
	BootstrapOnTimeout bool
}

// Validate ensures that the Config is a valid configuration
func (c Config) Validate() error {
	if len(c.RootHiddenSizes) != len(c.RootBiases) ||
		len(c.RootHiddenSizes) != len(c.RootActivations) {
		return fmt.Errorf("validate: invalid policy root network: "+
			"len(hidden) = %v, len(biases) = %v, len(activations) = %v",
			len(c.RootHiddenSizes), len(c.RootBiases),
			len(c.RootActivations))
	}
	if len(c.LeafHiddenSizes) != 2 {
		return fmt.Errorf("validate: policy requires 2 leaf networks "+
			"\n\twant(2) \n\thave(%v)", len(c.LeafHiddenSizes))
	}
	if len(c.LeafHiddenSizes) != len(c.LeafBiases) ||
		len(c.LeafHiddenSizes) != len(c.LeafActivations) {
		return fmt.Errorf("validate: invalid policy leaf networks: "+
			"len(hidden) = %v, len(biases) = %v, len(activations) = %v",
			len(c.LeafHiddenSizes), len(c.LeafBiases),
			len(c.LeafActivations))
	}
	if len(c.QHiddenSizes) != len(c.QBiases) ||
		len(c.QHiddenSizes) != len(c.QActivations) {
		return fmt.Errorf("validate: invalid action-value network: "+
			"len(hidden) = %v, len(biases) = %v, len(activations) = %v",
			len(c.QHiddenSizes), len(c.QBiases), len(c.QActivations))
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer given")
	}
	if c.PolicySolver == nil {
		return fmt.Errorf("validate: no policy solver given")
	}
	if c.CriticSolver == nil {
		return fmt.Errorf("validate: no critic solver given")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.ReplayCapacity < c.BatchSize {
		return fmt.Errorf("validate: replay capacity cannot be lower "+
			"than the batch size \n\twant(≥%v) \n\thave(%v)", c.BatchSize,
			c.ReplayCapacity)
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Gamma)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: target update rate must be in "+
			"(0, 1] \n\thave(%v)", c.Tau)
	}

	if c.Alpha < 0 {
		return fmt.Errorf("validate: entropy coefficient must be "+
			"non-negative \n\thave(%v)", c.Alpha)
	}

	return nil
}

// alphaSolver returns the solver for the entropy coefficient,
// deriving a default from the policy solver when no alpha solver was
// configured
func (c Config) alphaSolver() (*solver.Solver, error) {
	if c.AlphaSolver != nil {
		return c.AlphaSolver, nil
	}

	switch config := c.PolicySolver.Config.(type) {
	case solver.AdamConfig:
		return solver.NewDefaultAdam(config.StepSize*0.01, 1)
	case solver.VanillaConfig:
		return solver.NewVanilla(config.StepSize*0.01, 1, config.Clip)
	case solver.RMSPropConfig:
		return solver.NewDefaultRMSProp(config.StepSize*0.01, 1)
	default:
		return nil, fmt.Errorf("alphaSolver: cannot derive a default "+
			"alpha solver from %T", config)
	}
}
