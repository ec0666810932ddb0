package sac

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"sfneuman.com/gosac/solver"
	"sfneuman.com/gosac/utils/floatutils"
)

// Temperature provides the entropy regularization coefficient α used
// in the policy and critic objectives. A Temperature is either fixed
// or learned by gradient descent on the dual objective
//
//	J(α) = -log(α) * (E[log π(a|s)] + H)
//
// where H is the target entropy. When the policy entropy is below the
// target, the loss gradient increases α, strengthening the entropy
// bonus; when above, α shrinks.
type Temperature interface {
	// Alpha returns the current value of α
	Alpha() float64

	// Step updates α given the log densities of the most recent batch
	// of policy samples. For a fixed temperature, Step is a no-op.
	Step(logPdf []float64) error

	// set overwrites α when restoring a serialized agent
	set(alpha float64) error

	Close() error
}

// fixedTemperature is a Temperature that never changes
type fixedTemperature struct {
	alpha float64
}

// NewFixedTemperature returns a Temperature that always evaluates to
// alpha
func NewFixedTemperature(alpha float64) (Temperature, error) {
	if alpha < 0 {
		return nil, fmt.Errorf("newFixedTemperature: alpha must be "+
			"non-negative \n\thave(%v)", alpha)
	}
	return &fixedTemperature{alpha: alpha}, nil
}

func (f *fixedTemperature) Alpha() float64 { return f.alpha }

func (f *fixedTemperature) Step(logPdf []float64) error { return nil }

func (f *fixedTemperature) set(alpha float64) error {
	if alpha < 0 {
		return fmt.Errorf("set: alpha must be non-negative "+
			"\n\thave(%v)", alpha)
	}
	f.alpha = alpha
	return nil
}

func (f *fixedTemperature) Close() error { return nil }

// learnedTemperature adjusts α by gradient descent on log(α). The
// entropy gap E[log π] + H is computed outside the graph and fed in as
// an input, so the gradient only flows to log(α).
type learnedTemperature struct {
	g        *G.ExprGraph
	logAlpha *G.Node
	gap      *G.Node

	vm     G.VM
	solver *solver.Solver

	targetEntropy float64
}

// InitialLogAlpha is the starting value of log(α) for a learned
// temperature
const InitialLogAlpha float64 = 1.0

// NewLearnedTemperature returns a Temperature, with log(α) starting
// at InitialLogAlpha, that is adjusted towards the argument target
// entropy using the argument solver.
func NewLearnedTemperature(targetEntropy float64,
	sol *solver.Solver) (Temperature, error) {
	if sol == nil {
		return nil, fmt.Errorf("newLearnedTemperature: no solver given")
	}

	g := G.NewGraph()
	logAlpha := G.NewScalar(g, tensor.Float64, G.WithName("logAlpha"),
		G.WithValue(InitialLogAlpha))
	gap := G.NewScalar(g, tensor.Float64, G.WithName("entropyGap"),
		G.WithValue(0.0))

	loss := G.Must(G.Neg(G.Must(G.Mul(logAlpha, gap))))
	if _, err := G.Grad(loss, logAlpha); err != nil {
		return nil, fmt.Errorf("newLearnedTemperature: could not "+
			"compute gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(logAlpha))

	return &learnedTemperature{
		g:             g,
		logAlpha:      logAlpha,
		gap:           gap,
		vm:            vm,
		solver:        sol,
		targetEntropy: targetEntropy,
	}, nil
}

// Alpha returns the current value of α
func (l *learnedTemperature) Alpha() float64 {
	return math.Exp(l.logAlpha.Value().Data().(float64))
}

// Step performs one gradient update on log(α)
func (l *learnedTemperature) Step(logPdf []float64) error {
	if len(logPdf) == 0 {
		return fmt.Errorf("step: no log densities given")
	}

	gap := floatutils.Mean(logPdf...) + l.targetEntropy
	if err := G.Let(l.gap, gap); err != nil {
		return fmt.Errorf("step: could not set entropy gap: %v", err)
	}

	if err := l.vm.RunAll(); err != nil {
		return fmt.Errorf("step: could not run VM: %v", err)
	}
	defer l.vm.Reset()

	err := l.solver.Step([]G.ValueGrad{l.logAlpha})
	if err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	return nil
}

// set overwrites α when restoring a serialized agent
func (l *learnedTemperature) set(alpha float64) error {
	if alpha <= 0 {
		return fmt.Errorf("set: alpha must be positive \n\thave(%v)",
			alpha)
	}
	return G.Let(l.logAlpha, math.Log(alpha))
}

// Close cleans up the temperature's resources
func (l *learnedTemperature) Close() error {
	return l.vm.Close()
}
