// Package policy implements policies for continuous-action agents
// using neural network function approximation
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/timestep"
)

// Bounds on the log standard deviation of the squashed Gaussian
// policy. The raw log standard deviation prediction is squashed with
// tanh and rescaled into [LogStdMin, LogStdMax] so that the standard
// deviation can neither explode nor collapse to zero.
const (
	LogStdMin float64 = -20.0
	LogStdMax float64 = 2.0
)

// SquashedGaussianTreeMLP implements a squashed Gaussian policy
// parameterized by a tree MLP. The MLP has a single root network which
// breaks off into two leaf networks. One predicts the mean, and the
// other the log standard deviation. See the network.TreeMLP struct for
// more details.
//
// Given a network prediction of the mean μ and standard deviation σ of
// the Gaussian policy, actions are selected by sampling from the
// standard normal ɛ ~ N(0, 1) and computing
//
//	action := tanh(μ + σ * ɛ) * actionBound
//
// The sampling computation is part of the policy's computational
// graph, with ɛ as an input node. Because of this, the log probability
// of the selected action is differentiable with respect to the policy
// weights, which is what makes the policy usable in reparameterization
// gradient algorithms. The log probability includes the change of
// variables correction for the tanh squashing.
//
// When constructed with a batch size of 1, the policy owns a VM and
// can select actions at each timestep with SelectAction(). When
// constructed with a larger batch size, the policy is a subgraph to be
// run by some external learner's VM, and SelectAction() panics.
type SquashedGaussianTreeMLP struct {
	vm  G.VM
	net network.NeuralNet

	eps         *G.Node
	actions     *G.Node
	meanActions *G.Node
	logPdfNode  *G.Node

	actionsVal     G.Value
	meanActionsVal G.Value
	logPdfVal      G.Value

	normal      distmv.Rander
	actionDims  int
	actionBound float64
	batchSize   int

	evalMode bool
}

// NewSquashedGaussianTreeMLP returns a new SquashedGaussianTreeMLP
// policy selecting actions for the argument environment. The neural
// network parameterization is defined by rootHiddenSizes, rootBiases,
// rootActivations, leafHiddenSizes, leafBiases, and leafActivations.
// See the network.TreeMLP struct for details on these parameters.
//
// The policy's network is placed on graph g together with the
// in-graph sampling computation. The init parameter determines the
// weight initialization scheme for the neural net, and the seed
// parameter seeds the policy's noise sampler.
func NewSquashedGaussianTreeMLP(env environment.Environment, batchSize int,
	g *G.ExprGraph, rootHiddenSizes []int, rootBiases []bool,
	rootActivations []*network.Activation, leafHiddenSizes [][]int,
	leafBiases [][]bool, leafActivations [][]*network.Activation,
	init G.InitWFn, seed uint64) (*SquashedGaussianTreeMLP, error) {

	if env.ActionSpec().Cardinality != environment.Continuous {
		return nil, fmt.Errorf("newSquashedGaussianTreeMLP: actions " +
			"must be continuous")
	}
	if len(leafHiddenSizes) != 2 {
		return nil, fmt.Errorf("newSquashedGaussianTreeMLP: gaussian "+
			"policy requires 2 leaf networks \n\twant(2) \n\thave(%v)",
			len(leafHiddenSizes))
	}

	features := env.ObservationSpec().Shape.Len()
	actionDims := env.ActionSpec().Shape.Len()
	actionBound := env.ActionSpec().UpperBound.AtVec(0)

	net, err := network.NewTreeMLP(
		features,
		batchSize,
		actionDims,
		g,
		rootHiddenSizes,
		rootBiases,
		rootActivations,
		leafHiddenSizes,
		leafBiases,
		leafActivations,
		init,
	)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussianTreeMLP: could not "+
			"construct tree MLP: %v", err)
	}

	// Noise input for the reparameterized sample
	eps := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithName("epsilon"),
		G.WithShape(batchSize, actionDims),
		G.WithInit(G.Zeroes()),
	)

	actions, meanActions, logPdfNode, err := SquashedSample(net, eps,
		actionBound)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussianTreeMLP: %v", err)
	}

	// Standard normal for drawing noise
	means := make([]float64, actionDims)
	stds := make([]float64, actionDims)
	for i := range stds {
		stds[i] = 1.0
	}
	source := rand.NewSource(seed)
	normal, ok := distmv.NewNormal(means, mat.NewDiagDense(actionDims, stds),
		source)
	if !ok {
		return nil, fmt.Errorf("newSquashedGaussianTreeMLP: could not " +
			"create standard normal for noise sampling")
	}

	pol := &SquashedGaussianTreeMLP{
		net: net,

		eps:         eps,
		actions:     actions,
		meanActions: meanActions,
		logPdfNode:  logPdfNode,

		normal:      normal,
		actionDims:  actionDims,
		actionBound: actionBound,
		batchSize:   batchSize,
	}

	// Record values of Gorgonia nodes
	G.Read(pol.actions, &pol.actionsVal)
	G.Read(pol.meanActions, &pol.meanActionsVal)
	G.Read(pol.logPdfNode, &pol.logPdfVal)

	// Policy can select actions at each timestep only if using a batch
	// size of 1.
	if batchSize == 1 {
		pol.vm = G.NewTapeMachine(g)
	}

	return pol, nil
}

// SquashedSample adds the squashed Gaussian sampling computation to
// the graph of net, which must be a tree MLP predicting the mean as
// its first output layer and the raw log standard deviation as its
// second. The eps node provides the standard normal noise for the
// reparameterized sample and must have the same shape as the mean
// prediction.
//
// SquashedSample returns the node of the sampled actions, the node of
// the deterministic (mean) actions, and the node holding the log
// probability density of the sampled actions. The log density sums
// over action dimensions, producing one value per batch row, and
// includes the tanh change of variables correction
//
//	log π(a|s) = log N(u|μ,σ) - Σ log(1 - tanh(u)² + 1e-6)
//
// where u is the pre-squashing sample. The constant correction for the
// action bound rescaling is omitted since it does not affect
// gradients.
func SquashedSample(net network.NeuralNet, eps *G.Node,
	actionBound float64) (*G.Node, *G.Node, *G.Node, error) {
	if len(net.Prediction()) != 2 {
		return nil, nil, nil, fmt.Errorf("squashedSample: network must "+
			"have 2 output layers \n\twant(2) \n\thave(%v)",
			len(net.Prediction()))
	}

	mean := net.Prediction()[0]
	rawLogStd := net.Prediction()[1]

	one := G.NewConstant(1.0)
	two := G.NewConstant(2.0)
	negativeHalf := G.NewConstant(-0.5)

	// Squash the raw log standard deviation into [LogStdMin, LogStdMax]
	halfRange := G.NewConstant(0.5 * (LogStdMax - LogStdMin))
	logStd := G.Must(G.Tanh(rawLogStd))
	logStd = G.Must(G.Add(logStd, one))
	logStd = G.Must(G.HadamardProd(halfRange, logStd))
	logStd = G.Must(G.Add(G.NewConstant(LogStdMin), logStd))
	std := G.Must(G.Exp(logStd))

	// Reparameterized sample u = μ + σ * ɛ squashed into the action
	// bounds
	u := G.Must(G.HadamardProd(std, eps))
	u = G.Must(G.Add(mean, u))
	tanhU := G.Must(G.Tanh(u))

	bound := G.NewConstant(actionBound)
	actions := G.Must(G.HadamardProd(bound, tanhU))
	meanActions := G.Must(G.HadamardProd(bound, G.Must(G.Tanh(mean))))

	// Gaussian log density of u, summed over action dimensions
	z := G.Must(G.Sub(u, mean))
	z = G.Must(G.HadamardDiv(z, std))
	exponent := G.Must(G.Pow(z, two))
	exponent = G.Must(G.HadamardProd(negativeHalf, exponent))

	norm := G.NewConstant(math.Log(math.Pow(2*math.Pi, 0.5)))
	gauss := G.Must(G.Sub(exponent, G.Must(G.Add(logStd, norm))))
	logPdf := G.Must(G.Sum(gauss, 1))

	// Change of variables correction for the tanh squashing
	correction := G.Must(G.HadamardProd(tanhU, tanhU))
	correction = G.Must(G.Sub(one, correction))
	correction = G.Must(G.Add(correction, G.NewConstant(1e-6)))
	correction = G.Must(G.Log(correction))
	correction = G.Must(G.Sum(correction, 1))

	logPdf = G.Must(G.Sub(logPdf, correction))

	return actions, meanActions, logPdf, nil
}

// ResampleNoise draws fresh standard normal noise and sets the
// policy's noise input node, so that the next run of the graph
// produces a fresh action sample.
func (s *SquashedGaussianTreeMLP) ResampleNoise() error {
	noise := make([]float64, s.batchSize*s.actionDims)
	for i := 0; i < s.batchSize; i++ {
		s.normal.Rand(noise[i*s.actionDims : (i+1)*s.actionDims])
	}

	noiseTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.actionDims},
		tensor.WithBacking(noise),
	)
	return G.Let(s.eps, noiseTensor)
}

// SelectAction selects and returns an action at the argument timestep
// t. In training mode the action is sampled from the policy
// distribution; in evaluation mode the deterministic mean action is
// returned.
func (s *SquashedGaussianTreeMLP) SelectAction(
	t timestep.TimeStep) *mat.VecDense {
	if s.batchSize != 1 {
		panic(fmt.Sprintf("selectAction: action selection can only be "+
			"done with a policy with batch size 1 \n\twant(1) "+
			"\n\thave(%v)", s.batchSize))
	}

	obs := make([]float64, t.Observation.Len())
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}
	if err := s.net.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}
	if err := s.ResampleNoise(); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set noise: %v", err))
	}

	if err := s.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer s.vm.Reset()

	var action []float64
	if s.evalMode {
		action = s.meanActionsVal.Data().([]float64)
	} else {
		action = s.actionsVal.Data().([]float64)
	}

	out := make([]float64, s.actionDims)
	copy(out, action)
	return mat.NewVecDense(s.actionDims, out)
}

// Actions returns the node holding the policy's sampled actions
func (s *SquashedGaussianTreeMLP) Actions() *G.Node {
	return s.actions
}

// ActionsVal returns the value of the node returned by Actions() after
// the graph has been run
func (s *SquashedGaussianTreeMLP) ActionsVal() G.Value {
	return s.actionsVal
}

// LogPdfNode returns the node that holds the log probability density
// of the policy's sampled actions when the computational graph is run.
func (s *SquashedGaussianTreeMLP) LogPdfNode() *G.Node {
	return s.logPdfNode
}

// LogPdfVal returns the value of the node returned by LogPdfNode()
func (s *SquashedGaussianTreeMLP) LogPdfVal() G.Value {
	return s.logPdfVal
}

// Network returns the network of the SquashedGaussianTreeMLP
func (s *SquashedGaussianTreeMLP) Network() network.NeuralNet {
	return s.net
}

// Eval sets the policy to evaluation mode
func (s *SquashedGaussianTreeMLP) Eval() { s.evalMode = true }

// Train sets the policy to training mode
func (s *SquashedGaussianTreeMLP) Train() { s.evalMode = false }

// IsEval returns whether the policy is in evaluation mode
func (s *SquashedGaussianTreeMLP) IsEval() bool { return s.evalMode }

// Close cleans up the policy's resources
func (s *SquashedGaussianTreeMLP) Close() error {
	if s.vm != nil {
		return s.vm.Close()
	}
	return nil
}
