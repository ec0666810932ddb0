package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TreeMLP implements a multi-layered perceptron with a root
// observation network and multiple leaf networks that use the output
// of the root network as their own inputs. A diagram of a tree MLP:
//
//	                 ╭─→ Leaf Network 1 ─→ Output
//	Input ─→ Root Net┤        ...
//	                 ╰─→ Leaf Network N ─→ Output
//
// Gaussian policies are parameterized this way: a shared trunk with
// one leaf predicting the mean and another the log standard deviation.
type TreeMLP struct {
	g            *G.ExprGraph
	rootNetwork  NeuralNet
	leafNetworks []NeuralNet
	input        *G.Node

	numOutputs int
	numInputs  int
	batchSize  int

	rootHiddenSizes []int
	leafHiddenSizes [][]int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction []*G.Node
	predVal    []G.Value
}

// NewTreeMLP returns a new NeuralNet with a tree MLP architecture on
// graph g. The network owns its input node of shape (batch, features).
//
// The root network has a number of layers equal to
// len(rootHiddenSizes); for index i, rootHiddenSizes[i] determines the
// number of units in that layer, rootBiases[i] whether a bias unit is
// added, and rootActivations[i] the activation function. The number of
// leaf networks is len(leafHiddenSizes), with leafHiddenSizes[i][j]
// describing layer j of leaf network i (similarly for leafBiases and
// leafActivations). A final linear layer is added to each leaf network
// so that every leaf predicts outputs values. To create leaf networks
// with only this single linear layer, use leafHiddenSizes =
// [][]int{{}, {}, ..., {}}.
func NewTreeMLP(features, batch, outputs int, g *G.ExprGraph,
	rootHiddenSizes []int, rootBiases []bool, rootActivations []*Activation,
	leafHiddenSizes [][]int, leafBiases [][]bool,
	leafActivations [][]*Activation, init G.InitWFn) (NeuralNet, error) {
	if len(rootHiddenSizes) == 0 {
		return nil, fmt.Errorf("newtreemlp: root network must have at " +
			"least one hidden layer")
	}
	if len(leafHiddenSizes) == 0 {
		return nil, fmt.Errorf("newtreemlp: there must be at least one " +
			"leaf network")
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("newtreemlp: there must be more than 0 " +
			"outputs per leaf network")
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	// Create the root/observation network and run its forward pass
	rootOutputs := rootHiddenSizes[len(rootHiddenSizes)-1]
	rootNetwork, err := newMultiHeadMLPFromInputs([]*G.Node{input},
		rootOutputs, g, rootHiddenSizes, rootBiases, init, rootActivations,
		"Root", false)
	if err != nil {
		return nil, fmt.Errorf("newtreemlp: could not construct root "+
			"network: %v", err)
	}

	// Create the leaf networks, each using the root output as input
	rootOutput := rootNetwork.Prediction()
	leafNetworks := make([]NeuralNet, len(leafHiddenSizes))
	for i := range leafHiddenSizes {
		prefix := fmt.Sprintf("Leaf%d", i)

		leafNetworks[i], err = newMultiHeadMLPFromInputs(rootOutput,
			outputs, g, leafHiddenSizes[i], leafBiases[i], init,
			leafActivations[i], prefix, true)
		if err != nil {
			return nil, fmt.Errorf("newtreemlp: could not construct leaf "+
				"network %v: %v", i, err)
		}
	}

	net := &TreeMLP{
		g:               g,
		rootNetwork:     rootNetwork,
		leafNetworks:    leafNetworks,
		input:           input,
		numOutputs:      outputs,
		numInputs:       features,
		batchSize:       batch,
		rootHiddenSizes: rootHiddenSizes,
		leafHiddenSizes: leafHiddenSizes,
	}

	// The root and leaf forward passes were run at construction; all
	// that remains is collecting the leaf outputs.
	net.prediction = make([]*G.Node, 0, len(leafNetworks))
	for _, leafNet := range leafNetworks {
		net.prediction = append(net.prediction, leafNet.Prediction()...)
	}
	net.predVal = make([]G.Value, len(net.prediction))
	for i, pred := range net.prediction {
		G.Read(pred, &net.predVal[i])
	}

	return net, nil
}

// Graph returns the computational graph of the network
func (t *TreeMLP) Graph() *G.ExprGraph {
	return t.g
}

// BatchSize returns the batch size for inputs to the network
func (t *TreeMLP) BatchSize() int {
	return t.batchSize
}

// Features returns the number of input features
func (t *TreeMLP) Features() int {
	return t.numInputs
}

// Outputs returns the number of outputs per leaf network
func (t *TreeMLP) Outputs() int {
	return t.numOutputs
}

// OutputLayers returns the number of output layers, one per leaf
// network
func (t *TreeMLP) OutputLayers() int {
	return len(t.prediction)
}

// SetInput sets the value of the input node before running the forward
// pass
func (t *TreeMLP) SetInput(input []float64) error {
	if len(input) != t.numInputs*t.batchSize {
		msg := "setinput: invalid number of inputs\n\twant(%v)\n\thave(%v)"
		return fmt.Errorf(msg, t.numInputs*t.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(t.input.Shape()...),
	)
	return G.Let(t.input, inputTensor)
}

// Learnables returns the learnable nodes in the TreeMLP, root network
// first
func (t *TreeMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if t.learnables == nil {
		learnables := make([]*G.Node, 0)
		learnables = append(learnables, t.rootNetwork.Learnables()...)
		for _, leafNet := range t.leafNetworks {
			learnables = append(learnables, leafNet.Learnables()...)
		}
		t.learnables = G.Nodes(learnables)
	}
	return t.learnables
}

// Model returns the learnable nodes with their gradients
func (t *TreeMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if t.model == nil {
		t.model = make([]G.ValueGrad, 0, len(t.Learnables()))
		for _, learnable := range t.Learnables() {
			t.model = append(t.model, learnable)
		}
	}
	return t.model
}

// Output returns the output of each leaf network after the graph has
// been run
func (t *TreeMLP) Output() []G.Value {
	return t.predVal
}

// Prediction returns the nodes of the computational graph that store
// the output of each leaf network
func (t *TreeMLP) Prediction() []*G.Node {
	return t.prediction
}
