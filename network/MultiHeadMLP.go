package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MultiHeadMLP implements a multi-layered perceptron with one output
// unit per value that should be predicted. A MultiHeadMLP may take
// more than one input node, in which case the inputs are concatenated
// along the feature dimension before the first layer. This is how
// action-value networks consume a state and an action together.
type MultiHeadMLP struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// with outputs output units on graph g. The network owns its input
// node, which has shape (batch, features).
//
// The MLP has a number of layers equal to len(hiddenSizes) + 1: a
// final linear layer with a bias unit and no activation is always
// added so that the network predicts outputs values. For index i,
// hiddenSizes[i] is the number of units in hidden layer i, biases[i]
// denotes whether hidden layer i has a bias unit, and activations[i]
// is the activation function for hidden layer i. The init parameter
// determines the weight initialization scheme.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	return newMultiHeadMLPFromInputs([]*G.Node{input}, outputs, g,
		hiddenSizes, biases, init, activations, "", true)
}

// NewMultiHeadMLPFromInputs creates and returns a new multi-layered
// perceptron whose input is the concatenation of the argument input
// nodes along the feature dimension. All input nodes must be matrices
// sharing both graph g and batch dimension. The prefix parameter
// disambiguates weight names when multiple networks share g.
func NewMultiHeadMLPFromInputs(inputs []*G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string) (NeuralNet, error) {
	return newMultiHeadMLPFromInputs(inputs, outputs, g, hiddenSizes, biases,
		init, activations, prefix, true)
}

// newMultiHeadMLPFromInputs constructs a MultiHeadMLP on existing
// input nodes. If addFinalLayer is true, a final linear layer is added
// to predict outputs values; otherwise the last hidden layer must
// already be of size outputs.
func newMultiHeadMLPFromInputs(inputs []*G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string,
	addFinalLayer bool) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmultiheadmlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmultiheadmlp: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	input, err := concatInputs(inputs)
	if err != nil {
		return nil, fmt.Errorf("newmultiheadmlp: %v", err)
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// If required, add a final linear layer with no activation to
	// ensure outputs units are predicted by the network
	if addFinalLayer {
		hiddenSizes = append(append([]int{}, hiddenSizes...), outputs)
		biases = append(append([]bool{}, biases...), true)
		activations = append(append([]*Activation{}, activations...),
			Identity())
	} else if outputs != hiddenSizes[len(hiddenSizes)-1] {
		msg := "newmultiheadmlp: claimed output is of size %v but " +
			"provided final network layer of size %v"
		return nil, fmt.Errorf(msg, outputs,
			hiddenSizes[len(hiddenSizes)-1])
	}

	layers := addfcLayers(g, hiddenSizes, biases, activations, init,
		features, prefix)

	net := &MultiHeadMLP{
		g:           g,
		layers:      layers,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}

	prediction, err := net.Fwd(input)
	if err != nil {
		msg := "newmultiheadmlp: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}
	net.prediction = prediction
	G.Read(net.prediction, &net.predVal)

	return net, nil
}

// concatInputs concatenates input nodes along the feature dimension,
// validating that all inputs are matrices on the same graph.
func concatInputs(inputs []*G.Node) (*G.Node, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("concatinputs: no input nodes given")
	}
	for _, input := range inputs {
		if input.Graph() != inputs[0].Graph() {
			return nil, fmt.Errorf("concatinputs: not all inputs share " +
				"the same graph")
		}
		if !input.IsMatrix() {
			return nil, fmt.Errorf("concatinputs: inputs must be matrices")
		}
	}
	if len(inputs) == 1 {
		return inputs[0], nil
	}
	return G.Must(G.Concat(1, inputs...)), nil
}

// Fwd adds an additional forward pass of the network to the
// computational graph, reusing the network's weights on new input
// nodes. The returned node holds the network output for the new
// inputs. This is how the composition Q(s, π(s)) shares weights with
// Q(s, a) on a single graph.
func (e *MultiHeadMLP) Fwd(inputs ...*G.Node) (*G.Node, error) {
	input, err := concatInputs(inputs)
	if err != nil {
		return nil, fmt.Errorf("fwd: %v", err)
	}
	if input.Shape()[1] != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural "+
			"net \n\twant(%v) \n\thave(%v)", e.numInputs, input.Shape()[1])
	}

	pred := input
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	return pred, nil
}

// Graph returns the computational graph of the MultiHeadMLP
func (e *MultiHeadMLP) Graph() *G.ExprGraph {
	return e.g
}

// BatchSize returns the batch size of inputs to the network
func (e *MultiHeadMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input row,
// counting all input nodes
func (e *MultiHeadMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *MultiHeadMLP) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass. SetInput may only be used on networks that own their input
// node; networks constructed from existing input nodes have their
// inputs set by whoever owns those nodes.
func (e *MultiHeadMLP) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		msg := "setinput: invalid number of inputs\n\twant(%v)\n\thave(%v)"
		return fmt.Errorf(msg, e.numInputs*e.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Learnables returns the learnable nodes in the MultiHeadMLP
func (e *MultiHeadMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		e.learnables = e.computeLearnables()
	}
	return e.learnables
}

func (e *MultiHeadMLP) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(e.layers))
	for i := range e.layers {
		learnables = append(learnables, e.layers[i].Weights())
		if bias := e.layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnable nodes with their gradients
func (e *MultiHeadMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		e.model = make([]G.ValueGrad, 0, len(e.Learnables()))
		for _, node := range e.Learnables() {
			e.model = append(e.model, node)
		}
	}
	return e.model
}

// Output returns the output of the MultiHeadMLP
func (e *MultiHeadMLP) Output() []G.Value {
	return []G.Value{e.predVal}
}

// Prediction returns the node of the computational graph that stores
// the output of the MultiHeadMLP
func (e *MultiHeadMLP) Prediction() []*G.Node {
	return []*G.Node{e.prediction}
}
