// Package network implements neural network function approximators
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet implements a neural network whose forward pass lives on a
// Gorgonia computational graph. A network may have more than one output
// layer, in which case Prediction and Output return one node and value
// per output layer respectively.
type NeuralNet interface {
	// Graph returns the computational graph that holds the network
	Graph() *G.ExprGraph

	// BatchSize returns the number of rows in a single input to the
	// network
	BatchSize() int

	// Features returns the number of features in a single input row
	Features() int

	// SetInput sets the value of the network's input node before the
	// graph is run
	SetInput([]float64) error

	// Learnables returns the learnable nodes of the network. The order
	// of learnables is construction order and is stable between two
	// networks built with identical architectures.
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Prediction returns the nodes of the computational graph that
	// store the network outputs
	Prediction() []*G.Node

	// Output returns the values of the nodes returned by Prediction
	// after the graph has been run
	Output() []G.Value
}

// Set sets the weights of dest to equal the weights of source. The two
// networks must have been constructed with identical architectures so
// that their learnables correspond.
func Set(dest, source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("set: networks have different numbers of "+
			"learnables \n\twant(%v) \n\thave(%v)", len(nodes),
			len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of dest to a Polyak average between its
// existing weights and the weights of source:
//
//	dest ← (1 - tau) * dest + tau * source
//
// elementwise for every learnable tensor. With tau = 0 dest is
// unchanged; with tau = 1 dest equals source exactly.
func Polyak(dest, source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("polyak: networks have different numbers of "+
			"learnables \n\twant(%v) \n\thave(%v)", len(nodes),
			len(sourceNodes))
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		var newWeights *tensor.Dense
		newWeights, err = weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		err = G.Let(nodes[i], newWeights)
		if err != nil {
			return err
		}
	}
	return nil
}
