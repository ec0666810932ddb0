package network

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
)

// newTestNet returns a small MLP with every weight initialized to val
func newTestNet(t *testing.T, val float64) NeuralNet {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(3, 1, 2, g, []int{4}, []bool{true},
		G.ValuesOf(val), []*Activation{ReLU()})
	if err != nil {
		t.Fatalf("could not construct network: %v", err)
	}
	return net
}

// weights returns the flattened values of every learnable in net
func weights(t *testing.T, net NeuralNet) [][]float64 {
	w := make([][]float64, 0, len(net.Learnables()))
	for _, learnable := range net.Learnables() {
		data := learnable.Value().Data().([]float64)
		row := make([]float64, len(data))
		copy(row, data)
		w = append(w, row)
	}
	return w
}

func TestSet(t *testing.T) {
	dest := newTestNet(t, 0.0)
	source := newTestNet(t, 1.0)

	err := Set(dest, source)
	if err != nil {
		t.Fatalf("could not set network weights: %v", err)
	}

	for i, row := range weights(t, dest) {
		for j, w := range row {
			if w != 1.0 {
				t.Errorf("learnable %v weight %v not copied "+
					"\n\twant(1.0) \n\thave(%v)", i, j, w)
			}
		}
	}
}

func TestSetLeavesSourceUnchanged(t *testing.T) {
	dest := newTestNet(t, 0.0)
	source := newTestNet(t, 1.0)

	err := Set(dest, source)
	if err != nil {
		t.Fatalf("could not set network weights: %v", err)
	}

	// Modifying dest afterwards should not write through to source
	err = Polyak(dest, newTestNet(t, -1.0), 1.0)
	if err != nil {
		t.Fatalf("could not set network weights: %v", err)
	}
	for i, row := range weights(t, source) {
		for j, w := range row {
			if w != 1.0 {
				t.Errorf("source learnable %v weight %v changed "+
					"\n\twant(1.0) \n\thave(%v)", i, j, w)
			}
		}
	}
}

func TestPolyak(t *testing.T) {
	tests := []struct {
		tau      float64
		expected float64
	}{
		{0.0, 0.0}, // dest unchanged
		{1.0, 1.0}, // dest becomes source
		{0.25, 0.25},
		{0.05, 0.05},
	}

	for _, test := range tests {
		dest := newTestNet(t, 0.0)
		source := newTestNet(t, 1.0)

		err := Polyak(dest, source, test.tau)
		if err != nil {
			t.Fatalf("could not average network weights: %v", err)
		}

		for i, row := range weights(t, dest) {
			for j, w := range row {
				if math.Abs(w-test.expected) > 1e-10 {
					t.Errorf("tau %v: learnable %v weight %v "+
						"\n\twant(%v) \n\thave(%v)", test.tau, i, j,
						test.expected, w)
				}
			}
		}
	}
}

func TestMultiHeadMLPForward(t *testing.T) {
	const batchSize int = 2
	const features int = 3
	const outputs int = 2

	g := G.NewGraph()
	net, err := NewMultiHeadMLP(features, batchSize, outputs, g, []int{4},
		[]bool{true}, G.ValuesOf(0.5), []*Activation{ReLU()})
	if err != nil {
		t.Fatalf("could not construct network: %v", err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	err = net.SetInput([]float64{1, 1, 1, 2, 2, 2})
	if err != nil {
		t.Fatalf("could not set network input: %v", err)
	}
	err = vm.RunAll()
	if err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}
	vm.Reset()

	out := net.Output()[0].Data().([]float64)
	if len(out) != batchSize*outputs {
		t.Fatalf("invalid output size \n\twant(%v) \n\thave(%v)",
			batchSize*outputs, len(out))
	}

	// With all weights and biases at 0.5: hidden unit = relu(0.5 * 3
	// * input + 0.5), output = 4 hidden units * 0.5 weight + 0.5 bias
	hidden1 := 0.5*3.0 + 0.5
	hidden2 := 0.5*6.0 + 0.5
	expected := []float64{
		4*hidden1*0.5 + 0.5, 4*hidden1*0.5 + 0.5,
		4*hidden2*0.5 + 0.5, 4*hidden2*0.5 + 0.5,
	}
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > 1e-10 {
			t.Errorf("invalid output at index %v \n\twant(%v) "+
				"\n\thave(%v)", i, expected[i], out[i])
		}
	}
}

func TestTreeMLPOutputs(t *testing.T) {
	const batchSize int = 1
	const features int = 4
	const outputs int = 2

	g := G.NewGraph()
	net, err := NewTreeMLP(features, batchSize, outputs, g,
		[]int{8}, []bool{true}, []*Activation{ReLU()},
		[][]int{{}, {}}, [][]bool{{}, {}},
		[][]*Activation{{}, {}}, G.GlorotU(1.0))
	if err != nil {
		t.Fatalf("could not construct network: %v", err)
	}

	if len(net.Prediction()) != 2 {
		t.Fatalf("invalid number of output layers \n\twant(2) "+
			"\n\thave(%v)", len(net.Prediction()))
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	err = net.SetInput([]float64{0.1, -0.2, 0.3, -0.4})
	if err != nil {
		t.Fatalf("could not set network input: %v", err)
	}
	err = vm.RunAll()
	if err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}
	vm.Reset()

	for i, out := range net.Output() {
		data := out.Data().([]float64)
		if len(data) != batchSize*outputs {
			t.Errorf("invalid output size for leaf %v \n\twant(%v) "+
				"\n\thave(%v)", i, batchSize*outputs, len(data))
		}
	}
}
