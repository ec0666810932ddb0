package policy

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/timestep"
)

// testEnv is a stub environment with a 3-dimensional observation
// vector and a single continuous action bounded in [-2, 2]
type testEnv struct{}

func (t testEnv) Reset() timestep.TimeStep {
	obs := mat.NewVecDense(3, []float64{0.1, 0.2, 0.3})
	return timestep.New(timestep.First, 0, 1.0, obs, 0)
}

func (t testEnv) Step(action *mat.VecDense) (timestep.TimeStep, bool) {
	return t.Reset(), false
}

func (t testEnv) RewardSpec() environment.Spec {
	bound := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Reward,
		bound, bound, environment.Continuous)
}

func (t testEnv) DiscountSpec() environment.Spec {
	bound := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Discount,
		bound, bound, environment.Continuous)
}

func (t testEnv) ObservationSpec() environment.Spec {
	low := mat.NewVecDense(3, []float64{-1, -1, -1})
	high := mat.NewVecDense(3, []float64{1, 1, 1})
	return environment.NewSpec(mat.NewVecDense(3, nil),
		environment.Observation, low, high, environment.Continuous)
}

func (t testEnv) ActionSpec() environment.Spec {
	low := mat.NewVecDense(1, []float64{-2.0})
	high := mat.NewVecDense(1, []float64{2.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		low, high, environment.Continuous)
}

func newTestPolicy(t *testing.T, seed uint64) *SquashedGaussianTreeMLP {
	pol, err := NewSquashedGaussianTreeMLP(
		testEnv{},
		1,
		G.NewGraph(),
		[]int{8},
		[]bool{true},
		[]*network.Activation{network.ReLU()},
		[][]int{{}, {}},
		[][]bool{{}, {}},
		[][]*network.Activation{{}, {}},
		G.GlorotU(1.0),
		seed,
	)
	if err != nil {
		t.Fatalf("could not construct policy: %v", err)
	}
	return pol
}

func TestSelectActionWithinBounds(t *testing.T) {
	pol := newTestPolicy(t, 1)
	defer pol.Close()

	step := testEnv{}.Reset()
	for i := 0; i < 100; i++ {
		action := pol.SelectAction(step)
		if action.Len() != 1 {
			t.Fatalf("invalid action dimensions \n\twant(1) \n\thave(%v)",
				action.Len())
		}
		if a := action.AtVec(0); a < -2.0 || a > 2.0 {
			t.Errorf("action outside bounds: %v", a)
		}
	}
}

func TestSelectActionDeterministicInEval(t *testing.T) {
	pol := newTestPolicy(t, 2)
	defer pol.Close()

	pol.Eval()
	if !pol.IsEval() {
		t.Fatal("policy not in evaluation mode after Eval()")
	}

	step := testEnv{}.Reset()
	first := pol.SelectAction(step)
	for i := 0; i < 10; i++ {
		action := pol.SelectAction(step)
		if action.AtVec(0) != first.AtVec(0) {
			t.Errorf("evaluation actions should be deterministic "+
				"\n\twant(%v) \n\thave(%v)", first.AtVec(0),
				action.AtVec(0))
		}
	}

	pol.Train()
	if pol.IsEval() {
		t.Fatal("policy still in evaluation mode after Train()")
	}
}

func TestLogPdfFinite(t *testing.T) {
	pol := newTestPolicy(t, 3)
	defer pol.Close()

	step := testEnv{}.Reset()
	for i := 0; i < 10; i++ {
		pol.SelectAction(step)
		logPdf := pol.LogPdfVal().Data().([]float64)
		if len(logPdf) != 1 {
			t.Fatalf("invalid log pdf size \n\twant(1) \n\thave(%v)",
				len(logPdf))
		}
		if math.IsNaN(logPdf[0]) || math.IsInf(logPdf[0], 0) {
			t.Errorf("log pdf not finite: %v", logPdf[0])
		}
	}
}

// TestSelectActionGeneralObservation ensures that action selection
// works with any mat.Vector observation, including strided views into
// a larger matrix, by comparing against the same observation stored
// densely
func TestSelectActionGeneralObservation(t *testing.T) {
	pol := newTestPolicy(t, 4)
	defer pol.Close()
	pol.Eval()

	dense := mat.NewVecDense(3, []float64{0.1, 0.2, 0.3})
	denseStep := timestep.New(timestep.First, 0, 1.0, dense, 0)
	want := pol.SelectAction(denseStep)

	// Column 0 of this matrix holds the same observation, but the
	// view over it is strided
	backing := mat.NewDense(3, 2, []float64{
		0.1, -9,
		0.2, -9,
		0.3, -9,
	})
	strided := backing.ColView(0)
	stridedStep := timestep.New(timestep.First, 0, 1.0, strided, 0)
	have := pol.SelectAction(stridedStep)

	if have.AtVec(0) != want.AtVec(0) {
		t.Errorf("strided observation selects a different action "+
			"\n\twant(%v) \n\thave(%v)", want.AtVec(0), have.AtVec(0))
	}
}
