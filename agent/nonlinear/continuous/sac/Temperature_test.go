package sac

import (
	"math"
	"testing"

	"sfneuman.com/gosac/solver"
)

func TestFixedTemperature(t *testing.T) {
	temp, err := NewFixedTemperature(0.5)
	if err != nil {
		t.Fatalf("could not create temperature: %v", err)
	}
	defer temp.Close()

	for i := 0; i < 10; i++ {
		if err := temp.Step([]float64{-1.0, -2.0}); err != nil {
			t.Fatalf("could not step temperature: %v", err)
		}
	}
	if alpha := temp.Alpha(); alpha != 0.5 {
		t.Errorf("fixed temperature changed \n\twant(0.5) \n\thave(%v)",
			alpha)
	}
}

// TestLearnedTemperatureInitialValue pins the starting point of the
// learned coefficient: log(α) begins at 1
func TestLearnedTemperatureInitialValue(t *testing.T) {
	sol, err := solver.NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	temp, err := NewLearnedTemperature(-1.0, sol)
	if err != nil {
		t.Fatalf("could not create temperature: %v", err)
	}
	defer temp.Close()

	if alpha := temp.Alpha(); alpha != math.Exp(InitialLogAlpha) {
		t.Errorf("initial alpha \n\twant(%v) \n\thave(%v)",
			math.Exp(InitialLogAlpha), alpha)
	}
}

func TestLearnedTemperatureDirection(t *testing.T) {
	initial := math.Exp(InitialLogAlpha)

	sol, err := solver.NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}

	// Entropy above target: log densities well below the target
	// entropy mean the policy is more random than required, so α
	// should shrink
	temp, err := NewLearnedTemperature(-1.0, sol)
	if err != nil {
		t.Fatalf("could not create temperature: %v", err)
	}
	defer temp.Close()

	for i := 0; i < 10; i++ {
		if err := temp.Step([]float64{-5.0}); err != nil {
			t.Fatalf("could not step temperature: %v", err)
		}
	}
	if alpha := temp.Alpha(); alpha >= initial {
		t.Errorf("alpha should shrink when entropy exceeds the target "+
			"\n\thave(%v)", alpha)
	}

	// Entropy below target: α should grow
	sol2, err := solver.NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	temp2, err := NewLearnedTemperature(-1.0, sol2)
	if err != nil {
		t.Fatalf("could not create temperature: %v", err)
	}
	defer temp2.Close()

	for i := 0; i < 10; i++ {
		if err := temp2.Step([]float64{5.0}); err != nil {
			t.Fatalf("could not step temperature: %v", err)
		}
	}
	if alpha := temp2.Alpha(); alpha <= initial {
		t.Errorf("alpha should grow when entropy is below the target "+
			"\n\thave(%v)", alpha)
	}
}

func TestLearnedTemperatureRestore(t *testing.T) {
	sol, err := solver.NewDefaultAdam(0.01, 1)
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}
	temp, err := NewLearnedTemperature(-1.0, sol)
	if err != nil {
		t.Fatalf("could not create temperature: %v", err)
	}
	defer temp.Close()

	if err := temp.set(0.25); err != nil {
		t.Fatalf("could not set temperature: %v", err)
	}
	if alpha := temp.Alpha(); alpha < 0.2499 || alpha > 0.2501 {
		t.Errorf("invalid restored alpha \n\twant(0.25) \n\thave(%v)",
			alpha)
	}
}
