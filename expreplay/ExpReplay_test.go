package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/timestep"
)

// transition returns a transition whose every element is derived from
// id, so tests can tell stored transitions apart
func transition(id float64, terminal bool) timestep.Transition {
	return timestep.Transition{
		State:     mat.NewVecDense(3, []float64{id, id + 0.1, id + 0.2}),
		Action:    mat.NewVecDense(2, []float64{-id, id}),
		Reward:    id,
		NextState: mat.NewVecDense(3, []float64{id + 1, id + 1.1, id + 1.2}),
		Terminal:  terminal,
	}
}

func TestCapacityGrowsAndSaturates(t *testing.T) {
	buffer, err := New(5, 3, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	if buffer.Capacity() != 0 {
		t.Errorf("new buffer should be empty \n\thave(%v)",
			buffer.Capacity())
	}
	if buffer.MaxCapacity() != 5 {
		t.Errorf("maximum capacity \n\twant(5) \n\thave(%v)",
			buffer.MaxCapacity())
	}

	for i := 0; i < 8; i++ {
		if err := buffer.Add(transition(float64(i), false)); err != nil {
			t.Fatal(err)
		}

		expected := i + 1
		if expected > 5 {
			expected = 5
		}
		if buffer.Capacity() != expected {
			t.Errorf("capacity after %v insertions \n\twant(%v) "+
				"\n\thave(%v)", i+1, expected, buffer.Capacity())
		}
	}
}

// TestOverwritesOldest ensures that insertions beyond the maximum
// capacity replace the oldest transitions in the buffer
func TestOverwritesOldest(t *testing.T) {
	buffer, err := New(3, 3, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	// Transitions 0 and 1 should be overwritten by 3 and 4
	for i := 0; i < 5; i++ {
		if err := buffer.Add(transition(float64(i), false)); err != nil {
			t.Fatal(err)
		}
	}

	_, _, rewards, _, _, err := buffer.Sample(100)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rewards {
		if r < 2.0 {
			t.Fatalf("sampled a transition that should have been "+
				"overwritten \n\thave(reward %v)", r)
		}
	}
}

func TestSampleShapes(t *testing.T) {
	buffer, err := New(10, 3, 2, 14)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := buffer.Add(transition(float64(i), i%2 == 0)); err != nil {
			t.Fatal(err)
		}
	}

	batchSize := 6
	states, actions, rewards, terminals, nextStates, err :=
		buffer.Sample(batchSize)
	if err != nil {
		t.Fatal(err)
	}

	if len(states) != batchSize*3 || len(nextStates) != batchSize*3 {
		t.Errorf("state batch sizes \n\twant(%v) \n\thave(%v, %v)",
			batchSize*3, len(states), len(nextStates))
	}
	if len(actions) != batchSize*2 {
		t.Errorf("action batch size \n\twant(%v) \n\thave(%v)",
			batchSize*2, len(actions))
	}
	if len(rewards) != batchSize || len(terminals) != batchSize {
		t.Errorf("reward and terminal batch sizes \n\twant(%v) "+
			"\n\thave(%v, %v)", batchSize, len(rewards), len(terminals))
	}

	// Sampled transitions should hold together: every index of the
	// batch should come from a single stored transition
	for i := 0; i < batchSize; i++ {
		id := rewards[i]
		if states[i*3] != id || states[i*3+1] != id+0.1 {
			t.Errorf("state of batch index %v does not match its reward", i)
		}
		if actions[i*2] != -id || actions[i*2+1] != id {
			t.Errorf("action of batch index %v does not match its reward", i)
		}
		if nextStates[i*3] != id+1 {
			t.Errorf("next state of batch index %v does not match its "+
				"reward", i)
		}

		expectedTerminal := 0.0
		if int(id)%2 == 0 {
			expectedTerminal = 1.0
		}
		if terminals[i] != expectedTerminal {
			t.Errorf("terminal of batch index %v \n\twant(%v) "+
				"\n\thave(%v)", i, expectedTerminal, terminals[i])
		}
	}
}

func TestSampleEmptyBuffer(t *testing.T) {
	buffer, err := New(10, 3, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	_, _, _, _, _, err = buffer.Sample(1)
	if err == nil {
		t.Fatal("expected an error when sampling from an empty buffer")
	}
	if !IsEmptyBuffer(err) {
		t.Errorf("error should indicate an empty buffer \n\thave(%v)", err)
	}
}

func TestAddRejectsWrongSizes(t *testing.T) {
	buffer, err := New(10, 3, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	bad := transition(0.0, false)
	bad.State = mat.NewVecDense(4, nil)
	if err := buffer.Add(bad); err == nil {
		t.Error("expected an error for a state of the wrong size")
	}

	bad = transition(0.0, false)
	bad.Action = mat.NewVecDense(1, nil)
	if err := buffer.Add(bad); err == nil {
		t.Error("expected an error for an action of the wrong size")
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(0, 3, 2, 14); err == nil {
		t.Error("expected an error for a capacity of 0")
	}
}
