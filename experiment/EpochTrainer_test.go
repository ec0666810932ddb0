package experiment

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/agent/nonlinear/continuous/sac"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/experiment/checkpointer"
	"sfneuman.com/gosac/experiment/tracker"
	"sfneuman.com/gosac/initwfn"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/solver"
	"sfneuman.com/gosac/timestep"
)

// chainEnv is a stub environment with a 2-dimensional observation and
// a single continuous action in [-1, 1]. Episodes pay a reward of 1
// on every step and terminate after 5 steps.
type chainEnv struct {
	steps int
}

func (c *chainEnv) obs() *mat.VecDense {
	return mat.NewVecDense(2, []float64{float64(c.steps) * 0.1, -0.5})
}

func (c *chainEnv) Reset() timestep.TimeStep {
	c.steps = 0
	return timestep.New(timestep.First, 0, 1.0, c.obs(), 0)
}

func (c *chainEnv) Step(action *mat.VecDense) (timestep.TimeStep, bool) {
	c.steps++
	stepType := timestep.Mid
	if c.steps >= 5 {
		stepType = timestep.Last
	}

	step := timestep.New(stepType, 1.0, 1.0, c.obs(), c.steps)
	if step.Last() {
		step.SetEnd(timestep.TerminalStateReached)
	}
	return step, step.Last()
}

func (c *chainEnv) RewardSpec() environment.Spec {
	bound := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Reward,
		bound, bound, environment.Continuous)
}

func (c *chainEnv) DiscountSpec() environment.Spec {
	bound := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Discount,
		bound, bound, environment.Continuous)
}

func (c *chainEnv) ObservationSpec() environment.Spec {
	low := mat.NewVecDense(2, []float64{-1, -1})
	high := mat.NewVecDense(2, []float64{1, 1})
	return environment.NewSpec(mat.NewVecDense(2, nil),
		environment.Observation, low, high, environment.Continuous)
}

func (c *chainEnv) ActionSpec() environment.Spec {
	low := mat.NewVecDense(1, []float64{-1.0})
	high := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		low, high, environment.Continuous)
}

func testAgent(t *testing.T, env environment.Environment) *sac.SAC {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("could not create weight initializer: %v", err)
	}
	policySolver, err := solver.NewDefaultAdam(1e-3, 4)
	if err != nil {
		t.Fatalf("could not create policy solver: %v", err)
	}
	criticSolver, err := solver.NewDefaultAdam(1e-3, 4)
	if err != nil {
		t.Fatalf("could not create critic solver: %v", err)
	}

	config := sac.Config{
		RootHiddenSizes: []int{8},
		RootBiases:      []bool{true},
		RootActivations: []*network.Activation{network.ReLU()},
		LeafHiddenSizes: [][]int{{}, {}},
		LeafBiases:      [][]bool{{}, {}},
		LeafActivations: [][]*network.Activation{{}, {}},

		QHiddenSizes: []int{8},
		QBiases:      []bool{true},
		QActivations: []*network.Activation{network.ReLU()},

		InitWFn:      init,
		PolicySolver: policySolver,
		CriticSolver: criticSolver,

		BatchSize:      4,
		ReplayCapacity: 100,

		Gamma: 0.99,
		Tau:   0.005,
		Alpha: 0.2,
	}

	agent, err := sac.New(env, config, 1)
	if err != nil {
		t.Fatalf("could not create agent: %v", err)
	}
	return agent
}

func TestEpochTrainerRun(t *testing.T) {
	env := &chainEnv{}
	testEnv := &chainEnv{}
	agent := testAgent(t, env)
	defer agent.Close()

	dir := t.TempDir()
	returnsFile := filepath.Join(dir, "returns.bin")
	checkpointFile := filepath.Join(dir, "agent")

	check, err := checkpointer.NewNEpoch(1, agent,
		checkpointer.FilenameEnumerator(0, checkpointFile, ".bin"))
	if err != nil {
		t.Fatalf("could not create checkpointer: %v", err)
	}

	epochLog := tracker.NewEpochLog(filepath.Join(dir, "epochs.bin"))
	trainer, err := NewEpochTrainer(env, testEnv, agent, EpochConfig{
		Epochs:               1,
		StepsPerEpoch:        20,
		StartSteps:           10,
		MaxEpisodeLength:     10,
		MaxEvalEpisodeLength: 10,
		EvalEpisodes:         2,
	}, 14, []tracker.Tracker{tracker.NewReturn(returnsFile)},
		[]checkpointer.Checkpointer{check}, epochLog)
	if err != nil {
		t.Fatalf("could not create trainer: %v", err)
	}

	if err := trainer.Run(); err != nil {
		t.Fatalf("could not run experiment: %v", err)
	}
	trainer.Save()

	// 20 steps of 5-step episodes: 4 completed episodes, one gradient
	// update per collected step
	if agent.GradientSteps() != 20 {
		t.Errorf("invalid number of gradient steps \n\twant(20) "+
			"\n\thave(%v)", agent.GradientSteps())
	}

	returns := tracker.LoadData(returnsFile)
	if len(returns) != 4 {
		t.Fatalf("invalid number of tracked episodes \n\twant(4) "+
			"\n\thave(%v)", len(returns))
	}
	for i, ret := range returns {
		if ret != 5.0 {
			t.Errorf("invalid return for episode %v \n\twant(5.0) "+
				"\n\thave(%v)", i, ret)
		}
	}

	rows := epochLog.Rows()
	if len(rows) != 1 {
		t.Fatalf("invalid number of epoch rows \n\twant(1) \n\thave(%v)",
			len(rows))
	}
	if rows[0].Epoch != 1 || rows[0].TotalSteps != 20 {
		t.Errorf("invalid epoch row: %+v", rows[0])
	}
	if rows[0].EvalEpisodeLength != 5.0 {
		t.Errorf("invalid evaluation episode length \n\twant(5.0) "+
			"\n\thave(%v)", rows[0].EvalEpisodeLength)
	}

	if _, err := os.Stat(checkpointFile + "1.bin"); err != nil {
		t.Errorf("checkpoint file not written: %v", err)
	}
}

func TestEpochTrainerTimeoutCutsEpisodes(t *testing.T) {
	// An episode length limit below the environment's natural episode
	// length forces every episode to end by timeout
	env := &chainEnv{}
	testEnv := &chainEnv{}
	agent := testAgent(t, env)
	defer agent.Close()

	dir := t.TempDir()
	lengthsFile := filepath.Join(dir, "lengths.bin")

	trainer, err := NewEpochTrainer(env, testEnv, agent, EpochConfig{
		Epochs:               1,
		StepsPerEpoch:        12,
		StartSteps:           12,
		MaxEpisodeLength:     3,
		MaxEvalEpisodeLength: 10,
		EvalEpisodes:         0,
	}, 15, []tracker.Tracker{tracker.NewEpisodeLength(lengthsFile)},
		nil, nil)
	if err != nil {
		t.Fatalf("could not create trainer: %v", err)
	}

	if err := trainer.Run(); err != nil {
		t.Fatalf("could not run experiment: %v", err)
	}
	trainer.Save()

	lengths := tracker.LoadData(lengthsFile)
	if len(lengths) != 4 {
		t.Fatalf("invalid number of episodes \n\twant(4) \n\thave(%v)",
			len(lengths))
	}
	for i, length := range lengths {
		if length != 3 {
			t.Errorf("invalid length for episode %v \n\twant(3) "+
				"\n\thave(%v)", i, length)
		}
	}
}
