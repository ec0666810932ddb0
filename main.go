package main

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"
	"sfneuman.com/gosac/agent/nonlinear/continuous/sac"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/environment/box2d/walker"
	"sfneuman.com/gosac/environment/wrappers"
	"sfneuman.com/gosac/experiment"
	"sfneuman.com/gosac/experiment/checkpointer"
	"sfneuman.com/gosac/experiment/tracker"
	"sfneuman.com/gosac/initwfn"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/solver"
)

// newWalkerEnv creates a walker environment with the standard
// wrappers: actions repeated for 3 physics steps, observations
// stacking the last 4 frames
func newWalkerEnv(seed uint64, cutoff int) environment.Environment {
	s := environment.NewUniformStarter([]r1.Interval{
		{Min: walker.InitialX, Max: walker.InitialX},
		{Min: walker.InitialY, Max: walker.InitialY},
		{Min: walker.InitialRandom, Max: walker.InitialRandom},
	}, seed)
	task := walker.NewWalk(s, cutoff)

	env, _, err := walker.New(task, 0.99, seed)
	if err != nil {
		panic(err)
	}

	env, err = wrappers.NewActionRepeat(env, 3)
	if err != nil {
		panic(err)
	}

	env, err = wrappers.NewFrameStack(env, 4)
	if err != nil {
		panic(err)
	}
	return env
}

func main() {
	var seed uint64 = 192382

	// Create the training and evaluation environments
	env := newWalkerEnv(seed, 2000)
	testEnv := newWalkerEnv(seed+1, 2000)

	// Create the weight initializer
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(err)
	}

	batchSize := 256
	policySolver, err := solver.NewDefaultAdam(3e-4, batchSize)
	if err != nil {
		panic(err)
	}
	criticSolver, err := solver.NewDefaultAdam(3e-4, batchSize)
	if err != nil {
		panic(err)
	}

	// Create the learning algorithm
	config := sac.Config{
		RootHiddenSizes: []int{256, 256},
		RootBiases:      []bool{true, true},
		RootActivations: []*network.Activation{network.ReLU(),
			network.ReLU()},
		LeafHiddenSizes: [][]int{{}, {}},
		LeafBiases:      [][]bool{{}, {}},
		LeafActivations: [][]*network.Activation{{}, {}},

		QHiddenSizes: []int{256, 256},
		QBiases:      []bool{true, true},
		QActivations: []*network.Activation{network.ReLU(),
			network.ReLU()},

		InitWFn:      init,
		PolicySolver: policySolver,
		CriticSolver: criticSolver,

		BatchSize:      batchSize,
		ReplayCapacity: 1_000_000,

		Gamma: 0.99,
		Tau:   0.005,

		LearnAlpha: true,
	}
	agent, err := sac.New(env, config, seed)
	if err != nil {
		panic(err)
	}

	// Experiment
	trackers := []tracker.Tracker{
		tracker.NewReturn("./data.bin"),
		tracker.NewEpisodeLength("./episodes.bin"),
	}
	check, err := checkpointer.NewNEpoch(5, agent,
		checkpointer.FilenameEnumerator(0, "sac", ".bin"))
	if err != nil {
		panic(err)
	}
	epochLog := tracker.NewEpochLog("./epochs.bin")

	expConfig := experiment.EpochConfig{
		Epochs:               100,
		StepsPerEpoch:        5_000,
		StartSteps:           10_000,
		MaxEpisodeLength:     1_000,
		MaxEvalEpisodeLength: 1_000,
		EvalEpisodes:         10,
	}
	e, err := experiment.NewEpochTrainer(env, testEnv, agent, expConfig,
		seed, trackers, []checkpointer.Checkpointer{check}, epochLog)
	if err != nil {
		panic(err)
	}
	if err := e.Run(); err != nil {
		panic(err)
	}
	e.Save()

	data := tracker.LoadData("./data.bin")
	last := len(data) - 10
	if last < 0 {
		last = 0
	}
	fmt.Println(data[last:])
}
