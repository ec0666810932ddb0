package experiment

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/experiment/checkpointer"
	"sfneuman.com/gosac/experiment/tracker"
	ts "sfneuman.com/gosac/timestep"
	"sfneuman.com/gosac/utils/progressbar"
)

// EpochConfig describes the schedule of an EpochTrainer
type EpochConfig struct {
	// Epochs and StepsPerEpoch partition the run: after every
	// StepsPerEpoch environmental steps the trainer checkpoints the
	// agent, evaluates it deterministically, and records an epoch row.
	Epochs        int
	StepsPerEpoch int

	// StartSteps is the number of initial environmental steps on
	// which actions are drawn uniformly at random from the action
	// space instead of from the agent, to fill the replay buffer with
	// diverse data
	StartSteps int

	// Episodes end early after MaxEpisodeLength steps during training
	// and after MaxEvalEpisodeLength steps during evaluation
	MaxEpisodeLength     int
	MaxEvalEpisodeLength int

	// EvalEpisodes is the number of deterministic evaluation episodes
	// run at each epoch boundary
	EvalEpisodes int
}

// Validate ensures that the EpochConfig is a valid configuration
func (c EpochConfig) Validate() error {
	if c.Epochs <= 0 || c.StepsPerEpoch <= 0 {
		return fmt.Errorf("validate: epochs and steps per epoch must "+
			"be positive \n\thave(%v, %v)", c.Epochs, c.StepsPerEpoch)
	}
	if c.MaxEpisodeLength <= 0 || c.MaxEvalEpisodeLength <= 0 {
		return fmt.Errorf("validate: episode length limits must be "+
			"positive \n\thave(%v, %v)", c.MaxEpisodeLength,
			c.MaxEvalEpisodeLength)
	}
	if c.StartSteps < 0 {
		return fmt.Errorf("validate: start steps cannot be negative "+
			"\n\thave(%v)", c.StartSteps)
	}
	if c.EvalEpisodes < 0 {
		return fmt.Errorf("validate: evaluation episodes cannot be "+
			"negative \n\thave(%v)", c.EvalEpisodes)
	}
	return nil
}

// EpochTrainer is an Experiment that interleaves data collection and
// learning the way SAC expects: the agent acts in the environment
// storing transitions, and at the end of every episode it performs as
// many gradient updates as the episode had steps. At every epoch
// boundary the agent is checkpointed and evaluated deterministically
// on a separate copy of the environment.
type EpochTrainer struct {
	env     environment.Environment
	testEnv environment.Environment
	agent   Agent
	config  EpochConfig

	explorer environment.UniformSampler

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	epochLog      *tracker.EpochLog

	// Return and length of the last completed training episode
	lastReturn float64
	lastLength int
}

// NewEpochTrainer returns a new EpochTrainer. The testEnv should be a
// separate instance of the training environment so that evaluation
// episodes do not disturb the training episode stream. The epochLog
// may be nil, in which case no per-epoch diagnostics are recorded.
func NewEpochTrainer(env, testEnv environment.Environment, a Agent,
	config EpochConfig, seed uint64, trackers []tracker.Tracker,
	checkpointers []checkpointer.Checkpointer,
	epochLog *tracker.EpochLog) (*EpochTrainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("epochtrainer: %v", err)
	}

	return &EpochTrainer{
		env:      env,
		testEnv:  testEnv,
		agent:    a,
		config:   config,
		explorer: environment.NewUniformSampler(env.ActionSpec(), seed),

		trackers:      trackers,
		checkpointers: checkpointers,
		epochLog:      epochLog,
	}, nil
}

// Register registers a tracker.Tracker with the experiment so that
// data generated during the experiment can be tracked and saved
func (e *EpochTrainer) Register(t tracker.Tracker) {
	e.trackers = append(e.trackers, t)
}

// Run runs the experiment for all epochs
func (e *EpochTrainer) Run() error {
	totalSteps := e.config.Epochs * e.config.StepsPerEpoch
	startTime := time.Now()

	pbar := progressbar.NewProgressBar(50, totalSteps, time.Second, false)
	pbar.Display()
	defer pbar.Close()

	e.agent.Train()

	step := e.env.Reset()
	if err := e.agent.ObserveFirst(step); err != nil {
		return fmt.Errorf("run: %v", err)
	}
	e.track(step)

	epReturn := 0.0
	epLength := 0

	for t := 0; t < totalSteps; t++ {
		var action *mat.VecDense
		if t < e.config.StartSteps {
			action = e.explorer.Sample()
		} else {
			action = e.agent.SelectAction(step)
		}

		nextStep, _ := e.env.Step(action)
		epReturn += nextStep.Reward
		epLength++

		// Cut the episode off at the step limit. The end is marked as
		// a timeout so the agent can distinguish it from reaching a
		// terminal state.
		if !nextStep.Last() && epLength >= e.config.MaxEpisodeLength {
			nextStep.StepType = ts.Last
			nextStep.SetEnd(ts.Timeout)
		}

		if err := e.agent.Observe(action, nextStep); err != nil {
			return fmt.Errorf("run: %v", err)
		}
		e.track(nextStep)
		step = nextStep

		if step.Last() {
			// One gradient update per environmental step of the
			// completed episode
			for j := 0; j < epLength; j++ {
				if err := e.agent.Step(); err != nil {
					return fmt.Errorf("run: %v", err)
				}
			}
			e.agent.EndEpisode()

			e.lastReturn = epReturn
			e.lastLength = epLength
			epReturn = 0.0
			epLength = 0

			step = e.env.Reset()
			if err := e.agent.ObserveFirst(step); err != nil {
				return fmt.Errorf("run: %v", err)
			}
			e.track(step)
		}

		if (t+1)%e.config.StepsPerEpoch == 0 {
			if err := e.endEpoch((t+1)/e.config.StepsPerEpoch, t+1,
				startTime); err != nil {
				return err
			}
		}

		pbar.Increment()
	}

	return nil
}

// endEpoch checkpoints the agent, runs the deterministic evaluation
// episodes, and records the epoch diagnostics
func (e *EpochTrainer) endEpoch(epoch, totalSteps int,
	startTime time.Time) error {
	for _, c := range e.checkpointers {
		if err := c.Checkpoint(epoch); err != nil {
			return fmt.Errorf("run: could not checkpoint at epoch "+
				"%v: %v", epoch, err)
		}
	}

	evalReturn, evalLength := e.evaluate()

	if e.epochLog != nil {
		lossPi, lossQ1, lossQ2 := e.agent.Losses()
		e.epochLog.TrackEpoch(tracker.EpochData{
			Epoch:      epoch,
			TotalSteps: totalSteps,

			Return:        e.lastReturn,
			EpisodeLength: float64(e.lastLength),

			EvalReturn:        evalReturn,
			EvalEpisodeLength: evalLength,

			LossPi: lossPi,
			LossQ1: lossQ1,
			LossQ2: lossQ2,
			Alpha:  e.agent.Alpha(),

			Elapsed: time.Since(startTime),
		})
	}

	return nil
}

// evaluate runs the configured number of deterministic episodes on
// the test environment, returning the mean return and mean episode
// length
func (e *EpochTrainer) evaluate() (meanReturn, meanLength float64) {
	if e.config.EvalEpisodes == 0 {
		return 0, 0
	}

	e.agent.Eval()
	defer e.agent.Train()

	// Evaluation episodes are few and long, so the bar advances once
	// per episode and is redrawn manually
	pbar := progressbar.NewManualProgressBar(50, e.config.EvalEpisodes)
	pbar.Display()

	var totalReturn, totalLength float64
	for i := 0; i < e.config.EvalEpisodes; i++ {
		step := e.testEnv.Reset()
		length := 0

		for !step.Last() && length < e.config.MaxEvalEpisodeLength {
			action := e.agent.SelectAction(step)
			step, _ = e.testEnv.Step(action)
			totalReturn += step.Reward
			length++
		}
		totalLength += float64(length)

		pbar.Increment()
		pbar.Display()
	}

	episodes := float64(e.config.EvalEpisodes)
	return totalReturn / episodes, totalLength / episodes
}

// Save saves all the data cached by the Trackers to disk
func (e *EpochTrainer) Save() {
	for _, t := range e.trackers {
		t.Save()
	}
	if e.epochLog != nil {
		e.epochLog.Save()
	}
}

// track tracks the current timestep by caching its data in each
// tracker
func (e *EpochTrainer) track(t ts.TimeStep) {
	for _, tr := range e.trackers {
		tr.Track(t)
	}
}

var _ Experiment = (*EpochTrainer)(nil)
