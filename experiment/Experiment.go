// Package experiment implements functionality for running an
// experiment
package experiment

import (
	"sfneuman.com/gosac/agent"
	"sfneuman.com/gosac/experiment/tracker"
)

// Experiment outlines structs that can run experiments. Experiments
// track environment TimeSteps, caching data from each TimeStep in RAM
// to be later saved to disk. The Save() function takes all cached data
// and saves it to disk, usually after the experiment has been run.
// The Run() method runs the experiment to completion.
//
// In order to save data, Experiments use Trackers. Trackers determine
// which data generated during the experiment is saved. Experiments
// send each TimeStep to Trackers using the Tracker's Track() method.
// New Trackers can be registered with an Experiment through the
// constructor or through an Experiment's Register() function.
type Experiment interface {
	Run() error

	// Save all tracked data to disk
	Save()

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment. Useful to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}

// Agent is the interface of agents that an EpochTrainer can train: an
// agent.Agent that also exposes its optimization diagnostics for the
// epoch log.
type Agent interface {
	agent.Agent

	// Losses returns the policy and critic losses recorded at the
	// most recent gradient update
	Losses() (lossPi, lossQ1, lossQ2 float64)

	// Alpha returns the agent's current entropy coefficient
	Alpha() float64
}
