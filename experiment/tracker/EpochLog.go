package tracker

import (
	"encoding/gob"
	"log"
	"os"
	"time"
)

// EpochData holds the diagnostics recorded at a single epoch boundary
// of a training run.
type EpochData struct {
	Epoch      int
	TotalSteps int

	// Return and length of the last completed training episode
	Return        float64
	EpisodeLength float64

	// Mean return and length of the deterministic evaluation episodes
	EvalReturn        float64
	EvalEpisodeLength float64

	LossPi float64
	LossQ1 float64
	LossQ2 float64
	Alpha  float64

	Elapsed time.Duration
}

// EpochLog tracks per-epoch training diagnostics. Unlike the
// per-timestep Trackers, an EpochLog is fed one EpochData row at each
// epoch boundary by the training loop.
type EpochLog struct {
	rows     []EpochData
	filename string
}

// NewEpochLog returns a new EpochLog which will save its data at the
// specified location filename
func NewEpochLog(filename string) *EpochLog {
	return &EpochLog{filename: filename}
}

// TrackEpoch caches the diagnostics of a single epoch
func (e *EpochLog) TrackEpoch(data EpochData) {
	e.rows = append(e.rows, data)
}

// Rows returns the epoch rows tracked so far
func (e *EpochLog) Rows() []EpochData {
	return e.rows
}

// Save saves the tracked epoch data to disk.
func (e *EpochLog) Save() {
	file, err := os.Create(e.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(e.rows); err != nil {
		log.Fatalf("could not encode epoch data: %v", err)
	}
}

// LoadEpochData loads and returns the data saved by an EpochLog
func LoadEpochData(filename string) []EpochData {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []EpochData

	if err = dec.Decode(&data); err != nil {
		log.Fatalf("could not decode data: %v", err)
	}

	return data
}
