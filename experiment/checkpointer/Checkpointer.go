// Package checkpointer implements functionality for saving
// serializable objects at points during an experiment
package checkpointer

import (
	"encoding/gob"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects at epoch
// boundaries of a training run
type Checkpointer interface {
	Checkpoint(epoch int) error
}
