package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
)

// nEpoch implements checkpointing every N epochs
type nEpoch struct {
	interval int
	object   Serializable // Object to save

	// filename returns the name of the file to save the object in.
	// FilenameEnumerator produces a suitable naming function when each
	// checkpoint should land in its own numbered file.
	filename func() string
}

// NewNEpoch returns a checkpointer that checkpoints every n epochs.
func NewNEpoch(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNEpoch: interval must be positive "+
			"\n\thave(%v)", n)
	}
	return &nEpoch{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint serializes the Checkpointer's tracked object to disk if
// the argument epoch falls on the checkpointing interval
func (n *nEpoch) Checkpoint(epoch int) error {
	if epoch%n.interval != 0 {
		return nil
	}

	file, err := os.Create(n.filename())
	if err != nil {
		return fmt.Errorf("checkpoint: could not create file: %v", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(n.object); err != nil {
		return fmt.Errorf("checkpoint: could not encode object: %v", err)
	}
	return nil
}

// Load restores a serialized object from a checkpoint file created by
// a Checkpointer
func Load(filename string, object Serializable) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	if err := dec.Decode(object); err != nil {
		return fmt.Errorf("load: could not decode object: %v", err)
	}
	return nil
}
