// Package checkpointer implements periodic serialization of training
// state during an experiment.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Serializable is an object that can be saved to a checkpoint file
type Serializable interface {
	gob.GobEncoder
}

// Checkpointer saves serializable objects as an experiment progresses.
// Checkpoint is called once at the end of every episode, after the
// agent's parameter update.
type Checkpointer interface {
	Checkpoint(episode int) error
}

// write gob-encodes object into a new file at filename
func write(object Serializable, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("write: could not create checkpoint file: %v",
			err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(object); err != nil {
		return fmt.Errorf("write: could not encode checkpoint: %v", err)
	}
	return nil
}

// Load reads a checkpoint file into object, which must be a
// constructed gob.GobDecoder compatible with the saved state.
func Load(filename string, object gob.GobDecoder) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open checkpoint file: %v", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(object); err != nil {
		return fmt.Errorf("load: could not decode checkpoint: %v", err)
	}
	return nil
}
