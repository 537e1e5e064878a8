package a2c

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/amodrl/amodrl/network"
)

// GobEncode implements the gob.GobEncoder interface. The checkpoint
// holds the behaviour network weights and the current learning rates.
// Solver moment estimates are not saved; restored solvers start fresh,
// the same way a learning rate decay reconstructs them.
func (a *A2C) GobEncode() ([]byte, error) {
	if a.buffer.len() != 0 {
		return nil, fmt.Errorf("gobencode: cannot checkpoint mid-episode")
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(a.behaviourActor); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode actor: %v",
			err)
	}
	if err := enc.Encode(a.behaviourCritic); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode critic: %v",
			err)
	}
	if err := enc.Encode(a.actorSolver.StepSize()); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode actor "+
			"learning rate: %v", err)
	}
	if err := enc.Encode(a.criticSolver.StepSize()); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode critic "+
			"learning rate: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The receiver must
// be a constructed agent for the same simulator and graph
// configuration the checkpoint was taken with.
func (a *A2C) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	actor := new(network.ActorNet)
	if err := dec.Decode(actor); err != nil {
		return fmt.Errorf("gobdecode: could not decode actor: %v", err)
	}
	critic := new(network.CriticNet)
	if err := dec.Decode(critic); err != nil {
		return fmt.Errorf("gobdecode: could not decode critic: %v", err)
	}
	var actorLR, criticLR float64
	if err := dec.Decode(&actorLR); err != nil {
		return fmt.Errorf("gobdecode: could not decode actor learning "+
			"rate: %v", err)
	}
	if err := dec.Decode(&criticLR); err != nil {
		return fmt.Errorf("gobdecode: could not decode critic learning "+
			"rate: %v", err)
	}

	if actor.Nodes() != a.behaviourActor.Nodes() {
		return fmt.Errorf("gobdecode: checkpoint has %v graph nodes, "+
			"agent has %v", actor.Nodes(), a.behaviourActor.Nodes())
	}

	a.behaviourActor = actor
	a.behaviourCritic = critic
	a.actorVM.Close()
	a.criticVM.Close()
	a.actorVM = G.NewTapeMachine(actor.Graph())
	a.criticVM = G.NewTapeMachine(critic.Graph())

	// the cached training graphs hold the old weights
	if a.train != nil {
		a.train.actorVM.Close()
		a.train.criticVM.Close()
		a.train = nil
	}

	a.actorSolver.SetStepSize(actorLR)
	a.criticSolver.SetStepSize(criticLR)
	a.buffer.reset()

	return nil
}
