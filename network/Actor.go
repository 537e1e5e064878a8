package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/amodrl/amodrl/utils/tensorutils"
)

// ActorNet maps a graph state to the parameters of the zero-inflated
// Dirichlet policy: one concentration and one participation
// probability per node. The concentration channel passes through a
// softplus plus a small additive jitter so it is strictly positive;
// the participation channel passes through a sigmoid.
type ActorNet struct {
	*graphNet
	jitter float64

	concentration *G.Node
	participation *G.Node
	concVal       G.Value
	partVal       G.Value
}

// NewActor returns an actor network for graphs with the given node
// count and horizon, batching the given number of steps per forward
// pass.
func NewActor(nodes, steps, horizon int, jitter float64,
	init G.InitWFn) (*ActorNet, error) {
	net, err := newGraphNet(nodes, steps, horizon, 2, init)
	if err != nil {
		return nil, fmt.Errorf("newactor: %v", err)
	}

	out, err := net.fwd()
	if err != nil {
		return nil, fmt.Errorf("newactor: could not compute forward "+
			"pass: %v", err)
	}

	concRaw, err := G.Slice(out, nil, tensorutils.NewSlice(0, 1, 1))
	if err != nil {
		return nil, fmt.Errorf("newactor: could not slice concentration "+
			"channel: %v", err)
	}
	partRaw, err := G.Slice(out, nil, tensorutils.NewSlice(1, 2, 1))
	if err != nil {
		return nil, fmt.Errorf("newactor: could not slice participation "+
			"channel: %v", err)
	}

	// softplus keeps the concentration positive, the jitter keeps it
	// away from zero where the Dirichlet is undefined
	sp, err := Softplus().fwd(concRaw)
	if err != nil {
		return nil, fmt.Errorf("newactor: %v", err)
	}
	concentration, err := G.Add(sp, G.NewConstant(jitter))
	if err != nil {
		return nil, fmt.Errorf("newactor: could not add jitter: %v", err)
	}

	participation, err := G.Sigmoid(partRaw)
	if err != nil {
		return nil, fmt.Errorf("newactor: %v", err)
	}

	actor := &ActorNet{
		graphNet:      net,
		jitter:        jitter,
		concentration: concentration,
		participation: participation,
	}
	G.Read(actor.concentration, &actor.concVal)
	G.Read(actor.participation, &actor.partVal)

	return actor, nil
}

// Concentration returns the graph node holding the per-node
// concentration values.
func (a *ActorNet) Concentration() *G.Node {
	return a.concentration
}

// Participation returns the graph node holding the per-node
// participation probabilities.
func (a *ActorNet) Participation() *G.Node {
	return a.participation
}

// Output returns the concentration and participation values computed
// by the last run of the network's VM.
func (a *ActorNet) Output() (conc, part []float64) {
	rows := a.steps * a.nodes
	conc = make([]float64, rows)
	part = make([]float64, rows)
	copy(conc, a.concVal.Data().([]float64))
	copy(part, a.partVal.Data().([]float64))
	return conc, part
}

// Jitter returns the additive concentration jitter.
func (a *ActorNet) Jitter() float64 {
	return a.jitter
}

// CloneWithSteps returns a new ActorNet with the same weights on a new
// computational graph, batching the given number of steps.
func (a *ActorNet) CloneWithSteps(steps int) (*ActorNet, error) {
	clone, err := NewActor(a.nodes, steps, a.horizon, a.jitter, G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("clonewithsteps: %v", err)
	}
	if err := Set(clone, a); err != nil {
		return nil, fmt.Errorf("clonewithsteps: could not copy weights: %v",
			err)
	}
	return clone, nil
}

// GobEncode implements the gob.GobEncoder interface
func (a *ActorNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(a.nodes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode node count")
	}
	if err := enc.Encode(a.horizon); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode horizon")
	}
	if err := enc.Encode(a.jitter); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode jitter")
	}
	if err := encodeWeights(enc, a.graphNet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// network always has a single-step batch.
func (a *ActorNet) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var nodes, horizon int
	var jitter float64
	if err := dec.Decode(&nodes); err != nil {
		return fmt.Errorf("gobdecode: could not decode node count")
	}
	if err := dec.Decode(&horizon); err != nil {
		return fmt.Errorf("gobdecode: could not decode horizon")
	}
	if err := dec.Decode(&jitter); err != nil {
		return fmt.Errorf("gobdecode: could not decode jitter")
	}

	newActor, err := NewActor(nodes, 1, horizon, jitter, G.Zeroes())
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct actor: %v", err)
	}
	if err := decodeWeights(dec, newActor.graphNet); err != nil {
		return err
	}

	*a = *newActor
	return nil
}
