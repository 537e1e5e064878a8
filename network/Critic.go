package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
)

// CriticNet maps a graph state to a single state-value estimate. The
// head produces one scalar per node which is mean-pooled into one
// value per step: the decision problem is single-agent, so the critic
// reports one number for the whole graph.
type CriticNet struct {
	*graphNet

	value  *G.Node
	valVal G.Value
}

// NewCritic returns a critic network for graphs with the given node
// count and horizon, batching the given number of steps per forward
// pass.
func NewCritic(nodes, steps, horizon int, init G.InitWFn) (*CriticNet,
	error) {
	net, err := newGraphNet(nodes, steps, horizon, 1, init)
	if err != nil {
		return nil, fmt.Errorf("newcritic: %v", err)
	}

	out, err := net.fwd()
	if err != nil {
		return nil, fmt.Errorf("newcritic: could not compute forward "+
			"pass: %v", err)
	}

	perStep, err := G.Reshape(out, []int{steps, nodes})
	if err != nil {
		return nil, fmt.Errorf("newcritic: could not group node values "+
			"per step: %v", err)
	}
	value, err := G.Mean(perStep, 1)
	if err != nil {
		return nil, fmt.Errorf("newcritic: could not pool node values: %v",
			err)
	}

	critic := &CriticNet{graphNet: net, value: value}
	G.Read(critic.value, &critic.valVal)

	return critic, nil
}

// Value returns the graph node holding the per-step state values.
func (c *CriticNet) Value() *G.Node {
	return c.value
}

// Output returns the state values computed by the last run of the
// network's VM, one per step.
func (c *CriticNet) Output() []float64 {
	vals := make([]float64, c.steps)
	switch data := c.valVal.Data().(type) {
	case []float64:
		copy(vals, data)
	case float64:
		vals[0] = data
	default:
		panic(fmt.Sprintf("output: unexpected critic value type %T", data))
	}
	return vals
}

// CloneWithSteps returns a new CriticNet with the same weights on a
// new computational graph, batching the given number of steps.
func (c *CriticNet) CloneWithSteps(steps int) (*CriticNet, error) {
	clone, err := NewCritic(c.nodes, steps, c.horizon, G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("clonewithsteps: %v", err)
	}
	if err := Set(clone, c); err != nil {
		return nil, fmt.Errorf("clonewithsteps: could not copy weights: %v",
			err)
	}
	return clone, nil
}

// GobEncode implements the gob.GobEncoder interface
func (c *CriticNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(c.nodes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode node count")
	}
	if err := enc.Encode(c.horizon); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode horizon")
	}
	if err := encodeWeights(enc, c.graphNet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// network always has a single-step batch.
func (c *CriticNet) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var nodes, horizon int
	if err := dec.Decode(&nodes); err != nil {
		return fmt.Errorf("gobdecode: could not decode node count")
	}
	if err := dec.Decode(&horizon); err != nil {
		return fmt.Errorf("gobdecode: could not decode horizon")
	}

	newCritic, err := NewCritic(nodes, 1, horizon, G.Zeroes())
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct critic: %v", err)
	}
	if err := decodeWeights(dec, newCritic.graphNet); err != nil {
		return err
	}

	*c = *newCritic
	return nil
}
