package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// edgeMaskPad is added to messages of node pairs outside the active
// edge set before max aggregation. After the trailing relu, nodes
// whose incoming messages are all masked resolve to zero.
const edgeMaskPad = -1e9

// edgeConvLayer implements a message-passing layer with max
// aggregation over incoming edges. Each message is a small
// feed-forward transform of the concatenated origin, destination and
// edge features. Messages are computed densely for all ordered node
// pairs and pairs outside the active edge set are masked out, which
// keeps the expression graph independent of the per-step edge
// topology; the O(N²) cost mirrors the pairwise scan the state
// builder already performs.
type edgeConvLayer struct {
	lin1 *fcLayer
	lin2 *fcLayer
}

func newEdgeConvLayer(g *G.ExprGraph, in, out int, init G.InitWFn,
	name string) *edgeConvLayer {
	return &edgeConvLayer{
		lin1: newFCLayer(g, in, out, ReLU(), init, name+"L1"),
		lin2: newFCLayer(g, out, out, Identity(), init, name+"L2"),
	}
}

// fwd computes messages for the [steps*n*n] ordered pair rows and
// max-aggregates them per destination node. Pair rows are laid out so
// that row o*(steps*n) + s*n + d holds the message from node o to node
// d within step s; reshaping to [n, steps*n, out] then makes the max
// over axis 0 exactly the per-destination aggregation.
func (l *edgeConvLayer) fwd(src, dst, attr, mask *G.Node,
	n, steps int) (*G.Node, error) {
	z, err := G.Concat(1, src, dst, attr)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not concat message inputs: %v",
			err)
	}

	m, err := l.lin1.fwd(z)
	if err != nil {
		return nil, fmt.Errorf("fwd: message layer 1: %v", err)
	}
	m, err = l.lin2.fwd(m)
	if err != nil {
		return nil, fmt.Errorf("fwd: message layer 2: %v", err)
	}

	m, err = G.BroadcastAdd(m, mask, nil, []byte{1})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not mask messages: %v", err)
	}

	out := m.Shape()[1]
	m, err = G.Reshape(m, []int{n, steps * n, out})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not reshape messages: %v", err)
	}

	agg, err := G.Max(m, 0)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not max-aggregate: %v", err)
	}
	return agg, nil
}

func (l *edgeConvLayer) learnables() G.Nodes {
	return append(l.lin1.learnables(), l.lin2.learnables()...)
}
