package network

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/amodrl/amodrl/graph"
)

// gcnLayer implements a graph convolution over a dense normalized
// adjacency matrix: act(Â x W + b), with Â fed as an input tensor
// rather than baked into the expression graph, so one compiled graph
// serves every edge topology.
type gcnLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

func newGCNLayer(g *G.ExprGraph, in, out int, act *Activation,
	init G.InitWFn, name string) *gcnLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithName(name+"B"),
		G.WithInit(G.Zeroes()),
	)
	return &gcnLayer{weights: weights, bias: bias, act: act}
}

// fwd aggregates each node's neighborhood through the adjacency input
// and applies the layer's linear transform and activation.
func (l *gcnLayer) fwd(adj, x *G.Node) (*G.Node, error) {
	agg, err := G.Mul(adj, x)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not aggregate neighborhoods: %v",
			err)
	}

	agg, err = G.Mul(agg, l.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	agg, err = G.BroadcastAdd(agg, l.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}

	if l.act == nil || l.act.IsNil() || l.act.IsIdentity() {
		return agg, nil
	}
	return l.act.fwd(agg)
}

func (l *gcnLayer) learnables() G.Nodes {
	return G.Nodes{l.weights, l.bias}
}

// normalizedAdjacency builds the symmetric-normalized propagation
// matrix Â = D̂^(-1/2)(A+I)D̂^(-1/2) for a state's edge set, with
// entry [d][o] weighting the message from origin o to destination d.
// Self loops are always added by the normalization, so a state with
// zero edges yields the identity and the convolution degenerates to a
// per-node transform. Duplicate edges count with multiplicity.
func normalizedAdjacency(s *graph.State, n int) []float64 {
	counts := make([]float64, n*n)
	for _, pair := range s.EdgeIndex {
		counts[pair[1]*n+pair[0]]++
	}
	for i := 0; i < n; i++ {
		counts[i*n+i]++ // self loop
	}

	// In-degree including the self loop, matching GCN normalization
	deg := make([]float64, n)
	for d := 0; d < n; d++ {
		for o := 0; o < n; o++ {
			deg[d] += counts[d*n+o]
		}
	}

	adj := make([]float64, n*n)
	for d := 0; d < n; d++ {
		for o := 0; o < n; o++ {
			if counts[d*n+o] == 0 {
				continue
			}
			adj[d*n+o] = counts[d*n+o] / math.Sqrt(deg[d]*deg[o])
		}
	}
	return adj
}
