// Package network implements the graph neural networks that
// parameterize the rebalancing policy and its value estimator: a
// three-layer graph convolution stack fused with an edge-feature
// message-passing layer, followed by per-head feed-forward stacks.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/amodrl/amodrl/graph"
)

// GraphNet is a neural network operating on graph states. A GraphNet
// is built for a fixed node count and a fixed number of steps: a
// behaviour network processes one state per forward pass (Steps() ==
// 1), while a training network processes a whole episode of states in
// a single batched pass over a block-diagonal adjacency.
type GraphNet interface {
	Graph() *G.ExprGraph
	Nodes() int
	Steps() int
	Features() int
	SetState([]*graph.State) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
}

// Set sets the weights of dest to be equal to the weights of source.
func Set(dest, source GraphNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: learnable mismatch \n\twant(%v)\n\thave(%v)",
			len(nodes), len(sourceNodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// graphNet holds the input plumbing and encoder shared by the actor
// and critic networks. Each network instantiates its own graphNet;
// actor and critic never share parameters.
type graphNet struct {
	g        *G.ExprGraph
	nodes    int
	steps    int
	features int
	horizon  int
	hidden   int

	// Input nodes, fed from graph.States by SetState. Source and
	// destination feature rows for the edge layer are fed from the
	// host because the edge layer consumes raw input features only,
	// so no gradient path runs through them.
	x        *G.Node // [steps*nodes, features]
	adj      *G.Node // [steps*nodes, steps*nodes] block diagonal
	edgeSrc  *G.Node // [steps*nodes², features]
	edgeDst  *G.Node // [steps*nodes², features]
	edgeAttr *G.Node // [steps*nodes², 3*horizon]
	edgeMask *G.Node // [steps*nodes², 1]

	conv1 *gcnLayer
	econv *edgeConvLayer
	conv2 *gcnLayer
	conv3 *gcnLayer
	head  []*fcLayer

	learnables G.Nodes
	model      []G.ValueGrad
}

// newGraphNet constructs the encoder and a 4-layer head producing
// headOut values per node. The hidden width is twice the feature
// width.
func newGraphNet(nodes, steps, horizon, headOut int,
	init G.InitWFn) (*graphNet, error) {
	if nodes <= 0 || steps <= 0 || horizon <= 0 {
		return nil, fmt.Errorf("newgraphnet: nodes, steps and horizon "+
			"must be positive \n\thave(%v, %v, %v)", nodes, steps, horizon)
	}

	g := G.NewGraph()
	features := 2 + 2*horizon
	hidden := 2 * features
	rows := steps * nodes
	pairRows := steps * nodes * nodes
	attrWidth := 3 * horizon

	net := &graphNet{
		g:        g,
		nodes:    nodes,
		steps:    steps,
		features: features,
		horizon:  horizon,
		hidden:   hidden,
	}

	net.x = G.NewMatrix(g, tensor.Float64, G.WithShape(rows, features),
		G.WithName("x"), G.WithInit(G.Zeroes()))
	net.adj = G.NewMatrix(g, tensor.Float64, G.WithShape(rows, rows),
		G.WithName("adj"), G.WithInit(G.Zeroes()))
	net.edgeSrc = G.NewMatrix(g, tensor.Float64,
		G.WithShape(pairRows, features), G.WithName("edgeSrc"),
		G.WithInit(G.Zeroes()))
	net.edgeDst = G.NewMatrix(g, tensor.Float64,
		G.WithShape(pairRows, features), G.WithName("edgeDst"),
		G.WithInit(G.Zeroes()))
	net.edgeAttr = G.NewMatrix(g, tensor.Float64,
		G.WithShape(pairRows, attrWidth), G.WithName("edgeAttr"),
		G.WithInit(G.Zeroes()))
	net.edgeMask = G.NewMatrix(g, tensor.Float64,
		G.WithShape(pairRows, 1), G.WithName("edgeMask"),
		G.WithInit(G.Zeroes()))

	net.conv1 = newGCNLayer(g, features, hidden, ReLU(), init, "conv1")
	net.econv = newEdgeConvLayer(g, 2*features+attrWidth, hidden, init,
		"econv")
	net.conv2 = newGCNLayer(g, 2*hidden, hidden, ReLU(), init, "conv2")
	net.conv3 = newGCNLayer(g, hidden, features, ReLU(), init, "conv3")

	net.head = []*fcLayer{
		newFCLayer(g, 2*features, features, Softplus(), init, "head1"),
		newFCLayer(g, features, 128, Softplus(), init, "head2"),
		newFCLayer(g, 128, 32, Softplus(), init, "head3"),
		newFCLayer(g, 32, headOut, Identity(), init, "head4"),
	}

	return net, nil
}

// fwd runs the encoder and head, returning the [steps*nodes, headOut]
// output node.
func (n *graphNet) fwd() (*G.Node, error) {
	out1, err := n.conv1.fwd(n.adj, n.x)
	if err != nil {
		return nil, fmt.Errorf("fwd: conv1: %v", err)
	}

	outE, err := n.econv.fwd(n.edgeSrc, n.edgeDst, n.edgeAttr, n.edgeMask,
		n.nodes, n.steps)
	if err != nil {
		return nil, fmt.Errorf("fwd: edge conv: %v", err)
	}
	outE, err = G.Rectify(outE)
	if err != nil {
		return nil, fmt.Errorf("fwd: edge conv activation: %v", err)
	}

	// Edge information conditions the remaining node propagation
	fused, err := G.Concat(1, out1, outE)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not fuse node and edge "+
			"embeddings: %v", err)
	}

	out2, err := n.conv2.fwd(n.adj, fused)
	if err != nil {
		return nil, fmt.Errorf("fwd: conv2: %v", err)
	}
	out3, err := n.conv3.fwd(n.adj, out2)
	if err != nil {
		return nil, fmt.Errorf("fwd: conv3: %v", err)
	}

	// Residual-style concatenation with the raw input features
	embedding, err := G.Concat(1, n.x, out3)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not concat raw features: %v", err)
	}

	pred := embedding
	for i, l := range n.head {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: head layer %v: %v", i, err)
		}
	}
	return pred, nil
}

func (n *graphNet) Graph() *G.ExprGraph { return n.g }
func (n *graphNet) Nodes() int          { return n.nodes }
func (n *graphNet) Steps() int          { return n.steps }
func (n *graphNet) Features() int       { return n.features }

// SetState feeds one graph state per step into the network's input
// nodes. len(states) must equal Steps().
func (n *graphNet) SetState(states []*graph.State) error {
	if len(states) != n.steps {
		return fmt.Errorf("setstate: invalid number of states "+
			"\n\twant(%v)\n\thave(%v)", n.steps, len(states))
	}

	f := n.features
	rows := n.steps * n.nodes
	pairRows := n.steps * n.nodes * n.nodes
	attrWidth := 3 * n.horizon

	xB := make([]float64, rows*f)
	adjB := make([]float64, rows*rows)
	srcB := make([]float64, pairRows*f)
	dstB := make([]float64, pairRows*f)
	attrB := make([]float64, pairRows*attrWidth)
	maskB := make([]float64, pairRows)
	for i := range maskB {
		maskB[i] = edgeMaskPad
	}

	for s, state := range states {
		if state.Nodes() != n.nodes || state.Features() != f {
			return fmt.Errorf("setstate: state %v has shape [%v, %v] "+
				"\n\twant([%v, %v])", s, state.Nodes(), state.Features(),
				n.nodes, f)
		}
		xs := state.X.Data().([]float64)
		copy(xB[s*n.nodes*f:(s+1)*n.nodes*f], xs)

		a := normalizedAdjacency(state, n.nodes)
		for d := 0; d < n.nodes; d++ {
			row := (s*n.nodes + d) * rows
			copy(adjB[row+s*n.nodes:row+(s+1)*n.nodes], a[d*n.nodes:(d+1)*n.nodes])
		}

		for o := 0; o < n.nodes; o++ {
			for d := 0; d < n.nodes; d++ {
				r := o*rows + s*n.nodes + d
				copy(srcB[r*f:(r+1)*f], xs[o*f:(o+1)*f])
				copy(dstB[r*f:(r+1)*f], xs[d*f:(d+1)*f])
			}
		}

		var attrData []float64
		if state.EdgeAttr != nil {
			attrData = state.EdgeAttr.Data().([]float64)
		}
		for ei, pair := range state.EdgeIndex {
			r := pair[0]*rows + s*n.nodes + pair[1]
			maskB[r] = 0
			if attrData != nil {
				copy(attrB[r*attrWidth:(r+1)*attrWidth],
					attrData[ei*attrWidth:(ei+1)*attrWidth])
			}
		}
	}

	lets := []struct {
		node    *G.Node
		backing []float64
		shape   []int
	}{
		{n.x, xB, []int{rows, f}},
		{n.adj, adjB, []int{rows, rows}},
		{n.edgeSrc, srcB, []int{pairRows, f}},
		{n.edgeDst, dstB, []int{pairRows, f}},
		{n.edgeAttr, attrB, []int{pairRows, attrWidth}},
		{n.edgeMask, maskB, []int{pairRows, 1}},
	}
	for _, l := range lets {
		t := tensor.New(tensor.WithShape(l.shape...),
			tensor.WithBacking(l.backing))
		if err := G.Let(l.node, t); err != nil {
			return fmt.Errorf("setstate: could not set %v: %v", l.node.Name(),
				err)
		}
	}
	return nil
}

// Learnables returns the learnable nodes of the network
func (n *graphNet) Learnables() G.Nodes {
	// Lazy instantiation
	if n.learnables == nil {
		n.learnables = n.computeLearnables()
	}
	return n.learnables
}

func (n *graphNet) computeLearnables() G.Nodes {
	var learnables G.Nodes
	learnables = append(learnables, n.conv1.learnables()...)
	learnables = append(learnables, n.econv.learnables()...)
	learnables = append(learnables, n.conv2.learnables()...)
	learnables = append(learnables, n.conv3.learnables()...)
	for _, l := range n.head {
		learnables = append(learnables, l.learnables()...)
	}
	return learnables
}

// Model returns the learnable nodes with their gradients.
func (n *graphNet) Model() []G.ValueGrad {
	// Lazy instantiation
	if n.model == nil {
		for _, node := range n.Learnables() {
			n.model = append(n.model, node)
		}
	}
	return n.model
}
