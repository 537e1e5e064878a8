// Package graph converts raw simulator state into the graph tensors
// consumed by the actor and critic networks: a node feature matrix, an
// edge index, and optionally an edge feature matrix.
package graph

import (
	"fmt"

	"gorgonia.org/tensor"

	env "github.com/amodrl/amodrl/environment"
)

// Topology selects which (origin, destination) node pairs become graph
// edges for a decision step.
type Topology int

const (
	// SimulatorEdges uses exactly the simulator's native edge list,
	// including any self loops it already defines.
	SimulatorEdges Topology = iota

	// SelfLoops connects every node to itself and nothing else.
	SelfLoops

	// SelfLoopsAndSimulator is the union of SelfLoops and
	// SimulatorEdges.
	SelfLoopsAndSimulator

	// Grid connects nodes one hop apart: same region with charge level
	// differing by one, or same charge level with a different region.
	Grid

	// GridWithSelfLoops is Grid plus a self loop at every node.
	GridWithSelfLoops

	// Augmented is the simulator edge list plus constructed
	// cross-region charge-jump edges, infeasible same-region charge
	// edges, unintuitive same-region discharge edges, and self loops.
	Augmented

	// AugmentedNoSelfLoops is Augmented without the self-loop rule.
	AugmentedNoSelfLoops
)

func (t Topology) String() string {
	switch t {
	case SimulatorEdges:
		return "SimulatorEdges"
	case SelfLoops:
		return "SelfLoops"
	case SelfLoopsAndSimulator:
		return "SelfLoopsAndSimulator"
	case Grid:
		return "Grid"
	case GridWithSelfLoops:
		return "GridWithSelfLoops"
	case Augmented:
		return "Augmented"
	case AugmentedNoSelfLoops:
		return "AugmentedNoSelfLoops"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// State is the graph snapshot for one decision point. It is
// constructed fresh every step and not retained beyond the forward
// pass that consumes it.
type State struct {
	// X is the node feature matrix with shape [N, 2+2T].
	X *tensor.Dense

	// EdgeIndex lists directed edges as (origin, destination) node
	// index pairs.
	EdgeIndex [][2]int

	// EdgeAttr is the edge feature matrix with shape
	// [len(EdgeIndex), 3T]. It is nil when edge features were not
	// requested or when the edge set is empty.
	EdgeAttr *tensor.Dense
}

// Nodes returns the number of nodes in the state.
func (s *State) Nodes() int {
	return s.X.Shape()[0]
}

// Features returns the node feature width, 2+2T.
func (s *State) Features() int {
	return s.X.Shape()[1]
}

// Config configures a Builder.
type Config struct {
	// Horizon is the number of future timesteps T embedded in node and
	// edge features.
	Horizon int

	// Topology selects the edge-construction policy.
	Topology Topology

	// EdgeFeatures determines whether Build populates State.EdgeAttr.
	EdgeFeatures bool

	// ScaleFactor rescales vehicle counts. Zero means the default of
	// 0.01.
	ScaleFactor float64

	// PriceScale rescales prices in the projected revenue features.
	// Zero means the default of 0.1.
	PriceScale float64
}

// Builder turns simulator state into graph States under a fixed
// topology policy and horizon.
type Builder struct {
	sim        env.Simulator
	horizon    int
	topology   Topology
	edgeFeats  bool
	scale      float64
	priceScale float64

	// index maps a node to its position in the simulator's node
	// enumeration. Built once; the enumeration is stable.
	index map[env.Node]int
}

// NewBuilder returns a Builder for the given simulator.
func NewBuilder(sim env.Simulator, c Config) (*Builder, error) {
	if c.Horizon <= 0 {
		return nil, fmt.Errorf("newbuilder: horizon must be positive, "+
			"got %d", c.Horizon)
	}
	if c.Topology < SimulatorEdges || c.Topology > AugmentedNoSelfLoops {
		return nil, fmt.Errorf("newbuilder: unknown topology %d", c.Topology)
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = 0.01
	}
	if c.PriceScale == 0 {
		c.PriceScale = 0.1
	}

	index := make(map[env.Node]int, len(sim.Nodes()))
	for i, n := range sim.Nodes() {
		index[n] = i
	}

	return &Builder{
		sim:        sim,
		horizon:    c.Horizon,
		topology:   c.Topology,
		edgeFeats:  c.EdgeFeatures,
		scale:      c.ScaleFactor,
		priceScale: c.PriceScale,
		index:      index,
	}, nil
}

// Horizon returns the builder's horizon T.
func (b *Builder) Horizon() int { return b.horizon }

// Features returns the node feature width 2+2T.
func (b *Builder) Features() int { return 2 + 2*b.horizon }

// Build constructs the graph state for the simulator's current
// timestep. A topology that yields zero edges is valid; downstream
// convolution degenerates to a per-node transform.
func (b *Builder) Build() *State {
	state := &State{
		X:         b.nodeFeatures(),
		EdgeIndex: b.edgeIndex(),
	}
	if b.edgeFeats && len(state.EdgeIndex) > 0 {
		state.EdgeAttr = b.edgeFeatures(state.EdgeIndex)
	}
	return state
}

// nodeFeatures computes the [N, 2+2T] feature matrix. Per node the row
// is [normalized charge, scaled vehicle count, T projected counts,
// T projected net rebalancing revenues].
func (b *Builder) nodeFeatures() *tensor.Dense {
	nodes := b.sim.Nodes()
	n := len(nodes)
	width := b.Features()
	now := b.sim.Time()
	levels := float64(b.sim.ChargeLevels())

	backing := make([]float64, n*width)
	for i, node := range nodes {
		row := backing[i*width : (i+1)*width]
		avail := b.sim.Vehicles(node, now+1)

		row[0] = float64(node.Charge) / levels
		row[1] = avail * b.scale
		for k := 0; k < b.horizon; k++ {
			t := now + 1 + k
			row[2+k] = (avail + b.sim.VehiclesDelta(node, t)) * b.scale
			row[2+b.horizon+k] = b.projectedRevenue(node, t)
		}
	}

	return tensor.New(tensor.WithShape(n, width), tensor.WithBacking(backing))
}

// projectedRevenue sums, over destination regions, the scaled
// price-weighted demand that a vehicle at node o could serve at
// timestep t. A destination only counts when the vehicle has enough
// charge to reach it; destinations without a charging station need one
// spare charge unit on arrival.
func (b *Builder) projectedRevenue(o env.Node, t int) float64 {
	var sum float64
	for j := 0; j < b.sim.Regions(); j++ {
		required := 1.0
		if b.sim.HasChargingStation(j) {
			required = 0.0
		}
		if float64(o.Charge)-b.sim.EnergyDistance(o.Region, j) < required {
			continue
		}
		sum += b.sim.Price(o.Region, j, t) * b.scale * b.priceScale *
			b.sim.Demand(o.Region, j, t)
	}
	return sum
}

// pairRule is a predicate deciding whether an ordered node pair forms
// an edge under one provenance rule.
type pairRule func(o, d env.Node) bool

func selfLoop(o, d env.Node) bool {
	return o.Region == d.Region && o.Charge == d.Charge
}

func gridHop(o, d env.Node) bool {
	sameRegion := o.Region == d.Region
	sameCharge := o.Charge == d.Charge
	return (sameCharge && !sameRegion) ||
		(sameRegion && o.Charge == d.Charge-1) ||
		(sameRegion && o.Charge == d.Charge+1)
}

// augmentedRules returns the constructed-edge rules of the Augmented
// topologies. chargeStep is the simulator's charge gain per charging
// step and maxCharge its number of charge levels.
func augmentedRules(chargeStep, maxCharge int) []pairRule {
	artificial := func(o, d env.Node) bool {
		return o.Region != d.Region &&
			o.Charge+chargeStep-1 == d.Charge &&
			d.Charge != maxCharge
	}
	infeasible := func(o, d env.Node) bool {
		return o.Region == d.Region && o.Charge+chargeStep+1 == d.Charge
	}
	unintuitive := func(o, d env.Node) bool {
		return o.Region == d.Region && o.Charge-1 == d.Charge
	}
	return []pairRule{artificial, infeasible, unintuitive}
}

// scan runs the O(N^2) pairwise scan, appending an edge per pair and
// rule the pair satisfies. Keeping rules separate means a pair can
// never be emitted twice with the same provenance.
func (b *Builder) scan(rules ...pairRule) [][2]int {
	nodes := b.sim.Nodes()
	var edges [][2]int
	for i, o := range nodes {
		for j, d := range nodes {
			for _, rule := range rules {
				if rule(o, d) {
					edges = append(edges, [2]int{i, j})
				}
			}
		}
	}
	return edges
}

// simulatorEdges maps the simulator's native edge list to index pairs.
func (b *Builder) simulatorEdges() [][2]int {
	native := b.sim.Edges()
	edges := make([][2]int, 0, len(native))
	for _, e := range native {
		o, okO := b.index[e.O]
		d, okD := b.index[e.D]
		if !okO || !okD {
			panic(fmt.Sprintf("simulatoredges: edge %v references a node "+
				"outside the simulator's enumeration", e))
		}
		edges = append(edges, [2]int{o, d})
	}
	return edges
}

// edgeIndex dispatches edge construction for the active topology. The
// subset invariants between topologies hold by construction: the
// union variants extend the scans of their base variants.
func (b *Builder) edgeIndex() [][2]int {
	switch b.topology {
	case SimulatorEdges:
		return b.simulatorEdges()
	case SelfLoops:
		return b.scan(selfLoop)
	case SelfLoopsAndSimulator:
		return append(b.scan(selfLoop), b.simulatorEdges()...)
	case Grid:
		return b.scan(gridHop)
	case GridWithSelfLoops:
		return b.scan(func(o, d env.Node) bool {
			return selfLoop(o, d) || gridHop(o, d)
		})
	case Augmented:
		rules := append(
			augmentedRules(b.sim.ChargeStep(), b.sim.ChargeLevels()),
			selfLoop,
		)
		return append(b.scan(rules...), b.simulatorEdges()...)
	case AugmentedNoSelfLoops:
		rules := augmentedRules(b.sim.ChargeStep(), b.sim.ChargeLevels())
		return append(b.scan(rules...), b.simulatorEdges()...)
	default:
		panic(fmt.Sprintf("edgeindex: unknown topology %d", b.topology))
	}
}

// edgeFeatures computes the [E, 3T] edge feature matrix: per-horizon
// demand, price, and static energy distance, concatenated. Edges that
// do not correspond to a real simulator transition get all-zero rows.
func (b *Builder) edgeFeatures(edgeIndex [][2]int) *tensor.Dense {
	nodes := b.sim.Nodes()
	now := b.sim.Time()
	width := 3 * b.horizon

	native := make(map[env.Edge]bool, len(b.sim.Edges()))
	for _, e := range b.sim.Edges() {
		native[e] = true
	}

	backing := make([]float64, len(edgeIndex)*width)
	for r, pair := range edgeIndex {
		e := env.Edge{O: nodes[pair[0]], D: nodes[pair[1]]}
		if !native[e] {
			continue // zero padded
		}
		row := backing[r*width : (r+1)*width]
		for k := 0; k < b.horizon; k++ {
			t := now + 1 + k
			row[k] = b.sim.EdgeDemand(e, t)
			row[b.horizon+k] = b.sim.EdgePrice(e, t)
			row[2*b.horizon+k] = b.sim.EdgeDistance(e)
		}
	}

	return tensor.New(tensor.WithShape(len(edgeIndex), width),
		tensor.WithBacking(backing))
}
