package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/amodrl/amodrl/environment"
	"github.com/amodrl/amodrl/environment/scenario"
)

func newTestFleet(t *testing.T) *scenario.Fleet {
	fleet, err := scenario.New(scenario.DefaultConfig())
	require.NoError(t, err)
	return fleet
}

func buildWith(t *testing.T, sim env.Simulator, topology Topology) *State {
	b, err := NewBuilder(sim, Config{Horizon: 4, Topology: topology})
	require.NoError(t, err)
	return b.Build()
}

func edgeSet(edges [][2]int) map[[2]int]bool {
	set := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		set[e] = true
	}
	return set
}

func TestBuilderRejectsBadConfig(t *testing.T) {
	fleet := newTestFleet(t)

	_, err := NewBuilder(fleet, Config{Horizon: 0})
	assert.Error(t, err)

	_, err = NewBuilder(fleet, Config{Horizon: 4, Topology: Topology(99)})
	assert.Error(t, err)
}

func TestSelfLoopsTopology(t *testing.T) {
	fleet := newTestFleet(t)
	state := buildWith(t, fleet, SelfLoops)

	n := len(fleet.Nodes())
	require.Len(t, state.EdgeIndex, n)
	for _, e := range state.EdgeIndex {
		assert.Equal(t, e[0], e[1])
	}
}

func TestSimulatorEdgesTopology(t *testing.T) {
	fleet := newTestFleet(t)
	state := buildWith(t, fleet, SimulatorEdges)

	require.Len(t, state.EdgeIndex, len(fleet.Edges()))

	// every edge maps back to a native transition
	nodes := fleet.Nodes()
	native := make(map[env.Edge]bool)
	for _, e := range fleet.Edges() {
		native[e] = true
	}
	for _, pair := range state.EdgeIndex {
		e := env.Edge{O: nodes[pair[0]], D: nodes[pair[1]]}
		assert.True(t, native[e], "edge %v is not native", e)
	}
}

func TestSelfLoopsAndSimulatorContainsBoth(t *testing.T) {
	fleet := newTestFleet(t)

	combined := edgeSet(buildWith(t, fleet, SelfLoopsAndSimulator).EdgeIndex)
	for e := range edgeSet(buildWith(t, fleet, SelfLoops).EdgeIndex) {
		assert.True(t, combined[e], "self loop %v missing", e)
	}
	for e := range edgeSet(buildWith(t, fleet, SimulatorEdges).EdgeIndex) {
		assert.True(t, combined[e], "simulator edge %v missing", e)
	}
}

func TestGridWithSelfLoopsExtendsGrid(t *testing.T) {
	fleet := newTestFleet(t)

	grid := edgeSet(buildWith(t, fleet, Grid).EdgeIndex)
	withLoops := edgeSet(buildWith(t, fleet, GridWithSelfLoops).EdgeIndex)

	for e := range grid {
		assert.True(t, withLoops[e], "grid edge %v missing", e)
		assert.NotEqual(t, e[0], e[1], "grid must not contain self loops")
	}
	for i := range fleet.Nodes() {
		assert.True(t, withLoops[[2]int{i, i}], "self loop %v missing", i)
	}
}

func TestGridConnectsChargeAndRegionNeighbours(t *testing.T) {
	fleet := newTestFleet(t)
	nodes := fleet.Nodes()
	grid := edgeSet(buildWith(t, fleet, Grid).EdgeIndex)

	for e := range grid {
		o, d := nodes[e[0]], nodes[e[1]]
		sameRegion := o.Region == d.Region
		sameCharge := o.Charge == d.Charge
		hop := (sameCharge && !sameRegion) ||
			(sameRegion && o.Charge == d.Charge-1) ||
			(sameRegion && o.Charge == d.Charge+1)
		assert.True(t, hop, "edge %v -> %v is not a grid hop", o, d)
	}
}

func TestAugmentedContainsSimulatorEdges(t *testing.T) {
	fleet := newTestFleet(t)

	augmented := edgeSet(buildWith(t, fleet, Augmented).EdgeIndex)
	noLoops := edgeSet(buildWith(t, fleet, AugmentedNoSelfLoops).EdgeIndex)
	for e := range edgeSet(buildWith(t, fleet, SimulatorEdges).EdgeIndex) {
		assert.True(t, augmented[e])
		assert.True(t, noLoops[e])
	}
	for i := range fleet.Nodes() {
		assert.True(t, augmented[[2]int{i, i}], "self loop %v missing", i)
	}
}

func TestNodeFeatureLayout(t *testing.T) {
	fleet := newTestFleet(t)
	horizon := 4
	b, err := NewBuilder(fleet, Config{Horizon: horizon})
	require.NoError(t, err)
	state := b.Build()

	n := len(fleet.Nodes())
	require.Equal(t, n, state.Nodes())
	require.Equal(t, 2+2*horizon, state.Features())

	levels := float64(fleet.ChargeLevels())
	x := state.X.Data().([]float64)
	width := state.Features()
	for i, node := range fleet.Nodes() {
		row := x[i*width : (i+1)*width]
		assert.InDelta(t, float64(node.Charge)/levels, row[0], 1e-12)
		assert.InDelta(t, 0.01*fleet.Vehicles(node, fleet.Time()+1),
			row[1], 1e-12)
	}
}

func TestEdgeFeaturesZeroPadConstructedEdges(t *testing.T) {
	fleet := newTestFleet(t)
	horizon := 3
	b, err := NewBuilder(fleet, Config{
		Horizon:      horizon,
		Topology:     GridWithSelfLoops,
		EdgeFeatures: true,
	})
	require.NoError(t, err)
	state := b.Build()

	require.NotNil(t, state.EdgeAttr)
	require.Equal(t, []int{len(state.EdgeIndex), 3 * horizon},
		[]int(state.EdgeAttr.Shape()))

	nodes := fleet.Nodes()
	native := make(map[env.Edge]bool)
	for _, e := range fleet.Edges() {
		native[e] = true
	}

	attr := state.EdgeAttr.Data().([]float64)
	width := 3 * horizon
	var sawNative bool
	for r, pair := range state.EdgeIndex {
		e := env.Edge{O: nodes[pair[0]], D: nodes[pair[1]]}
		row := attr[r*width : (r+1)*width]
		if !native[e] {
			for _, v := range row {
				assert.Zero(t, v, "constructed edge %v has features", e)
			}
			continue
		}
		sawNative = true
		for k := 0; k < horizon; k++ {
			tIdx := fleet.Time() + 1 + k
			assert.InDelta(t, fleet.EdgeDemand(e, tIdx), row[k], 1e-12)
			assert.InDelta(t, fleet.EdgePrice(e, tIdx), row[horizon+k],
				1e-12)
			assert.InDelta(t, fleet.EdgeDistance(e), row[2*horizon+k],
				1e-12)
		}
	}
	assert.True(t, sawNative, "topology shares no edges with the simulator")
}

func TestBuildIsDeterministic(t *testing.T) {
	fleet := newTestFleet(t)
	b, err := NewBuilder(fleet, Config{Horizon: 4, Topology: Augmented})
	require.NoError(t, err)

	first := b.Build()
	second := b.Build()
	assert.Equal(t, first.EdgeIndex, second.EdgeIndex)
	assert.Equal(t, first.X.Data(), second.X.Data())
}

// edgelessFleet reports no native edges.
type edgelessFleet struct {
	*scenario.Fleet
}

func (edgelessFleet) Edges() []env.Edge { return nil }

func TestEmptyEdgeSetHasNilEdgeAttr(t *testing.T) {
	sim := edgelessFleet{newTestFleet(t)}

	b, err := NewBuilder(sim, Config{
		Horizon:      4,
		Topology:     SimulatorEdges,
		EdgeFeatures: true,
	})
	require.NoError(t, err)

	state := b.Build()
	assert.Empty(t, state.EdgeIndex)
	assert.Nil(t, state.EdgeAttr)
}
