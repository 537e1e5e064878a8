package network

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/amodrl/amodrl/environment/scenario"
	"github.com/amodrl/amodrl/graph"
	"github.com/amodrl/amodrl/initwfn"
)

const testHorizon = 3

func testStates(t *testing.T, steps int) (int, []*graph.State) {
	fleet, err := scenario.New(scenario.Config{
		Regions:       2,
		ChargeLevels:  2,
		ChargeStep:    1,
		EpisodeLength: 10,
		FleetPerNode:  5,
		RebalanceCost: 0.5,
	})
	require.NoError(t, err)

	builder, err := graph.NewBuilder(fleet, graph.Config{
		Horizon:      testHorizon,
		Topology:     graph.GridWithSelfLoops,
		EdgeFeatures: true,
	})
	require.NoError(t, err)

	states := make([]*graph.State, steps)
	for i := range states {
		states[i] = builder.Build()
		fleet.Step(make([]float64, len(fleet.Nodes())))
	}
	return len(fleet.Nodes()), states
}

func TestNormalizedAdjacency(t *testing.T) {
	state := &graph.State{
		X:         tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float64, 4))),
		EdgeIndex: [][2]int{{0, 1}},
	}

	adj := normalizedAdjacency(state, 2)
	require.Len(t, adj, 4)

	// self loops give degree 1 at node 0, degree 2 at node 1
	assert.InDelta(t, 1.0, adj[0*2+0], 1e-12)
	assert.InDelta(t, 0.0, adj[0*2+1], 1e-12)
	assert.InDelta(t, 1.0/math.Sqrt(2), adj[1*2+0], 1e-12)
	assert.InDelta(t, 0.5, adj[1*2+1], 1e-12)
}

func TestNormalizedAdjacencyEmptyEdgesIsIdentity(t *testing.T) {
	state := &graph.State{
		X: tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(make([]float64, 6))),
	}

	adj := normalizedAdjacency(state, 3)
	for d := 0; d < 3; d++ {
		for o := 0; o < 3; o++ {
			want := 0.0
			if o == d {
				want = 1.0
			}
			assert.InDelta(t, want, adj[d*3+o], 1e-12)
		}
	}
}

func TestNormalizedAdjacencyCountsMultiplicity(t *testing.T) {
	state := &graph.State{
		X:         tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float64, 4))),
		EdgeIndex: [][2]int{{0, 1}, {0, 1}},
	}

	adj := normalizedAdjacency(state, 2)
	assert.InDelta(t, 2.0/math.Sqrt(3), adj[1*2+0], 1e-12)
}

func TestActorForward(t *testing.T) {
	nodes, states := testStates(t, 1)

	actor, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)
	require.NoError(t, actor.SetState(states))

	vm := G.NewTapeMachine(actor.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	vm.Reset()

	conc, part := actor.Output()
	require.Len(t, conc, nodes)
	require.Len(t, part, nodes)
	for i := range conc {
		assert.Greater(t, conc[i], 0.0, "concentration must be positive")
		assert.Greater(t, part[i], 0.0)
		assert.Less(t, part[i], 1.0)
	}
}

func TestCriticForward(t *testing.T) {
	nodes, states := testStates(t, 1)

	critic, err := NewCritic(nodes, 1, testHorizon, G.GlorotU(1.0))
	require.NoError(t, err)
	require.NoError(t, critic.SetState(states))

	vm := G.NewTapeMachine(critic.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	vm.Reset()

	values := critic.Output()
	require.Len(t, values, 1)
	assert.False(t, math.IsNaN(values[0]))
}

func TestCloneWithStepsMatchesSingleStep(t *testing.T) {
	nodes, states := testStates(t, 3)

	actor, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)

	batched, err := actor.CloneWithSteps(3)
	require.NoError(t, err)
	require.Equal(t, 3, batched.Steps())
	require.NoError(t, batched.SetState(states))

	vmBatch := G.NewTapeMachine(batched.Graph())
	defer vmBatch.Close()
	require.NoError(t, vmBatch.RunAll())
	vmBatch.Reset()
	batchConc, batchPart := batched.Output()
	require.Len(t, batchConc, 3*nodes)

	// the block-diagonal batch must reproduce the per-step forward
	vm := G.NewTapeMachine(actor.Graph())
	defer vm.Close()
	for s := range states {
		require.NoError(t, actor.SetState(states[s:s+1]))
		require.NoError(t, vm.RunAll())
		vm.Reset()
		conc, part := actor.Output()
		for i := 0; i < nodes; i++ {
			assert.InDelta(t, conc[i], batchConc[s*nodes+i], 1e-8,
				"step %v node %v concentration", s, i)
			assert.InDelta(t, part[i], batchPart[s*nodes+i], 1e-8,
				"step %v node %v participation", s, i)
		}
	}
}

func TestSetCopiesWeights(t *testing.T) {
	nodes, _ := testStates(t, 1)

	source, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)
	dest, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)

	require.NoError(t, Set(dest, source))

	sourceLearnables := source.Learnables()
	for i, learnable := range dest.Learnables() {
		assert.Equal(t, sourceLearnables[i].Value().Data(),
			learnable.Value().Data())
	}
}

func TestConstantInitFillsAllWeights(t *testing.T) {
	nodes, _ := testStates(t, 1)

	init, err := initwfn.NewConstant(0.5)
	require.NoError(t, err)

	actor, err := NewActor(nodes, 1, testHorizon, 1e-20, init.InitWFn())
	require.NoError(t, err)

	// biases are always zero-initialized; the init function covers
	// the weight matrices
	for _, learnable := range actor.Learnables() {
		want := 0.5
		if strings.HasSuffix(learnable.Name(), "B") {
			want = 0.0
		}
		for _, w := range learnable.Value().Data().([]float64) {
			require.Equal(t, want, w, "weight of %v", learnable.Name())
		}
	}
}

func TestSetStateRejectsWrongStepCount(t *testing.T) {
	nodes, states := testStates(t, 2)

	actor, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)
	assert.Error(t, actor.SetState(states))
}

func TestActorGobRoundTrip(t *testing.T) {
	nodes, states := testStates(t, 1)

	actor, err := NewActor(nodes, 1, testHorizon, 1e-20, G.GlorotU(1.0))
	require.NoError(t, err)

	encoded, err := actor.GobEncode()
	require.NoError(t, err)

	restored := new(ActorNet)
	require.NoError(t, restored.GobDecode(encoded))

	require.NoError(t, actor.SetState(states))
	require.NoError(t, restored.SetState(states))

	vmA := G.NewTapeMachine(actor.Graph())
	defer vmA.Close()
	require.NoError(t, vmA.RunAll())
	concA, partA := actor.Output()

	vmB := G.NewTapeMachine(restored.Graph())
	defer vmB.Close()
	require.NoError(t, vmB.RunAll())
	concB, partB := restored.Output()

	assert.InDeltaSlice(t, concA, concB, 1e-12)
	assert.InDeltaSlice(t, partA, partB, 1e-12)
}
