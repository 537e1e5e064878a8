package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/amodrl/amodrl/environment"
)

func TestNodeEnumeration(t *testing.T) {
	fleet, err := New(DefaultConfig())
	require.NoError(t, err)

	nodes := fleet.Nodes()
	require.Len(t, nodes, fleet.Regions()*fleet.ChargeLevels())

	seen := make(map[env.Node]bool)
	for _, n := range nodes {
		assert.GreaterOrEqual(t, n.Region, 0)
		assert.Less(t, n.Region, fleet.Regions())
		assert.GreaterOrEqual(t, n.Charge, 0)
		assert.Less(t, n.Charge, fleet.ChargeLevels())
		assert.False(t, seen[n], "duplicate node %+v", n)
		seen[n] = true
	}
}

func TestEdgesAreFeasible(t *testing.T) {
	fleet, err := New(DefaultConfig())
	require.NoError(t, err)

	for _, e := range fleet.Edges() {
		if e.O == e.D {
			continue // self loop
		}
		if e.O.Region == e.D.Region {
			// charging hop needs a station and gains ChargeStep
			assert.True(t, fleet.HasChargingStation(e.O.Region),
				"charging edge %+v without a station", e)
			assert.Equal(t, e.O.Charge+fleet.ChargeStep(), e.D.Charge)
		} else {
			// trips drain one charge unit
			assert.Equal(t, e.O.Charge-1, e.D.Charge,
				"trip edge %+v does not drain charge", e)
			assert.GreaterOrEqual(t, e.O.Charge, 1)
		}
	}
}

func TestResetRestoresFleet(t *testing.T) {
	config := DefaultConfig()
	fleet, err := New(config)
	require.NoError(t, err)

	nodes := fleet.Nodes()
	action := make([]float64, len(nodes))
	action[0] = 1.0
	fleet.Step(action)
	require.Equal(t, 1, fleet.Time())

	step := fleet.Reset()
	assert.True(t, step.First())
	assert.Zero(t, fleet.Time())
	for _, n := range nodes {
		assert.Equal(t, config.FleetPerNode, fleet.Vehicles(n, 1))
	}
}

func TestStepRedistributesFleet(t *testing.T) {
	config := DefaultConfig()
	fleet, err := New(config)
	require.NoError(t, err)

	nodes := fleet.Nodes()
	total := config.FleetPerNode * float64(len(nodes))

	action := make([]float64, len(nodes))
	action[2] = 0.5
	action[3] = 0.5
	fleet.Step(action)

	for i, n := range nodes {
		want := 0.0
		if i == 2 || i == 3 {
			want = 0.5 * total
		}
		assert.InDelta(t, want, fleet.Vehicles(n, fleet.Time()+1), 1e-9)
	}
}

func TestZeroActionLeavesFleetInPlace(t *testing.T) {
	config := DefaultConfig()
	fleet, err := New(config)
	require.NoError(t, err)

	step := fleet.Step(make([]float64, len(fleet.Nodes())))
	assert.Equal(t, 1, step.Number)
	for _, n := range fleet.Nodes() {
		assert.Equal(t, config.FleetPerNode, fleet.Vehicles(n, 2))
	}
}

func TestEpisodeTerminates(t *testing.T) {
	config := DefaultConfig()
	config.EpisodeLength = 4
	fleet, err := New(config)
	require.NoError(t, err)

	step := fleet.Reset()
	action := make([]float64, len(fleet.Nodes()))
	steps := 0
	for !step.Last() {
		step = fleet.Step(action)
		steps++
		require.LessOrEqual(t, steps, config.EpisodeLength)
	}
	assert.Equal(t, config.EpisodeLength, steps)
}

func TestDynamicsAreDeterministic(t *testing.T) {
	first, err := New(DefaultConfig())
	require.NoError(t, err)
	second, err := New(DefaultConfig())
	require.NoError(t, err)

	action := make([]float64, len(first.Nodes()))
	action[0] = 0.25
	action[4] = 0.75

	a := first.Step(action)
	b := second.Step(action)
	assert.Equal(t, a.Reward, b.Reward)
	assert.Equal(t, first.Demand(0, 1, 3), second.Demand(0, 1, 3))
}

func TestStepPanicsOnWrongActionLength(t *testing.T) {
	fleet, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Panics(t, func() { fleet.Step([]float64{1.0}) })
}
