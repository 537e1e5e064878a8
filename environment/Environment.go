// Package environment defines the contract between the learning agent
// and the electric AMoD simulator it controls. The simulator itself --
// trip generation, vehicle transitions, charging dynamics -- lives
// outside this module; the agent only ever sees it through the
// Simulator interface.
package environment

import (
	"github.com/amodrl/amodrl/timestep"
)

// Node identifies a single decision node: a region paired with a
// discrete charge level. The simulator's node enumeration fixes the
// index of each node, and that indexing is the coordinate system used
// by graph states, network outputs, and action vectors alike.
type Node struct {
	Region int
	Charge int
}

// Edge is an ordered pair of nodes describing a directed transition
// the simulator considers feasible.
type Edge struct {
	O Node
	D Node
}

// Simulator exposes the read-only view of the fleet simulator that the
// agent needs to build graph states. All time series are indexed by
// absolute simulator timestep.
type Simulator interface {
	// Nodes returns the ordered node enumeration. The slice must not
	// be mutated by callers and its order must be stable for the
	// lifetime of the simulator.
	Nodes() []Node

	// Regions returns the number of spatial regions.
	Regions() int

	// ChargeLevels returns the number of discrete charge levels.
	ChargeLevels() int

	// ChargeStep returns the number of charge levels gained in a
	// single charging step. Used by the augmented edge topologies.
	ChargeStep() int

	// Time returns the current simulator timestep.
	Time() int

	// Edges returns the simulator's native directed edge list,
	// including any self loops the simulator defines.
	Edges() []Edge

	// Vehicles returns the number of vehicles available at node n at
	// timestep t.
	Vehicles(n Node, t int) float64

	// VehiclesDelta returns the projected change in vehicle count at
	// node n by timestep t (vehicles arriving from in-flight trips and
	// rebalancing).
	VehiclesDelta(n Node, t int) float64

	// Demand returns passenger demand between regions o and d at
	// timestep t.
	Demand(o, d int, t int) float64

	// Price returns the trip price between regions o and d at
	// timestep t.
	Price(o, d int, t int) float64

	// EnergyDistance returns the charge units needed to travel between
	// regions o and d.
	EnergyDistance(o, d int) float64

	// HasChargingStation reports whether region r has a charging
	// station.
	HasChargingStation(r int) bool

	// EdgeDemand, EdgePrice and EdgeDistance return the per-edge series
	// used as edge features. They are only called for edges contained
	// in Edges().
	EdgeDemand(e Edge, t int) float64
	EdgePrice(e Edge, t int) float64
	EdgeDistance(e Edge) float64
}

// Environment is a steppable Simulator used to run episodes. Step
// consumes a per-node allocation-fraction vector (see the policy
// package for its contract) and advances the simulation one decision
// step; converting the fractions into integer vehicle flows is the
// implementation's concern.
type Environment interface {
	Simulator

	// Reset starts a new episode and returns the first timestep.
	Reset() timestep.TimeStep

	// Step applies the allocation and returns the resulting timestep,
	// carrying the reward for the transition.
	Step(action []float64) timestep.TimeStep
}
