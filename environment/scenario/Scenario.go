// Package scenario implements a small deterministic fleet environment.
// It is not a faithful mobility simulator; it exists so that agents
// and experiments can run end to end with reproducible dynamics.
package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	env "github.com/amodrl/amodrl/environment"
	"github.com/amodrl/amodrl/timestep"
)

// Config describes a scenario
type Config struct {
	Regions       int
	ChargeLevels  int
	ChargeStep    int
	EpisodeLength int

	// FleetPerNode is the initial vehicle count at every node
	FleetPerNode float64

	// RebalanceCost is the cost per unit of vehicle mass moved away
	// from its current node
	RebalanceCost float64
}

// DefaultConfig returns a small four-region scenario
func DefaultConfig() Config {
	return Config{
		Regions:       4,
		ChargeLevels:  3,
		ChargeStep:    1,
		EpisodeLength: 20,
		FleetPerNode:  10,
		RebalanceCost: 0.5,
	}
}

// Fleet is a deterministic in-memory fleet environment. Demand and
// prices are fixed functions of region pair and time, vehicle mass is
// fractional, and an episode lasts a fixed number of decision steps.
type Fleet struct {
	config Config

	nodes    []env.Node
	edges    []env.Edge
	vehicles []float64
	time     int
}

// New returns a new Fleet scenario
func New(c Config) (*Fleet, error) {
	if c.Regions < 2 {
		return nil, fmt.Errorf("new: need at least 2 regions, got %v",
			c.Regions)
	}
	if c.ChargeLevels < 2 {
		return nil, fmt.Errorf("new: need at least 2 charge levels, "+
			"got %v", c.ChargeLevels)
	}
	if c.ChargeStep < 1 {
		return nil, fmt.Errorf("new: charge step must be positive, "+
			"got %v", c.ChargeStep)
	}
	if c.EpisodeLength < 1 {
		return nil, fmt.Errorf("new: episode length must be positive, "+
			"got %v", c.EpisodeLength)
	}

	f := &Fleet{config: c}
	for r := 0; r < c.Regions; r++ {
		for charge := 0; charge < c.ChargeLevels; charge++ {
			f.nodes = append(f.nodes, env.Node{Region: r, Charge: charge})
		}
	}
	f.edges = f.buildEdges()
	f.vehicles = make([]float64, len(f.nodes))
	f.Reset()

	return f, nil
}

// buildEdges enumerates the native transitions: self loops, trips to
// other regions that drain one charge unit, and charging hops in
// regions with a station.
func (f *Fleet) buildEdges() []env.Edge {
	var edges []env.Edge
	for _, o := range f.nodes {
		edges = append(edges, env.Edge{O: o, D: o})

		if o.Charge >= 1 {
			for r := 0; r < f.config.Regions; r++ {
				if r == o.Region {
					continue
				}
				d := env.Node{Region: r, Charge: o.Charge - 1}
				edges = append(edges, env.Edge{O: o, D: d})
			}
		}

		up := o.Charge + f.config.ChargeStep
		if f.HasChargingStation(o.Region) && up < f.config.ChargeLevels {
			d := env.Node{Region: o.Region, Charge: up}
			edges = append(edges, env.Edge{O: o, D: d})
		}
	}
	return edges
}

// Nodes returns the ordered node enumeration
func (f *Fleet) Nodes() []env.Node {
	return f.nodes
}

// Regions returns the number of regions
func (f *Fleet) Regions() int {
	return f.config.Regions
}

// ChargeLevels returns the number of discrete charge levels
func (f *Fleet) ChargeLevels() int {
	return f.config.ChargeLevels
}

// ChargeStep returns the charge gained per charging step
func (f *Fleet) ChargeStep() int {
	return f.config.ChargeStep
}

// Time returns the current decision step
func (f *Fleet) Time() int {
	return f.time
}

// Edges returns the native directed edge list
func (f *Fleet) Edges() []env.Edge {
	return f.edges
}

// Vehicles returns the vehicle mass at node n. The scenario has no
// in-flight trips, so the count is constant over the projection
// window.
func (f *Fleet) Vehicles(n env.Node, t int) float64 {
	return f.vehicles[f.index(n)]
}

// VehiclesDelta returns the projected arrival mass at node n by step t
func (f *Fleet) VehiclesDelta(n env.Node, t int) float64 {
	return 0.1 * float64((f.index(n)+t)%3)
}

// Demand returns the passenger demand between regions o and d at step
// t. The series is a fixed function so that runs are reproducible.
func (f *Fleet) Demand(o, d int, t int) float64 {
	if o == d {
		return 0
	}
	return float64((o*7+d*11+t*3)%5) + 1
}

// Price returns the trip price between regions o and d at step t
func (f *Fleet) Price(o, d int, t int) float64 {
	if o == d {
		return 0
	}
	return 1 + 0.5*float64((o+d+t)%4)
}

// EnergyDistance returns the charge units needed for a trip between
// regions
func (f *Fleet) EnergyDistance(o, d int) float64 {
	if o == d {
		return 0
	}
	return 1
}

// HasChargingStation reports whether region r has a charging station.
// Every other region does.
func (f *Fleet) HasChargingStation(r int) bool {
	return r%2 == 0
}

// EdgeDemand returns the demand series of a native edge
func (f *Fleet) EdgeDemand(e env.Edge, t int) float64 {
	return f.Demand(e.O.Region, e.D.Region, t)
}

// EdgePrice returns the price series of a native edge
func (f *Fleet) EdgePrice(e env.Edge, t int) float64 {
	return f.Price(e.O.Region, e.D.Region, t)
}

// EdgeDistance returns the energy distance of a native edge
func (f *Fleet) EdgeDistance(e env.Edge) float64 {
	return f.EnergyDistance(e.O.Region, e.D.Region)
}

// Reset starts a new episode with the fleet spread uniformly
func (f *Fleet) Reset() timestep.TimeStep {
	for i := range f.vehicles {
		f.vehicles[i] = f.config.FleetPerNode
	}
	f.time = 0
	return timestep.New(timestep.First, 0, 0)
}

// Step applies an allocation. The fleet is redistributed to match the
// allocation fractions, the reward is the revenue of served demand
// minus the cost of the vehicle mass moved, and the episode ends after
// the configured number of steps. An all-zero allocation leaves the
// fleet in place.
func (f *Fleet) Step(action []float64) timestep.TimeStep {
	if len(action) != len(f.nodes) {
		panic(fmt.Sprintf("step: allocation has %v entries for %v nodes",
			len(action), len(f.nodes)))
	}

	total := floats.Sum(f.vehicles)
	rebalancing := floats.Sum(action) > 0

	var revenue, cost float64
	for i, n := range f.nodes {
		target := f.vehicles[i]
		if rebalancing {
			target = action[i] * total
			cost += f.config.RebalanceCost *
				math.Abs(target-f.vehicles[i])
		}

		if n.Charge >= 1 {
			served := math.Min(target, f.outboundDemand(n.Region))
			revenue += served * f.meanPrice(n.Region)
		}
		f.vehicles[i] = target
	}

	f.time++
	stepType := timestep.Mid
	if f.time >= f.config.EpisodeLength {
		stepType = timestep.Last
	}
	return timestep.New(stepType, revenue-cost, f.time)
}

func (f *Fleet) outboundDemand(region int) float64 {
	var demand float64
	for d := 0; d < f.config.Regions; d++ {
		demand += f.Demand(region, d, f.time)
	}
	return demand
}

func (f *Fleet) meanPrice(region int) float64 {
	var price float64
	for d := 0; d < f.config.Regions; d++ {
		price += f.Price(region, d, f.time)
	}
	return price / float64(f.config.Regions)
}

func (f *Fleet) index(n env.Node) int {
	i := n.Region*f.config.ChargeLevels + n.Charge
	if i < 0 || i >= len(f.nodes) || f.nodes[i] != n {
		panic(fmt.Sprintf("index: unknown node %+v", n))
	}
	return i
}
