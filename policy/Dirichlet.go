// Package policy implements action distributions over fleet
// rebalancing targets.
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/amodrl/amodrl/utils/floatutils"
)

const (
	// sumTolerance is the tolerance on the simplex constraint of a
	// sampled allocation
	sumTolerance = 1e-5

	// probEps bounds participation probabilities away from 0 and 1
	// when computing score function terms
	probEps = 1e-12

	// logFloor is the smallest allocation mass passed to a logarithm
	logFloor = 1e-300
)

// ZeroInflatedDirichlet is a distribution over fleet allocations. Each
// node independently participates with some probability, and the
// allocation over participating nodes is Dirichlet distributed.
// Non-participating nodes receive exactly zero mass.
type ZeroInflatedDirichlet struct {
	source rand.Source
}

// Stats describes a single sampled allocation
type Stats struct {
	MeanConcentration float64
	StdConcentration  float64
	Participants      int
}

// New returns a new ZeroInflatedDirichlet with a fixed random seed
func New(seed uint64) *ZeroInflatedDirichlet {
	return &ZeroInflatedDirichlet{source: rand.NewSource(seed)}
}

// Sample draws an allocation given per-node Dirichlet concentrations
// and participation probabilities. The gate for each node is drawn
// from a Bernoulli with the node's participation probability. If eval
// is true, the Dirichlet draw is replaced by the normalized
// concentrations of the participating nodes.
//
// Sample returns the allocation over all nodes, the log probability
// of the draw, the participation mask, and summary statistics of the
// participating concentrations. If every node abstains, the
// allocation is all zeros and only the Bernoulli term contributes to
// the log probability.
func (z *ZeroInflatedDirichlet) Sample(conc, part []float64,
	eval bool) ([]float64, float64, []bool, Stats) {
	if len(conc) != len(part) {
		panic(fmt.Sprintf("sample: concentration and participation "+
			"lengths differ: %v != %v", len(conc), len(part)))
	}

	mask := make([]bool, len(conc))
	var logProb float64
	var active []float64
	for i := range part {
		p := floatutils.Clip(part[i], probEps, 1.0-probEps)
		gate := distuv.Bernoulli{P: p, Src: z.source}.Rand()
		if gate > 0.5 {
			mask[i] = true
			logProb += math.Log(p)
			active = append(active, conc[i])
		} else {
			logProb += math.Log(1.0 - p)
		}
	}

	action := make([]float64, len(conc))
	if len(active) == 0 {
		return action, logProb, mask, Stats{}
	}

	stats := Stats{
		MeanConcentration: stat.Mean(active, nil),
		StdConcentration:  math.Sqrt(stat.PopVariance(active, nil)),
		Participants:      len(active),
	}

	dist := distmv.NewDirichlet(active, z.source)
	var frac []float64
	if eval {
		total := floats.Sum(active)
		frac = make([]float64, len(active))
		for i, a := range active {
			frac[i] = a / (total + 1e-16)
		}
	} else {
		frac = dist.Rand(nil)
	}
	logProb += dist.LogProb(frac)

	var sum float64
	j := 0
	for i := range action {
		if mask[i] {
			action[i] = frac[j]
			sum += frac[j]
			j++
		}
	}
	if math.Abs(sum-1.0) > sumTolerance {
		panic(fmt.Sprintf("sample: allocation sums to %v", sum))
	}
	return action, logProb, mask, stats
}

// Score computes the gradient of the log probability of an allocation
// with respect to the Dirichlet concentrations and the participation
// probabilities. The mask and action must come from a previous call to
// Sample with the same concentrations.
func (z *ZeroInflatedDirichlet) Score(conc, part []float64, mask []bool,
	action []float64) ([]float64, []float64) {
	var sumActive float64
	for i := range conc {
		if mask[i] {
			sumActive += conc[i]
		}
	}

	dConc := make([]float64, len(conc))
	dPart := make([]float64, len(part))
	for i := range conc {
		p := floatutils.Clip(part[i], probEps, 1.0-probEps)
		if mask[i] {
			mass := math.Max(action[i], logFloor)
			dConc[i] = math.Log(mass) - mathext.Digamma(conc[i]) +
				mathext.Digamma(sumActive)
			dPart[i] = 1.0 / p
		} else {
			dPart[i] = -1.0 / (1.0 - p)
		}
	}
	return dConc, dPart
}
