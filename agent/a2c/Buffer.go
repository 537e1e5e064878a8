package a2c

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/amodrl/amodrl/graph"
	"github.com/amodrl/amodrl/policy"
)

// step holds everything recorded for a single environment interaction
// that the training graphs later need to replay.
type step struct {
	state   *graph.State
	conc    []float64
	part    []float64
	mask    []bool
	action  []float64
	logProb float64
	value   float64
	stats   policy.Stats
	reward  float64
}

// episodeBuffer accumulates the interactions of one episode between
// parameter updates. Every action must receive exactly one reward
// before the next action is recorded.
type episodeBuffer struct {
	steps    []step
	rewarded int
}

func newEpisodeBuffer() *episodeBuffer {
	return &episodeBuffer{}
}

// add records an interaction. It panics if the previous action has not
// yet received a reward.
func (b *episodeBuffer) add(s step) {
	if b.rewarded != len(b.steps) {
		panic(fmt.Sprintf("add: %v of %v actions have an observed "+
			"reward", b.rewarded, len(b.steps)))
	}
	b.steps = append(b.steps, s)
}

// observe attaches a reward to the most recent action. It panics if
// every recorded action already has a reward.
func (b *episodeBuffer) observe(reward float64) {
	if b.rewarded >= len(b.steps) {
		panic("observe: no action awaiting a reward")
	}
	b.steps[b.rewarded].reward = reward
	b.rewarded++
}

func (b *episodeBuffer) len() int {
	return len(b.steps)
}

// complete returns whether every recorded action has a reward
func (b *episodeBuffer) complete() bool {
	return b.rewarded == len(b.steps)
}

// reset discards the episode. The backing array is released so that
// graph states do not outlive the update that consumed them.
func (b *episodeBuffer) reset() {
	b.steps = nil
	b.rewarded = 0
}

// returns computes the discounted return of every step by backward
// recursion. It panics on an incomplete episode.
func (b *episodeBuffer) returns(gamma float64) []float64 {
	if !b.complete() {
		panic(fmt.Sprintf("returns: %v of %v actions have an observed "+
			"reward", b.rewarded, len(b.steps)))
	}
	out := make([]float64, len(b.steps))
	var running float64
	for i := len(b.steps) - 1; i >= 0; i-- {
		running = b.steps[i].reward + gamma*running
		out[i] = running
	}
	return out
}

// states returns the graph state of every step in episode order
func (b *episodeBuffer) states() []*graph.State {
	out := make([]*graph.State, len(b.steps))
	for i := range b.steps {
		out[i] = b.steps[i].state
	}
	return out
}

// normalize shifts and scales x to zero mean and unit standard
// deviation. A single-step episode has no spread, so only the shift is
// applied.
func normalize(x []float64) []float64 {
	mean := stat.Mean(x, nil)
	var std float64
	if len(x) > 1 {
		std = math.Sqrt(stat.Variance(x, nil))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - mean) / (std + epsilon)
	}
	return out
}
