// Package timestep implements timesteps of the agent-environment
// interaction.
package timestep

import "fmt"

// StepType denotes the type of step that a TimeStep can be: the first
// environmental step, a middle step, or a last step.
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment. The
// agent observes the fleet state through the simulator interface
// rather than through an observation vector, so a TimeStep only
// carries the reward signal and bookkeeping.
type TimeStep struct {
	stepType StepType
	Reward   float64
	Number   int
}

func New(t StepType, r float64, n int) TimeStep {
	return TimeStep{t, r, n}
}

// First returns whether a TimeStep is the first in an episode
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an episode
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an episode
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Step Number:  %v"
	return fmt.Sprintf(str, t.stepType, t.Reward, t.Number)
}
