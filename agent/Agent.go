// Package agent describes the interface between learning agents and
// experiments.
package agent

// Diagnostics summarizes a single parameter update
type Diagnostics struct {
	ActorLoss         float64
	CriticLoss        float64
	MeanValue         float64
	MeanConcentration float64
	StdConcentration  float64
	MeanLogProb       float64
	StdLogProb        float64
}

// Agent learns a fleet rebalancing policy from episodic interaction.
// SelectAction returns an allocation over fleet nodes. When eval is
// true the action is the mode of the policy and no training data is
// recorded. Every non-eval action must be followed by exactly one
// ObserveReward before the next action. Update consumes the recorded
// episode and adjusts the policy.
type Agent interface {
	SelectAction(eval bool) ([]float64, error)
	ObserveReward(reward float64)
	Update() (Diagnostics, error)
}
