// Package a2c implements advantage actor-critic learning of fleet
// rebalancing policies over charge-aware fleet graphs.
package a2c

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/amodrl/amodrl/agent"
	env "github.com/amodrl/amodrl/environment"
	"github.com/amodrl/amodrl/graph"
	"github.com/amodrl/amodrl/initwfn"
	"github.com/amodrl/amodrl/network"
	"github.com/amodrl/amodrl/policy"
	"github.com/amodrl/amodrl/solver"
	"github.com/amodrl/amodrl/utils/floatutils"
)

// epsilon guards divisions during return normalization
const epsilon = 1e-8

// Config describes an A2C agent
type Config struct {
	Graph graph.Config

	Gamma              float64
	ActorLearningRate  float64
	CriticLearningRate float64
	GradClip           float64
	LossClamp          float64
	Jitter             float64
	Seed               uint64

	InitWFn *initwfn.InitWFn
}

// DefaultConfig returns a Config with the default hyperparameters
func DefaultConfig() Config {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: could not create init "+
			"function: %v", err))
	}
	return Config{
		Gamma:              0.97,
		ActorLearningRate:  1e-3,
		CriticLearningRate: 1e-3,
		GradClip:           0.5,
		LossClamp:          1000.0,
		Jitter:             1e-20,
		Seed:               1,
		InitWFn:            init,
	}
}

// A2C learns a zero-inflated Dirichlet rebalancing policy with an
// advantage actor-critic update. Behaviour networks process one state
// at a time for action selection; at the end of an episode the
// recorded interactions are replayed through training networks that
// batch the whole episode, and the behaviour weights are synced from
// the trained ones.
type A2C struct {
	sim     env.Simulator
	builder *graph.Builder

	behaviourActor  *network.ActorNet
	behaviourCritic *network.CriticNet
	actorVM         G.VM
	criticVM        G.VM

	train   *trainGraphs
	sampler *policy.ZeroInflatedDirichlet
	buffer  *episodeBuffer

	actorSolver  *solver.Solver
	criticSolver *solver.Solver

	gamma     float64
	gradClip  float64
	lossClamp float64
	jitter    float64
}

// trainGraphs holds the episode-batched networks together with their
// surrogate loss inputs. The loss of each network is the sum of its
// outputs weighted by externally computed coefficients, so that
// backpropagation distributes exactly the gradients the actor-critic
// update calls for.
type trainGraphs struct {
	steps int

	actor    *network.ActorNet
	critic   *network.CriticNet
	actorVM  G.VM
	criticVM G.VM

	concCoeff *G.Node
	partCoeff *G.Node
	valCoeff  *G.Node
}

// New returns a new A2C agent acting on the given fleet simulator
func New(sim env.Simulator, c Config) (*A2C, error) {
	builder, err := graph.NewBuilder(sim, c.Graph)
	if err != nil {
		return nil, fmt.Errorf("new: could not create state builder: %v",
			err)
	}

	if c.InitWFn == nil {
		return nil, fmt.Errorf("new: no weight initializer given")
	}
	nodes := len(sim.Nodes())
	horizon := builder.Horizon()

	actor, err := network.NewActor(nodes, 1, horizon, c.Jitter,
		c.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %v", err)
	}
	critic, err := network.NewCritic(nodes, 1, horizon,
		c.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}

	actorSolver, err := solver.NewDefaultAdam(c.ActorLearningRate, 1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor solver: %v",
			err)
	}
	criticSolver, err := solver.NewDefaultAdam(c.CriticLearningRate, 1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic solver: %v",
			err)
	}

	return &A2C{
		sim:             sim,
		builder:         builder,
		behaviourActor:  actor,
		behaviourCritic: critic,
		actorVM:         G.NewTapeMachine(actor.Graph()),
		criticVM:        G.NewTapeMachine(critic.Graph()),
		sampler:         policy.New(c.Seed),
		buffer:          newEpisodeBuffer(),
		actorSolver:     actorSolver,
		criticSolver:    criticSolver,
		gamma:           c.Gamma,
		gradClip:        c.GradClip,
		lossClamp:       c.LossClamp,
		jitter:          c.Jitter,
	}, nil
}

// SelectAction builds the current graph state, runs the behaviour
// networks, and samples a rebalancing allocation. When eval is true
// the Dirichlet mode replaces the Dirichlet draw and no training data
// is recorded.
func (a *A2C) SelectAction(eval bool) ([]float64, error) {
	state := a.builder.Build()

	if err := a.behaviourActor.SetState([]*graph.State{state}); err != nil {
		return nil, fmt.Errorf("selectaction: could not set actor "+
			"state: %v", err)
	}
	if err := a.actorVM.RunAll(); err != nil {
		return nil, fmt.Errorf("selectaction: could not run actor: %v",
			err)
	}
	a.actorVM.Reset()
	conc, part := a.behaviourActor.Output()

	if err := a.behaviourCritic.SetState([]*graph.State{state}); err != nil {
		return nil, fmt.Errorf("selectaction: could not set critic "+
			"state: %v", err)
	}
	if err := a.criticVM.RunAll(); err != nil {
		return nil, fmt.Errorf("selectaction: could not run critic: %v",
			err)
	}
	a.criticVM.Reset()
	value := a.behaviourCritic.Output()[0]

	action, logProb, mask, stats := a.sampler.Sample(conc, part, eval)
	if !eval {
		a.buffer.add(step{
			state:   state,
			conc:    conc,
			part:    part,
			mask:    mask,
			action:  action,
			logProb: logProb,
			value:   value,
			stats:   stats,
		})
	}
	return action, nil
}

// ObserveReward attaches a reward to the last selected action
func (a *A2C) ObserveReward(reward float64) {
	a.buffer.observe(reward)
}

// Update replays the recorded episode through the training networks,
// takes one Adam step on each, syncs the behaviour networks, and
// clears the episode buffer.
func (a *A2C) Update() (agent.Diagnostics, error) {
	steps := a.buffer.len()
	if steps == 0 {
		return agent.Diagnostics{}, fmt.Errorf("update: no recorded " +
			"episode")
	}
	if !a.buffer.complete() {
		return agent.Diagnostics{}, fmt.Errorf("update: last action " +
			"has no observed reward")
	}

	returns := normalize(a.buffer.returns(a.gamma))

	tg, err := a.trainGraphsFor(steps)
	if err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}
	states := a.buffer.states()
	if err := tg.actor.SetState(states); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not set "+
			"actor state: %v", err)
	}
	if err := tg.critic.SetState(states); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not set "+
			"critic state: %v", err)
	}

	nodes := len(a.sim.Nodes())
	concCoeff := make([]float64, steps*nodes)
	partCoeff := make([]float64, steps*nodes)
	valCoeff := make([]float64, steps)

	var actorLoss, criticLoss float64
	values := make([]float64, steps)
	logProbs := make([]float64, steps)
	for t := range a.buffer.steps {
		st := &a.buffer.steps[t]
		advantage := returns[t] - st.value
		actorLoss += -st.logProb * advantage

		diff := st.value - returns[t]
		criticLoss += huber(diff)
		valCoeff[t] = huberDeriv(diff)

		dConc, dPart := a.sampler.Score(st.conc, st.part, st.mask,
			st.action)
		for i := 0; i < nodes; i++ {
			concCoeff[t*nodes+i] = -advantage * dConc[i]
			partCoeff[t*nodes+i] = -advantage * dPart[i]
		}

		values[t] = st.value
		logProbs[t] = st.logProb
	}
	concMean, concStd := concentrationSummary(a.buffer.steps)

	// a clamped actor loss stops all policy gradients
	if math.Abs(actorLoss) > a.lossClamp {
		actorLoss = floatutils.Clip(actorLoss, -a.lossClamp, a.lossClamp)
		for i := range concCoeff {
			concCoeff[i] = 0
			partCoeff[i] = 0
		}
	}

	if err := letBacking(tg.concCoeff, concCoeff); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}
	if err := letBacking(tg.partCoeff, partCoeff); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}
	if err := letBacking(tg.valCoeff, valCoeff); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}

	if err := tg.actorVM.RunAll(); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not run "+
			"actor training graph: %v", err)
	}
	if err := tg.criticVM.RunAll(); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not run "+
			"critic training graph: %v", err)
	}

	if err := solver.ClipGradNorm(tg.actor.Model(), a.gradClip); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}
	if err := solver.ClipGradNorm(tg.critic.Model(), a.gradClip); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: %v", err)
	}

	if err := a.actorSolver.Step(tg.actor.Model()); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not step "+
			"actor solver: %v", err)
	}
	if err := a.criticSolver.Step(tg.critic.Model()); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not step "+
			"critic solver: %v", err)
	}
	tg.actorVM.Reset()
	tg.criticVM.Reset()

	if err := network.Set(a.behaviourActor, tg.actor); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not sync "+
			"actor weights: %v", err)
	}
	if err := network.Set(a.behaviourCritic, tg.critic); err != nil {
		return agent.Diagnostics{}, fmt.Errorf("update: could not sync "+
			"critic weights: %v", err)
	}

	a.buffer.reset()

	return agent.Diagnostics{
		ActorLoss:         actorLoss,
		CriticLoss:        criticLoss,
		MeanValue:         stat.Mean(values, nil),
		MeanConcentration: concMean,
		StdConcentration:  concStd,
		MeanLogProb:       stat.Mean(logProbs, nil),
		StdLogProb:        stdOrZero(logProbs),
	}, nil
}

// DecayLearningRates scales the learning rate of each network and
// reconstructs its solver with the new rate.
func (a *A2C) DecayLearningRates(actorScale, criticScale float64) {
	a.actorSolver.Decay(actorScale)
	a.criticSolver.Decay(criticScale)
}

// LearningRates returns the current actor and critic learning rates
func (a *A2C) LearningRates() (actor, critic float64) {
	return a.actorSolver.StepSize(), a.criticSolver.StepSize()
}

// trainGraphsFor returns training graphs batching the given number of
// steps, reusing the cached ones when the episode length has not
// changed. The training weights are refreshed from the behaviour
// networks in either case.
func (a *A2C) trainGraphsFor(steps int) (*trainGraphs, error) {
	if a.train != nil && a.train.steps == steps {
		if err := network.Set(a.train.actor, a.behaviourActor); err != nil {
			return nil, err
		}
		if err := network.Set(a.train.critic, a.behaviourCritic); err != nil {
			return nil, err
		}
		return a.train, nil
	}
	if a.train != nil {
		a.train.actorVM.Close()
		a.train.criticVM.Close()
	}

	actor, err := a.behaviourActor.CloneWithSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("could not clone actor: %v", err)
	}
	critic, err := a.behaviourCritic.CloneWithSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("could not clone critic: %v", err)
	}

	concCoeff, partCoeff, actorLoss, err := actorLossNode(actor)
	if err != nil {
		return nil, err
	}
	if _, err := G.Grad(actorLoss, actor.Learnables()...); err != nil {
		return nil, fmt.Errorf("could not differentiate actor loss: %v",
			err)
	}

	valCoeff, criticLoss, err := criticLossNode(critic)
	if err != nil {
		return nil, err
	}
	if _, err := G.Grad(criticLoss, critic.Learnables()...); err != nil {
		return nil, fmt.Errorf("could not differentiate critic loss: %v",
			err)
	}

	a.train = &trainGraphs{
		steps:  steps,
		actor:  actor,
		critic: critic,
		actorVM: G.NewTapeMachine(actor.Graph(),
			G.BindDualValues(actor.Learnables()...)),
		criticVM: G.NewTapeMachine(critic.Graph(),
			G.BindDualValues(critic.Learnables()...)),
		concCoeff: concCoeff,
		partCoeff: partCoeff,
		valCoeff:  valCoeff,
	}
	return a.train, nil
}

// actorLossNode adds the actor's surrogate loss to its graph: the sum
// of the concentration and participation outputs weighted by
// coefficient inputs.
func actorLossNode(actor *network.ActorNet) (concCoeff, partCoeff,
	loss *G.Node, err error) {
	g := actor.Graph()
	concCoeff = coeffInput(g, actor.Concentration(), "concCoeff")
	partCoeff = coeffInput(g, actor.Participation(), "partCoeff")

	concTerm, err := G.HadamardProd(concCoeff, actor.Concentration())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not weight "+
			"concentrations: %v", err)
	}
	partTerm, err := G.HadamardProd(partCoeff, actor.Participation())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not weight "+
			"participations: %v", err)
	}
	concSum, err := G.Sum(concTerm)
	if err != nil {
		return nil, nil, nil, err
	}
	partSum, err := G.Sum(partTerm)
	if err != nil {
		return nil, nil, nil, err
	}
	loss, err = G.Add(concSum, partSum)
	if err != nil {
		return nil, nil, nil, err
	}
	return concCoeff, partCoeff, loss, nil
}

// criticLossNode adds the critic's surrogate loss to its graph: the
// sum of the per-step values weighted by a coefficient input.
func criticLossNode(critic *network.CriticNet) (valCoeff, loss *G.Node,
	err error) {
	valCoeff = coeffInput(critic.Graph(), critic.Value(), "valCoeff")
	valTerm, err := G.HadamardProd(valCoeff, critic.Value())
	if err != nil {
		return nil, nil, fmt.Errorf("could not weight values: %v", err)
	}
	loss, err = G.Sum(valTerm)
	if err != nil {
		return nil, nil, err
	}
	return valCoeff, loss, nil
}

// coeffInput adds an input node shaped like ref to g
func coeffInput(g *G.ExprGraph, ref *G.Node, name string) *G.Node {
	return G.NewTensor(g, tensor.Float64, ref.Dims(),
		G.WithShape(ref.Shape()...), G.WithName(name))
}

// letBacking binds backing to the input node
func letBacking(node *G.Node, backing []float64) error {
	t := tensor.New(tensor.WithShape(node.Shape()...),
		tensor.WithBacking(backing))
	if err := G.Let(node, t); err != nil {
		return fmt.Errorf("could not bind %v: %v", node.Name(), err)
	}
	return nil
}

// huber is the smooth L1 loss of a residual
func huber(diff float64) float64 {
	if math.Abs(diff) < 1.0 {
		return 0.5 * diff * diff
	}
	return math.Abs(diff) - 0.5
}

// huberDeriv is the derivative of huber
func huberDeriv(diff float64) float64 {
	if math.Abs(diff) < 1.0 {
		return diff
	}
	if diff > 0 {
		return 1.0
	}
	return -1.0
}

// concentrationSummary averages the per-step concentration statistics.
// Steps where every node abstained carry no concentrations and are
// left out of the average.
func concentrationSummary(steps []step) (mean, std float64) {
	means := make([]float64, 0, len(steps))
	stds := make([]float64, 0, len(steps))
	for i := range steps {
		if steps[i].stats.Participants > 0 {
			means = append(means, steps[i].stats.MeanConcentration)
			stds = append(stds, steps[i].stats.StdConcentration)
		}
	}
	return meanOrZero(means), meanOrZero(stds)
}

func meanOrZero(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

func stdOrZero(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return math.Sqrt(stat.Variance(x, nil))
}
