// Package experiment runs learning agents against fleet environments.
package experiment

import (
	"fmt"

	"github.com/amodrl/amodrl/agent"
	env "github.com/amodrl/amodrl/environment"
	"github.com/amodrl/amodrl/experiment/checkpointer"
	"github.com/amodrl/amodrl/experiment/trackers"
	ts "github.com/amodrl/amodrl/timestep"
	"github.com/amodrl/amodrl/utils/progressbar"
)

// Online is an Experiment that trains an agent episodically. After
// every episode the agent's Update is called, trackers record the
// episode's timesteps and update diagnostics, and checkpointers may
// save training state.
type Online struct {
	environment   env.Environment
	agent         agent.Agent
	episodes      int
	trackers      []trackers.Tracker
	checkpointers []checkpointer.Checkpointer
	progress      bool
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent, run for the given number of
// episodes. The t parameter is a slice of trackers.Tracker which
// determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, episodes int,
	t ...trackers.Tracker) *Online {
	return &Online{
		environment: e,
		agent:       a,
		episodes:    episodes,
		trackers:    t,
	}
}

// Register registers a trackers.Tracker with the Experiment so that
// data generated during the experiment can be tracked and saved
func (o *Online) Register(t trackers.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RegisterCheckpointer registers a checkpointer, called at the end of
// every episode
func (o *Online) RegisterCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// WithProgress turns on the terminal progress bar
func (o *Online) WithProgress() *Online {
	o.progress = true
	return o
}

// RunEpisode runs a single training episode and the agent update that
// follows it, returning the episodic return and the update
// diagnostics.
func (o *Online) RunEpisode() (float64, agent.Diagnostics, error) {
	step := o.environment.Reset()
	o.track(step)

	var episodeReturn float64
	for !step.Last() {
		action, err := o.agent.SelectAction(false)
		if err != nil {
			return 0, agent.Diagnostics{}, fmt.Errorf("runepisode: %v",
				err)
		}
		step = o.environment.Step(action)
		episodeReturn += step.Reward

		o.track(step)
		o.agent.ObserveReward(step.Reward)
	}

	diagnostics, err := o.agent.Update()
	if err != nil {
		return episodeReturn, diagnostics, fmt.Errorf("runepisode: "+
			"could not update agent: %v", err)
	}
	for _, tracker := range o.trackers {
		if updates, ok := tracker.(trackers.UpdateTracker); ok {
			updates.TrackUpdate(diagnostics)
		}
	}
	return episodeReturn, diagnostics, nil
}

// Run runs the entire experiment for all episodes
func (o *Online) Run() error {
	var bar *progressbar.ProgressBar
	if o.progress {
		bar = progressbar.New(50, o.episodes)
		bar.Display()
		defer bar.Close()
	}

	for episode := 1; episode <= o.episodes; episode++ {
		episodeReturn, _, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: episode %v: %v", episode, err)
		}
		if bar != nil {
			bar.Increment(episodeReturn)
		}

		for _, c := range o.checkpointers {
			if err := c.Checkpoint(episode); err != nil {
				return fmt.Errorf("run: episode %v: %v", episode, err)
			}
		}
	}
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() {
	for _, tracker := range o.trackers {
		tracker.Save()
	}
}

// track tracks the current timestep by caching its data in each
// tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tracker := range o.trackers {
		tracker.Track(t)
	}
}
