package main

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/stat"

	"github.com/amodrl/amodrl/agent/a2c"
	"github.com/amodrl/amodrl/environment/scenario"
	"github.com/amodrl/amodrl/experiment"
	"github.com/amodrl/amodrl/experiment/checkpointer"
	"github.com/amodrl/amodrl/experiment/trackers"
	"github.com/amodrl/amodrl/graph"
)

func main() {
	// Create the environment
	fleet, err := scenario.New(scenario.DefaultConfig())
	if err != nil {
		log.Fatalf("could not create scenario: %v", err)
	}

	// Create the learning algorithm
	config := a2c.DefaultConfig()
	config.Graph = graph.Config{
		Horizon:      6,
		Topology:     graph.GridWithSelfLoops,
		EdgeFeatures: true,
	}
	agent, err := a2c.New(fleet, config)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	// Experiment
	e := experiment.NewOnline(fleet, agent, 500,
		trackers.NewReturn("./returns.bin"),
		trackers.NewDiagnostics("./diagnostics.bin"),
	).WithProgress()
	e.RegisterCheckpointer(checkpointer.NewNEpisode(100, agent,
		checkpointer.FilenameEnumerator(0, "./checkpoint", ".bin")))

	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	e.Save()

	returns := trackers.LoadData("./returns.bin")
	first := stat.Mean(returns[:50], nil)
	last := stat.Mean(returns[len(returns)-50:], nil)
	fmt.Printf("mean return: first 50 episodes %.2f, last 50 episodes %.2f\n",
		first, last)
}
