// Package trackers implements Trackers, which track and save data in
// an experiment
package trackers

import (
	"encoding/gob"
	"log"
	"os"

	"github.com/amodrl/amodrl/agent"
	ts "github.com/amodrl/amodrl/timestep"
)

// Interface Tracker keeps track of experiment data and saves the data
// after the experiment has finished
type Tracker interface {
	Track(t ts.TimeStep)
	Save()
}

// UpdateTracker is a Tracker that additionally records the
// diagnostics of each parameter update
type UpdateTracker interface {
	Tracker
	TrackUpdate(d agent.Diagnostics)
}

// LoadData loads and returns the data saved by a Return Tracker
func LoadData(filename string) []float64 {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64

	err = dec.Decode(&data)
	if err != nil {
		log.Fatalf("could not decode data: %v", err)
	}

	return data
}
