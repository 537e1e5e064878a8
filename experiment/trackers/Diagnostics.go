package trackers

import (
	"encoding/gob"
	"log"
	"os"

	"github.com/amodrl/amodrl/agent"
	ts "github.com/amodrl/amodrl/timestep"
)

// Diagnostics tracks the training diagnostics of every parameter
// update in an experiment and saves them as named series.
type Diagnostics struct {
	series   map[string][]float64
	filename string
}

// NewDiagnostics creates and returns a new *Diagnostics Tracker
func NewDiagnostics(filename string) UpdateTracker {
	return &Diagnostics{
		series:   make(map[string][]float64),
		filename: filename,
	}
}

// Track implements the Tracker interface. The Diagnostics Tracker
// records updates, not timesteps, so Track is a no-op.
func (d *Diagnostics) Track(step ts.TimeStep) {}

// TrackUpdate records the diagnostics of a single parameter update
func (d *Diagnostics) TrackUpdate(diag agent.Diagnostics) {
	d.series["actor_loss"] = append(d.series["actor_loss"],
		diag.ActorLoss)
	d.series["critic_loss"] = append(d.series["critic_loss"],
		diag.CriticLoss)
	d.series["mean_value"] = append(d.series["mean_value"],
		diag.MeanValue)
	d.series["mean_concentration"] = append(d.series["mean_concentration"],
		diag.MeanConcentration)
	d.series["std_concentration"] = append(d.series["std_concentration"],
		diag.StdConcentration)
	d.series["mean_log_prob"] = append(d.series["mean_log_prob"],
		diag.MeanLogProb)
	d.series["std_log_prob"] = append(d.series["std_log_prob"],
		diag.StdLogProb)
}

// Save saves the data tracked by the Diagnostics Tracker to disk.
func (d *Diagnostics) Save() {
	file, err := os.Create(d.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(d.series); err != nil {
		log.Fatalf("could not encode diagnostics data: %v", err)
	}
}

// LoadDiagnostics loads and returns the series saved by a Diagnostics
// Tracker
func LoadDiagnostics(filename string) map[string][]float64 {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	data := make(map[string][]float64)
	if err = dec.Decode(&data); err != nil {
		log.Fatalf("could not decode diagnostics data: %v", err)
	}
	return data
}
