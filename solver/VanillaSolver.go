package solver

import G "gorgonia.org/gorgonia"

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	LearningRate float64
	Batch        int
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(learningRate float64, batchSize int) (*Solver, error) {
	vanilla := VanillaConfig{
		LearningRate: learningRate,
		Batch:        batchSize,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a Gorgonia Vanilla Solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() G.Solver {
	solver := G.NewVanillaSolver(
		G.WithLearnRate(v.LearningRate),
		G.WithBatchSize(float64(v.Batch)),
	)
	return solver
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// StepSize returns the learning rate of the config
func (v VanillaConfig) StepSize() float64 {
	return v.LearningRate
}

// WithStepSize returns a copy of the config with a new learning rate
func (v VanillaConfig) WithStepSize(learningRate float64) Config {
	v.LearningRate = learningRate
	return v
}
