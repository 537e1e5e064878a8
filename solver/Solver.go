// Package solver wraps Gorgonia Solvers so that they can be JSON
// serialized into configuration files and rebuilt with decayed
// learning rates.
package solver

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
)

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled
// and unmarshalled.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// StepSize returns the current learning rate of the solver
func (s *Solver) StepSize() float64 {
	return s.Config.StepSize()
}

// SetStepSize replaces the solver's learning rate and reconstructs
// the underlying Gorgonia Solver. Any accumulated solver state is
// discarded.
func (s *Solver) SetStepSize(stepSize float64) {
	s.Config = s.Config.WithStepSize(stepSize)
	s.Solver = s.Config.Create()
}

// Decay scales the solver's learning rate by rate and reconstructs
// the underlying Gorgonia Solver with the new learning rate.
func (s *Solver) Decay(rate float64) {
	s.SetStepSize(s.Config.StepSize() * rate)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
		})
	if err != nil {
		return err
	}

	s.Type = typeName
	s.Config = config
	s.Solver = s.Config.Create()

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName := m[typeJsonField].(string)
	var value Config
	if ty, found := customTypes[typeName]; found {
		value = reflect.New(ty).Interface().(Config)
	}

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, &value); err != nil {
		return nil, "", err
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Config)

	return concreteValue, Type(typeName), nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create the Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	// StepSize returns the learning rate of the Config
	StepSize() float64

	// WithStepSize returns a copy of the Config with a new learning
	// rate
	WithStepSize(float64) Config
}

// ClipGradNorm rescales the gradients of model in place so that their
// joint 2-norm does not exceed maxNorm. The gradients must be bound
// dual values whose backing slices are []float64.
func ClipGradNorm(model []G.ValueGrad, maxNorm float64) error {
	var sumSquares float64
	grads := make([][]float64, len(model))
	for i, node := range model {
		grad, err := node.Grad()
		if err != nil {
			return fmt.Errorf("clipgradnorm: could not get gradient: %v",
				err)
		}
		data, ok := grad.Data().([]float64)
		if !ok {
			return fmt.Errorf("clipgradnorm: gradient is not backed "+
				"by []float64: %T", grad.Data())
		}
		grads[i] = data
		for _, g := range data {
			sumSquares += g * g
		}
	}

	norm := math.Sqrt(sumSquares)
	if norm <= maxNorm {
		return nil
	}
	scale := maxNorm / (norm + 1e-6)
	for _, data := range grads {
		for j := range data {
			data[j] *= scale
		}
	}
	return nil
}
