package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestAdamJSONRoundTrip(t *testing.T) {
	adam, err := NewAdam(1e-3, 1e-8, 0.9, 0.999, 1)
	require.NoError(t, err)

	data, err := json.Marshal(adam)
	require.NoError(t, err)

	restored := new(Solver)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, Adam, restored.Type)
	assert.Equal(t, adam.Config, restored.Config)
	assert.NotNil(t, restored.Solver)
}

func TestVanillaJSONRoundTrip(t *testing.T) {
	vanilla, err := NewVanilla(0.1, 4)
	require.NoError(t, err)

	data, err := json.Marshal(vanilla)
	require.NoError(t, err)

	restored := new(Solver)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, Vanilla, restored.Type)
	assert.Equal(t, vanilla.Config, restored.Config)
}

func TestDecay(t *testing.T) {
	adam, err := NewDefaultAdam(1e-3, 1)
	require.NoError(t, err)

	adam.Decay(0.5)
	assert.InDelta(t, 5e-4, adam.StepSize(), 1e-15)

	adam.SetStepSize(2e-3)
	assert.InDelta(t, 2e-3, adam.StepSize(), 1e-15)
}

func TestClipGradNorm(t *testing.T) {
	g := G.NewGraph()
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 2),
		G.WithInit(G.Ones()), G.WithName("w"))
	loss, err := G.Sum(w)
	require.NoError(t, err)
	_, err = G.Grad(loss, w)
	require.NoError(t, err)

	vm := G.NewTapeMachine(g, G.BindDualValues(w))
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	// gradient of sum is all ones, norm 2
	model := []G.ValueGrad{w}
	require.NoError(t, ClipGradNorm(model, 1.0))

	grad, err := w.Grad()
	require.NoError(t, err)
	for _, v := range grad.Data().([]float64) {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

func TestClipGradNormLeavesSmallGradients(t *testing.T) {
	g := G.NewGraph()
	w := G.NewVector(g, tensor.Float64, G.WithShape(2),
		G.WithInit(G.Ones()), G.WithName("w"))
	loss, err := G.Sum(w)
	require.NoError(t, err)
	_, err = G.Grad(loss, w)
	require.NoError(t, err)

	vm := G.NewTapeMachine(g, G.BindDualValues(w))
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	require.NoError(t, ClipGradNorm([]G.ValueGrad{w}, 10.0))

	grad, err := w.Grad()
	require.NoError(t, err)
	for _, v := range grad.Data().([]float64) {
		assert.Equal(t, 1.0, v)
	}
}
