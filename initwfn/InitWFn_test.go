package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlorotUJSONRoundTrip(t *testing.T) {
	init, err := NewGlorotU(1.5)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	restored := new(InitWFn)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, GlorotU, restored.Type)
	assert.Equal(t, GlorotUConfig{Gain: 1.5}, restored.Config)
	assert.NotNil(t, restored.InitWFn())
}

func TestGlorotNJSONRoundTrip(t *testing.T) {
	init, err := NewGlorotN(2.0)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	restored := new(InitWFn)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, GlorotN, restored.Type)
	assert.Equal(t, GlorotNConfig{Gain: 2.0}, restored.Config)
	assert.NotNil(t, restored.InitWFn())
}

func TestZeroesJSONRoundTrip(t *testing.T) {
	init, err := NewZeroes()
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	restored := new(InitWFn)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, Zeroes, restored.Type)
	assert.Equal(t, ZeroesConfig{}, restored.Config)
	assert.NotNil(t, restored.InitWFn())
}

func TestConstantJSONRoundTrip(t *testing.T) {
	init, err := NewConstant(0.25)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	restored := new(InitWFn)
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, Constant, restored.Type)
	assert.Equal(t, ConstantConfig{Value: 0.25}, restored.Config)
	assert.NotNil(t, restored.InitWFn())
}

func TestString(t *testing.T) {
	init, err := NewGlorotU(1.0)
	require.NoError(t, err)
	assert.Contains(t, init.String(), "GlorotU")
}
