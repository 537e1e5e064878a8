package a2c

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addRewarded(b *episodeBuffer, rewards ...float64) {
	for _, r := range rewards {
		b.add(step{})
		b.observe(r)
	}
}

func TestBufferDiscountedReturns(t *testing.T) {
	b := newEpisodeBuffer()
	addRewarded(b, 1, 1, 1)

	returns := b.returns(0.97)
	require.Len(t, returns, 3)
	assert.InDelta(t, 2.9409, returns[0], 1e-9)
	assert.InDelta(t, 1.97, returns[1], 1e-9)
	assert.InDelta(t, 1.0, returns[2], 1e-9)
}

func TestBufferReturnsWithZeroDiscount(t *testing.T) {
	b := newEpisodeBuffer()
	addRewarded(b, 3, -2, 5)

	assert.Equal(t, []float64{3, -2, 5}, b.returns(0))
}

func TestBufferRewardInvariant(t *testing.T) {
	b := newEpisodeBuffer()
	b.add(step{})

	assert.Panics(t, func() { b.add(step{}) },
		"second action before the first reward must panic")

	b.observe(1)
	assert.Panics(t, func() { b.observe(1) },
		"second reward for one action must panic")

	assert.NotPanics(t, func() { b.add(step{}) })
	assert.False(t, b.complete())
	assert.Panics(t, func() { b.returns(0.97) },
		"returns of an incomplete episode must panic")
}

func TestBufferReset(t *testing.T) {
	b := newEpisodeBuffer()
	addRewarded(b, 1, 2)
	require.Equal(t, 2, b.len())

	b.reset()
	assert.Zero(t, b.len())
	assert.True(t, b.complete())

	// usable again after reset
	addRewarded(b, 4)
	assert.Equal(t, []float64{4}, b.returns(0.97))
}

func TestNormalize(t *testing.T) {
	normalized := normalize([]float64{1, 2, 3, 4})

	var mean float64
	for _, v := range normalized {
		mean += v
	}
	mean /= float64(len(normalized))
	assert.InDelta(t, 0.0, mean, 1e-9)

	var variance float64
	for _, v := range normalized {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(normalized)-1))
	assert.InDelta(t, 1.0, std, 1e-6)

	// order preserved
	for i := 1; i < len(normalized); i++ {
		assert.Greater(t, normalized[i], normalized[i-1])
	}
}

func TestNormalizeSingleStep(t *testing.T) {
	normalized := normalize([]float64{7.5})
	require.Len(t, normalized, 1)
	assert.InDelta(t, 0.0, normalized[0], 1e-6)
	assert.False(t, math.IsNaN(normalized[0]))
}

func TestHuber(t *testing.T) {
	assert.InDelta(t, 0.125, huber(0.5), 1e-12)
	assert.InDelta(t, 1.5, huber(2), 1e-12)
	assert.InDelta(t, 1.5, huber(-2), 1e-12)

	assert.InDelta(t, 0.5, huberDeriv(0.5), 1e-12)
	assert.InDelta(t, -0.5, huberDeriv(-0.5), 1e-12)
	assert.Equal(t, 1.0, huberDeriv(3))
	assert.Equal(t, -1.0, huberDeriv(-3))
}
