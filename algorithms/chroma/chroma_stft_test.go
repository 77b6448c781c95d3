package chroma

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestChromaSTFT_A440PeaksAtA(t *testing.T) {
	cs, err := NewChromaSTFT(44100)
	require.NoError(t, err)

	c, err := cs.Compute(sine(440, 44100, 44100))
	require.NoError(t, err)

	assert.Equal(t, 9, slices.Index(c[:], slices.Max(c[:])))
	assert.InDelta(t, 1.0, sumOf(c), 1e-9)
}

func TestChromaSTFT_SilenceIsUniform(t *testing.T) {
	cs, err := NewChromaSTFT(44100)
	require.NoError(t, err)

	c, err := cs.Compute(make([]float64, 20000))
	require.NoError(t, err)
	for pc := range c {
		assert.InDelta(t, 1.0/12, c[pc], 1e-12)
	}

	short, err := cs.Compute(make([]float64, 100))
	require.NoError(t, err)
	assert.Equal(t, Uniform(), short)
}

func TestChromaSTFT_NoiseIsNormalized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	noise := make([]float64, 16384)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}

	cs, err := NewChromaSTFT(22050)
	require.NoError(t, err)

	c, err := cs.Compute(noise)
	require.NoError(t, err)
	for pc := range c {
		assert.GreaterOrEqual(t, c[pc], 0.0)
	}
	assert.InDelta(t, 1.0, sumOf(c), 1e-9)
}

func TestNewChromaSTFTWithParams_RejectsBadFrame(t *testing.T) {
	_, err := NewChromaSTFTWithParams(44100, 3000, 1500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, spectral.ErrNotPowerOfTwo))

	_, err = NewChromaSTFTWithParams(0, 4096, 2048)
	assert.Error(t, err)
}

func TestFromPitchWeights(t *testing.T) {
	c, err := FromPitchWeights([]int{60, 72, 67}, []float64{1, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c[0], 1e-12)
	assert.InDelta(t, 0.5, c[7], 1e-12)

	_, err = FromPitchWeights([]int{60}, nil)
	assert.Error(t, err)
}

func sumOf(c Chromagram) float64 {
	total := 0.0
	for _, v := range c {
		total += v
	}
	return total
}
