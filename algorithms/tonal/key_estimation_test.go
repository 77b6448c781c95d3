package tonal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-score/algorithms/chroma"
)

func triad(tonic, third int) chroma.Chromagram {
	var c chroma.Chromagram
	for i := range c {
		c[i] = 0.02
	}
	c[tonic%12] = 0.3
	c[(tonic+third)%12] = 0.25
	c[(tonic+7)%12] = 0.2
	return c
}

func TestEstimateKey_AllMajorTriads(t *testing.T) {
	ke := NewKeyEstimator()
	for tonic := range 12 {
		key := ke.EstimateKey(triad(tonic, 4))
		assert.Equal(t, tonic, key.Tonic, "tonic %s", PitchClassNames[tonic])
		assert.Equal(t, KeyModeMajor, key.Mode, "tonic %s", PitchClassNames[tonic])
		assert.GreaterOrEqual(t, key.Confidence, 0.0)
		assert.LessOrEqual(t, key.Confidence, 1.0)
	}
}

func TestEstimateKey_AllMinorTriads(t *testing.T) {
	ke := NewKeyEstimator()
	for tonic := range 12 {
		key := ke.EstimateKey(triad(tonic, 3))
		assert.Equal(t, tonic, key.Tonic, "tonic %s", PitchClassNames[tonic])
		assert.Equal(t, KeyModeMinor, key.Mode, "tonic %s", PitchClassNames[tonic])
	}
}

func TestEstimateKey_HandWrittenChromagrams(t *testing.T) {
	tests := []struct {
		name   string
		chroma chroma.Chromagram
		want   string
	}{
		{"C major", chroma.Chromagram{0.3, 0.02, 0.1, 0.02, 0.25, 0.05, 0.02, 0.2, 0.02, 0.02, 0.02, 0.02}, "C major"},
		{"A minor", chroma.Chromagram{0.25, 0.02, 0.05, 0.02, 0.25, 0.05, 0.02, 0.05, 0.02, 0.3, 0.02, 0.02}, "A minor"},
		{"G major", chroma.Chromagram{0.05, 0.02, 0.25, 0.02, 0.05, 0.05, 0.02, 0.3, 0.02, 0.05, 0.02, 0.2}, "G major"},
		{"E minor", chroma.Chromagram{0.05, 0.02, 0.05, 0.02, 0.3, 0.05, 0.02, 0.25, 0.02, 0.05, 0.02, 0.25}, "E minor"},
		{"Eb minor", chroma.Chromagram{0.05, 0.02, 0.05, 0.3, 0.05, 0.05, 0.25, 0.05, 0.02, 0.05, 0.2, 0.02}, "Eb minor"},
	}

	ke := NewKeyEstimator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ke.EstimateKey(tt.chroma)
			assert.Equal(t, tt.want, key.Name())
			assert.Greater(t, key.Confidence, 0.5)
		})
	}
}

func TestEstimateKey_UniformFallsBackToCMajor(t *testing.T) {
	key := NewKeyEstimator().EstimateKey(chroma.Uniform())

	assert.Equal(t, "C major", key.Name())
	assert.Equal(t, 0.0, key.Correlation)
	assert.InDelta(t, 0.5, key.Confidence, 1e-12)
}

func TestKeyModeJSON(t *testing.T) {
	data, err := json.Marshal(KeyEstimate{Tonic: 3, Mode: KeyModeMinor})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":"minor"`)

	var decoded KeyEstimate
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KeyModeMinor, decoded.Mode)
}
