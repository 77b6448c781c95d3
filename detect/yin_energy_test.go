package detect

import (
	"cmp"
	"context"
	"math"
	"slices"
	"testing"

	"github.com/RyanBlaney/sonido-score/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 44100

func tone(freq, amplitude, seconds float64) []float64 {
	out := make([]float64, int(seconds*testSampleRate))
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return out
}

func detectAll(t *testing.T, d NoteDetector, samples []float64) []score.RawNoteEvent {
	t.Helper()
	seq, err := d.Detect(context.Background(), samples, testSampleRate)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func TestYinEnergyDetector_SustainedTone(t *testing.T) {
	events := detectAll(t, NewYinEnergyDetector(DefaultYinConfig()), tone(440, 0.5, 1))
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, 69, e.Pitch)
	assert.Equal(t, 0.0, e.StartTime)
	assert.InDelta(t, 20*2048.0/testSampleRate, e.Duration, 1e-9)
	assert.Equal(t, 127, e.Velocity)
	assert.InDelta(t, 440, e.Frequency, 2)
}

func TestYinEnergyDetector_PitchChangeStartsNewNote(t *testing.T) {
	samples := append(tone(440, 0.5, 1), tone(880, 0.5, 1)...)
	events := detectAll(t, NewYinEnergyDetector(DefaultYinConfig()), samples)
	require.GreaterOrEqual(t, len(events), 2)

	first, last := events[0], events[len(events)-1]
	assert.Equal(t, 69, first.Pitch)
	assert.Equal(t, 81, last.Pitch)
	assert.Greater(t, last.StartTime, 0.9)
	assert.True(t, slices.IsSortedFunc(events, func(a, b score.RawNoteEvent) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	}))
}

func TestYinEnergyDetector_SilenceAndQuietInput(t *testing.T) {
	d := NewYinEnergyDetector(DefaultYinConfig())

	assert.Empty(t, detectAll(t, d, make([]float64, testSampleRate)))
	// rms 0.007 gives velocity 7, below the gate
	assert.Empty(t, detectAll(t, d, tone(440, 0.01, 1)))
	assert.Empty(t, detectAll(t, d, nil))
}

func TestYinEnergyDetector_SequenceIsSingleUse(t *testing.T) {
	seq, err := NewYinEnergyDetector(DefaultYinConfig()).Detect(context.Background(), tone(440, 0.5, 1), testSampleRate)
	require.NoError(t, err)

	assert.Len(t, slices.Collect(seq), 1)
	assert.Empty(t, slices.Collect(seq))
}

func TestYinEnergyDetector_Progress(t *testing.T) {
	config := DefaultYinConfig()
	config.ProgressEvery = 5

	var frames []int
	d := NewYinEnergyDetector(config).WithProgress(func(frame, total int) {
		assert.Equal(t, 21, total)
		frames = append(frames, frame)
	})

	detectAll(t, d, tone(440, 0.5, 1))
	assert.Equal(t, []int{0, 5, 10, 15, 20}, frames)
}

func TestYinEnergyDetector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq, err := NewYinEnergyDetector(DefaultYinConfig()).Detect(ctx, tone(440, 0.5, 1), testSampleRate)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestYinEnergyDetector_InvalidInput(t *testing.T) {
	_, err := NewYinEnergyDetector(DefaultYinConfig()).Detect(context.Background(), tone(440, 0.5, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	config := DefaultYinConfig()
	config.HopSize = 0
	_, err = NewYinEnergyDetector(config).Detect(context.Background(), tone(440, 0.5, 1), testSampleRate)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNoteAccumulator(t *testing.T) {
	acc := noteAccumulator{minDuration: 0.05}
	frame := func(pitch int, at float64) score.RawNoteEvent {
		return score.RawNoteEvent{Pitch: pitch, StartTime: at, Duration: 0.02, Velocity: 64}
	}

	_, ok := acc.close()
	assert.False(t, ok, "idle accumulator has nothing to close")

	_, ok = acc.voiced(frame(60, 0))
	assert.False(t, ok)
	// a semitone away extends the open note
	_, ok = acc.voiced(frame(61, 0.1))
	assert.False(t, ok)

	closed, ok := acc.voiced(frame(64, 0.2))
	require.True(t, ok)
	assert.Equal(t, 60, closed.Pitch)
	assert.InDelta(t, 0.1, closed.Duration, 1e-12)

	// a single frame note is shorter than the minimum
	_, ok = acc.close()
	assert.False(t, ok)
	assert.Equal(t, stateIdle, acc.state)
}
