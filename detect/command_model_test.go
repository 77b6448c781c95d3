package detect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-score/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeFixtureMIDI(t *testing.T, events []score.RawNoteEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.mid")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WriteMIDINotes(f, events, 120))
	return path
}

func TestCommandModel_ReadsProducedMIDI(t *testing.T) {
	requireShell(t)
	fixture := writeFixtureMIDI(t, []score.RawNoteEvent{
		{Pitch: 57, StartTime: 0, Duration: 1, Velocity: 70},
	})

	model := NewCommandModel(CommandModelConfig{
		Name:    "fixture",
		Command: "sh",
		// the input must exist before the command runs
		Args: []string{"-c", `test -s "$1" && cp "$2" "$3"`, "sh", PlaceholderInput, fixture, PlaceholderOutput},
	})

	events, err := model.Transcribe(context.Background(), tone(220, 0.5, 0.1), testSampleRate)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 57, events[0].Pitch)
	assert.InDelta(t, 1.0, events[0].Duration, 1e-3)
}

func TestCommandModel_FindsMIDIInOutputDir(t *testing.T) {
	requireShell(t)
	fixture := writeFixtureMIDI(t, []score.RawNoteEvent{
		{Pitch: 60, StartTime: 0.5, Duration: 0.5, Velocity: 70},
	})

	model := NewCommandModel(CommandModelConfig{
		Command: "sh",
		Args:    []string{"-c", `cp "$1" "$2/take_basic_pitch.mid"`, "sh", fixture, PlaceholderOutDir},
	})
	assert.Equal(t, "sh", model.Name())

	events, err := model.Transcribe(context.Background(), nil, testSampleRate)
	require.NoError(t, err)
	assert.Equal(t, []int{60}, pitches(events))
}

func TestCommandModel_Failure(t *testing.T) {
	requireShell(t)
	model := NewCommandModel(CommandModelConfig{
		Name:    "broken",
		Command: "sh",
		Args:    []string{"-c", "echo model exploded >&2; exit 3"},
	})

	_, err := model.Transcribe(context.Background(), nil, testSampleRate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelFailed)

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, 3, modelErr.ExitCode)
	assert.Equal(t, "model exploded", modelErr.Stderr)

	silent := NewCommandModel(CommandModelConfig{Command: "sh", Args: []string{"-c", "true"}})
	_, err = silent.Transcribe(context.Background(), nil, testSampleRate)
	assert.ErrorIs(t, err, ErrModelFailed)

	_, err = NewCommandModel(CommandModelConfig{}).Transcribe(context.Background(), nil, testSampleRate)
	assert.ErrorIs(t, err, ErrModelFailed)
}

func TestCommandModel_WeightsGoThroughCache(t *testing.T) {
	requireShell(t)
	ctx := context.Background()
	cache := NewMemoryModelCache()

	weights := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(weights, []byte("trained"), 0o644))

	config := CommandModelConfig{
		Name:        "onsets",
		Command:     "sh",
		WeightsPath: weights,
		TempDir:     t.TempDir(),
	}

	first := NewCommandModel(config)
	require.NoError(t, first.LoadWeights(ctx, cache))
	cached, err := cache.Get(ctx, "weights:onsets")
	require.NoError(t, err)
	assert.Equal(t, []byte("trained"), cached)

	// the source file is gone, the cache still has the weights
	require.NoError(t, os.Remove(weights))

	fixture := writeFixtureMIDI(t, []score.RawNoteEvent{{Pitch: 62, Duration: 0.5, Velocity: 64}})
	config.Args = []string{"-c", `grep -q trained "$1" && cp "$2" "$3"`, "sh", PlaceholderWeights, fixture, PlaceholderOutput}
	second := NewCommandModel(config)
	detector := NewNeuralNoteDetector(second, cache, DefaultNeuralConfig())

	events := detectAll(t, detector, nil)
	assert.Equal(t, []int{62}, pitches(events))

	restored := second.weightsFile
	require.NotEqual(t, weights, restored)
	assert.FileExists(t, restored)

	require.NoError(t, detector.Close())
	assert.NoFileExists(t, restored)
	require.NoError(t, second.Close())

	// the source path is never removed
	plain := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, os.WriteFile(plain, []byte("weights"), 0o644))
	untouched := NewCommandModel(CommandModelConfig{Name: "plain", WeightsPath: plain})
	require.NoError(t, untouched.LoadWeights(ctx, nil))
	require.NoError(t, untouched.Close())
	assert.FileExists(t, plain)
}
