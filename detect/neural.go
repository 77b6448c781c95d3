package detect

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/score"
)

// NeuralConfig holds the filters applied to model output
type NeuralConfig struct {
	MinNoteDuration float64            `json:"min_note_duration" mapstructure:"min_note_duration"` // seconds
	MinPitch        int                `json:"min_pitch" mapstructure:"min_pitch"`
	MaxPitch        int                `json:"max_pitch" mapstructure:"max_pitch"`
	Model           CommandModelConfig `json:"model" mapstructure:"model"`
}

// DefaultNeuralConfig keeps notes of at least 30 ms on the 88 piano keys
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		MinNoteDuration: 0.03,
		MinPitch:        21,
		MaxPitch:        108,
		Model:           DefaultCommandModelConfig(),
	}
}

// NeuralNoteDetector delegates note extraction to a NoteModel
type NeuralNoteDetector struct {
	model  NoteModel
	cache  ModelCache
	config NeuralConfig
	logger logging.Logger
}

// NewNeuralNoteDetector wraps model. cache may be nil.
func NewNeuralNoteDetector(model NoteModel, cache ModelCache, config NeuralConfig) *NeuralNoteDetector {
	return &NeuralNoteDetector{
		model:  model,
		cache:  cache,
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "neural_note_detector",
			"model":     model.Name(),
		}),
	}
}

// Name identifies the detector in results
func (d *NeuralNoteDetector) Name() string {
	return "neural"
}

// Detect runs the model over the whole buffer, drops notes that are too short
// or outside the piano range, and yields the rest by start time
func (d *NeuralNoteDetector) Detect(ctx context.Context, samples []float64, sampleRate int) (iter.Seq[score.RawNoteEvent], error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, sampleRate)
	}

	if loader, ok := d.model.(WeightLoader); ok {
		if err := loader.LoadWeights(ctx, d.cache); err != nil {
			return nil, err
		}
	}

	events, err := d.model.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		return nil, err
	}

	kept := d.filter(events)
	d.logger.Debug("Model notes filtered", logging.Fields{
		"raw":  len(events),
		"kept": len(kept),
	})

	return once(slices.Values(kept)), nil
}

// Close releases model resources such as restored weights
func (d *NeuralNoteDetector) Close() error {
	if closer, ok := d.model.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (d *NeuralNoteDetector) filter(events []score.RawNoteEvent) []score.RawNoteEvent {
	kept := make([]score.RawNoteEvent, 0, len(events))
	for _, e := range events {
		if e.Duration < d.config.MinNoteDuration {
			continue
		}
		if e.Pitch < d.config.MinPitch || e.Pitch > d.config.MaxPitch {
			continue
		}
		kept = append(kept, e)
	}

	slices.SortStableFunc(kept, func(a, b score.RawNoteEvent) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	})
	return kept
}
