// Package detect turns raw audio samples into note events.
//
// Two strategies implement NoteDetector: YinEnergyDetector, which tracks a
// single YIN pitch per frame gated by RMS energy, and NeuralNoteDetector, which
// delegates to an external transcription model and filters its output.
package detect

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-score/score"
)

var (
	// ErrInvalidInput reports a sample rate or frame configuration that cannot be analysed
	ErrInvalidInput = errors.New("invalid detector input")

	// ErrModelFailed reports a failure of the neural model collaborator
	ErrModelFailed = errors.New("note model failed")
)

// NoteDetector extracts note events from mono samples.
//
// The returned sequence is lazy and can be ranged over once; a second range
// yields nothing.
type NoteDetector interface {
	Detect(ctx context.Context, samples []float64, sampleRate int) (iter.Seq[score.RawNoteEvent], error)
	Name() string
}

// FrameProgressFunc receives the number of analysed frames and the frame total
type FrameProgressFunc func(frame, total int)

// Progressive is implemented by detectors that report per-frame progress
type Progressive interface {
	WithProgress(fn FrameProgressFunc) NoteDetector
}

// once wraps seq so that only the first range produces values
func once[T any](seq iter.Seq[T]) iter.Seq[T] {
	var consumed atomic.Bool
	return func(yield func(T) bool) {
		if consumed.Swap(true) {
			return
		}
		seq(yield)
	}
}
