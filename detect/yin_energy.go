package detect

import (
	"context"
	"fmt"
	"iter"
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/tonal"
	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/score"
)

// YinConfig holds the frame analysis settings of the classical detector
type YinConfig struct {
	WindowSize      int     `json:"window_size" mapstructure:"window_size"`
	HopSize         int     `json:"hop_size" mapstructure:"hop_size"`
	YinThreshold    float64 `json:"yin_threshold" mapstructure:"yin_threshold"`
	MinFreq         float64 `json:"min_freq" mapstructure:"min_freq"`
	MaxFreq         float64 `json:"max_freq" mapstructure:"max_freq"`
	MinVelocity     int     `json:"min_velocity" mapstructure:"min_velocity"`           // frames at or below are silent
	MinNoteDuration float64 `json:"min_note_duration" mapstructure:"min_note_duration"` // seconds
	ProgressEvery   int     `json:"progress_every" mapstructure:"progress_every"`       // frames between progress reports
}

// DefaultYinConfig returns the piano defaults: 4096 sample windows, hop 2048
func DefaultYinConfig() YinConfig {
	return YinConfig{
		WindowSize:      4096,
		HopSize:         2048,
		YinThreshold:    0.15,
		MinFreq:         65.0,
		MaxFreq:         2093.0,
		MinVelocity:     10,
		MinNoteDuration: 0.05,
		ProgressEvery:   100,
	}
}

// YinEnergyDetector follows one pitch per frame and merges consecutive frames
// of the same pitch into notes
type YinEnergyDetector struct {
	config   YinConfig
	progress FrameProgressFunc
	logger   logging.Logger
}

// NewYinEnergyDetector creates a classical detector
func NewYinEnergyDetector(config YinConfig) *YinEnergyDetector {
	return &YinEnergyDetector{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "yin_energy_detector",
		}),
	}
}

// Name identifies the detector in results
func (d *YinEnergyDetector) Name() string {
	return "yin"
}

// WithProgress returns a copy of the detector reporting frame progress to fn
func (d *YinEnergyDetector) WithProgress(fn FrameProgressFunc) NoteDetector {
	clone := *d
	clone.progress = fn
	return &clone
}

// Detect analyses floor(len/hop) frames. The last frames may be shorter than
// the window. Iteration stops early when ctx is cancelled.
func (d *YinEnergyDetector) Detect(ctx context.Context, samples []float64, sampleRate int) (iter.Seq[score.RawNoteEvent], error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, sampleRate)
	}
	if d.config.WindowSize <= 0 || d.config.HopSize <= 0 {
		return nil, fmt.Errorf("%w: window %d hop %d", ErrInvalidInput, d.config.WindowSize, d.config.HopSize)
	}

	params := tonal.DefaultPitchDetectionParams(sampleRate)
	params.YinThreshold = d.config.YinThreshold
	params.MinFreq = d.config.MinFreq
	params.MaxFreq = d.config.MaxFreq
	pitch := tonal.NewPitchDetectorWithParams(params)

	hop := d.config.HopSize
	totalFrames := len(samples) / hop
	hopDuration := float64(hop) / float64(sampleRate)

	d.logger.Debug("Starting frame analysis", logging.Fields{
		"frames":      totalFrames,
		"window_size": d.config.WindowSize,
		"hop_size":    hop,
		"sample_rate": sampleRate,
	})

	return once(func(yield func(score.RawNoteEvent) bool) {
		acc := noteAccumulator{minDuration: d.config.MinNoteDuration}

		for frame := 0; frame < totalFrames; frame++ {
			if ctx.Err() != nil {
				return
			}

			start := frame * hop
			end := min(start+d.config.WindowSize, len(samples))
			frameTime := float64(start) / float64(sampleRate)

			if note, ok := d.analyzeFrame(pitch, samples[start:end], frameTime, hopDuration, &acc); ok {
				if !yield(note) {
					return
				}
			}

			if d.progress != nil && d.config.ProgressEvery > 0 && frame%d.config.ProgressEvery == 0 {
				d.progress(frame, totalFrames)
			}
		}

		if note, ok := acc.close(); ok {
			yield(note)
		}
	}), nil
}

// analyzeFrame feeds one frame to the accumulator and returns a finished note if
// the frame closed one
func (d *YinEnergyDetector) analyzeFrame(pitch *tonal.PitchDetector, frame []float64, frameTime, hopDuration float64, acc *noteAccumulator) (score.RawNoteEvent, bool) {
	velocity := min(127, int(math.Floor(common.RMS(frame)*1000)))
	if velocity <= d.config.MinVelocity {
		return acc.close()
	}

	result, err := pitch.DetectPitch(frame)
	if err != nil || !result.Voiced {
		return acc.close()
	}

	return acc.voiced(score.RawNoteEvent{
		Pitch:     result.MIDINote(),
		StartTime: frameTime,
		Duration:  hopDuration,
		Velocity:  velocity,
		Frequency: result.Pitch,
	})
}

type accumulatorState int

const (
	stateIdle accumulatorState = iota
	stateAccumulating
)

// noteAccumulator holds the note being extended across frames
type noteAccumulator struct {
	state       accumulatorState
	note        score.RawNoteEvent
	minDuration float64
}

// voiced extends the open note when the pitch is within a semitone, otherwise
// it closes the open note and starts candidate
func (a *noteAccumulator) voiced(candidate score.RawNoteEvent) (score.RawNoteEvent, bool) {
	if a.state == stateAccumulating && abs(a.note.Pitch-candidate.Pitch) <= 1 {
		a.note.Duration = candidate.StartTime - a.note.StartTime
		return score.RawNoteEvent{}, false
	}

	closed, ok := a.close()
	a.state = stateAccumulating
	a.note = candidate
	return closed, ok
}

// close ends the open note, reporting it only when it is long enough
func (a *noteAccumulator) close() (score.RawNoteEvent, bool) {
	if a.state == stateIdle {
		return score.RawNoteEvent{}, false
	}
	a.state = stateIdle
	return a.note, a.note.Duration > a.minDuration
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
