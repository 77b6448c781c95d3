// Package transcription runs the audio to score pipeline: tempo, note
// detection, key, rhythm quantization, hand separation, chord grouping,
// ties and slurs, dynamics and measure assembly.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-score/algorithms/chroma"
	"github.com/RyanBlaney/sonido-score/algorithms/rhythm"
	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
	"github.com/RyanBlaney/sonido-score/algorithms/tonal"
	"github.com/RyanBlaney/sonido-score/detect"
	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/score"
	"github.com/RyanBlaney/sonido-score/transcode"
	"github.com/google/uuid"
)

// ProgressFunc receives a completion percentage and a status message
type ProgressFunc func(percent float64, message string)

// TranscriptionResult is the finished score. The caller owns it.
type TranscriptionResult struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Artist        string                 `json:"artist"`
	BPM           int                    `json:"bpm"`
	TimeSignature string                 `json:"time_signature"`
	KeySignature  string                 `json:"key_signature"`
	Key           tonal.KeyEstimate      `json:"key"`
	Measures      []score.Measure        `json:"measures"`
	Dynamics      []score.DynamicMarking `json:"dynamics"`
	NoteCount     int                    `json:"note_count"`
	Events        []score.RawNoteEvent   `json:"-"` // detected notes before quantization
	Detector      string                 `json:"detector"`
	Duration      float64                `json:"duration"` // seconds of audio analysed
	CreatedAt     time.Time              `json:"created_at"`
}

// Transcriber turns sample buffers into scores. A Transcriber holds no per-call
// state and may be used from several goroutines.
type Transcriber struct {
	config   Config
	detector detect.NoteDetector
	logger   logging.Logger
}

// NewTranscriber builds the detector named by config. cache is only used by the
// neural detector and may be nil.
func NewTranscriber(config Config, cache detect.ModelCache) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var detector detect.NoteDetector
	switch config.Detector {
	case DetectorNeural:
		model := detect.NewCommandModel(config.Neural.Model)
		detector = detect.NewNeuralNoteDetector(model, cache, config.Neural)
	default:
		detector = detect.NewYinEnergyDetector(config.Yin)
	}

	return NewTranscriberWithDetector(config, detector)
}

// NewTranscriberWithDetector uses detector in place of the configured one
func NewTranscriberWithDetector(config Config, detector detect.NoteDetector) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if detector == nil {
		return nil, analysisError("config", errors.New("nil note detector"))
	}
	return &Transcriber{
		config:   config,
		detector: detector,
		logger: logging.WithFields(logging.Fields{
			"component": "transcriber",
			"detector":  detector.Name(),
		}),
	}, nil
}

// Close releases detector resources. The Transcriber must not be used afterwards.
func (t *Transcriber) Close() error {
	if closer, ok := t.detector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// TranscribeAudio transcribes decoded audio, taking title and artist from its metadata
func (t *Transcriber) TranscribeAudio(ctx context.Context, audio *transcode.AudioData, onProgress ProgressFunc) (*TranscriptionResult, error) {
	if audio == nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, &transcode.DecodeError{Source: "audio", Cause: errors.New("no audio data")})
	}

	result, err := t.Transcribe(ctx, audio.PCM, audio.SampleRate, onProgress)
	if err != nil {
		return nil, err
	}

	if md := audio.Metadata; md != nil {
		if md.Title != "" {
			result.Title = md.Title
		} else if md.Source != "" {
			result.Title = strings.TrimSuffix(filepath.Base(md.Source), filepath.Ext(md.Source))
		}
		if md.Artist != "" {
			result.Artist = md.Artist
		}
	}
	return result, nil
}

// Transcribe runs the whole pipeline over mono samples. Stage failures are
// wrapped in ErrTranscriptionFailed and no partial result is returned.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float64, sampleRate int, onProgress ProgressFunc) (*TranscriptionResult, error) {
	result, err := t.transcribe(ctx, samples, sampleRate, onProgress)
	if err != nil {
		t.logger.Error(err, "Transcription failed")
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return result, nil
}

func (t *Transcriber) transcribe(ctx context.Context, samples []float64, sampleRate int, onProgress ProgressFunc) (*TranscriptionResult, error) {
	report := func(percent float64, message string) {
		if onProgress != nil {
			onProgress(percent, message)
		}
	}

	if sampleRate <= 0 {
		return nil, analysisError("decode", fmt.Errorf("invalid sample rate %d", sampleRate))
	}
	report(5, "Decoding audio...")

	report(15, "Detecting tempo...")
	bpm := temporal.NewTempoEstimationWithParams(t.config.Tempo).EstimateBPM(samples, sampleRate)

	report(20, "Analyzing frequencies...")
	events, err := t.detectNotes(ctx, samples, sampleRate, report)
	if err != nil {
		return nil, err
	}

	report(82, "Estimating key...")
	key, err := t.estimateKey(samples, sampleRate, events)
	if err != nil {
		return nil, err
	}

	report(85, "Post-processing notes...")
	quantized, err := rhythm.NewQuantizer(t.config.Rhythm).Quantize(events, bpm)
	if err != nil {
		return nil, analysisError("quantize", err)
	}
	notes := score.AssignClefs(quantized)
	groups := score.GroupChords(notes, bpm, t.config.Chords)
	markers := score.DetectTiesAndSlurs(groups, bpm, t.config.Chords)
	dynamics := score.ExtractDynamics(groups, t.config.Dynamics)

	report(90, "Generating sheet music...")
	keySignature := score.NewKeySignature(key.Tonic, key.Mode == tonal.KeyModeMinor)
	opts := score.AssemblyOptions{
		Key:             keySignature,
		TotalBeats:      totalBeats(events, bpm),
		BeatsPerMeasure: t.config.BeatsPerMeasure,
		MaxMeasures:     t.config.MaxMeasures,
		MeasureCount:    t.config.MeasureCount,
	}
	measures := score.RepairMeasures(score.AssembleMeasures(groups, markers, opts), t.config.BeatsPerMeasure)
	// markings past the measure cap have nowhere to go
	dynamics = slices.DeleteFunc(dynamics, func(d score.DynamicMarking) bool {
		return d.Measure >= len(measures)
	})

	if len(events) == 0 {
		t.logger.Warn("No notes detected", logging.Fields{
			"samples":     len(samples),
			"sample_rate": sampleRate,
		})
	}
	t.logger.Info("Transcription complete", logging.Fields{
		"bpm":      bpm,
		"key":      keySignature.Name(),
		"notes":    len(events),
		"groups":   len(groups),
		"measures": len(measures),
	})
	report(100, "Complete!")

	return &TranscriptionResult{
		ID:            uuid.NewString(),
		Title:         "Untitled",
		Artist:        "Transcribed",
		BPM:           bpm,
		TimeSignature: fmt.Sprintf("%d/4", t.config.BeatsPerMeasure),
		KeySignature:  keySignature.Name(),
		Key:           key,
		Measures:      measures,
		Dynamics:      dynamics,
		NoteCount:     len(events),
		Events:        events,
		Detector:      t.detector.Name(),
		Duration:      float64(len(samples)) / float64(sampleRate),
		CreatedAt:     time.Now(),
	}, nil
}

// detectNotes drains the detector, reporting frame progress between 20 and 80
func (t *Transcriber) detectNotes(ctx context.Context, samples []float64, sampleRate int, report ProgressFunc) ([]score.RawNoteEvent, error) {
	detector := t.detector
	if p, ok := detector.(detect.Progressive); ok {
		detector = p.WithProgress(func(frame, total int) {
			report(20+float64(frame)/float64(total)*60, fmt.Sprintf("Analyzing frame %d/%d...", frame, total))
		})
	}

	seq, err := detector.Detect(ctx, samples, sampleRate)
	if errors.Is(err, detect.ErrInvalidInput) {
		return nil, analysisError("detect", err)
	}
	if err != nil {
		return nil, err
	}

	events := slices.Collect(seq)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.logger.Debug("Note detection finished", logging.Fields{
		"events": len(events),
	})
	return events, nil
}

func (t *Transcriber) estimateKey(samples []float64, sampleRate int, events []score.RawNoteEvent) (tonal.KeyEstimate, error) {
	var (
		chromagram chroma.Chromagram
		err        error
	)

	switch t.config.KeySource {
	case KeyFromNotes:
		pitches := make([]int, len(events))
		weights := make([]float64, len(events))
		for i, e := range events {
			pitches[i] = e.Pitch
			weights[i] = e.Duration
		}
		chromagram, err = chroma.FromPitchWeights(pitches, weights)
	default:
		var stft *chroma.ChromaSTFT
		stft, err = chroma.NewChromaSTFTWithParams(sampleRate, t.config.ChromaFrameSize, t.config.ChromaHopSize)
		if err == nil {
			chromagram, err = stft.Compute(samples)
		}
	}
	if err != nil {
		return tonal.KeyEstimate{}, analysisError("key", err)
	}

	return tonal.NewKeyEstimator().EstimateKey(chromagram), nil
}

// totalBeats is the end of the last sounding note in beats
func totalBeats(events []score.RawNoteEvent, bpm int) float64 {
	var end float64
	for _, e := range events {
		end = math.Max(end, e.EndTime())
	}
	return end * float64(bpm) / 60
}
