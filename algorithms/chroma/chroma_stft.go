package chroma

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
	"github.com/RyanBlaney/sonido-score/algorithms/windowing"
)

// NumPitchClasses is the number of chroma bins (C, C#, D, ..., B)
const NumPitchClasses = 12

// Chromagram is an octave-folded energy distribution over the 12 pitch classes.
// Index 0 = C, 1 = C#, ..., 11 = B. A computed chromagram always sums to 1.
type Chromagram [NumPitchClasses]float64

// Uniform returns the flat 1/12 distribution used for silent input
func Uniform() Chromagram {
	var c Chromagram
	for i := range c {
		c[i] = 1.0 / NumPitchClasses
	}
	return c
}

// ChromaSTFT computes a whole-signal chromagram from overlapping Hann-windowed
// FFT frames. Each bin's energy goes to the pitch class nearest its frequency.
type ChromaSTFT struct {
	sampleRate int
	frameSize  int
	hopSize    int
	minFreq    float64 // bins below this (DC, rumble) are skipped

	fft     *spectral.FFT
	window  *windowing.Hann
	mapping []int
}

// NewChromaSTFT creates a chromagram calculator with 4096-sample frames and a 2048 hop
func NewChromaSTFT(sampleRate int) (*ChromaSTFT, error) {
	return NewChromaSTFTWithParams(sampleRate, 4096, 2048)
}

// NewChromaSTFTWithParams creates a chromagram calculator with explicit framing
func NewChromaSTFTWithParams(sampleRate, frameSize, hopSize int) (*ChromaSTFT, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("invalid hop size %d", hopSize)
	}
	if !common.IsPowerOfTwo(frameSize) {
		return nil, fmt.Errorf("%w: frame size %d", spectral.ErrNotPowerOfTwo, frameSize)
	}

	cs := &ChromaSTFT{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		hopSize:    hopSize,
		minFreq:    20.0,
		fft:        spectral.NewFFT(),
		window:     windowing.NewHann(frameSize, true),
	}
	cs.mapping = cs.calculateChromaMapping()
	return cs, nil
}

// calculateChromaMapping maps FFT bins to chroma bins, -1 for skipped bins
func (cs *ChromaSTFT) calculateChromaMapping() []int {
	bins := cs.frameSize / 2
	mapping := make([]int, bins)
	resolution := float64(cs.sampleRate) / float64(cs.frameSize)

	for k := range bins {
		frequency := float64(k) * resolution
		if frequency < cs.minFreq {
			mapping[k] = -1
			continue
		}
		midi := int(math.Round(common.FrequencyToMIDI(frequency)))
		mapping[k] = common.PitchClass(midi)
	}

	return mapping
}

// Compute accumulates squared magnitudes of every frame into the 12 pitch classes
// and normalizes the result to sum to 1. Silence, or a signal shorter than one
// frame, yields the uniform distribution.
func (cs *ChromaSTFT) Compute(signal []float64) (Chromagram, error) {
	var energy Chromagram

	if len(signal) >= cs.frameSize {
		numFrames := (len(signal)-cs.frameSize)/cs.hopSize + 1
		for frame := range numFrames {
			start := frame * cs.hopSize

			windowed, err := cs.window.Apply(signal[start : start+cs.frameSize])
			if err != nil {
				return Uniform(), err
			}

			magnitude, err := cs.fft.Magnitude(windowed)
			if err != nil {
				return Uniform(), err
			}

			for k, mag := range magnitude {
				pc := cs.mapping[k]
				if pc < 0 {
					continue
				}
				energy[pc] += mag * mag
			}
		}
	}

	return normalize(energy), nil
}

func normalize(energy Chromagram) Chromagram {
	total := common.Sum(energy[:])
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Uniform()
	}

	var out Chromagram
	for i, e := range energy {
		out[i] = e / total
	}
	return out
}

// FromPitchWeights builds a chromagram from MIDI pitches weighted by duration.
// Used when only note events are available.
func FromPitchWeights(pitches []int, weights []float64) (Chromagram, error) {
	if len(pitches) != len(weights) {
		return Uniform(), errors.New("pitches and weights must have the same length")
	}

	var energy Chromagram
	for i, p := range pitches {
		if weights[i] > 0 {
			energy[common.PitchClass(p)] += weights[i]
		}
	}
	return normalize(energy), nil
}
