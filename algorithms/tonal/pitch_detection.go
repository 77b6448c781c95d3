package tonal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// PitchDetectionParams contains parameters for YIN pitch detection
type PitchDetectionParams struct {
	SampleRate int `json:"sample_rate"`

	// YinThreshold is the absolute threshold on the normalized difference (0.1-0.5)
	YinThreshold float64 `json:"yin_threshold"`

	// Frequency range constraints, estimates outside are reported unvoiced
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`
}

// PitchDetectionResult is the outcome of a single frame analysis
type PitchDetectionResult struct {
	Pitch      float64 `json:"pitch"`      // Estimated fundamental (Hz), 0 when unvoiced
	Period     float64 `json:"period"`     // Interpolated period in samples
	Confidence float64 `json:"confidence"` // 1 - CMNDF at the chosen lag
	Voiced     bool    `json:"voiced"`
}

// MIDINote returns the nearest MIDI note of the detected pitch, or -1 when unvoiced
func (r PitchDetectionResult) MIDINote() int {
	if !r.Voiced {
		return -1
	}
	return common.FrequencyToMIDINote(r.Pitch)
}

// PitchDetector implements YIN single-frame fundamental frequency estimation.
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
//
// A PitchDetector reuses internal buffers and is not safe for concurrent use.
type PitchDetector struct {
	params PitchDetectionParams

	// Internal buffers
	cmndf []float64
}

// DefaultPitchDetectionParams returns the piano range defaults (C2 to C7)
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:   sampleRate,
		YinThreshold: 0.15,
		MinFreq:      65.0,
		MaxFreq:      2093.0,
	}
}

// NewPitchDetector creates a new pitch detector with default parameters
func NewPitchDetector(sampleRate int) *PitchDetector {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams(sampleRate))
}

// NewPitchDetectorWithParams creates a pitch detector with custom parameters
func NewPitchDetectorWithParams(params PitchDetectionParams) *PitchDetector {
	return &PitchDetector{params: params}
}

// DetectPitch estimates the fundamental frequency of one frame
func (pd *PitchDetector) DetectPitch(frame []float64) (PitchDetectionResult, error) {
	if pd.params.SampleRate <= 0 {
		return PitchDetectionResult{}, fmt.Errorf("invalid sample rate %d", pd.params.SampleRate)
	}
	if len(frame) < 6 {
		return PitchDetectionResult{}, fmt.Errorf("frame too short for pitch detection: %d samples", len(frame))
	}

	halfN := len(frame) / 2
	pd.computeCMNDF(frame, halfN)

	tau, ok := pd.absoluteThreshold(halfN)
	if !ok {
		return PitchDetectionResult{}, nil
	}

	period := pd.parabolicInterpolation(tau, halfN)
	if period <= 0 {
		return PitchDetectionResult{}, nil
	}

	frequency := float64(pd.params.SampleRate) / period
	if frequency < pd.params.MinFreq || frequency > pd.params.MaxFreq {
		return PitchDetectionResult{}, nil
	}

	return PitchDetectionResult{
		Pitch:      frequency,
		Period:     period,
		Confidence: common.Clamp(1.0-pd.cmndf[tau], 0, 1),
		Voiced:     true,
	}, nil
}

// computeCMNDF fills the cumulative mean normalized difference function
func (pd *PitchDetector) computeCMNDF(frame []float64, halfN int) {
	if cap(pd.cmndf) < halfN {
		pd.cmndf = make([]float64, halfN)
	}
	d := pd.cmndf[:halfN]

	for tau := range halfN {
		sum := 0.0
		for j := range halfN {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}

	d[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < halfN; tau++ {
		runningSum += d[tau]
		if runningSum == 0 {
			d[tau] = 1.0
			continue
		}
		d[tau] *= float64(tau) / runningSum
	}

	pd.cmndf = d
}

// absoluteThreshold finds the first dip below the threshold and walks down to its minimum
func (pd *PitchDetector) absoluteThreshold(halfN int) (int, bool) {
	d := pd.cmndf
	for tau := 2; tau < halfN; tau++ {
		if d[tau] >= pd.params.YinThreshold {
			continue
		}
		for tau+1 < halfN && d[tau+1] < d[tau] {
			tau++
		}
		return tau, true
	}
	return 0, false
}

// parabolicInterpolation refines the lag with a parabola through its neighbours
func (pd *PitchDetector) parabolicInterpolation(tau, halfN int) float64 {
	d := pd.cmndf
	if tau+1 >= halfN {
		if d[tau] <= d[tau-1] {
			return float64(tau)
		}
		return float64(tau - 1)
	}

	s0, s1, s2 := d[tau-1], d[tau], d[tau+1]
	denominator := 2 * (2*s1 - s2 - s0)
	if denominator == 0 {
		return float64(tau)
	}
	return float64(tau) + (s2-s0)/denominator
}
