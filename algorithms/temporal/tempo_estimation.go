package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// TempoParams holds the energy-peak tempo estimator settings
type TempoParams struct {
	WindowSeconds float64 `json:"window_seconds" mapstructure:"window_seconds"`
	PeakFactor    float64 `json:"peak_factor" mapstructure:"peak_factor"` // peaks must exceed mean * factor
	MinBPM        int     `json:"min_bpm" mapstructure:"min_bpm"`
	MaxBPM        int     `json:"max_bpm" mapstructure:"max_bpm"`
	DefaultBPM    int     `json:"default_bpm" mapstructure:"default_bpm"`
}

// DefaultTempoParams returns 10 ms windows, a 1.5x peak gate and a 60-200 BPM range
func DefaultTempoParams() TempoParams {
	return TempoParams{
		WindowSeconds: 0.01,
		PeakFactor:    1.5,
		MinBPM:        60,
		MaxBPM:        200,
		DefaultBPM:    120,
	}
}

// TempoEstimation estimates a single global tempo from RMS energy peaks
type TempoEstimation struct {
	params TempoParams
}

// NewTempoEstimation creates a new tempo estimator
func NewTempoEstimation() *TempoEstimation {
	return NewTempoEstimationWithParams(DefaultTempoParams())
}

// NewTempoEstimationWithParams creates a tempo estimator with custom settings
func NewTempoEstimationWithParams(params TempoParams) *TempoEstimation {
	return &TempoEstimation{params: params}
}

// EstimateBPM picks the upper median interval between energy peaks and converts
// it to beats per minute. Too few peaks yields the default tempo.
func (te *TempoEstimation) EstimateBPM(signal []float64, sampleRate int) int {
	windowSize := int(math.Floor(float64(sampleRate) * te.params.WindowSeconds))
	if len(signal) == 0 || windowSize <= 0 {
		return te.params.DefaultBPM
	}

	energy := NewEnergy(windowSize, windowSize)
	energies := energy.ComputeBlockRMS(signal)

	threshold := common.Mean(energies) * te.params.PeakFactor
	peaks := energy.ComputePeakEnergy(energies, threshold)
	if len(peaks) < 2 {
		return te.params.DefaultBPM
	}

	intervals := make([]int, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = peaks[i] - peaks[i-1]
	}

	median := common.UpperMedian(intervals)
	if median <= 0 {
		return te.params.DefaultBPM
	}

	secondsPerBeat := float64(median*windowSize) / float64(sampleRate)
	bpm := int(math.Round(60 / secondsPerBeat))

	return common.ClampInt(bpm, te.params.MinBPM, te.params.MaxBPM)
}
