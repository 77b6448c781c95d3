package temporal

import (
	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// Energy computes RMS energy envelopes
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ComputeBlockRMS calculates RMS energy over consecutive non-overlapping blocks of
// frameSize samples. The final partial block is included.
func (e *Energy) ComputeBlockRMS(signal []float64) []float64 {
	if e.frameSize <= 0 || len(signal) == 0 {
		return []float64{}
	}

	energies := make([]float64, 0, (len(signal)+e.frameSize-1)/e.frameSize)
	for start := 0; start < len(signal); start += e.frameSize {
		end := min(start+e.frameSize, len(signal))
		energies = append(energies, common.RMS(signal[start:end]))
	}

	return energies
}

// ComputePeakEnergy returns indices of strict local maxima above threshold.
// The first and last frames are never peaks.
func (e *Energy) ComputePeakEnergy(energies []float64, threshold float64) []int {
	peaks := make([]int, 0)
	for i := 1; i < len(energies)-1; i++ {
		if energies[i] > threshold &&
			energies[i] > energies[i-1] &&
			energies[i] > energies[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
