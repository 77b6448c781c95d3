package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

const (
	// A4Frequency is the concert pitch reference in Hz
	A4Frequency = 440.0
	// A4MIDI is the MIDI note number of A4
	A4MIDI = 69
	// MiddleCMIDI is the MIDI note number of middle C (C4)
	MiddleCMIDI = 60
)

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Sum returns the sum of data
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Correlation calculates the Pearson correlation coefficient between two series.
// Series of different length, empty series and zero-variance series yield 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}

	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0.0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0.0
	}
	return r
}

// UpperMedian returns the element at index len/2 of the sorted values.
// For even lengths this is the upper of the two middle elements.
func UpperMedian(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt constrains an integer to a range
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// FrequencyToMIDI converts a frequency to a fractional MIDI note number
// MIDI note number: 69 + 12 * log2(f/440)
func FrequencyToMIDI(frequency float64) float64 {
	if frequency <= 0 {
		return 0
	}
	return A4MIDI + 12*math.Log2(frequency/A4Frequency)
}

// FrequencyToMIDINote rounds FrequencyToMIDI to the nearest note
func FrequencyToMIDINote(frequency float64) int {
	return int(math.Round(FrequencyToMIDI(frequency)))
}

// MIDIToFrequency converts a (possibly fractional) MIDI note number to Hz
func MIDIToFrequency(midi float64) float64 {
	return A4Frequency * math.Pow(2, (midi-A4MIDI)/12)
}

// PitchClass folds a MIDI note number into 0..11 (0 = C)
func PitchClass(midi int) int {
	return ((midi % 12) + 12) % 12
}
