package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// ErrNotPowerOfTwo is returned when a frame handed to the radix-2 path is not 2^k long
var ErrNotPowerOfTwo = errors.New("fft size must be a power of two")

// FFT provides Fast Fourier Transform functionality backed by mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the complex spectrum of a real frame.
// The frame length must be a power of two.
func (f *FFT) Compute(x []float64) ([]complex128, error) {
	if !common.IsPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("%w: got %d", ErrNotPowerOfTwo, len(x))
	}
	return fft.FFTReal(x), nil
}

// Magnitude returns |X[k]| for the positive-frequency half (N/2 bins)
func (f *FFT) Magnitude(x []float64) ([]float64, error) {
	spectrum, err := f.Compute(x)
	if err != nil {
		return nil, err
	}

	half := len(x) / 2
	magnitude := make([]float64, half)
	for k := range half {
		magnitude[k] = cmplx.Abs(spectrum[k])
	}
	return magnitude, nil
}
