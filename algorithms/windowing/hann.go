package windowing

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
)

// Hann represents a Hann window function
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window.
// A symmetric window uses N-1 in the denominator, which is what the chromagram expects.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	if h.symmetric || h.size == 1 {
		h.coefficients = window.Hann(h.size)
		return
	}

	// periodic: one sample of a window of size+1
	h.coefficients = make([]float64, h.size)
	for i := range h.size {
		h.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/float64(h.size)))
	}
}

// Apply returns a windowed copy of signal
func (h *Hann) Apply(signal []float64) ([]float64, error) {
	if len(signal) != h.size {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	windowed := make([]float64, h.size)
	for i := range h.size {
		windowed[i] = signal[i] * h.coefficients[i]
	}

	return windowed, nil
}

// Size returns the window size
func (h *Hann) Size() int {
	return h.size
}
