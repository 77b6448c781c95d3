package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/chroma"
	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// KeyMode represents major or minor mode
type KeyMode int

const (
	KeyModeMajor KeyMode = iota
	KeyModeMinor
)

// String returns "major" or "minor"
func (m KeyMode) String() string {
	if m == KeyModeMinor {
		return "minor"
	}
	return "major"
}

// MarshalText lets KeyMode appear as a word in JSON output
func (m KeyMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "major" or "minor"
func (m *KeyMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "major":
		*m = KeyModeMajor
	case "minor":
		*m = KeyModeMinor
	default:
		return fmt.Errorf("unknown key mode %q", string(text))
	}
	return nil
}

// PitchClassNames are the display names used for key tonics
var PitchClassNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// Krumhansl-Kessler probe tone ratings, index 0 = tonic
var (
	krumhanslMajor = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// KeyEstimate is the winning key hypothesis
type KeyEstimate struct {
	Tonic       int     `json:"tonic"`       // 0=C, 1=C#, ..., 11=B
	Mode        KeyMode `json:"mode"`        // Major or Minor
	Confidence  float64 `json:"confidence"`  // (r+1)/2 clamped to [0,1]
	Correlation float64 `json:"correlation"` // Pearson r of the winning hypothesis
}

// Name returns a human-readable key name such as "Eb minor"
func (k KeyEstimate) Name() string {
	return PitchClassNames[common.PitchClass(k.Tonic)] + " " + k.Mode.String()
}

// KeyEstimator implements Krumhansl-Schmuckler key finding.
//
// References:
// - Krumhansl, C. L. (1990). Cognitive Foundations of Musical Pitch
// - Temperley, D. (1999). What's Key for Key? The Krumhansl-Schmuckler Key-Finding Algorithm Reconsidered
type KeyEstimator struct {
	majorProfile []float64
	minorProfile []float64
}

// NewKeyEstimator creates a key estimator with the Krumhansl profiles
func NewKeyEstimator() *KeyEstimator {
	return &KeyEstimator{
		majorProfile: krumhanslMajor,
		minorProfile: krumhanslMinor,
	}
}

// EstimateKey correlates every rotation of the chromagram with the major and minor
// profiles and keeps the strict maximum. On ties the earlier hypothesis wins, so a
// flat chromagram resolves to C major.
func (ke *KeyEstimator) EstimateKey(c chroma.Chromagram) KeyEstimate {
	best := KeyEstimate{Tonic: 0, Mode: KeyModeMajor}
	bestCorrelation := math.Inf(-1)

	rotated := make([]float64, chroma.NumPitchClasses)
	for offset := range chroma.NumPitchClasses {
		for i := range rotated {
			rotated[i] = c[(i+offset)%chroma.NumPitchClasses]
		}

		if r := common.Correlation(rotated, ke.majorProfile); r > bestCorrelation {
			bestCorrelation = r
			best = KeyEstimate{Tonic: offset, Mode: KeyModeMajor}
		}
		if r := common.Correlation(rotated, ke.minorProfile); r > bestCorrelation {
			bestCorrelation = r
			best = KeyEstimate{Tonic: offset, Mode: KeyModeMinor}
		}
	}

	best.Correlation = bestCorrelation
	best.Confidence = common.Clamp((bestCorrelation+1)/2, 0, 1)
	return best
}
