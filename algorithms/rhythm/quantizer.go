package rhythm

import (
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/score"
)

// Mode selects how durations are decoded
type Mode string

const (
	// ModeGreedy picks each note's duration given only the previously chosen one
	ModeGreedy Mode = "greedy"
	// ModeViterbi decodes the most likely duration sequence over all notes
	ModeViterbi Mode = "viterbi"
)

// Config holds quantizer settings
type Config struct {
	Mode          Mode    `json:"mode" mapstructure:"mode"`
	Sigma         float64 `json:"sigma" mapstructure:"sigma"`                   // duration tolerance in beats
	EmissionFloor float64 `json:"emission_floor" mapstructure:"emission_floor"` // lowest emission probability
}

// DefaultConfig returns the greedy quantizer with sigma 0.15
func DefaultConfig() Config {
	return Config{
		Mode:          ModeGreedy,
		Sigma:         0.15,
		EmissionFloor: 1e-10,
	}
}

// Quantizer snaps raw note events to the sixteenth grid and the duration vocabulary
// using an HMM over note lengths: Gaussian emissions around each vocabulary length
// and transitions that favour repeated or related durations.
type Quantizer struct {
	config Config
	logger logging.Logger
}

// NewQuantizer creates a rhythm quantizer
func NewQuantizer(config Config) *Quantizer {
	defaults := DefaultConfig()
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.Sigma <= 0 {
		config.Sigma = defaults.Sigma
	}
	return &Quantizer{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "rhythm_quantizer",
		}),
	}
}

// Quantize converts events to quantized notes. Events are stably sorted by start
// time. Velocity is preserved and the clef comes from the middle-C rule.
func (q *Quantizer) Quantize(events []score.RawNoteEvent, bpm int) ([]score.QuantizedNote, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("invalid tempo %d bpm", bpm)
	}
	if len(events) == 0 {
		return []score.QuantizedNote{}, nil
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b score.RawNoteEvent) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		}
		return 0
	})

	beatsPerSecond := float64(bpm) / 60.0
	observed := make([]float64, len(sorted))
	for i, e := range sorted {
		observed[i] = e.Duration * beatsPerSecond
	}

	var durations []float64
	switch q.config.Mode {
	case ModeViterbi:
		durations = q.decodeSequence(observed)
	case ModeGreedy:
		durations = q.decodeGreedy(observed)
	default:
		return nil, fmt.Errorf("unknown quantizer mode %q", q.config.Mode)
	}

	notes := make([]score.QuantizedNote, len(sorted))
	for i, e := range sorted {
		notes[i] = score.QuantizedNote{
			Pitch:         e.Pitch,
			StartBeat:     score.SnapToGrid(e.StartTime * beatsPerSecond),
			DurationBeats: durations[i],
			Clef:          score.ClefForPitch(e.Pitch),
			Velocity:      e.Velocity,
		}
	}

	q.logger.Debug("Quantized notes", logging.Fields{
		"notes": len(notes),
		"bpm":   bpm,
		"mode":  string(q.config.Mode),
	})

	return notes, nil
}

// decodeGreedy is the per-note Viterbi step conditioned on the previous choice
func (q *Quantizer) decodeGreedy(observed []float64) []float64 {
	vocab := score.DurationVocabulary
	durations := make([]float64, len(observed))

	for i, obs := range observed {
		best := vocab[0]
		bestProb := math.Inf(-1)
		for _, state := range vocab {
			prob := q.emission(obs, state)
			if i > 0 {
				prob *= transition(durations[i-1], state)
			}
			if prob > bestProb {
				bestProb = prob
				best = state
			}
		}
		durations[i] = best
	}

	return durations
}

// decodeSequence runs log-space Viterbi over the whole sequence with traceback
func (q *Quantizer) decodeSequence(observed []float64) []float64 {
	vocab := score.DurationVocabulary
	numStates := len(vocab)

	delta := make([]float64, numStates)
	for s, state := range vocab {
		delta[s] = math.Log(q.emission(observed[0], state))
	}

	backpointers := make([][]int, len(observed))
	next := make([]float64, numStates)
	for i := 1; i < len(observed); i++ {
		backpointers[i] = make([]int, numStates)
		for s, state := range vocab {
			bestPrev := 0
			bestScore := math.Inf(-1)
			for p, prev := range vocab {
				candidate := delta[p] + math.Log(transition(prev, state))
				if candidate > bestScore {
					bestScore = candidate
					bestPrev = p
				}
			}
			next[s] = bestScore + math.Log(q.emission(observed[i], state))
			backpointers[i][s] = bestPrev
		}
		delta, next = next, delta
	}

	last := 0
	for s := 1; s < numStates; s++ {
		if delta[s] > delta[last] {
			last = s
		}
	}

	durations := make([]float64, len(observed))
	for i := len(observed) - 1; i >= 0; i-- {
		durations[i] = vocab[last]
		if i > 0 {
			last = backpointers[i][last]
		}
	}

	return durations
}

// emission is a Gaussian likelihood of the observed length around a vocabulary length
func (q *Quantizer) emission(observed, state float64) float64 {
	diff := observed - state
	prob := math.Exp(-(diff * diff) / (2 * q.config.Sigma * q.config.Sigma))
	return math.Max(prob, q.config.EmissionFloor)
}

// transition favours repeated durations, then 2:1 relations, then a change
// between on-grid and off-grid (0.75, 0.25) lengths
func transition(from, to float64) float64 {
	if from == to {
		return 0.4
	}

	ratio := from / to
	if ratio == 2.0 || ratio == 0.5 {
		return 0.25
	}

	if offEighthGrid(from) != offEighthGrid(to) {
		return 0.15
	}

	return 0.1
}

func offEighthGrid(beats float64) bool {
	return math.Mod(beats, 0.5) != 0
}
