package transcription

import (
	"fmt"

	"github.com/RyanBlaney/sonido-score/algorithms/rhythm"
	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
	"github.com/RyanBlaney/sonido-score/detect"
	"github.com/RyanBlaney/sonido-score/score"
)

// Detector names
const (
	DetectorYin    = "yin"
	DetectorNeural = "neural"
)

// Key sources
const (
	KeyFromAudio = "audio" // chromagram of the raw samples
	KeyFromNotes = "notes" // duration weighted pitch classes of the detected notes
)

// Config holds every tunable of the pipeline
type Config struct {
	Detector string              `json:"detector" mapstructure:"detector"`
	Yin      detect.YinConfig    `json:"yin" mapstructure:"yin"`
	Neural   detect.NeuralConfig `json:"neural" mapstructure:"neural"`

	Tempo temporal.TempoParams `json:"tempo" mapstructure:"tempo"`

	KeySource       string `json:"key_source" mapstructure:"key_source"`
	ChromaFrameSize int    `json:"chroma_frame_size" mapstructure:"chroma_frame_size"` // power of two
	ChromaHopSize   int    `json:"chroma_hop_size" mapstructure:"chroma_hop_size"`

	Rhythm   rhythm.Config        `json:"rhythm" mapstructure:"rhythm"`
	Chords   score.ChordConfig    `json:"chords" mapstructure:"chords"`
	Dynamics score.DynamicsConfig `json:"dynamics" mapstructure:"dynamics"`

	BeatsPerMeasure int `json:"beats_per_measure" mapstructure:"beats_per_measure"`
	MaxMeasures     int `json:"max_measures" mapstructure:"max_measures"`
	MeasureCount    int `json:"measure_count" mapstructure:"measure_count"` // forces the count when > 0
}

// DefaultConfig returns the classical detector with the piano defaults
func DefaultConfig() Config {
	return Config{
		Detector:        DetectorYin,
		Yin:             detect.DefaultYinConfig(),
		Neural:          detect.DefaultNeuralConfig(),
		Tempo:           temporal.DefaultTempoParams(),
		KeySource:       KeyFromAudio,
		ChromaFrameSize: 4096,
		ChromaHopSize:   2048,
		Rhythm:          rhythm.DefaultConfig(),
		Chords:          score.DefaultChordConfig(),
		Dynamics:        score.DefaultDynamicsConfig(),
		BeatsPerMeasure: 4,
		MaxMeasures:     16,
	}
}

// Validate checks the settings that would otherwise fail mid-pipeline
func (c Config) Validate() error {
	switch c.Detector {
	case DetectorYin, DetectorNeural:
	default:
		return analysisError("config", fmt.Errorf("unknown detector %q", c.Detector))
	}
	switch c.KeySource {
	case KeyFromAudio, KeyFromNotes:
	default:
		return analysisError("config", fmt.Errorf("unknown key source %q", c.KeySource))
	}
	if c.BeatsPerMeasure <= 0 {
		return analysisError("config", fmt.Errorf("beats per measure must be positive, got %d", c.BeatsPerMeasure))
	}
	if c.Dynamics.BeatsPerMeasure != c.BeatsPerMeasure {
		return analysisError("config", fmt.Errorf("dynamics use %d beats per measure, score uses %d",
			c.Dynamics.BeatsPerMeasure, c.BeatsPerMeasure))
	}
	return nil
}
