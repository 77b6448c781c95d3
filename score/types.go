package score

import "math"

// Clef identifies the staff a note is written on
type Clef string

const (
	ClefTreble Clef = "treble"
	ClefBass   Clef = "bass"
)

// MiddleC is the lowest pitch written on the treble staff
const MiddleC = 60

// ClefForPitch applies the middle-C rule
func ClefForPitch(pitch int) Clef {
	if pitch >= MiddleC {
		return ClefTreble
	}
	return ClefBass
}

// RawNoteEvent is a detected note in seconds, before any quantization
type RawNoteEvent struct {
	Pitch     int     `json:"pitch"`      // MIDI note number 0..127
	StartTime float64 `json:"start_time"` // seconds
	Duration  float64 `json:"duration"`   // seconds
	Velocity  int     `json:"velocity"`   // 0..127
	Frequency float64 `json:"frequency"`  // Hz, 0 when the detector does not report it
}

// EndTime returns StartTime + Duration
func (e RawNoteEvent) EndTime() float64 {
	return e.StartTime + e.Duration
}

// QuantizedNote is a note placed on the sixteenth grid with a vocabulary duration
type QuantizedNote struct {
	Pitch         int     `json:"pitch"`
	StartBeat     float64 `json:"start_beat"`
	DurationBeats float64 `json:"duration_beats"`
	Clef          Clef    `json:"clef"`
	Velocity      int     `json:"velocity"`
}

// DurationVocabulary lists the representable note lengths in beats, longest first
var DurationVocabulary = []float64{4.0, 3.0, 2.0, 1.5, 1.0, 0.75, 0.5, 0.25}

// GridResolution is the sixteenth-note grid in beats
const GridResolution = 0.25

// beatEpsilon absorbs float noise when comparing beat positions
const beatEpsilon = 1e-6

// SnapToGrid rounds a beat position to the nearest grid step
func SnapToGrid(beat float64) float64 {
	return math.Round(beat/GridResolution) * GridResolution
}

// IsVocabularyDuration reports whether beats is exactly one of the vocabulary lengths
func IsVocabularyDuration(beats float64) bool {
	for _, v := range DurationVocabulary {
		if math.Abs(beats-v) < beatEpsilon {
			return true
		}
	}
	return false
}

// DurationSymbol maps a vocabulary length to its notation symbol (w, h, q, 8, 16)
// and dotted flag. ok is false for lengths outside the vocabulary.
func DurationSymbol(beats float64) (symbol string, dotted bool, ok bool) {
	const tolerance = 0.01
	switch {
	case math.Abs(beats-4) < tolerance:
		return "w", false, true
	case math.Abs(beats-3) < tolerance:
		return "h", true, true
	case math.Abs(beats-2) < tolerance:
		return "h", false, true
	case math.Abs(beats-1.5) < tolerance:
		return "q", true, true
	case math.Abs(beats-1) < tolerance:
		return "q", false, true
	case math.Abs(beats-0.75) < tolerance:
		return "8", true, true
	case math.Abs(beats-0.5) < tolerance:
		return "8", false, true
	case math.Abs(beats-0.25) < tolerance:
		return "16", false, true
	}
	return "", false, false
}

// SymbolBeats is the inverse of DurationSymbol
func SymbolBeats(symbol string, dotted bool) float64 {
	var beats float64
	switch symbol {
	case "w":
		beats = 4
	case "h":
		beats = 2
	case "q":
		beats = 1
	case "8":
		beats = 0.5
	case "16":
		beats = 0.25
	default:
		return 0
	}
	if dotted {
		beats *= 1.5
	}
	return beats
}

// ChordGroup is a set of notes attacked together, ascending by pitch
type ChordGroup struct {
	StartBeat float64         `json:"start_beat"`
	Notes     []QuantizedNote `json:"notes"`
}

// MarkerKey addresses one pitch inside one chord group
type MarkerKey struct {
	Group int `json:"group"`
	Pitch int `json:"pitch"`
}

// TieSlurMarker holds the connection flags of a grouped note.
// Tie starts are implied by the TieEnd of the same pitch in the next group.
type TieSlurMarker struct {
	TieEnd    bool `json:"tie_end"`
	SlurStart bool `json:"slur_start"`
	SlurEnd   bool `json:"slur_end"`
}

// Markers maps grouped notes to their tie and slur flags
type Markers map[MarkerKey]TieSlurMarker

// TieStart reports whether (group, pitch) is tied into the next group
func (m Markers) TieStart(group, pitch int) bool {
	return m[MarkerKey{Group: group + 1, Pitch: pitch}].TieEnd
}

// Note is a renderable note or rest
type Note struct {
	Key         string   `json:"key"` // "c#/4"; rests use "b/4" (treble) or "d/3" (bass)
	Pitch       int      `json:"pitch"`
	Letter      string   `json:"letter"`
	Accidental  string   `json:"accidental,omitempty"` // spelled accidental: "#", "b" or ""
	Octave      int      `json:"octave"`
	Duration    string   `json:"duration"` // w, h, q, 8, 16
	Dotted      bool     `json:"dotted"`
	Clef        Clef     `json:"clef"`
	Velocity    int      `json:"velocity"`
	Accidentals []string `json:"accidentals,omitempty"` // displayed accidentals only
	TieStart    bool     `json:"tie_start,omitempty"`
	TieEnd      bool     `json:"tie_end,omitempty"`
	SlurStart   bool     `json:"slur_start,omitempty"`
	SlurEnd     bool     `json:"slur_end,omitempty"`
	IsRest      bool     `json:"is_rest,omitempty"`
}

// Beats returns the length of the note derived from its symbol and dot
func (n Note) Beats() float64 {
	return SymbolBeats(n.Duration, n.Dotted)
}

// Chord is a simultaneous attack on one staff, StartBeat relative to the measure
type Chord struct {
	StartBeat float64 `json:"start_beat"`
	Notes     []Note  `json:"notes"`
}

// Measure holds both staves of one 4/4 bar
type Measure struct {
	TrebleNotes  []Note  `json:"treble_notes"`
	BassNotes    []Note  `json:"bass_notes"`
	TrebleChords []Chord `json:"treble_chords,omitempty"`
	BassChords   []Chord `json:"bass_chords,omitempty"`
}

// Dynamic is a loudness tier
type Dynamic string

const (
	DynamicPP Dynamic = "pp"
	DynamicP  Dynamic = "p"
	DynamicMP Dynamic = "mp"
	DynamicMF Dynamic = "mf"
	DynamicF  Dynamic = "f"
	DynamicFF Dynamic = "ff"
)

// DynamicMarking places a dynamic on the score
type DynamicMarking struct {
	Measure int     `json:"measure"`
	Beat    float64 `json:"beat"`
	Type    Dynamic `json:"type"`
	Clef    Clef    `json:"clef"`
}
