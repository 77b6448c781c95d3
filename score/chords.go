package score

import (
	"math"
	"slices"
)

// ChordConfig holds the time thresholds used to group notes and connect groups
type ChordConfig struct {
	ChordThreshold float64 `json:"chord_threshold" mapstructure:"chord_threshold"` // seconds between attacks of one chord
	TieThreshold   float64 `json:"tie_threshold" mapstructure:"tie_threshold"`     // seconds of silence still tied
	MaxChordSize   int     `json:"max_chord_size" mapstructure:"max_chord_size"`
}

// DefaultChordConfig returns 50 ms chords, 100 ms ties and at most 8 notes per chord
func DefaultChordConfig() ChordConfig {
	return ChordConfig{
		ChordThreshold: 0.05,
		TieThreshold:   0.1,
		MaxChordSize:   8,
	}
}

// GroupChords merges notes whose start beats lie within the chord threshold of
// the group's first note. Notes beyond MaxChordSize are dropped. Members are
// sorted by ascending pitch.
func GroupChords(notes []QuantizedNote, bpm int, cfg ChordConfig) []ChordGroup {
	if len(notes) == 0 {
		return []ChordGroup{}
	}

	threshold := cfg.ChordThreshold * float64(bpm) / 60.0

	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b QuantizedNote) int {
		return compareBeats(a.StartBeat, b.StartBeat)
	})

	groups := make([]ChordGroup, 0)
	var current *ChordGroup
	for _, n := range sorted {
		if current != nil && math.Abs(n.StartBeat-current.StartBeat) <= threshold {
			if len(current.Notes) < cfg.MaxChordSize {
				current.Notes = append(current.Notes, n)
			}
			continue
		}
		groups = append(groups, ChordGroup{StartBeat: n.StartBeat, Notes: []QuantizedNote{n}})
		current = &groups[len(groups)-1]
	}

	for i := range groups {
		slices.SortStableFunc(groups[i].Notes, func(a, b QuantizedNote) int {
			return a.Pitch - b.Pitch
		})
	}

	return groups
}

// DetectTiesAndSlurs connects adjacent chord groups. A pitch repeated across a
// gap shorter than the tie threshold is tied; otherwise a gap shorter than twice
// the threshold opens a slur that ends on the nearest pitch of the next group.
func DetectTiesAndSlurs(groups []ChordGroup, bpm int, cfg ChordConfig) Markers {
	markers := make(Markers)
	threshold := cfg.TieThreshold * float64(bpm) / 60.0

	for i := 0; i < len(groups)-1; i++ {
		current, next := groups[i], groups[i+1]
		if len(current.Notes) == 0 || len(next.Notes) == 0 {
			continue
		}

		gap := next.StartBeat - (current.StartBeat + current.Notes[0].DurationBeats)
		if gap < 0 {
			continue
		}

		for _, note := range current.Notes {
			key := MarkerKey{Group: i, Pitch: note.Pitch}

			if gap < threshold && containsPitch(next.Notes, note.Pitch) {
				if _, ok := markers[key]; !ok {
					markers[key] = TieSlurMarker{}
				}
				nextKey := MarkerKey{Group: i + 1, Pitch: note.Pitch}
				m := markers[nextKey]
				m.TieEnd = true
				markers[nextKey] = m
				continue
			}

			if gap < 2*threshold {
				if _, ok := markers[key]; ok {
					continue
				}
				markers[key] = TieSlurMarker{SlurStart: true}

				endKey := MarkerKey{Group: i + 1, Pitch: nearestPitch(next.Notes, note.Pitch)}
				m := markers[endKey]
				m.SlurEnd = true
				markers[endKey] = m
			}
		}
	}

	return markers
}

func containsPitch(notes []QuantizedNote, pitch int) bool {
	for _, n := range notes {
		if n.Pitch == pitch {
			return true
		}
	}
	return false
}

// nearestPitch returns the closest pitch, the lower one on ties
func nearestPitch(notes []QuantizedNote, pitch int) int {
	best := notes[0].Pitch
	for _, n := range notes[1:] {
		if abs(n.Pitch-pitch) < abs(best-pitch) {
			best = n.Pitch
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func compareBeats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
