package score

import (
	"math"
	"slices"
)

// AssemblyOptions controls measure layout
type AssemblyOptions struct {
	Key             KeySignature `json:"key"`
	TotalBeats      float64      `json:"total_beats"`       // performance length in beats
	BeatsPerMeasure int          `json:"beats_per_measure"` // 4 for 4/4
	MaxMeasures     int          `json:"max_measures"`
	MeasureCount    int          `json:"measure_count"` // forces the count when > 0
}

// DefaultAssemblyOptions returns 4/4 in C major, capped at 16 measures
func DefaultAssemblyOptions() AssemblyOptions {
	return AssemblyOptions{
		Key:             NewKeySignature(0, false),
		BeatsPerMeasure: 4,
		MaxMeasures:     16,
	}
}

// ticksPerBeat works on the sixteenth grid so all layout arithmetic is integral
const ticksPerBeat = 4

var vocabularyTicks = []int{16, 12, 8, 6, 4, 3, 2, 1}

func toTicks(beats float64) int {
	return int(math.Round(beats * ticksPerBeat))
}

func splitTicks(ticks int) []int {
	pieces := make([]int, 0, 2)
	for ticks > 0 {
		for _, v := range vocabularyTicks {
			if v <= ticks {
				pieces = append(pieces, v)
				ticks -= v
				break
			}
		}
	}
	return pieces
}

// measureCount returns how many measures AssembleMeasures will produce
func (o AssemblyOptions) measureCount() int {
	if o.MeasureCount > 0 {
		return o.MeasureCount
	}
	if o.TotalBeats <= 0 || o.BeatsPerMeasure <= 0 {
		return 0
	}
	count := int(math.Ceil(o.TotalBeats/float64(o.BeatsPerMeasure) - beatEpsilon))
	if o.MaxMeasures > 0 && count > o.MaxMeasures {
		count = o.MaxMeasures
	}
	return count
}

// slot is one group's contribution to one staff
type slot struct {
	group int
	start int // ticks
	end   int // ticks
	tones []QuantizedNote
}

// AssembleMeasures lays chord groups out as fixed-length measures. Each group
// places one line note per staff (its lowest tone there), clipped at the next
// group's attack; gaps are filled with rests and notes crossing a bar line are
// split into tied pieces. Groups with several tones on a staff are also recorded
// as chords.
func AssembleMeasures(groups []ChordGroup, markers Markers, opts AssemblyOptions) []Measure {
	if opts.BeatsPerMeasure <= 0 {
		opts.BeatsPerMeasure = 4
	}
	count := opts.measureCount()
	if count == 0 {
		return []Measure{}
	}

	a := &assembler{
		key:          opts.Key,
		markers:      markers,
		measureTicks: opts.BeatsPerMeasure * ticksPerBeat,
		measures:     make([]Measure, count),
	}
	a.layoutStaff(groups, ClefTreble)
	a.layoutStaff(groups, ClefBass)

	return a.measures
}

type assembler struct {
	key          KeySignature
	markers      Markers
	measureTicks int
	measures     []Measure
}

func (a *assembler) layoutStaff(groups []ChordGroup, clef Clef) {
	end := len(a.measures) * a.measureTicks

	slots := make([]slot, 0, len(groups))
	for gi, group := range groups {
		start := toTicks(group.StartBeat)
		if start < 0 || start >= end {
			continue
		}

		tones := make([]QuantizedNote, 0, len(group.Notes))
		for _, n := range group.Notes {
			if n.Clef == clef {
				tones = append(tones, n)
			}
		}
		if len(tones) == 0 {
			continue
		}

		if len(slots) > 0 && slots[len(slots)-1].start == start {
			prev := &slots[len(slots)-1]
			prev.tones = append(prev.tones, tones...)
			slices.SortStableFunc(prev.tones, func(x, y QuantizedNote) int {
				return x.Pitch - y.Pitch
			})
			continue
		}
		slots = append(slots, slot{
			group: gi,
			start: start,
			end:   start + max(toTicks(tones[0].DurationBeats), 1),
			tones: tones,
		})
	}

	cursor := 0
	for i, s := range slots {
		if s.start < cursor {
			continue
		}
		limit := end
		if i+1 < len(slots) {
			limit = slots[i+1].start
		}
		s.end = min(s.end, limit)

		if s.start > cursor {
			a.placeRest(clef, cursor, s.start)
		}
		a.placeSlot(clef, s)
		cursor = s.end
	}
	if cursor < end {
		a.placeRest(clef, cursor, end)
	}
}

// placeRest fills [from, to) with rests, broken at bar lines
func (a *assembler) placeRest(clef Clef, from, to int) {
	a.forEachPiece(from, to, func(measure, _, ticks int, _, _ bool) {
		a.appendNote(measure, clef, restNote(clef, float64(ticks)/ticksPerBeat))
	})
}

func (a *assembler) placeSlot(clef Clef, s slot) {
	line := s.tones[0]
	marker := a.markers[MarkerKey{Group: s.group, Pitch: line.Pitch}]
	tiedOut := a.markers.TieStart(s.group, line.Pitch)

	a.forEachPiece(s.start, s.end, func(measure, offset, ticks int, first, last bool) {
		beats := float64(ticks) / ticksPerBeat

		n := a.pitchedNote(line, clef, beats)
		n.TieEnd = !first || marker.TieEnd
		n.TieStart = !last || tiedOut
		if first {
			n.SlurStart = marker.SlurStart
			n.SlurEnd = marker.SlurEnd
		}
		a.appendNote(measure, clef, n)

		if first && len(s.tones) > 1 {
			chord := Chord{StartBeat: float64(offset) / ticksPerBeat, Notes: make([]Note, len(s.tones))}
			for k, tone := range s.tones {
				cn := a.pitchedNote(tone, clef, beats)
				m := a.markers[MarkerKey{Group: s.group, Pitch: tone.Pitch}]
				cn.TieEnd = m.TieEnd
				cn.TieStart = a.markers.TieStart(s.group, tone.Pitch) || !last
				cn.SlurStart = m.SlurStart
				cn.SlurEnd = m.SlurEnd
				chord.Notes[k] = cn
			}
			a.appendChord(measure, clef, chord)
		}
	})
}

// forEachPiece splits [from, to) at bar lines and into vocabulary lengths
func (a *assembler) forEachPiece(from, to int, fn func(measure, offset, ticks int, first, last bool)) {
	type piece struct{ measure, offset, ticks int }
	pieces := make([]piece, 0, 2)

	pos := from
	for pos < to {
		measure := pos / a.measureTicks
		barEnd := (measure + 1) * a.measureTicks
		segmentEnd := min(to, barEnd)
		for _, ticks := range splitTicks(segmentEnd - pos) {
			pieces = append(pieces, piece{measure: measure, offset: pos - measure*a.measureTicks, ticks: ticks})
			pos += ticks
		}
	}

	for i, p := range pieces {
		fn(p.measure, p.offset, p.ticks, i == 0, i == len(pieces)-1)
	}
}

func (a *assembler) appendNote(measure int, clef Clef, n Note) {
	m := &a.measures[measure]
	if clef == ClefTreble {
		m.TrebleNotes = append(m.TrebleNotes, n)
	} else {
		m.BassNotes = append(m.BassNotes, n)
	}
}

func (a *assembler) appendChord(measure int, clef Clef, c Chord) {
	m := &a.measures[measure]
	if clef == ClefTreble {
		m.TrebleChords = append(m.TrebleChords, c)
	} else {
		m.BassChords = append(m.BassChords, c)
	}
}

func (a *assembler) pitchedNote(q QuantizedNote, clef Clef, beats float64) Note {
	spelling := a.key.Spell(q.Pitch)
	symbol, dotted, _ := DurationSymbol(beats)
	return Note{
		Key:         spelling.Key(),
		Pitch:       q.Pitch,
		Letter:      spelling.Letter,
		Accidental:  spelling.Accidental,
		Octave:      spelling.Octave,
		Duration:    symbol,
		Dotted:      dotted,
		Clef:        clef,
		Velocity:    q.Velocity,
		Accidentals: spelling.Display,
	}
}

func restNote(clef Clef, beats float64) Note {
	symbol, dotted, _ := DurationSymbol(beats)
	n := Note{
		Duration: symbol,
		Dotted:   dotted,
		Clef:     clef,
		IsRest:   true,
		Pitch:    -1,
	}
	if clef == ClefTreble {
		n.Key, n.Letter, n.Octave = "b/4", "b", 4
	} else {
		n.Key, n.Letter, n.Octave = "d/3", "d", 3
	}
	return n
}
