package score

import (
	"fmt"
	"math"
	"slices"
)

// MeasureBeats sums the beat lengths of a staff line
func MeasureBeats(notes []Note) float64 {
	total := 0.0
	for _, n := range notes {
		total += n.Beats()
	}
	return total
}

// ValidateMeasure checks that both staves fill exactly beatsPerMeasure beats
func ValidateMeasure(m Measure, beatsPerMeasure int) error {
	want := float64(beatsPerMeasure)
	if got := MeasureBeats(m.TrebleNotes); math.Abs(got-want) > beatEpsilon {
		return fmt.Errorf("treble staff has %.2f beats, want %.0f", got, want)
	}
	if got := MeasureBeats(m.BassNotes); math.Abs(got-want) > beatEpsilon {
		return fmt.Errorf("bass staff has %.2f beats, want %.0f", got, want)
	}
	return nil
}

// RepairMeasures forces every staff to exactly beatsPerMeasure beats. Shortfalls
// are padded with rests. On overflow the crossing note is cut to the remaining
// capacity and the rest of it, tied, moves with any later notes to the start of
// the next measure. Whatever overflows the last measure is dropped. Running it on
// its own output changes nothing.
func RepairMeasures(measures []Measure, beatsPerMeasure int) []Measure {
	if beatsPerMeasure <= 0 {
		beatsPerMeasure = 4
	}

	out := make([]Measure, len(measures))
	for i, m := range measures {
		out[i] = Measure{
			TrebleChords: slices.Clone(m.TrebleChords),
			BassChords:   slices.Clone(m.BassChords),
		}
	}

	treble := repairStaff(measures, beatsPerMeasure, ClefTreble, func(m Measure) []Note { return m.TrebleNotes })
	bass := repairStaff(measures, beatsPerMeasure, ClefBass, func(m Measure) []Note { return m.BassNotes })
	for i := range out {
		out[i].TrebleNotes = treble[i]
		out[i].BassNotes = bass[i]
	}

	return out
}

func repairStaff(measures []Measure, beatsPerMeasure int, clef Clef, line func(Measure) []Note) [][]Note {
	capacity := beatsPerMeasure * ticksPerBeat
	staves := make([][]Note, len(measures))

	var carry []Note
	for i, m := range measures {
		pending := append(carry, line(m)...)
		carry = nil

		notes := make([]Note, 0, len(pending))
		used := 0
		for k, n := range pending {
			ticks := toTicks(n.Beats())
			if used+ticks <= capacity {
				notes = append(notes, n)
				used += ticks
				continue
			}

			head := capacity - used
			if head > 0 {
				notes = append(notes, splitNote(n, splitTicks(head), false, true)...)
				used = capacity
			}
			tail := splitNote(n, splitTicks(ticks-head), head > 0, false)
			carry = append(tail, pending[k+1:]...)
			break
		}

		if used < capacity {
			for _, ticks := range splitTicks(capacity - used) {
				notes = append(notes, restNote(clef, float64(ticks)/ticksPerBeat))
			}
		}

		staves[i] = notes
	}

	return staves
}

// splitNote cuts n into pieces of the given tick lengths. Pitched pieces are tied
// together; continuesFrom marks the first piece as the end of an earlier tie and
// continuesTo marks the last piece as tied onward.
func splitNote(n Note, pieces []int, continuesFrom, continuesTo bool) []Note {
	out := make([]Note, len(pieces))
	for i, ticks := range pieces {
		p := n
		p.Accidentals = slices.Clone(n.Accidentals)
		p.Duration, p.Dotted, _ = DurationSymbol(float64(ticks) / ticksPerBeat)

		if !n.IsRest {
			first, last := i == 0, i == len(pieces)-1
			if first {
				p.TieEnd = n.TieEnd || continuesFrom
			} else {
				p.TieEnd = true
				p.SlurStart, p.SlurEnd = false, false
			}
			if last {
				p.TieStart = n.TieStart || continuesTo
			} else {
				p.TieStart = true
			}
			if continuesFrom {
				p.SlurStart, p.SlurEnd = false, false
			}
		}
		out[i] = p
	}
	return out
}
