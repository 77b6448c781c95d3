package score

import "slices"

// AssignClefs splits notes between the hands. Notes sharing an exact start beat
// are treated as one chord: a chord spanning more than an octave is split at its
// largest interval when that interval exceeds a perfect fourth, everything else
// follows the middle-C rule. The output keeps the input order.
func AssignClefs(notes []QuantizedNote) []QuantizedNote {
	out := slices.Clone(notes)

	byStart := make(map[float64][]int)
	starts := make([]float64, 0)
	for i, n := range out {
		if _, ok := byStart[n.StartBeat]; !ok {
			starts = append(starts, n.StartBeat)
		}
		byStart[n.StartBeat] = append(byStart[n.StartBeat], i)
	}

	for _, start := range starts {
		assignChordClefs(out, byStart[start])
	}

	return out
}

const (
	wideChordSpan    = 12
	minSplitInterval = 5
)

func assignChordClefs(notes []QuantizedNote, members []int) {
	for _, i := range members {
		notes[i].Clef = ClefForPitch(notes[i].Pitch)
	}
	if len(members) < 2 {
		return
	}

	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b int) int {
		return notes[a].Pitch - notes[b].Pitch
	})

	lowest := notes[sorted[0]].Pitch
	highest := notes[sorted[len(sorted)-1]].Pitch
	if highest-lowest <= wideChordSpan {
		return
	}

	maxGap := 0
	splitIndex := 1
	for k := 0; k < len(sorted)-1; k++ {
		gap := notes[sorted[k+1]].Pitch - notes[sorted[k]].Pitch
		if gap > maxGap {
			maxGap = gap
			splitIndex = k + 1
		}
	}
	if maxGap <= minSplitInterval {
		return
	}

	for k, i := range sorted {
		if k < splitIndex {
			notes[i].Clef = ClefBass
		} else {
			notes[i].Clef = ClefTreble
		}
	}
}
