package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qn(pitch int, start, duration float64) QuantizedNote {
	return QuantizedNote{
		Pitch:         pitch,
		StartBeat:     start,
		DurationBeats: duration,
		Clef:          ClefForPitch(pitch),
		Velocity:      64,
	}
}

func TestGroupChords(t *testing.T) {
	notes := []QuantizedNote{
		qn(62, 1, 1),
		qn(64, 0, 1),
		qn(60, 0, 1),
		qn(67, 0, 1),
	}

	groups := GroupChords(notes, 120, DefaultChordConfig())
	require.Len(t, groups, 2)

	assert.Equal(t, 0.0, groups[0].StartBeat)
	assert.Equal(t, []int{60, 64, 67}, pitchesOf(groups[0].Notes))
	assert.Equal(t, 1.0, groups[1].StartBeat)
	assert.Equal(t, []int{62}, pitchesOf(groups[1].Notes))
}

func TestGroupChords_CapsChordSize(t *testing.T) {
	notes := make([]QuantizedNote, 0, 10)
	for p := 60; p < 70; p++ {
		notes = append(notes, qn(p, 0, 1))
	}

	groups := GroupChords(notes, 120, DefaultChordConfig())
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Notes, 8)
}

func TestGroupChords_Empty(t *testing.T) {
	assert.Empty(t, GroupChords(nil, 120, DefaultChordConfig()))
}

func TestDetectTiesAndSlurs_Tie(t *testing.T) {
	groups := []ChordGroup{
		{StartBeat: 0, Notes: []QuantizedNote{qn(60, 0, 1)}},
		{StartBeat: 1, Notes: []QuantizedNote{qn(60, 1, 1), qn(64, 1, 1)}},
	}

	markers := DetectTiesAndSlurs(groups, 120, DefaultChordConfig())

	assert.True(t, markers[MarkerKey{Group: 1, Pitch: 60}].TieEnd)
	assert.True(t, markers.TieStart(0, 60))
	assert.Equal(t, TieSlurMarker{}, markers[MarkerKey{Group: 0, Pitch: 60}])
	assert.False(t, markers.TieStart(1, 64))
}

func TestDetectTiesAndSlurs_Slur(t *testing.T) {
	// at 120 bpm the tie threshold is 0.2 beats, so a 0.25 beat gap slurs
	groups := []ChordGroup{
		{StartBeat: 0, Notes: []QuantizedNote{qn(60, 0, 1)}},
		{StartBeat: 1.25, Notes: []QuantizedNote{qn(64, 1.25, 1), qn(67, 1.25, 1)}},
	}

	markers := DetectTiesAndSlurs(groups, 120, DefaultChordConfig())

	assert.True(t, markers[MarkerKey{Group: 0, Pitch: 60}].SlurStart)
	assert.True(t, markers[MarkerKey{Group: 1, Pitch: 64}].SlurEnd)
	assert.False(t, markers[MarkerKey{Group: 1, Pitch: 67}].SlurEnd)
	assert.False(t, markers.TieStart(0, 60))
}

func TestDetectTiesAndSlurs_NoConnection(t *testing.T) {
	groups := []ChordGroup{
		{StartBeat: 0, Notes: []QuantizedNote{qn(60, 0, 1)}},
		{StartBeat: 2, Notes: []QuantizedNote{qn(60, 2, 1)}},
		// overlapping attack gives a negative gap
		{StartBeat: 2.5, Notes: []QuantizedNote{qn(62, 2.5, 1)}},
	}

	assert.Empty(t, DetectTiesAndSlurs(groups, 120, DefaultChordConfig()))
}

func pitchesOf(notes []QuantizedNote) []int {
	out := make([]int, len(notes))
	for i, n := range notes {
		out[i] = n.Pitch
	}
	return out
}
