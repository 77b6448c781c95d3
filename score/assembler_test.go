package score

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts(totalBeats float64) AssemblyOptions {
	o := DefaultAssemblyOptions()
	o.TotalBeats = totalBeats
	return o
}

func keysOf(notes []Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Key + ":" + n.Duration
		if n.Dotted {
			out[i] += "."
		}
		if n.IsRest {
			out[i] += "r"
		}
	}
	return out
}

func requireValid(t *testing.T, measures []Measure) {
	t.Helper()
	for i, m := range measures {
		require.NoError(t, ValidateMeasure(m, 4), "measure %d", i)
	}
}

func TestAssembleMeasures_SingleNote(t *testing.T) {
	groups := []ChordGroup{{StartBeat: 0, Notes: []QuantizedNote{qn(60, 0, 1)}}}

	measures := AssembleMeasures(groups, Markers{}, opts(1))
	require.Len(t, measures, 1)
	requireValid(t, measures)

	assert.Equal(t, []string{"c/4:q", "b/4:h.r"}, keysOf(measures[0].TrebleNotes))
	assert.Equal(t, []string{"d/3:wr"}, keysOf(measures[0].BassNotes))
	assert.Empty(t, measures[0].TrebleChords)
}

func TestAssembleMeasures_TiesAcrossBarLine(t *testing.T) {
	groups := []ChordGroup{{StartBeat: 3, Notes: []QuantizedNote{qn(64, 3, 2)}}}

	measures := AssembleMeasures(groups, Markers{}, opts(5))
	require.Len(t, measures, 2)
	requireValid(t, measures)

	first := measures[0].TrebleNotes
	assert.Equal(t, []string{"b/4:h.r", "e/4:q"}, keysOf(first))
	assert.True(t, first[1].TieStart)
	assert.False(t, first[1].TieEnd)

	second := measures[1].TrebleNotes
	assert.Equal(t, []string{"e/4:q", "b/4:h.r"}, keysOf(second))
	assert.True(t, second[0].TieEnd)
	assert.False(t, second[0].TieStart)
}

func TestAssembleMeasures_ChordsAndClipping(t *testing.T) {
	groups := []ChordGroup{
		{StartBeat: 0, Notes: []QuantizedNote{qn(48, 0, 4), qn(60, 0, 4), qn(64, 0, 4)}},
		{StartBeat: 1, Notes: []QuantizedNote{qn(67, 1, 0.5)}},
	}

	measures := AssembleMeasures(groups, Markers{}, opts(4))
	require.Len(t, measures, 1)
	requireValid(t, measures)

	m := measures[0]
	// the held chord is clipped at the next attack on the treble staff
	assert.Equal(t, []string{"c/4:q", "g/4:8", "b/4:hr", "b/4:8r"}, keysOf(m.TrebleNotes))
	assert.Equal(t, []string{"c/3:w"}, keysOf(m.BassNotes))

	require.Len(t, m.TrebleChords, 1)
	assert.Equal(t, 0.0, m.TrebleChords[0].StartBeat)
	assert.Equal(t, []string{"c/4:q", "e/4:q"}, keysOf(m.TrebleChords[0].Notes))
	assert.Empty(t, m.BassChords)
}

func TestAssembleMeasures_MarkersApplied(t *testing.T) {
	groups := []ChordGroup{
		{StartBeat: 0, Notes: []QuantizedNote{qn(60, 0, 1)}},
		{StartBeat: 1, Notes: []QuantizedNote{qn(60, 1, 1)}},
	}
	markers := DetectTiesAndSlurs(groups, 120, DefaultChordConfig())

	measures := AssembleMeasures(groups, markers, opts(2))
	require.Len(t, measures, 1)

	treble := measures[0].TrebleNotes
	assert.True(t, treble[0].TieStart)
	assert.False(t, treble[0].TieEnd)
	assert.True(t, treble[1].TieEnd)
	assert.False(t, treble[1].TieStart)
}

func TestAssembleMeasures_KeySpelling(t *testing.T) {
	groups := []ChordGroup{{StartBeat: 0, Notes: []QuantizedNote{qn(70, 0, 4)}}}

	o := opts(4)
	o.Key = NewKeySignature(5, false)
	measures := AssembleMeasures(groups, Markers{}, o)

	n := measures[0].TrebleNotes[0]
	assert.Equal(t, "bb/4", n.Key)
	assert.Equal(t, "b", n.Letter)
	assert.Equal(t, "b", n.Accidental)
	assert.Empty(t, n.Accidentals)
}

func TestAssembleMeasures_MeasureCount(t *testing.T) {
	assert.Empty(t, AssembleMeasures(nil, Markers{}, opts(0)))
	assert.Len(t, AssembleMeasures(nil, Markers{}, opts(100)), 16)
	assert.Len(t, AssembleMeasures(nil, Markers{}, opts(4.5)), 2)

	o := opts(0)
	o.MeasureCount = 3
	measures := AssembleMeasures(nil, Markers{}, o)
	require.Len(t, measures, 3)
	for _, m := range measures {
		assert.Equal(t, []string{"b/4:wr"}, keysOf(m.TrebleNotes))
		assert.Equal(t, []string{"d/3:wr"}, keysOf(m.BassNotes))
	}
}

func TestAssembleMeasures_RandomInputKeepsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		notes := make([]QuantizedNote, 0, 40)
		for range 40 {
			start := float64(rng.Intn(80)) * GridResolution
			duration := DurationVocabulary[rng.Intn(len(DurationVocabulary))]
			notes = append(notes, QuantizedNote{
				Pitch:         36 + rng.Intn(48),
				StartBeat:     start,
				DurationBeats: duration,
				Velocity:      rng.Intn(128),
			})
		}

		notes = AssignClefs(notes)
		groups := GroupChords(notes, 120, DefaultChordConfig())
		markers := DetectTiesAndSlurs(groups, 120, DefaultChordConfig())

		measures := AssembleMeasures(groups, markers, opts(20))
		require.Len(t, measures, 5)
		requireValid(t, measures)

		assert.Equal(t, measures, RepairMeasures(measures, 4), "trial %d", trial)
	}
}
