package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func written(key, duration string, dotted bool) Note {
	return Note{Key: key, Duration: duration, Dotted: dotted, Clef: ClefTreble}
}

func writtenRest(duration string) Note {
	return Note{Key: "b/4", Duration: duration, Clef: ClefTreble, IsRest: true}
}

func TestMeasureBeats(t *testing.T) {
	tests := []struct {
		name  string
		notes []Note
		want  float64
	}{
		{"quarters", []Note{written("c/4", "q", false), written("d/4", "q", false), written("e/4", "q", false), written("f/4", "q", false)}, 4},
		{"mixed", []Note{written("c/4", "h", false), written("d/4", "q", false), written("e/4", "q", false)}, 4},
		{"dotted", []Note{written("c/4", "q", true), written("d/4", "8", false), written("e/4", "h", false)}, 4},
		{"whole", []Note{written("c/4", "w", false)}, 4},
		{"with rest", []Note{written("c/4", "q", false), writtenRest("q"), written("d/4", "h", false)}, 4},
		{"sixteenths", []Note{written("c/4", "16", false), written("d/4", "8", true)}, 1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MeasureBeats(tt.notes))
		})
	}
}

func TestValidateMeasure(t *testing.T) {
	valid := Measure{
		TrebleNotes: []Note{written("c/4", "q", false), written("d/4", "q", false), written("e/4", "q", false), written("f/4", "q", false)},
		BassNotes:   []Note{written("c/3", "h", false), written("g/2", "h", false)},
	}
	assert.NoError(t, ValidateMeasure(valid, 4))

	tooLong := Measure{
		TrebleNotes: []Note{written("c/4", "w", false), written("d/4", "q", false)},
		BassNotes:   []Note{written("c/3", "w", false)},
	}
	assert.Error(t, ValidateMeasure(tooLong, 4))

	tooShort := Measure{
		TrebleNotes: []Note{written("c/4", "w", false)},
		BassNotes:   []Note{written("c/3", "h", false)},
	}
	assert.Error(t, ValidateMeasure(tooShort, 4))

	wholeRest := Measure{
		TrebleNotes: []Note{written("c/4", "w", false)},
		BassNotes:   []Note{writtenRest("w")},
	}
	assert.NoError(t, ValidateMeasure(wholeRest, 4))
}

func TestRepairMeasures_ValidUnchanged(t *testing.T) {
	measures := []Measure{{
		TrebleNotes: []Note{written("c/4", "q", false), written("d/4", "q", false), written("e/4", "q", false), written("f/4", "q", false)},
		BassNotes:   []Note{written("c/3", "w", false)},
	}}

	assert.Equal(t, measures, RepairMeasures(measures, 4))
}

func TestRepairMeasures_FillsShortfall(t *testing.T) {
	measures := []Measure{{
		TrebleNotes: []Note{written("c/4", "h", false)},
		BassNotes:   nil,
	}}

	fixed := RepairMeasures(measures, 4)
	require.Len(t, fixed, 1)
	require.NoError(t, ValidateMeasure(fixed[0], 4))

	assert.Equal(t, []string{"c/4:h", "b/4:hr"}, keysOf(fixed[0].TrebleNotes))
	assert.Equal(t, []string{"d/3:wr"}, keysOf(fixed[0].BassNotes))
}

func TestRepairMeasures_CarriesOverflow(t *testing.T) {
	measures := []Measure{
		{
			TrebleNotes: []Note{written("c/4", "h", false), written("d/4", "q", false), written("e/4", "h", false)},
			BassNotes:   []Note{written("c/3", "w", false)},
		},
		{
			TrebleNotes: []Note{written("g/4", "h", false)},
			BassNotes:   []Note{written("c/3", "w", false)},
		},
	}

	fixed := RepairMeasures(measures, 4)
	require.Len(t, fixed, 2)
	for _, m := range fixed {
		require.NoError(t, ValidateMeasure(m, 4))
	}

	first := fixed[0].TrebleNotes
	assert.Equal(t, []string{"c/4:h", "d/4:q", "e/4:q"}, keysOf(first))
	assert.True(t, first[2].TieStart)

	second := fixed[1].TrebleNotes
	assert.Equal(t, []string{"e/4:q", "g/4:h", "b/4:qr"}, keysOf(second))
	assert.True(t, second[0].TieEnd)
	assert.False(t, second[0].TieStart)

	// input is left alone
	assert.Len(t, measures[0].TrebleNotes, 3)
}

func TestRepairMeasures_DropsOverflowPastLastMeasure(t *testing.T) {
	measures := []Measure{{
		TrebleNotes: []Note{written("c/4", "h", true), writtenRest("h")},
		BassNotes:   []Note{written("c/3", "w", false)},
	}}

	fixed := RepairMeasures(measures, 4)
	require.Len(t, fixed, 1)
	assert.Equal(t, []string{"c/4:h.", "b/4:qr"}, keysOf(fixed[0].TrebleNotes))
	assert.False(t, fixed[0].TrebleNotes[1].TieStart)
}

func TestRepairMeasures_Idempotent(t *testing.T) {
	measures := []Measure{
		{
			TrebleNotes: []Note{written("c/4", "w", false), written("d/4", "h", true), written("e/4", "8", false)},
			BassNotes:   []Note{written("c/3", "q", false)},
		},
		{
			TrebleNotes: []Note{written("f/4", "16", false)},
		},
		{
			BassNotes: []Note{written("g/2", "w", false), written("a/2", "w", false)},
		},
	}

	once := RepairMeasures(measures, 4)
	for _, m := range once {
		require.NoError(t, ValidateMeasure(m, 4))
	}
	assert.Equal(t, once, RepairMeasures(once, 4))
}
