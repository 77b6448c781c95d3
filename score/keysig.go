package score

import (
	"fmt"
	"strings"
)

var (
	sharpNames = [12]string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}
	flatNames  = [12]string{"c", "db", "d", "eb", "e", "f", "gb", "g", "ab", "a", "bb", "b"}

	// Order in which a key signature adds sharps or flats
	sharpOrder = [7]string{"f", "c", "g", "d", "a", "e", "b"}
	flatOrder  = [7]string{"b", "e", "a", "d", "g", "c", "f"}

	// Sharps (positive) or flats (negative) of each major key by tonic pitch class:
	// C, Db, D, Eb, E, F, Gb, G, Ab, A, Bb, B
	majorKeyAccidentals = [12]int{0, -5, 2, -3, 4, -1, -6, 1, -4, 3, -2, 5}
)

// KeySignature is a tonic pitch class and mode
type KeySignature struct {
	Tonic int  `json:"tonic"`
	Minor bool `json:"minor"`
}

// NewKeySignature normalizes the tonic into 0..11
func NewKeySignature(tonic int, minor bool) KeySignature {
	return KeySignature{Tonic: ((tonic % 12) + 12) % 12, Minor: minor}
}

// Accidentals returns the number of sharps (> 0) or flats (< 0).
// A minor key uses the signature of its relative major.
func (k KeySignature) Accidentals() int {
	tonic := k.Tonic
	if k.Minor {
		tonic += 3
	}
	return majorKeyAccidentals[((tonic%12)+12)%12]
}

// UsesFlats reports whether notes are spelled with flat names
func (k KeySignature) UsesFlats() bool {
	return k.Accidentals() < 0
}

// Name returns e.g. "G major" or "Eb minor", spelled to match the signature
func (k KeySignature) Name() string {
	names := sharpNames
	if k.UsesFlats() {
		names = flatNames
	}
	tonic := names[((k.Tonic%12)+12)%12]
	tonic = strings.ToUpper(tonic[:1]) + tonic[1:]

	if k.Minor {
		return tonic + " minor"
	}
	return tonic + " major"
}

// alteredLetters returns the letters the signature raises or lowers
func (k KeySignature) alteredLetters() map[string]string {
	count := k.Accidentals()
	altered := make(map[string]string, 7)
	switch {
	case count > 0:
		for _, letter := range sharpOrder[:count] {
			altered[letter] = "#"
		}
	case count < 0:
		for _, letter := range flatOrder[:-count] {
			altered[letter] = "b"
		}
	}
	return altered
}

// Spelling is the written form of a pitch in a key
type Spelling struct {
	Letter     string
	Accidental string // "#", "b" or ""
	Octave     int
	Display    []string // accidentals that must be printed
}

// Key returns the "c#/4" form
func (s Spelling) Key() string {
	return fmt.Sprintf("%s%s/%d", s.Letter, s.Accidental, s.Octave)
}

// Spell names a MIDI pitch in this key. Accidentals already implied by the
// signature are not displayed; a natural on an altered letter shows "n".
func (k KeySignature) Spell(pitch int) Spelling {
	pc := ((pitch % 12) + 12) % 12
	octave := pitch/12 - 1

	name := sharpNames[pc]
	if k.UsesFlats() {
		name = flatNames[pc]
	}

	s := Spelling{
		Letter:     name[:1],
		Accidental: name[1:],
		Octave:     octave,
	}

	implied, altered := k.alteredLetters()[s.Letter]
	switch {
	case s.Accidental != "" && !(altered && implied == s.Accidental):
		s.Display = []string{s.Accidental}
	case s.Accidental == "" && altered:
		s.Display = []string{"n"}
	}

	return s
}
