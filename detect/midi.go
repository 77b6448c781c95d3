package detect

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/score"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// midiResolution is the ticks per quarter note of written files
const midiResolution = 480

type noteKey struct {
	channel uint8
	key     uint8
}

type pendingNote struct {
	start    int64 // microseconds
	velocity uint8
}

// ReadMIDINotes converts the note-on/note-off pairs of a standard MIDI file into
// events. Times follow the file's tempo map (120 bpm when it has none). A note
// still sounding when its track ends is closed at the end of the track.
func ReadMIDINotes(r io.Reader) (events []score.RawNoteEvent, err error) {
	// smf panics on some malformed files
	defer func() {
		if rec := recover(); rec != nil {
			events = nil
			err = fmt.Errorf("reading midi: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("reading midi: %w", err)
	}

	for _, track := range s.Tracks {
		var absTicks int64
		pending := make(map[noteKey]pendingNote)

		closeNote := func(k noteKey, end int64) {
			p, ok := pending[k]
			if !ok {
				return
			}
			delete(pending, k)
			if end <= p.start {
				return
			}
			events = append(events, score.RawNoteEvent{
				Pitch:     int(k.key),
				StartTime: float64(p.start) / 1e6,
				Duration:  float64(end-p.start) / 1e6,
				Velocity:  int(p.velocity),
				Frequency: common.MIDIToFrequency(float64(k.key)),
			})
		}

		for _, ev := range track {
			absTicks += int64(ev.Delta)
			at := s.TimeAt(absTicks)

			msg := midi.Message(ev.Message)
			var channel, key, velocity uint8
			switch {
			case msg.GetNoteStart(&channel, &key, &velocity):
				k := noteKey{channel, key}
				closeNote(k, at)
				pending[k] = pendingNote{start: at, velocity: velocity}
			case msg.GetNoteEnd(&channel, &key):
				closeNote(noteKey{channel, key}, at)
			}
		}

		end := s.TimeAt(absTicks)
		for k := range pending {
			closeNote(k, end)
		}
	}

	slices.SortFunc(events, func(a, b score.RawNoteEvent) int {
		return cmp.Or(cmp.Compare(a.StartTime, b.StartTime), cmp.Compare(a.Pitch, b.Pitch))
	})
	return events, nil
}

type midiMessage struct {
	tick int64
	off  bool
	msg  midi.Message
}

// WriteMIDINotes writes events as a single track file at the given tempo
func WriteMIDINotes(w io.Writer, events []score.RawNoteEvent, bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("invalid tempo %d bpm", bpm)
	}

	ticksPerSecond := float64(bpm) / 60 * midiResolution
	toTicks := func(seconds float64) int64 {
		return int64(math.Round(seconds * ticksPerSecond))
	}

	messages := make([]midiMessage, 0, len(events)*2)
	for _, e := range events {
		if e.Pitch < 0 || e.Pitch > 127 {
			continue
		}
		key := uint8(e.Pitch)
		velocity := uint8(common.ClampInt(e.Velocity, 1, 127))
		start := toTicks(e.StartTime)
		end := max(toTicks(e.EndTime()), start+1)
		messages = append(messages,
			midiMessage{tick: start, msg: midi.NoteOn(0, key, velocity)},
			midiMessage{tick: end, off: true, msg: midi.NoteOff(0, key)},
		)
	}

	// note-offs first so repeated pitches retrigger
	slices.SortStableFunc(messages, func(a, b midiMessage) int {
		if a.tick != b.tick {
			return cmp.Compare(a.tick, b.tick)
		}
		switch {
		case a.off && !b.off:
			return -1
		case !a.off && b.off:
			return 1
		}
		return 0
	})

	var track smf.Track
	track.Add(0, smf.MetaTempo(float64(bpm)))
	var last int64
	for _, m := range messages {
		track.Add(uint32(m.tick-last), m.msg)
		last = m.tick
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(midiResolution)
	if err := s.Add(track); err != nil {
		return fmt.Errorf("building midi: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("writing midi: %w", err)
	}
	return nil
}
