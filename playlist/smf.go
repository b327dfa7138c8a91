package playlist

import (
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/chase3718/mixery/units"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultBPM = 120

type smfEvent struct {
	at  int
	on  bool
	key uint8
	vel uint8
}

// ExportSMF writes every notes clip as a standard MIDI file, one MIDI track
// per playlist track. Ticks per quarter equal units per beat, so positions
// are written unscaled. Muted tracks are kept.
func ExportSMF(w io.Writer, p *Playlist, bpm float64) error {
	if bpm <= 0 {
		bpm = defaultBPM
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(units.Beat)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(bpm))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return fault.Wrap(err, fmsg.With("smf: add tempo track"))
	}

	for i, t := range p.Tracks {
		ch := uint8(i % 16)
		var events []smfEvent
		for _, c := range t.Clips {
			if c.Type != KindNotes {
				continue
			}
			for _, n := range c.Notes {
				start := c.StartAtUnit + n.StartAtUnit
				key := uint8(clamp(n.Index, 0, 127))
				vel := uint8(clamp(int(math.Round(n.Velocity*127)), 1, 127))
				events = append(events,
					smfEvent{at: start, on: true, key: key, vel: vel},
					smfEvent{at: start + n.DurationUnit, key: key},
				)
			}
		}
		// Offs sort before ons at the same tick so repeated keys retrigger.
		sort.SliceStable(events, func(a, b int) bool {
			if events[a].at != events[b].at {
				return events[a].at < events[b].at
			}
			return !events[a].on && events[b].on
		})

		var tr smf.Track
		if t.Name != "" {
			tr.Add(0, smf.MetaTrackSequenceName(t.Name))
		}
		last := 0
		for _, ev := range events {
			delta := uint32(ev.at - last)
			last = ev.at
			if ev.on {
				tr.Add(delta, midi.NoteOn(ch, ev.key, ev.vel))
			} else {
				tr.Add(delta, midi.NoteOff(ch, ev.key))
			}
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return fault.Wrap(err, fmsg.With("smf: add track"))
		}
	}

	if _, err := s.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("smf: write"))
	}
	return nil
}

// ImportSMF reads a standard MIDI file into a playlist with one notes clip
// per MIDI track holding notes, routed to channel. It returns the first
// tempo of the file, or 120.
func ImportSMF(r io.Reader, channel string) (*Playlist, float64, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, 0, fault.Wrap(err, fmsg.With("smf: read"))
	}
	bpm := float64(defaultBPM)
	if tc := s.TempoChanges(); len(tc) > 0 && tc[0].BPM > 0 {
		bpm = tc[0].BPM
	}
	resolution := float64(units.Beat)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt > 0 {
		resolution = float64(mt)
	}
	toUnits := func(ticks int64) int {
		return int(math.Round(float64(ticks) * units.Beat / resolution))
	}

	type held struct {
		at  int64
		vel uint8
	}
	p := &Playlist{}
	for i, tr := range s.Tracks {
		var (
			abs   int64
			notes []ClippedNote
			down  = make(map[uint8][]held)
		)
		for _, ev := range tr {
			abs += int64(ev.Delta)
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				down[key] = append(down[key], held{at: abs, vel: vel})
			case msg.GetNoteEnd(&ch, &key):
				q := down[key]
				if len(q) == 0 {
					continue
				}
				h := q[0]
				down[key] = q[1:]
				start := toUnits(h.at)
				notes = append(notes, ClippedNote{
					StartAtUnit:  start,
					DurationUnit: toUnits(abs) - start,
					Index:        int(key),
					Velocity:     float64(h.vel) / 127,
				})
			}
		}
		if len(notes) == 0 {
			continue
		}
		sort.SliceStable(notes, func(a, b int) bool { return notes[a].StartAtUnit < notes[b].StartAtUnit })

		clipStart, clipEnd := notes[0].StartAtUnit, 0
		for _, n := range notes {
			if n.EndUnit() > clipEnd {
				clipEnd = n.EndUnit()
			}
		}
		for j := range notes {
			notes[j].StartAtUnit -= clipStart
		}
		t := NewTrack(trackName(tr, i))
		t.Add(NewNotesClip(channel, clipStart, clipEnd-clipStart, notes...))
		p.AddTrack(t)
	}
	return p, bpm, nil
}

func trackName(tr smf.Track, i int) string {
	for _, ev := range tr {
		var name string
		if ev.Message.GetMetaTrackName(&name) && name != "" {
			return name
		}
	}
	return "Track " + strconv.Itoa(i)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
