package note

import (
	"math"

	"gitlab.com/gomidi/midi/v2"
)

// ToMessage encodes n as a channel voice message. Keydowns never encode
// velocity 0, which receivers would read as a note-off.
func ToMessage(n Note, channel uint8) midi.Message {
	key := uint8(clampInt(n.Index, 0, 127))
	if n.Event == KeyUp {
		return midi.NoteOff(channel, key)
	}
	vel := uint8(clampInt(int(math.Round(n.Velocity*127)), 1, 127))
	return midi.NoteOn(channel, key, vel)
}

// FromMessage decodes a note-on/note-off, resolving the voice uid through
// keys. It reports false for anything else, and for a note-off whose key was
// never pressed. A replaced voice (double note-on) is returned as a keyup in
// prev.
func FromMessage(msg midi.Message, keys *KeyTracker) (n Note, prev *Note, ok bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		id, old, had := keys.On(int(ch), int(key))
		if had {
			up := Up(old, int(key), 0)
			prev = &up
		}
		return Down(id, int(key), float64(vel)/127), prev, true
	case msg.GetNoteEnd(&ch, &key):
		id, held := keys.Off(int(ch), int(key))
		if !held {
			return Note{}, nil, false
		}
		return Up(id, int(key), 0), nil, true
	}
	return Note{}, nil, false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
