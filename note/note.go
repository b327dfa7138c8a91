// Package note defines the discrete note events that flow through MIDI ports
// and the voice bookkeeping that keeps keydown/keyup pairs consistent.
package note

import (
	"fmt"
	"time"

	"github.com/chase3718/mixery/uid"
)

type SignalType uint8

const (
	// Instant notes take effect the moment they are received.
	Instant SignalType = iota
	// Delayed notes take effect DelayMs after they are received.
	Delayed
)

func (s SignalType) String() string {
	if s == Delayed {
		return "delayed"
	}
	return "instant"
}

type EventType uint8

const (
	KeyDown EventType = iota
	KeyUp
)

func (e EventType) String() string {
	if e == KeyUp {
		return "keyup"
	}
	return "keydown"
}

// DrumRange is the upper bound (exclusive) of indices reserved for
// drum-like, non-piano triggers. A0 sits at 21.
const DrumRange = 21

// Note is one keydown or keyup for a voice.
type Note struct {
	Signal   SignalType
	Event    EventType
	UID      uid.UID
	Index    int     // 0-127 pitch
	Velocity float64 // 0-1
	// DelayMs is the scheduling offset of a Delayed note. Negative means the
	// event is already late.
	DelayMs float64
}

// Down builds an instant keydown.
func Down(id uid.UID, index int, velocity float64) Note {
	return Note{Signal: Instant, Event: KeyDown, UID: id, Index: index, Velocity: velocity}
}

// Up builds an instant keyup.
func Up(id uid.UID, index int, velocity float64) Note {
	return Note{Signal: Instant, Event: KeyUp, UID: id, Index: index, Velocity: velocity}
}

// After returns a copy of n delayed by ms.
func (n Note) After(ms float64) Note {
	n.Signal = Delayed
	n.DelayMs = ms
	return n
}

// Delay is the non-negative wait before the note takes effect.
func (n Note) Delay() time.Duration {
	if n.Signal != Delayed || n.DelayMs <= 0 {
		return 0
	}
	return time.Duration(n.DelayMs * float64(time.Millisecond))
}

func (n Note) IsDrum() bool { return n.Index < DrumRange }

func (n Note) String() string {
	s := fmt.Sprintf("%s %s vel=%.2f uid=%s", n.Event, Name(n.Index), n.Velocity, n.UID)
	if n.Signal == Delayed {
		s += fmt.Sprintf(" delay=%.2fms", n.DelayMs)
	}
	return s
}

// Emitter is anything notes can be pushed into.
type Emitter interface {
	EmitNote(Note) error
}
