package nodes

import (
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/uid"
)

const (
	DebugTypeID   = "mixery:debug"
	MidiOutTypeID = "mixery:midi_out"
)

// DebugNode logs every note it receives and can inject a test note.
type DebugNode struct {
	Base
	midiIn   *MidiPort
	midiOut  *MidiPort
	trigger  *Control
	received []note.Note
}

func NewDebugNode(id string) *DebugNode {
	n := &DebugNode{Base: NewBase(DebugTypeID, id, "Debug")}
	n.midiIn = NewMidiPort(n, "midiIn", "MIDI In")
	n.midiOut = NewMidiPort(n, "midiOut", "MIDI Out")
	n.trigger = TextControl("trigger", "Type to trigger", "", func(*Control) {
		n.emit(note.Down(uid.New(), note.A4Index, 0.8))
	})
	n.midiIn.Listen(func(ev note.Note) {
		n.received = append(n.received, ev)
		logging.L().Info("debug: received note", "node", n.ID(), "note", ev.String())
	})
	return n
}

func (n *DebugNode) emit(ev note.Note) {
	if err := n.midiOut.EmitNote(ev); err != nil {
		logging.L().Warn("debug: emit failed", "node", n.ID(), "err", err)
	}
}

// Received returns every note seen so far, oldest first.
func (n *DebugNode) Received() []note.Note { return append([]note.Note(nil), n.received...) }

func (n *DebugNode) Inputs() []Port       { return []Port{n.midiIn} }
func (n *DebugNode) Outputs() []Port      { return []Port{n.midiOut} }
func (n *DebugNode) Controls() []*Control { return []*Control{n.trigger} }
func (n *DebugNode) Destroy()             { destroyPorts(n.midiIn, n.midiOut) }

func debugFactory() *Factory {
	return &Factory{
		TypeID: DebugTypeID,
		Label:  "Debug",
		New: func(net *Network, id string) (Node, error) {
			return NewDebugNode(id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			return NewDebugNode(id), nil
		},
	}
}

// MidiOutNode forwards notes to the workspace MIDI sender on one channel,
// holding delayed notes back until they are due.
type MidiOutNode struct {
	Base
	ctx     *Context
	midiIn  *MidiPort
	channel *Control
}

func NewMidiOutNode(ctx *Context, id string) *MidiOutNode {
	n := &MidiOutNode{Base: NewBase(MidiOutTypeID, id, "MIDI Out"), ctx: ctx}
	n.midiIn = NewMidiPort(n, "midiIn", "MIDI")
	n.channel = NumberControl("channel", "Channel", 0, 15, 0, nil)
	n.midiIn.Listen(n.onNote)
	return n
}

func (n *MidiOutNode) onNote(ev note.Note) {
	if n.ctx.MIDI == nil {
		return
	}
	ch := uint8(n.channel.Float())
	send := func() {
		if err := n.ctx.MIDI.SendNote(ch, ev); err != nil {
			logging.L().Warn("midi: send failed", "node", n.ID(), "note", ev.String(), "err", err)
		}
	}
	if d := ev.Delay(); d > 0 {
		n.ctx.Engine.After(d, send)
		return
	}
	send()
}

func (n *MidiOutNode) Inputs() []Port       { return []Port{n.midiIn} }
func (n *MidiOutNode) Controls() []*Control { return []*Control{n.channel} }
func (n *MidiOutNode) Save() Params         { return controlsParams(n.Controls()) }
func (n *MidiOutNode) Destroy()             { destroyPorts(n.midiIn) }

func midiOutFactory() *Factory {
	return &Factory{
		TypeID:   MidiOutTypeID,
		Label:    "MIDI Out",
		Category: "Outputs",
		New: func(net *Network, id string) (Node, error) {
			return NewMidiOutNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewMidiOutNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}
