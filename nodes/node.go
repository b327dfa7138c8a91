// Package nodes is the processing graph: typed ports, nodes, networks of
// nodes and the group node that nests a network inside another.
package nodes

import (
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
)

// Node is one unit of the processing graph.
type Node interface {
	TypeID() string
	ID() string
	Name() string
	SetName(string)
	Position() (x, y float64)
	SetPosition(x, y float64)

	Inputs() []Port
	Outputs() []Port
	Controls() []*Control

	// Save returns the node's parameter payload.
	Save() Params
	// Destroy releases the node's sockets. The node is unusable after.
	Destroy()
}

// Releaser is implemented by nodes that keep sounding after a keyup.
type Releaser interface {
	// ReleaseTime is in milliseconds.
	ReleaseTime() float64
}

// Undeletable nodes are permanent parts of their network.
type Undeletable interface {
	Undeletable() bool
}

// composite nodes persist more than a flat parameter map.
type composite interface {
	saveInto(*SavedNode)
}

// Base carries the identity and placement shared by every node.
type Base struct {
	typeID string
	id     string
	name   string
	x, y   float64
}

func NewBase(typeID, id, name string) Base {
	return Base{typeID: typeID, id: id, name: name}
}

func (b *Base) TypeID() string               { return b.typeID }
func (b *Base) ID() string                   { return b.id }
func (b *Base) Name() string                 { return b.name }
func (b *Base) SetName(name string)          { b.name = name }
func (b *Base) Position() (float64, float64) { return b.x, b.y }
func (b *Base) SetPosition(x, y float64)     { b.x, b.y = x, y }
func (b *Base) Controls() []*Control         { return nil }
func (b *Base) Inputs() []Port               { return nil }
func (b *Base) Outputs() []Port              { return nil }
func (b *Base) Save() Params                 { return Params{} }
func (b *Base) Destroy()                     {}

// Ports returns every input and output port of n.
func Ports(n Node) []Port {
	return append(append([]Port(nil), n.Inputs()...), n.Outputs()...)
}

// MIDISender delivers notes to an external MIDI destination.
type MIDISender interface {
	SendNote(channel uint8, n note.Note) error
}

// Context is what node factories need from the workspace.
type Context struct {
	Engine    signal.Engine
	Factories Lookup
	MIDI      MIDISender
}

// Factory builds nodes of one type.
type Factory struct {
	TypeID   string
	Label    string
	Category string
	// Hidden factories are not offered for manual creation.
	Hidden bool

	New      func(net *Network, id string) (Node, error)
	Existing func(net *Network, id string, saved SavedNode) (Node, error)
}

// destroyPorts marks midi ports dead so late emits surface as errors.
func destroyPorts(ports ...Port) {
	for _, p := range ports {
		if mp, ok := p.(*MidiPort); ok {
			mp.destroy()
		}
	}
}
