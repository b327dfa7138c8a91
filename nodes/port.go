package nodes

import (
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
)

const (
	MidiType        = "mixery:midi"
	SignalType      = "mixery:signal"
	PlaceholderType = "mixery:group_placeholder_port"
)

// Port is a typed connection endpoint owned by exactly one node.
type Port interface {
	Type() string
	ID() string
	Name() string
	SetName(string)
	Node() Node
	ConnectedTo() []Port

	// OnConnectedToPort performs the side effect of connecting to other and
	// reports whether a logical connection now exists.
	OnConnectedToPort(other Port) bool
	OnDisconnectedFromPort(other Port) bool

	base() *portBase
}

// Bridger is implemented by port types that can be mirrored across a group
// boundary.
type Bridger interface {
	MakeBridge(outsideToInside bool, insideNode Node, insideID string, outsideNode Node, outsideID string) (inside, outside Port)
}

type portBase struct {
	node      Node
	id        string
	name      string
	connected []Port
}

func (p *portBase) ID() string      { return p.id }
func (p *portBase) Node() Node      { return p.node }
func (p *portBase) base() *portBase { return p }

// Name falls back to the port id.
func (p *portBase) Name() string {
	if p.name == "" {
		return p.id
	}
	return p.name
}

func (p *portBase) SetName(name string) { p.name = name }

func (p *portBase) ConnectedTo() []Port {
	return append([]Port(nil), p.connected...)
}

func (p *portBase) isConnectedTo(other Port) bool {
	for _, c := range p.connected {
		if c == other {
			return true
		}
	}
	return false
}

func (p *portBase) add(other Port) {
	if !p.isConnectedTo(other) {
		p.connected = append(p.connected, other)
	}
}

func (p *portBase) remove(other Port) {
	for i, c := range p.connected {
		if c == other {
			p.connected = append(p.connected[:i], p.connected[i+1:]...)
			return
		}
	}
}

// link connects from to to outside of any network's bookkeeping. Used for
// the fixed half of a bridge.
func link(from, to Port) bool {
	if !from.OnConnectedToPort(to) {
		return false
	}
	from.base().add(to)
	return true
}

func unlink(from, to Port) bool {
	if !from.base().isConnectedTo(to) {
		return false
	}
	from.OnDisconnectedFromPort(to)
	from.base().remove(to)
	return true
}

// MidiPort carries discrete note events.
type MidiPort struct {
	portBase
	listeners []func(note.Note)
	destroyed bool
}

func NewMidiPort(node Node, id, name string) *MidiPort {
	return &MidiPort{portBase: portBase{node: node, id: id, name: name}}
}

func (p *MidiPort) Type() string { return MidiType }

func (p *MidiPort) OnConnectedToPort(other Port) bool {
	_, ok := other.(*MidiPort)
	return ok
}

func (p *MidiPort) OnDisconnectedFromPort(other Port) bool {
	_, ok := other.(*MidiPort)
	return ok
}

// Listen registers fn for every note reaching this port and returns a
// function removing it.
func (p *MidiPort) Listen(fn func(note.Note)) (cancel func()) {
	p.listeners = append(p.listeners, fn)
	idx := len(p.listeners) - 1
	return func() {
		if idx < len(p.listeners) {
			p.listeners[idx] = nil
		}
	}
}

// EmitNote notifies local listeners, then forwards to every connected port,
// depth first.
func (p *MidiPort) EmitNote(n note.Note) error {
	if p.destroyed {
		return protocolf("midi port %s/%s is destroyed", nodeID(p.node), p.id)
	}
	for _, fn := range p.listeners {
		if fn != nil {
			fn(n)
		}
	}
	for _, c := range p.connected {
		mp, ok := c.(*MidiPort)
		if !ok {
			continue
		}
		if err := mp.EmitNote(n); err != nil {
			return err
		}
	}
	return nil
}

func (p *MidiPort) destroy() {
	p.destroyed = true
	p.listeners = nil
}

func (p *MidiPort) MakeBridge(outsideToInside bool, insideNode Node, insideID string, outsideNode Node, outsideID string) (Port, Port) {
	inside := NewMidiPort(insideNode, insideID, p.name)
	outside := NewMidiPort(outsideNode, outsideID, p.name)
	return inside, outside
}

// SignalPort wraps an engine socket. Only sources can feed other ports;
// a port wrapping a bare parameter is a sink.
type SignalPort struct {
	portBase
	socket signal.Socket
	engine signal.Engine
}

func NewSignalPort(node Node, id, name string, engine signal.Engine, socket signal.Socket) *SignalPort {
	return &SignalPort{portBase: portBase{node: node, id: id, name: name}, socket: socket, engine: engine}
}

func (p *SignalPort) Type() string          { return SignalType }
func (p *SignalPort) Socket() signal.Socket { return p.socket }

func (p *SignalPort) OnConnectedToPort(other Port) bool {
	op, ok := other.(*SignalPort)
	if !ok {
		return false
	}
	if op.socket == p.socket {
		return true
	}
	src, ok := p.socket.(signal.Source)
	if !ok {
		return false
	}
	return src.Connect(op.socket) == nil
}

func (p *SignalPort) OnDisconnectedFromPort(other Port) bool {
	op, ok := other.(*SignalPort)
	if !ok {
		return false
	}
	if op.socket == p.socket {
		return true
	}
	src, ok := p.socket.(signal.Source)
	if !ok {
		return false
	}
	return src.Disconnect(op.socket) == nil
}

// MakeBridge returns two ports sharing one fresh bus, so linking them is free
// and anything wired to either side reaches the other.
func (p *SignalPort) MakeBridge(outsideToInside bool, insideNode Node, insideID string, outsideNode Node, outsideID string) (Port, Port) {
	bus := p.engine.NewBus("bridge." + insideID)
	inside := NewSignalPort(insideNode, insideID, p.name, p.engine, bus)
	outside := NewSignalPort(outsideNode, outsideID, p.name, p.engine, bus)
	return inside, outside
}

// PlaceholderPort is the "add" slot on a group boundary node. Connecting
// anything to it creates a new bridge instead of a connection.
type PlaceholderPort struct {
	portBase
	io *GroupIONode
}

const (
	PlaceholderID   = "placeholder"
	PlaceholderName = "Add"
)

func newPlaceholderPort(io *GroupIONode) *PlaceholderPort {
	return &PlaceholderPort{portBase: portBase{node: io, id: PlaceholderID, name: PlaceholderName}, io: io}
}

func (p *PlaceholderPort) Type() string                     { return PlaceholderType }
func (p *PlaceholderPort) OnConnectedToPort(Port) bool      { return false }
func (p *PlaceholderPort) OnDisconnectedFromPort(Port) bool { return false }

func nodeID(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.ID()
}
