// Package signal is the boundary to the underlying audio engine. The core
// treats everything here as opaque sockets that it connects, disconnects and
// parameterizes; no samples are produced or mixed by this package.
package signal

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotConnected = errors.New("signal: sockets are not connected")
	ErrNilSocket    = errors.New("signal: nil socket")
)

// Socket is any endpoint of the engine graph: a processing node or a
// settable parameter.
type Socket interface {
	Name() string
}

// Source is a socket that can feed other sockets. Parameters are not sources.
type Source interface {
	Socket
	Connect(dst Socket) error
	Disconnect(dst Socket) error
}

// Bus is a pass-through processing node with a gain parameter, the engine's
// equivalent of a gain node.
type Bus struct {
	name string
	g    *Graph
	Gain *Param
}

func (b *Bus) Name() string { return b.name }

// Connect is a no-op when dst is already connected.
func (b *Bus) Connect(dst Socket) error {
	return b.g.connect(b, dst)
}

func (b *Bus) Disconnect(dst Socket) error {
	return b.g.disconnect(b, dst)
}

func (b *Bus) String() string { return fmt.Sprintf("bus(%s)", b.name) }

// ParamEvent is one scheduled change of a Param.
type ParamEvent struct {
	At     time.Duration
	Value  float64
	Linear bool
}

// Param is a settable parameter socket. Sources connected to it modulate it.
type Param struct {
	name     string
	value    float64
	Min, Max float64
	events   []ParamEvent
}

// NewParam returns a free-standing parameter. Engines hand out params owned
// by their nodes; this is for node-local tunables.
func NewParam(name string, value, min, max float64) *Param {
	return &Param{name: name, value: value, Min: min, Max: max}
}

func (p *Param) Name() string       { return p.name }
func (p *Param) Value() float64     { return p.value }
func (p *Param) SetValue(v float64) { p.value = v }

// SetValueAt schedules an instant change.
func (p *Param) SetValueAt(v float64, at time.Duration) {
	p.events = append(p.events, ParamEvent{At: at, Value: v})
}

// RampTo schedules a linear ramp ending at at.
func (p *Param) RampTo(v float64, at time.Duration) {
	p.events = append(p.events, ParamEvent{At: at, Value: v, Linear: true})
}

// CancelFrom drops every event scheduled at or after at.
func (p *Param) CancelFrom(at time.Duration) {
	kept := p.events[:0]
	for _, e := range p.events {
		if e.At < at {
			kept = append(kept, e)
		}
	}
	p.events = kept
}

func (p *Param) Events() []ParamEvent { return append([]ParamEvent(nil), p.events...) }
