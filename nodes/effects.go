package nodes

import (
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
)

const (
	GainTypeID       = "mixery:gain"
	ConstantTypeID   = "mixery:constant"
	ADSRTypeID       = "mixery:adsr"
	UnpackNoteTypeID = "mixery:unpack_note"
)

type GainNode struct {
	Base
	bus     *signal.Bus
	in      *SignalPort
	gainIn  *SignalPort
	out     *SignalPort
	gainCtl *Control
}

func NewGainNode(ctx *Context, id string) *GainNode {
	n := &GainNode{Base: NewBase(GainTypeID, id, "Gain")}
	n.bus = ctx.Engine.NewBus("gain." + id)
	n.in = NewSignalPort(n, "audioIn", "Audio", ctx.Engine, n.bus)
	n.gainIn = NewSignalPort(n, "gain", "Gain", ctx.Engine, n.bus.Gain)
	n.out = NewSignalPort(n, "audioOut", "Audio", ctx.Engine, n.bus)
	n.gainCtl = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { n.bus.Gain.SetValue(c.Float()) })
	return n
}

func (n *GainNode) Inputs() []Port       { return []Port{n.in, n.gainIn} }
func (n *GainNode) Outputs() []Port      { return []Port{n.out} }
func (n *GainNode) Controls() []*Control { return []*Control{n.gainCtl} }
func (n *GainNode) Save() Params         { return controlsParams(n.Controls()) }

func gainFactory() *Factory {
	return &Factory{
		TypeID:   GainTypeID,
		Label:    "Gain",
		Category: "Effects",
		New: func(net *Network, id string) (Node, error) {
			return NewGainNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewGainNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// ConstantNode outputs a constant, modulatable value.
type ConstantNode struct {
	Base
	src    *signal.Constant
	offset *SignalPort
	out    *SignalPort
	value  *Control
}

func NewConstantNode(ctx *Context, id string) *ConstantNode {
	n := &ConstantNode{Base: NewBase(ConstantTypeID, id, "Constant")}
	n.src = ctx.Engine.NewConstant("constant."+id, 1)
	n.src.Start(ctx.Engine.Now())
	n.offset = NewSignalPort(n, "offset", "Offset", ctx.Engine, n.src.Offset)
	n.out = NewSignalPort(n, "signalOut", "Signal", ctx.Engine, n.src)
	n.value = NumberControl("value", "Value", -1e6, 1e6, 1, func(c *Control) { n.src.Offset.SetValue(c.Float()) })
	return n
}

func (n *ConstantNode) Inputs() []Port       { return []Port{n.offset} }
func (n *ConstantNode) Outputs() []Port      { return []Port{n.out} }
func (n *ConstantNode) Controls() []*Control { return []*Control{n.value} }
func (n *ConstantNode) Save() Params         { return controlsParams(n.Controls()) }
func (n *ConstantNode) Destroy()             { n.src.Stop(0) }

func constantFactory() *Factory {
	return &Factory{
		TypeID:   ConstantTypeID,
		Label:    "Constant",
		Category: "Sources",
		New: func(net *Network, id string) (Node, error) {
			return NewConstantNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewConstantNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// ADSRNode shapes a value per note and passes notes on, delaying keyups by
// the release duration.
type ADSRNode struct {
	Base
	engine   signal.Engine
	bus      *signal.Bus
	midiIn   *MidiPort
	gainIn   *SignalPort
	midiOut  *MidiPort
	valueOut *SignalPort

	gain, attackDelay, attackDuration, decay, sustain, release *Control

	voices note.Voices[*adsrVoice]
}

type adsrVoice struct {
	src     *signal.Constant
	shape   *signal.Automation
	startAt float64 // engine ms the keydown takes effect
}

func NewADSRNode(ctx *Context, id string) *ADSRNode {
	n := &ADSRNode{Base: NewBase(ADSRTypeID, id, "ADSR Envelope"), engine: ctx.Engine}
	n.bus = ctx.Engine.NewBus("adsr." + id)
	n.midiIn = NewMidiPort(n, "midiIn", "MIDI In")
	n.midiOut = NewMidiPort(n, "midiOut", "MIDI Out")
	n.valueOut = NewSignalPort(n, "valueOut", "Value", ctx.Engine, n.bus)
	n.gainIn = NewSignalPort(n, "gainIn", "Gain", ctx.Engine, n.bus.Gain)

	n.gain = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { n.bus.Gain.SetValue(c.Float()) })
	n.attackDelay = NumberControl("attackDelay", "Attack Delay (ms)", 0, 60000, 0, nil)
	n.attackDuration = NumberControl("attackDuration", "Attack Duration (ms)", 0, 60000, 100, nil)
	n.decay = NumberControl("decayDuration", "Decay Duration (ms)", 0, 60000, 200, nil)
	n.sustain = NumberControl("sustainLevel", "Sustain Level (0 to 1)", 0, 1, 0.9, nil)
	n.release = NumberControl("releaseDuration", "Release Duration (ms)", 0, 60000, 100, nil)

	n.midiIn.Listen(n.onNote)
	return n
}

func (n *ADSRNode) Envelope() signal.Envelope {
	return signal.Envelope{
		AttackDelay:     n.attackDelay.Float(),
		AttackDuration:  n.attackDuration.Float(),
		DecayDuration:   n.decay.Float(),
		SustainLevel:    n.sustain.Float(),
		ReleaseDuration: n.release.Float(),
	}
}

func (n *ADSRNode) onNote(ev note.Note) {
	now := n.engine.Now()
	at := now + ev.Delay()
	env := n.Envelope()

	switch ev.Event {
	case note.KeyDown:
		_, ok := n.voices.Press(ev.UID, func() *adsrVoice {
			src := n.engine.NewConstant("adsr."+ev.UID.String(), 0)
			atk := at + units.Ms(env.AttackDelay)
			src.Offset.SetValueAt(0, atk)
			src.Offset.RampTo(1, atk+units.Ms(env.AttackDuration))
			src.Offset.RampTo(env.SustainLevel, atk+units.Ms(env.AttackDuration+env.DecayDuration))
			_ = src.Connect(n.bus)
			src.Start(at)
			return &adsrVoice{src: src, shape: env.AttackPhase(), startAt: units.ToMs(at)}
		})
		if ok {
			n.emit(ev)
		}

	case note.KeyUp:
		v, ok := n.voices.Release(ev.UID)
		if !ok {
			return
		}
		rel := units.Ms(env.ReleaseDuration)
		current := v.shape.Get(units.ToMs(at) - v.startAt)
		v.src.Offset.CancelFrom(at)
		v.src.Offset.SetValueAt(current, at)
		v.src.Offset.RampTo(0, at+rel)
		v.src.Stop(at + rel + units.Ms(1000))

		up := ev
		up.Signal = note.Delayed
		up.DelayMs = units.ToMs(ev.Delay()) + env.ReleaseDuration
		n.emit(up)
	}
}

func (n *ADSRNode) emit(ev note.Note) {
	if err := n.midiOut.EmitNote(ev); err != nil {
		logging.L().Warn("nodes: adsr forward failed", "node", n.ID(), "err", err)
	}
}

func (n *ADSRNode) ActiveVoices() int    { return n.voices.Len() }
func (n *ADSRNode) ReleaseTime() float64 { return n.release.Float() }
func (n *ADSRNode) Inputs() []Port       { return []Port{n.midiIn, n.gainIn} }
func (n *ADSRNode) Outputs() []Port      { return []Port{n.midiOut, n.valueOut} }

func (n *ADSRNode) Controls() []*Control {
	return []*Control{n.gain, n.attackDelay, n.attackDuration, n.decay, n.sustain, n.release}
}

func (n *ADSRNode) Save() Params { return controlsParams(n.Controls()) }

func (n *ADSRNode) Destroy() {
	for _, v := range n.voices.Drain() {
		v.src.Stop(0)
	}
	destroyPorts(n.midiIn, n.midiOut)
}

func adsrFactory() *Factory {
	return &Factory{
		TypeID:   ADSRTypeID,
		Label:    "ADSR Envelope",
		Category: "Synthesizing",
		New: func(net *Network, id string) (Node, error) {
			return NewADSRNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewADSRNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// UnpackNoteNode turns each keydown into frequency and velocity signals.
type UnpackNoteNode struct {
	Base
	engine      signal.Engine
	temperament note.Temperament
	midiIn      *MidiPort
	freq, vel   *signal.Constant
	freqOut     *SignalPort
	velocityOut *SignalPort
}

func NewUnpackNoteNode(ctx *Context, id string) *UnpackNoteNode {
	n := &UnpackNoteNode{
		Base:        NewBase(UnpackNoteTypeID, id, "Unpack Note"),
		engine:      ctx.Engine,
		temperament: note.Equal,
	}
	n.midiIn = NewMidiPort(n, "midiIn", "MIDI")
	n.freq = ctx.Engine.NewConstant("unpack."+id+".frequency", 0)
	n.vel = ctx.Engine.NewConstant("unpack."+id+".velocity", 0)
	n.freq.Start(ctx.Engine.Now())
	n.vel.Start(ctx.Engine.Now())
	n.freqOut = NewSignalPort(n, "frequency", "Frequency", ctx.Engine, n.freq)
	n.velocityOut = NewSignalPort(n, "velocity", "Velocity", ctx.Engine, n.vel)

	n.midiIn.Listen(func(ev note.Note) {
		if ev.Event != note.KeyDown {
			return
		}
		at := n.engine.Now() + ev.Delay()
		n.freq.Offset.SetValueAt(n.temperament.Frequency(ev.Index, note.A4Index, note.A4Freq), at)
		n.vel.Offset.SetValueAt(ev.Velocity, at)
	})
	return n
}

func (n *UnpackNoteNode) Inputs() []Port  { return []Port{n.midiIn} }
func (n *UnpackNoteNode) Outputs() []Port { return []Port{n.freqOut, n.velocityOut} }
func (n *UnpackNoteNode) Save() Params    { return Params{"temperament": "equal"} }

func (n *UnpackNoteNode) Destroy() {
	n.freq.Stop(0)
	n.vel.Stop(0)
	destroyPorts(n.midiIn)
}

func unpackNoteFactory() *Factory {
	return &Factory{
		TypeID:   UnpackNoteTypeID,
		Label:    "Unpack Note",
		Category: "Synthesizing",
		New: func(net *Network, id string) (Node, error) {
			return NewUnpackNoteNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			return NewUnpackNoteNode(net.Context(), id), nil
		},
	}
}
