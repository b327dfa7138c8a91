package nodes

import (
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
)

const (
	PluckTypeID          = "mixery:pluck"
	SineOscillatorTypeID = "mixery:sine_oscillator"
)

// PluckNode plays a short fixed-length tone per keydown. Keyups are
// ignored. The metronome uses it as its click.
type PluckNode struct {
	Base
	engine    signal.Engine
	bus       *signal.Bus
	midiIn    *MidiPort
	audioGain *SignalPort
	audioOut  *SignalPort
	duration  *Control
	gain      *Control
	plucks    int
}

func NewPluckNode(ctx *Context, id string) *PluckNode {
	n := &PluckNode{Base: NewBase(PluckTypeID, id, "Pluck"), engine: ctx.Engine}
	n.bus = ctx.Engine.NewBus("pluck." + id)
	n.midiIn = NewMidiPort(n, "midiIn", "MIDI")
	n.audioOut = NewSignalPort(n, "audioOut", "Audio", ctx.Engine, n.bus)
	n.audioGain = NewSignalPort(n, "audioGain", "Gain", ctx.Engine, n.bus.Gain)
	n.duration = NumberControl("duration", "Duration (s)", 0.001, 10, 0.2, nil)
	n.gain = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { n.bus.Gain.SetValue(c.Float()) })
	n.midiIn.Listen(n.onNote)
	return n
}

func (n *PluckNode) onNote(ev note.Note) {
	if ev.Event != note.KeyDown {
		return
	}
	at := n.engine.Now() + ev.Delay()
	dur := units.Ms(n.duration.Float() * 1000)

	osc := n.engine.NewOscillator("pluck."+ev.UID.String(), signal.Sine)
	osc.Frequency.SetValue(note.Frequency(ev.Index))
	env := n.engine.NewBus("pluck." + ev.UID.String() + ".env")
	env.Gain.SetValue(0)
	env.Gain.RampTo(ev.Velocity, at+units.Ms(1))
	env.Gain.RampTo(0, at+dur)

	_ = osc.Connect(env)
	_ = env.Connect(n.bus)
	osc.OnEnded(func() { _ = env.Disconnect(n.bus) })
	osc.Start(at)
	osc.Stop(at + dur)
	n.plucks++
}

// Plucks counts keydowns played so far.
func (n *PluckNode) Plucks() int { return n.plucks }

func (n *PluckNode) MidiIn() *MidiPort     { return n.midiIn }
func (n *PluckNode) AudioOut() *SignalPort { return n.audioOut }

func (n *PluckNode) ReleaseTime() float64 { return n.duration.Float() * 1000 }
func (n *PluckNode) Inputs() []Port       { return []Port{n.midiIn, n.audioGain} }
func (n *PluckNode) Outputs() []Port      { return []Port{n.audioOut} }
func (n *PluckNode) Controls() []*Control { return []*Control{n.duration, n.gain} }
func (n *PluckNode) Save() Params         { return controlsParams(n.Controls()) }
func (n *PluckNode) Destroy()             { destroyPorts(n.midiIn) }

func pluckFactory() *Factory {
	return &Factory{
		TypeID:   PluckTypeID,
		Label:    "Pluck",
		Category: "Instruments",
		New: func(net *Network, id string) (Node, error) {
			return NewPluckNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewPluckNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// SineOscillatorNode starts one oscillator per held note. Pitch comes from
// its frequency input, not from the note.
type SineOscillatorNode struct {
	Base
	engine   signal.Engine
	bus      *signal.Bus
	freq     *signal.Constant
	detune   *signal.Constant
	trigger  *MidiPort
	gainIn   *SignalPort
	freqIn   *SignalPort
	detuneIn *SignalPort
	audioOut *SignalPort

	gain, frequency, detuneCtl *Control

	voices note.Voices[*signal.Oscillator]
}

func NewSineOscillatorNode(ctx *Context, id string) *SineOscillatorNode {
	n := &SineOscillatorNode{Base: NewBase(SineOscillatorTypeID, id, "Sine Oscillator"), engine: ctx.Engine}
	n.bus = ctx.Engine.NewBus("sine." + id)
	n.freq = ctx.Engine.NewConstant("sine."+id+".frequency", 440)
	n.detune = ctx.Engine.NewConstant("sine."+id+".detune", 0)
	n.freq.Start(ctx.Engine.Now())
	n.detune.Start(ctx.Engine.Now())

	n.trigger = NewMidiPort(n, "triggerIn", "Trigger")
	n.freqIn = NewSignalPort(n, "freqIn", "Frequency", ctx.Engine, n.freq.Offset)
	n.detuneIn = NewSignalPort(n, "detuneIn", "Detune", ctx.Engine, n.detune.Offset)
	n.audioOut = NewSignalPort(n, "audioOut", "Audio", ctx.Engine, n.bus)
	n.gainIn = NewSignalPort(n, "gainIn", "Gain", ctx.Engine, n.bus.Gain)

	n.gain = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { n.bus.Gain.SetValue(c.Float()) })
	n.frequency = NumberControl("frequency", "Frequency", 0, 24000, 440, func(c *Control) { n.freq.Offset.SetValue(c.Float()) })
	n.detuneCtl = NumberControl("detune", "Detune", -4800, 4800, 0, func(c *Control) { n.detune.Offset.SetValue(c.Float()) })

	n.trigger.Listen(n.onNote)
	return n
}

func (n *SineOscillatorNode) onNote(ev note.Note) {
	at := n.engine.Now() + ev.Delay()
	n.voices.Handle(ev, func() *signal.Oscillator {
		osc := n.engine.NewOscillator("sine."+ev.UID.String(), signal.Sine)
		_ = n.freq.Connect(osc.Frequency)
		_ = n.detune.Connect(osc.Detune)
		_ = osc.Connect(n.bus)
		osc.OnEnded(func() {
			_ = n.freq.Disconnect(osc.Frequency)
			_ = n.detune.Disconnect(osc.Detune)
		})
		osc.Start(at)
		return osc
	}, func(osc *signal.Oscillator) {
		osc.Stop(at)
	})
}

func (n *SineOscillatorNode) ActiveVoices() int { return n.voices.Len() }
func (n *SineOscillatorNode) Inputs() []Port {
	return []Port{n.trigger, n.gainIn, n.freqIn, n.detuneIn}
}
func (n *SineOscillatorNode) Outputs() []Port { return []Port{n.audioOut} }
func (n *SineOscillatorNode) Controls() []*Control {
	return []*Control{n.gain, n.frequency, n.detuneCtl}
}
func (n *SineOscillatorNode) Save() Params { return controlsParams(n.Controls()) }

func (n *SineOscillatorNode) Destroy() {
	for _, osc := range n.voices.Drain() {
		osc.Stop(0)
	}
	n.freq.Stop(0)
	n.detune.Stop(0)
	destroyPorts(n.trigger)
}

func sineOscillatorFactory() *Factory {
	return &Factory{
		TypeID:   SineOscillatorTypeID,
		Label:    "Sine Oscillator",
		Category: "Synthesizing",
		New: func(net *Network, id string) (Node, error) {
			return NewSineOscillatorNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewSineOscillatorNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}
