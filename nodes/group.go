package nodes

import (
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
)

const GroupTypeID = "mixery:group"

// GroupNode embeds a whole network. Its ports mirror the bridges of the
// embedded Inputs and Outputs nodes, unless the embedded network holds both
// a notes source and a speaker: then the group is a synth with a fixed
// MIDI in and audio out, and plays every note on its own copy of the
// embedded network.
type GroupNode struct {
	Base
	ctx      *Context
	parent   *Network
	children *Network
	inputs   *GroupIONode
	outputs  *GroupIONode

	synth     bool
	synthIn   *MidiPort
	synthBus  *signal.Bus
	synthOut  *SignalPort
	synthGain *SignalPort
	gain      *Control
	voices    note.Voices[*groupVoice]
}

type groupVoice struct {
	group    *GroupNode
	teardown *signal.Constant
}

func NewGroupNode(ctx *Context, id string) *GroupNode {
	g := &GroupNode{Base: NewBase(GroupTypeID, id, "Group"), ctx: ctx}
	g.children = NewNetwork(ctx, "Group")
	g.children.owner = g
	g.children.OnChange(g.refreshMode)

	g.synthIn = NewMidiPort(g, "synthMidiIn", "MIDI (Synth)")
	g.synthBus = ctx.Engine.NewBus("group." + id + ".synth")
	g.synthOut = NewSignalPort(g, "synthAudioOut", "Audio (Synth)", ctx.Engine, g.synthBus)
	g.synthGain = NewSignalPort(g, "synthAudioGain", "Gain (Synth)", ctx.Engine, g.synthBus.Gain)
	g.gain = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { g.synthBus.Gain.SetValue(c.Float()) })
	g.synthIn.Listen(g.onSynthNote)

	g.rebindIO()
	return g
}

// rebindIO picks up the boundary nodes of the embedded network, creating
// them when missing.
func (g *GroupNode) rebindIO() {
	g.inputs, _ = g.children.Node(GroupInputsID).(*GroupIONode)
	if g.inputs == nil {
		g.inputs = newGroupIONode(g, true)
		_ = g.children.Add(g.inputs)
	}
	g.outputs, _ = g.children.Node(GroupOutputsID).(*GroupIONode)
	if g.outputs == nil {
		g.outputs = newGroupIONode(g, false)
		_ = g.children.Add(g.outputs)
	}
}

func (g *GroupNode) Children() *Network        { return g.children }
func (g *GroupNode) InputsNode() *GroupIONode  { return g.inputs }
func (g *GroupNode) OutputsNode() *GroupIONode { return g.outputs }
func (g *GroupNode) IsSynth() bool             { return g.synth }

// ActiveVoices is the number of notes currently holding a voice.
func (g *GroupNode) ActiveVoices() int { return g.voices.Len() }

func (g *GroupNode) SetName(name string) {
	g.Base.SetName(name)
	g.children.Name = name
}

func (g *GroupNode) attach(net *Network) { g.parent = net }

func (g *GroupNode) refreshMode() {
	var source, speaker bool
	for _, n := range g.children.nodes {
		switch n.(type) {
		case *NotesSourceNode:
			source = true
		case *SpeakerNode:
			speaker = true
		}
	}
	synth := source && speaker
	if synth == g.synth {
		return
	}
	// The group's ports change with its mode; connections to the old ones
	// must go while they still resolve.
	if g.parent != nil {
		g.parent.disconnectNode(g)
	}
	g.synth = synth
	if !synth {
		for _, v := range g.voices.Drain() {
			v.destroy(g.synthBus)
		}
	}
	logging.L().Debug("nodes: group mode changed", "group", g.ID(), "synth", synth)
}

func (g *GroupNode) Inputs() []Port {
	if g.synth {
		return []Port{g.synthIn, g.synthGain}
	}
	return append([]Port(nil), g.inputs.outside...)
}

func (g *GroupNode) Outputs() []Port {
	if g.synth {
		return []Port{g.synthOut}
	}
	return append([]Port(nil), g.outputs.outside...)
}

func (g *GroupNode) Controls() []*Control {
	if g.synth {
		return []*Control{g.gain}
	}
	return nil
}

func (g *GroupNode) routes(in Port) []Port {
	if g.synth && (in == g.synthIn || in == g.synthGain) {
		return []Port{g.synthOut}
	}
	return nil
}

func (g *GroupNode) Save() Params {
	return Params{"gain": g.gain.Float()}
}

func (g *GroupNode) saveInto(sn *SavedNode) {
	children := g.children.Save()
	sn.Children = &children
}

// ReleaseTime is the longest release among the embedded nodes.
func (g *GroupNode) ReleaseTime() float64 {
	var max float64
	for _, n := range g.children.nodes {
		if r, ok := n.(Releaser); ok && r.ReleaseTime() > max {
			max = r.ReleaseTime()
		}
	}
	return max
}

func (g *GroupNode) Destroy() {
	for _, v := range g.voices.Drain() {
		v.destroy(g.synthBus)
	}
	g.children.Destroy()
	destroyPorts(g.synthIn)
}

// copy clones the embedded network through its saved form, so the copy
// shares no ports or sockets with g.
func (g *GroupNode) copy() (*GroupNode, error) {
	c := NewGroupNode(g.ctx, g.ID())
	c.SetName(g.Name() + " - Copy")
	if err := c.children.Load(g.children.Save()); err != nil {
		c.Destroy()
		return nil, err
	}
	c.rebindIO()
	c.gain.SetFloat(g.gain.Float())
	return c, nil
}

func (g *GroupNode) onSynthNote(n note.Note) {
	if !g.synth {
		return
	}
	log := logging.L()
	switch n.Event {
	case note.KeyDown:
		if g.voices.Active(n.UID) {
			log.Debug("nodes: duplicate keydown ignored", "group", g.ID(), "uid", n.UID)
			return
		}
		voice, err := g.copy()
		if err != nil {
			log.Warn("nodes: unable to spawn voice", "group", g.ID(), "err", err)
			return
		}
		if err := voice.children.Output().Connect(g.synthBus); err != nil {
			log.Warn("nodes: unable to route voice", "group", g.ID(), "err", err)
			voice.Destroy()
			return
		}
		v := &groupVoice{group: voice, teardown: g.ctx.Engine.NewConstant("voice."+n.UID.String(), 0)}
		v.teardown.Start(g.ctx.Engine.Now() + n.Delay())
		g.voices.Press(n.UID, func() *groupVoice { return v })
		v.send(n)

	case note.KeyUp:
		v, ok := g.voices.Release(n.UID)
		if !ok {
			log.Debug("nodes: keyup for idle voice ignored", "group", g.ID(), "uid", n.UID)
			return
		}
		v.send(n)
		release := units.Ms(v.group.ReleaseTime())
		v.teardown.OnEnded(func() { v.destroy(g.synthBus) })
		v.teardown.Stop(g.ctx.Engine.Now() + n.Delay() + release)
	}
}

// send feeds n to the voice's notes source on the default channel.
func (v *groupVoice) send(n note.Note) {
	ok, err := v.group.children.SendNote(DefaultChannel, n)
	switch {
	case err != nil:
		logging.L().Warn("nodes: voice note failed", "uid", n.UID, "err", err)
	case !ok:
		logging.L().Debug("nodes: voice has no default channel source", "group", v.group.ID())
	}
}

func (v *groupVoice) destroy(dst *signal.Bus) {
	_ = v.group.children.Output().Disconnect(dst)
	v.group.Destroy()
}

func groupFactory() *Factory {
	return &Factory{
		TypeID:   GroupTypeID,
		Label:    "Group",
		Category: "Specials",
		New: func(net *Network, id string) (Node, error) {
			return NewGroupNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			g := NewGroupNode(net.Context(), id)
			if saved.Children != nil {
				if err := g.children.Load(*saved.Children); err != nil {
					return nil, wrap(err, "nodes: load group "+id)
				}
				g.rebindIO()
			}
			g.gain.SetFloat(saved.Data.Float("gain", 1))
			return g, nil
		},
	}
}
