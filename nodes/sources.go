package nodes

import "github.com/chase3718/mixery/signal"

const (
	NotesSourceTypeID = "mixery:notes_source"
	AudioSourceTypeID = "mixery:audio_source"
	SpeakerTypeID     = "mixery:speaker"

	DefaultChannel = "Default Channel"
)

// NotesSourceNode receives the notes routed to its channel from the
// playlist or a live input.
type NotesSourceNode struct {
	Base
	out     *MidiPort
	channel *Control
}

func NewNotesSourceNode(id string) *NotesSourceNode {
	n := &NotesSourceNode{Base: NewBase(NotesSourceTypeID, id, "Notes Source")}
	n.out = NewMidiPort(n, "notesOut", "Notes")
	n.channel = TextControl("channelName", "Channel", DefaultChannel, nil)
	return n
}

func (n *NotesSourceNode) Channel() string      { return n.channel.Text() }
func (n *NotesSourceNode) Out() *MidiPort       { return n.out }
func (n *NotesSourceNode) Outputs() []Port      { return []Port{n.out} }
func (n *NotesSourceNode) Controls() []*Control { return []*Control{n.channel} }
func (n *NotesSourceNode) Save() Params         { return controlsParams(n.Controls()) }
func (n *NotesSourceNode) Destroy()             { destroyPorts(n.out) }

func notesSourceFactory() *Factory {
	return &Factory{
		TypeID:   NotesSourceTypeID,
		Label:    "Notes Source",
		Category: "Sources",
		New: func(net *Network, id string) (Node, error) {
			return NewNotesSourceNode(id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewNotesSourceNode(id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// AudioSourceNode is where audio clips of its channel are played into.
type AudioSourceNode struct {
	Base
	bus     *signal.Bus
	out     *SignalPort
	channel *Control
	gain    *Control
}

func NewAudioSourceNode(ctx *Context, id string) *AudioSourceNode {
	n := &AudioSourceNode{Base: NewBase(AudioSourceTypeID, id, "Audio Source")}
	n.bus = ctx.Engine.NewBus("audio_source." + id)
	n.out = NewSignalPort(n, "audioOut", "Audio", ctx.Engine, n.bus)
	n.channel = TextControl("channelName", "Channel", DefaultChannel, nil)
	n.gain = NumberControl("gain", "Gain", 0, 10, 1, func(c *Control) { n.bus.Gain.SetValue(c.Float()) })
	return n
}

func (n *AudioSourceNode) Channel() string      { return n.channel.Text() }
func (n *AudioSourceNode) Bus() *signal.Bus     { return n.bus }
func (n *AudioSourceNode) Outputs() []Port      { return []Port{n.out} }
func (n *AudioSourceNode) Controls() []*Control { return []*Control{n.channel, n.gain} }
func (n *AudioSourceNode) Save() Params         { return controlsParams(n.Controls()) }

func audioSourceFactory() *Factory {
	return &Factory{
		TypeID:   AudioSourceTypeID,
		Label:    "Audio Source",
		Category: "Sources",
		New: func(net *Network, id string) (Node, error) {
			return NewAudioSourceNode(net.Context(), id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			n := NewAudioSourceNode(net.Context(), id)
			applyParams(n.Controls(), saved.Data)
			return n, nil
		},
	}
}

// SpeakerNode feeds the network's output bus.
type SpeakerNode struct {
	Base
	in *SignalPort
}

func NewSpeakerNode(net *Network, id string) *SpeakerNode {
	n := &SpeakerNode{Base: NewBase(SpeakerTypeID, id, "Speaker Output")}
	n.in = NewSignalPort(n, "audioIn", "Audio", net.Context().Engine, net.Output())
	return n
}

func (n *SpeakerNode) Inputs() []Port { return []Port{n.in} }

func speakerFactory() *Factory {
	return &Factory{
		TypeID:   SpeakerTypeID,
		Label:    "Speaker Output",
		Category: "Outputs",
		New: func(net *Network, id string) (Node, error) {
			return NewSpeakerNode(net, id), nil
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			return NewSpeakerNode(net, id), nil
		},
	}
}
