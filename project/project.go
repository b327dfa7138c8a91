// Package project ties a node network, a playlist and the playback
// machinery into one document and the workspace that runs it.
package project

import (
	"io"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/playlist"
	"gopkg.in/yaml.v3"
)

const DefaultBPM = 120

type Metadata struct {
	Name        string `yaml:"name,omitempty"`
	Authors     string `yaml:"authors,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Project is one song: tempo, node network and playlist.
type Project struct {
	Metadata Metadata

	bpm      float64
	network  *nodes.Network
	playlist *playlist.Playlist
}

// New returns an empty project whose network output feeds the engine
// destination.
func New(ctx *nodes.Context) (*Project, error) {
	net := nodes.NewNetwork(ctx, "project")
	if err := net.Output().Connect(ctx.Engine.Destination()); err != nil {
		return nil, fault.Wrap(err, fmsg.With("project: connect output"))
	}
	return &Project{bpm: DefaultBPM, network: net, playlist: &playlist.Playlist{}}, nil
}

func (p *Project) BPM() float64                 { return p.bpm }
func (p *Project) Network() *nodes.Network      { return p.network }
func (p *Project) Playlist() *playlist.Playlist { return p.playlist }

func (p *Project) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fault.Wrap(fault.New("project: bpm must be positive"), ftag.With(ftag.InvalidArgument))
	}
	p.bpm = bpm
	return nil
}

// SetPlaylist replaces the playlist, e.g. after an SMF import.
func (p *Project) SetPlaylist(pl *playlist.Playlist) { p.playlist = pl }

// Patch seeds the network with a playable default: the default notes
// channel drives a sine voice and the default audio channel, both into the
// speaker.
func (p *Project) Patch() error {
	created := map[string]nodes.Node{}
	for _, t := range []string{nodes.NotesSourceTypeID, nodes.SineOscillatorTypeID, nodes.AudioSourceTypeID, nodes.SpeakerTypeID} {
		n, err := p.network.Create(t)
		if err != nil {
			return err
		}
		created[t] = n
	}
	link := func(from, fromPort, to, toPort string) error {
		src := p.network.Select(created[from].ID(), fromPort)
		dst := p.network.Select(created[to].ID(), toPort)
		_, err := p.network.Connect(src, dst)
		return err
	}
	if err := link(nodes.NotesSourceTypeID, "notesOut", nodes.SineOscillatorTypeID, "triggerIn"); err != nil {
		return err
	}
	if err := link(nodes.SineOscillatorTypeID, "audioOut", nodes.SpeakerTypeID, "audioIn"); err != nil {
		return err
	}
	return link(nodes.AudioSourceTypeID, "audioOut", nodes.SpeakerTypeID, "audioIn")
}

// Saved is the persisted shape of a project.
type Saved struct {
	Metadata Metadata           `yaml:"metadata"`
	BPM      float64            `yaml:"bpm"`
	Nodes    nodes.SavedNetwork `yaml:"nodes"`
	Playlist *playlist.Playlist `yaml:"playlist"`
}

// Save snapshots the project. The playlist is shared, not copied.
func (p *Project) Save() Saved {
	return Saved{
		Metadata: p.Metadata,
		BPM:      p.bpm,
		Nodes:    p.network.Save(),
		Playlist: p.playlist,
	}
}

// Load replaces the project contents. Invalid tempo or playlist data is
// rejected before anything changes; stale network data is skipped.
func (p *Project) Load(s Saved) error {
	bpm := s.BPM
	if bpm == 0 {
		bpm = DefaultBPM
	}
	if bpm < 0 {
		return fault.Wrap(fault.New("project: bpm must be positive"), ftag.With(ftag.InvalidArgument))
	}
	pl := s.Playlist
	if pl == nil {
		pl = &playlist.Playlist{}
	}
	if err := pl.Validate(); err != nil {
		return fault.Wrap(err, fmsg.With("project: playlist"))
	}
	if err := p.network.Load(s.Nodes); err != nil {
		return fault.Wrap(err, fmsg.With("project: nodes"))
	}
	p.Metadata = s.Metadata
	p.bpm = bpm
	p.playlist = pl
	return nil
}

func (p *Project) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p.Save()); err != nil {
		return fault.Wrap(err, fmsg.With("project: encode"))
	}
	return enc.Close()
}

func (p *Project) Decode(r io.Reader) error {
	var s Saved
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return fault.Wrap(err, fmsg.With("project: decode"), ftag.With(ftag.InvalidArgument))
	}
	return p.Load(s)
}

func (p *Project) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("project: create "+path))
	}
	if err := p.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Project) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return fault.Wrap(err, fmsg.With("project: "+path), ftag.With(ftag.NotFound))
	}
	if err != nil {
		return fault.Wrap(err, fmsg.With("project: open "+path))
	}
	defer f.Close()
	return p.Decode(f)
}

// Destroy tears down the network.
func (p *Project) Destroy() {
	p.network.Destroy()
	_ = p.network.Output().Disconnect(p.network.Context().Engine.Destination())
}
