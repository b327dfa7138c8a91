package project

import (
	"context"
	"os"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/metronome"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/player"
	"github.com/chase3718/mixery/playlist"
	"github.com/chase3718/mixery/resources"
	"github.com/chase3718/mixery/signal"
	"gitlab.com/gomidi/midi/v2"
)

// Options configure a workspace. Zero values pick in-memory defaults.
type Options struct {
	Clock signal.Clock
	Store resources.Store
	MIDI  nodes.MIDISender
	// InputChannel is the notes source channel live input plays into.
	InputChannel string
}

// Workspace owns the engine and everything driving it. All graph mutation,
// note dispatch, timer firing and player ticks happen on the goroutine
// running Run; other goroutines hand work over with Do or Call.
type Workspace struct {
	Registry  *nodes.TransitiveRegistry
	Graph     *signal.Graph
	Loader    *resources.Loader
	Metronome *metronome.Metronome
	Player    *player.Player

	ctx     *nodes.Context
	project *Project
	keys    *note.KeyTracker
	input   string
	cmds    chan func()
}

func NewWorkspace(opts Options) (*Workspace, error) {
	if opts.Clock == nil {
		opts.Clock = signal.SystemClock()
	}
	if opts.Store == nil {
		opts.Store = resources.NewMemoryStore()
	}
	if opts.InputChannel == "" {
		opts.InputChannel = nodes.DefaultChannel
	}
	w := &Workspace{
		Registry: nodes.NewTransitiveRegistry(nodes.Builtins()),
		Graph:    signal.NewGraph(opts.Clock),
		keys:     note.NewKeyTracker(nil),
		input:    opts.InputChannel,
		cmds:     make(chan func(), 256),
	}
	w.ctx = &nodes.Context{Engine: w.Graph, Factories: w.Registry, MIDI: opts.MIDI}
	w.Loader = resources.NewLoader(opts.Store, &resources.LoadingManager{}, w.Do)

	m, err := metronome.New(w.ctx)
	if err != nil {
		return nil, err
	}
	w.Metronome = m

	p, err := New(w.ctx)
	if err != nil {
		return nil, err
	}
	w.project = p
	w.Player = player.New(w.Graph, w, w.Loader, m)
	return w, nil
}

func (w *Workspace) Context() *nodes.Context { return w.ctx }
func (w *Workspace) Project() *Project       { return w.project }

// The player reads through these so it follows project swaps.
func (w *Workspace) BPM() float64                 { return w.project.BPM() }
func (w *Workspace) Network() *nodes.Network      { return w.project.Network() }
func (w *Workspace) Playlist() *playlist.Playlist { return w.project.Playlist() }

// Open loads the project file at path, replacing the current project.
func (w *Workspace) Open(path string) error {
	w.Player.Stop()
	return w.project.LoadFile(path)
}

// Do queues fn for the loop goroutine.
func (w *Workspace) Do(fn func()) { w.cmds <- fn }

// Call runs fn on the loop goroutine and waits for it.
func (w *Workspace) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case w.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs queued work without blocking. Only call it from the
// goroutine that would otherwise run Run.
func (w *Workspace) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-w.cmds:
			fn()
			n++
		default:
			return n
		}
	}
}

// Step runs one loop iteration: a player tick, then every due timer.
func (w *Workspace) Step() {
	w.Player.Tick()
	w.Graph.Flush()
}

// Run drives the workspace until ctx is done.
func (w *Workspace) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Player.Interval())
	defer ticker.Stop()
	logging.L().Info("workspace: running", "tick", w.Player.Interval())
	for {
		select {
		case <-ctx.Done():
			w.Player.Stop()
			w.ReleaseInput()
			w.Graph.Flush()
			return nil
		case fn := <-w.cmds:
			fn()
		case <-ticker.C:
			w.Step()
		}
	}
}

// Input plays a controller message into the input channel. It reports
// whether the message was a note.
func (w *Workspace) Input(msg midi.Message) bool {
	ev, prev, ok := note.FromMessage(msg, w.keys)
	if !ok {
		return false
	}
	if prev != nil {
		w.send(*prev)
	}
	w.send(ev)
	return true
}

// ReleaseInput sends a keyup for every held controller key.
func (w *Workspace) ReleaseInput() {
	for k, id := range w.keys.ReleaseAll() {
		w.send(note.Up(id, k.Key, 0))
	}
}

func (w *Workspace) send(ev note.Note) {
	ok, err := w.project.Network().SendNote(w.input, ev)
	if err != nil {
		logging.L().Warn("workspace: input dropped", "note", ev.String(), "err", err)
		return
	}
	if !ok {
		logging.L().Debug("workspace: no notes source for input", "channel", w.input)
	}
}

// ExportSMF writes the playlist as a standard MIDI file.
func (w *Workspace) ExportSMF(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("workspace: create "+path))
	}
	if err := playlist.ExportSMF(f, w.project.Playlist(), w.project.BPM()); err != nil {
		f.Close()
		return fault.Wrap(err, fmsg.With("workspace: export "+path))
	}
	return f.Close()
}

// ImportSMF replaces the playlist with the tracks of a standard MIDI file,
// routed to channel.
func (w *Workspace) ImportSMF(path, channel string) error {
	f, err := os.Open(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("workspace: open "+path))
	}
	defer f.Close()
	pl, bpm, err := playlist.ImportSMF(f, channel)
	if err != nil {
		return fault.Wrap(err, fmsg.With("workspace: import "+path))
	}
	w.Player.Stop()
	w.project.SetPlaylist(pl)
	if bpm > 0 {
		_ = w.project.SetBPM(bpm)
	}
	return nil
}

func (w *Workspace) Close() {
	w.Player.Stop()
	w.Metronome.Destroy()
	w.project.Destroy()
}
