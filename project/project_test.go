package project

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/playlist"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
	"gitlab.com/gomidi/midi/v2"
)

func newWorkspace(t *testing.T) (*Workspace, *signal.ManualClock) {
	t.Helper()
	clock := &signal.ManualClock{}
	w, err := NewWorkspace(Options{Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Close)
	return w, clock
}

func patched(t *testing.T) (*Workspace, *signal.ManualClock) {
	t.Helper()
	w, clock := newWorkspace(t)
	if err := w.Project().Patch(); err != nil {
		t.Fatal(err)
	}
	return w, clock
}

func sine(t *testing.T, w *Workspace) *nodes.SineOscillatorNode {
	t.Helper()
	for _, n := range w.Network().Nodes() {
		if s, ok := n.(*nodes.SineOscillatorNode); ok {
			return s
		}
	}
	t.Fatal("no sine oscillator in the patch")
	return nil
}

func TestPatch(t *testing.T) {
	w, _ := patched(t)
	if got := len(w.Network().Nodes()); got != 4 {
		t.Fatalf("nodes = %d", got)
	}
	if got := len(w.Network().Connections()); got != 3 {
		t.Fatalf("connections = %d", got)
	}
	if !w.Graph.Connected(w.Network().Output(), w.Graph.Destination()) {
		t.Fatal("network output not wired to the destination")
	}
}

func TestRoundTrip(t *testing.T) {
	w, _ := patched(t)
	p := w.Project()
	p.Metadata = Metadata{Name: "demo", Authors: "someone"}
	if err := p.SetBPM(140); err != nil {
		t.Fatal(err)
	}
	p.Playlist().AddTrack(playlist.NewTrack("lead")).Add(
		playlist.NewNotesClip(nodes.DefaultChannel, 0, units.Beat,
			playlist.ClippedNote{DurationUnit: units.Beat, Index: 60, Velocity: 0.5}))

	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	w2, _ := newWorkspace(t)
	if err := w2.Project().Decode(&buf); err != nil {
		t.Fatal(err)
	}
	q := w2.Project()
	if q.BPM() != 140 || q.Metadata != p.Metadata {
		t.Fatalf("header = %v %+v", q.BPM(), q.Metadata)
	}
	if len(q.Network().Nodes()) != 4 || len(q.Network().Connections()) != 3 {
		t.Fatalf("network = %d nodes, %d connections", len(q.Network().Nodes()), len(q.Network().Connections()))
	}
	for _, n := range p.Network().Nodes() {
		m := q.Network().Node(n.ID())
		if m == nil || m.TypeID() != n.TypeID() {
			t.Fatalf("node %s not restored", n.ID())
		}
	}
	tracks := q.Playlist().Tracks
	if len(tracks) != 1 || len(tracks[0].Clips) != 1 || tracks[0].Clips[0].Notes[0].Velocity != 0.5 {
		t.Fatalf("playlist = %+v", q.Playlist())
	}
}

func TestLoadRejectsBadData(t *testing.T) {
	w, _ := patched(t)
	p := w.Project()
	bad := &playlist.Playlist{}
	bad.AddTrack(playlist.NewTrack("x")).Add(playlist.NewNotesClip("c", -1, 10))

	tests := []struct {
		name  string
		saved Saved
	}{
		{"negative bpm", Saved{BPM: -1}},
		{"bad playlist", Saved{BPM: 100, Playlist: bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Load(tt.saved); err == nil {
				t.Fatal("expected an error")
			}
			if len(p.Network().Nodes()) != 4 || p.BPM() != DefaultBPM {
				t.Fatal("rejected load changed the project")
			}
		})
	}
	if err := p.SetBPM(0); ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("SetBPM(0) = %v", err)
	}
}

func TestFiles(t *testing.T) {
	w, _ := patched(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "song.yaml")
	if err := w.Project().SaveFile(path); err != nil {
		t.Fatal(err)
	}
	w2, _ := newWorkspace(t)
	if err := w2.Open(path); err != nil {
		t.Fatal(err)
	}
	if len(w2.Network().Nodes()) != 4 {
		t.Fatal("project file not loaded")
	}
	if err := w2.Open(filepath.Join(dir, "missing.yaml")); ftag.Get(err) != ftag.NotFound {
		t.Fatalf("missing file: %v", err)
	}
}

func TestLiveInput(t *testing.T) {
	w, _ := patched(t)
	osc := sine(t, w)

	if !w.Input(midi.NoteOn(0, 60, 100)) || !w.Input(midi.NoteOn(0, 64, 100)) {
		t.Fatal("note-on not handled")
	}
	if osc.ActiveVoices() != 2 {
		t.Fatalf("voices = %d", osc.ActiveVoices())
	}
	// A repeated note-on replaces the held voice.
	w.Input(midi.NoteOn(0, 60, 90))
	if osc.ActiveVoices() != 2 {
		t.Fatalf("voices after retrigger = %d", osc.ActiveVoices())
	}
	w.Input(midi.NoteOff(0, 60))
	w.Input(midi.NoteOff(0, 60))
	if osc.ActiveVoices() != 1 {
		t.Fatalf("voices after note-off = %d", osc.ActiveVoices())
	}
	if w.Input(midi.ProgramChange(0, 3)) {
		t.Fatal("program change treated as a note")
	}
	w.ReleaseInput()
	if osc.ActiveVoices() != 0 {
		t.Fatalf("voices after release = %d", osc.ActiveVoices())
	}
}

func TestPlaysProject(t *testing.T) {
	w, clock := patched(t)
	osc := sine(t, w)
	w.Project().Playlist().AddTrack(playlist.NewTrack("lead")).Add(
		playlist.NewNotesClip(nodes.DefaultChannel, 0, units.Beat,
			playlist.ClippedNote{DurationUnit: units.Beat, Index: 69, Velocity: 1}))

	w.Player.Play(0)
	step := func(until time.Duration) {
		for clock.Now() < until {
			clock.Advance(w.Player.Interval())
			w.Step()
		}
	}
	step(100 * time.Millisecond)
	if osc.ActiveVoices() != 1 {
		t.Fatalf("voices while playing = %d", osc.ActiveVoices())
	}
	step(600 * time.Millisecond)
	if osc.ActiveVoices() != 0 {
		t.Fatalf("voices after the note = %d", osc.ActiveVoices())
	}
}

func TestMetronomeWiring(t *testing.T) {
	w, clock := newWorkspace(t)
	w.Metronome.Enabled = true
	w.Player.Play(0)
	clock.Advance(450 * time.Millisecond)
	w.Step()
	if w.Metronome.Node().Plucks() != 2 {
		t.Fatalf("plucks = %d", w.Metronome.Node().Plucks())
	}
}

func TestSMF(t *testing.T) {
	w, _ := newWorkspace(t)
	p := w.Project()
	_ = p.SetBPM(100)
	p.Playlist().AddTrack(playlist.NewTrack("bass")).Add(
		playlist.NewNotesClip(nodes.DefaultChannel, 0, 2*units.Beat,
			playlist.ClippedNote{DurationUnit: units.Beat, Index: 40, Velocity: 1},
			playlist.ClippedNote{StartAtUnit: units.Beat, DurationUnit: units.Beat, Index: 43, Velocity: 1}))

	path := filepath.Join(t.TempDir(), "song.mid")
	if err := w.ExportSMF(path); err != nil {
		t.Fatal(err)
	}
	w2, _ := newWorkspace(t)
	if err := w2.ImportSMF(path, "imported"); err != nil {
		t.Fatal(err)
	}
	q := w2.Project()
	if q.BPM() != 100 {
		t.Fatalf("bpm = %v", q.BPM())
	}
	tracks := q.Playlist().Tracks
	if len(tracks) != 1 || len(tracks[0].Clips[0].Notes) != 2 || tracks[0].Clips[0].Channel != "imported" {
		t.Fatalf("imported playlist = %+v", tracks)
	}
}

func TestRunSerializesWork(t *testing.T) {
	w, _ := newWorkspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		w.Do(func() { order = append(order, i) })
	}
	if err := w.Call(ctx, func() { order = append(order, 3) }); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(order) != 4 || order[0] != 0 || order[3] != 3 {
		t.Fatalf("order = %v", order)
	}
}

func TestRunPending(t *testing.T) {
	w, _ := newWorkspace(t)
	ran := 0
	w.Do(func() { ran++ })
	w.Do(func() { ran++ })
	if n := w.RunPending(); n != 2 || ran != 2 {
		t.Fatalf("ran %d of %d", ran, n)
	}
	if w.RunPending() != 0 {
		t.Fatal("queue not empty")
	}
}
