package player

import (
	"os"
	"testing"
	"time"

	"github.com/chase3718/mixery/metronome"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/playlist"
	"github.com/chase3718/mixery/resources"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

type session struct {
	bpm float64
	pl  *playlist.Playlist
	net *nodes.Network
}

func (s *session) BPM() float64                 { return s.bpm }
func (s *session) Playlist() *playlist.Playlist { return s.pl }
func (s *session) Network() *nodes.Network      { return s.net }

type rig struct {
	clock *signal.ManualClock
	graph *signal.Graph
	src   *session
	notes []note.Note
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{clock: &signal.ManualClock{}}
	r.graph = signal.NewGraph(r.clock)
	ctx := &nodes.Context{Engine: r.graph, Factories: nodes.Builtins()}
	r.src = &session{bpm: 120, pl: &playlist.Playlist{}, net: nodes.NewNetwork(ctx, "test")}
	notes := nodes.NewNotesSourceNode("notes")
	if err := r.src.net.Add(notes); err != nil {
		t.Fatal(err)
	}
	notes.Out().Listen(func(n note.Note) { r.notes = append(r.notes, n) })
	return r
}

// oneNote is a single beat clip holding a single beat note.
func (r *rig) oneNote() *playlist.Clip {
	clip := playlist.NewNotesClip(nodes.DefaultChannel, 0, units.Beat,
		playlist.ClippedNote{StartAtUnit: 0, DurationUnit: units.Beat, Index: 60, Velocity: 0.7})
	r.src.pl.AddTrack(playlist.NewTrack("lead")).Add(clip)
	return clip
}

// run ticks the player every interval until the clock reaches until.
func (r *rig) run(p *Player, until time.Duration) {
	for r.clock.Now() < until {
		r.clock.Advance(p.Interval())
		p.Tick()
		r.graph.Flush()
	}
}

func (r *rig) count(ev note.EventType) int {
	n := 0
	for _, e := range r.notes {
		if e.Event == ev {
			n++
		}
	}
	return n
}

func TestNoteFiresOnceAtAnyQuality(t *testing.T) {
	for _, quality := range []int{10, 1000} {
		r := newRig(t)
		r.oneNote()
		p := New(r.graph, r.src, nil, nil)
		p.Quality = quality
		p.Play(0)
		r.run(p, 1500*time.Millisecond)

		if d, u := r.count(note.KeyDown), r.count(note.KeyUp); d != 1 || u != 1 {
			t.Fatalf("quality %d: %d keydowns, %d keyups", quality, d, u)
		}
		down, up := r.notes[0], r.notes[1]
		if down.Event != note.KeyDown || down.UID != up.UID {
			t.Fatalf("quality %d: unpaired events %v / %v", quality, down, up)
		}
		if down.Signal != note.Delayed || down.Index != 60 || down.Velocity != 0.7 {
			t.Fatalf("quality %d: keydown %v", quality, down)
		}
		if p.Active() != 0 || p.Scheduled() != 0 {
			t.Fatalf("quality %d: leftovers %d/%d", quality, p.Active(), p.Scheduled())
		}
	}
}

func TestNoteTriggersAhead(t *testing.T) {
	r := newRig(t)
	clip := playlist.NewNotesClip(nodes.DefaultChannel, units.Beat, units.Beat,
		playlist.ClippedNote{StartAtUnit: 0, DurationUnit: units.Beat / 2, Index: 64, Velocity: 1})
	r.src.pl.AddTrack(playlist.NewTrack("lead")).Add(clip)
	p := New(r.graph, r.src, nil, nil)
	p.Quality = 1000
	p.Play(0)

	r.run(p, 489*time.Millisecond)
	if len(r.notes) != 0 {
		t.Fatalf("fired early: %v", r.notes)
	}
	r.run(p, 490*time.Millisecond)
	if len(r.notes) != 1 || r.notes[0].DelayMs != 10 {
		t.Fatalf("expected one keydown 10ms ahead, got %v", r.notes)
	}
	r.run(p, 740*time.Millisecond)
	if len(r.notes) != 2 || r.notes[1].Event != note.KeyUp || r.notes[1].DelayMs != 10 {
		t.Fatalf("expected keyup 10ms ahead, got %v", r.notes)
	}
}

func TestStopReleasesHeldNotes(t *testing.T) {
	r := newRig(t)
	r.oneNote()
	p := New(r.graph, r.src, nil, nil)
	p.Play(0)
	r.run(p, 100*time.Millisecond)
	if r.count(note.KeyDown) != 1 || r.count(note.KeyUp) != 0 {
		t.Fatalf("events before stop: %v", r.notes)
	}

	p.Stop()
	p.Stop()
	if r.count(note.KeyUp) != 1 {
		t.Fatalf("stop released %d notes", r.count(note.KeyUp))
	}
	if r.notes[1].DelayMs != 0 {
		t.Fatalf("release should be immediate, got %v", r.notes[1].DelayMs)
	}
	r.run(p, 1000*time.Millisecond)
	if len(r.notes) != 2 || p.Playing() {
		t.Fatalf("stopped player kept going: %v", r.notes)
	}
}

func TestPlayableGuards(t *testing.T) {
	r := newRig(t)
	p := New(r.graph, r.src, nil, nil)
	pl := p.notePlayable(playlist.NewNotesClip(nodes.DefaultChannel, 0, units.Beat), 0, 120,
		playlist.ClippedNote{DurationUnit: units.Beat, Index: 60, Velocity: 1})

	pl.Stop(0)
	if len(r.notes) != 0 {
		t.Fatal("stop before play sent a keyup")
	}
	pl.Play(5)
	pl.Play(5)
	pl.Play(8)
	if r.count(note.KeyDown) != 1 {
		t.Fatalf("retriggered: %v", r.notes)
	}
	pl.Play(2)
	if r.count(note.KeyDown) != 2 {
		t.Fatal("earlier trigger should win")
	}
	pl.Stop(0)
	pl.Stop(0)
	if r.count(note.KeyUp) != 1 {
		t.Fatalf("double keyup: %v", r.notes)
	}
}

func TestPauseAndSeek(t *testing.T) {
	r := newRig(t)
	r.oneNote()
	p := New(r.graph, r.src, nil, nil)
	p.Play(0)
	r.run(p, 250*time.Millisecond)

	p.Pause()
	r.clock.Advance(time.Second)
	if p.Playing() || p.CurrentMs() != 250 {
		t.Fatalf("paused at %v", p.CurrentMs())
	}
	if r.count(note.KeyUp) != 1 {
		t.Fatal("pause should release the note")
	}

	// Resuming mid-note plays it again under a new voice.
	p.Resume()
	if r.count(note.KeyDown) != 2 {
		t.Fatalf("resume did not retrigger: %v", r.notes)
	}
	if r.notes[2].UID == r.notes[0].UID {
		t.Fatal("retrigger reused a uid")
	}
	if r.notes[2].Delay() != 0 {
		t.Fatal("late note should play at once")
	}

	p.Seek(2000)
	if !p.Playing() || p.CurrentMs() != 2000 {
		t.Fatalf("seek: playing=%v at %v", p.Playing(), p.CurrentMs())
	}
	if r.count(note.KeyUp) != 2 {
		t.Fatal("seek should release the held note")
	}
	r.run(p, 3*time.Second)
	if r.count(note.KeyDown) != 2 {
		t.Fatal("note behind the seek position played")
	}
}

func TestMutedTrackIsSilent(t *testing.T) {
	r := newRig(t)
	r.oneNote()
	r.src.pl.Tracks[0].Muted = true
	p := New(r.graph, r.src, nil, nil)
	p.Play(0)
	r.run(p, time.Second)
	if len(r.notes) != 0 {
		t.Fatalf("muted track played %v", r.notes)
	}
}

func TestUnroutedChannelIsDropped(t *testing.T) {
	r := newRig(t)
	r.src.pl.AddTrack(playlist.NewTrack("x")).Add(playlist.NewNotesClip("nowhere", 0, units.Beat,
		playlist.ClippedNote{DurationUnit: units.Beat, Index: 60, Velocity: 1}))
	p := New(r.graph, r.src, nil, nil)
	p.Play(0)
	r.run(p, time.Second)
	if len(r.notes) != 0 {
		t.Fatal("note reached the wrong channel")
	}
}

func TestMetronomeFollowsTransport(t *testing.T) {
	r := newRig(t)
	m, err := metronome.New(r.src.net.Context())
	if err != nil {
		t.Fatal(err)
	}
	m.Enabled = true
	p := New(r.graph, r.src, nil, m)
	p.Quality = 100
	ticks := 0
	p.OnTick(func() { ticks++ })
	p.Play(0)
	r.run(p, 1900*time.Millisecond)
	if m.Node().Plucks() != 4 {
		t.Fatalf("plucks = %d", m.Node().Plucks())
	}
	if ticks == 0 {
		t.Fatal("tick callbacks not run")
	}
	p.Seek(0)
	if m.Node().Plucks() != 5 {
		t.Fatalf("seek should clear placed ticks, plucks = %d", m.Node().Plucks())
	}
}

func wavResource(t *testing.T, store resources.Store, name string, frames int) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: 1000, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Take(frames, beep.Silence(-1)), format); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(name, data); err != nil {
		t.Fatal(err)
	}
}

func (r *rig) audioSource(t *testing.T) *nodes.AudioSourceNode {
	t.Helper()
	src := nodes.NewAudioSourceNode(r.src.net.Context(), "audio")
	if err := r.src.net.Add(src); err != nil {
		t.Fatal(err)
	}
	return src
}

func playbacks(g *signal.Graph, bus *signal.Bus) []*signal.BufferSource {
	var out []*signal.BufferSource
	for _, s := range g.Inputs(bus) {
		if b, ok := s.(*signal.BufferSource); ok {
			out = append(out, b)
		}
	}
	return out
}

func TestAudioClipPreloaded(t *testing.T) {
	r := newRig(t)
	dst := r.audioSource(t)
	store := resources.NewMemoryStore()
	wavResource(t, store, "loop.wav", 2000)
	loader := resources.NewLoader(store, nil, nil)
	if _, err := loader.LoadSync("loop.wav"); err != nil {
		t.Fatal(err)
	}
	clip := playlist.NewAudioClip(nodes.DefaultChannel, "loop.wav", 0, units.Beat)
	clip.AudioStartAtUnit = units.Beat / 4
	r.src.pl.AddTrack(playlist.NewTrack("drums")).Add(clip)

	p := New(r.graph, r.src, loader, nil)
	p.Play(0)
	srcs := playbacks(r.graph, dst.Bus())
	if len(srcs) != 1 {
		t.Fatalf("playbacks = %d", len(srcs))
	}
	opts := srcs[0].Options()
	if opts.At != 0 || opts.Offset != 125*time.Millisecond || opts.Duration != 500*time.Millisecond {
		t.Fatalf("options = %+v", opts)
	}

	p.Stop()
	p.Stop()
	if !srcs[0].Stopped() || srcs[0].StopAt() != 0 {
		t.Fatalf("stop at %v", srcs[0].StopAt())
	}
	r.graph.Flush()
	if len(playbacks(r.graph, dst.Bus())) != 0 {
		t.Fatal("stopped playback still wired")
	}
}

func TestAudioClipDefersUntilLoaded(t *testing.T) {
	r := newRig(t)
	dst := r.audioSource(t)
	store := resources.NewMemoryStore()
	wavResource(t, store, "loop.wav", 2000)
	posted := make(chan func(), 4)
	loader := resources.NewLoader(store, nil, func(fn func()) { posted <- fn })
	r.src.pl.AddTrack(playlist.NewTrack("drums")).Add(playlist.NewAudioClip(nodes.DefaultChannel, "loop.wav", 0, units.Beat))

	p := New(r.graph, r.src, loader, nil)
	p.Play(0)
	if len(playbacks(r.graph, dst.Bus())) != 0 {
		t.Fatal("played before the sample loaded")
	}
	r.clock.Advance(40 * time.Millisecond)
	p.Tick()

	select {
	case fn := <-posted:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("load never completed")
	}
	srcs := playbacks(r.graph, dst.Bus())
	if len(srcs) != 1 {
		t.Fatalf("playbacks = %d", len(srcs))
	}
	opts := srcs[0].Options()
	if opts.At != 40*time.Millisecond || opts.Offset != 40*time.Millisecond || opts.Duration != 460*time.Millisecond {
		t.Fatalf("late start options = %+v", opts)
	}
}

func TestAudioClipLoadAfterStopIsDropped(t *testing.T) {
	r := newRig(t)
	dst := r.audioSource(t)
	store := resources.NewMemoryStore()
	wavResource(t, store, "loop.wav", 2000)
	posted := make(chan func(), 4)
	loader := resources.NewLoader(store, nil, func(fn func()) { posted <- fn })
	r.src.pl.AddTrack(playlist.NewTrack("drums")).Add(playlist.NewAudioClip(nodes.DefaultChannel, "loop.wav", 0, units.Beat))

	p := New(r.graph, r.src, loader, nil)
	p.Play(0)
	p.Stop()
	select {
	case fn := <-posted:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("load never completed")
	}
	if len(playbacks(r.graph, dst.Bus())) != 0 {
		t.Fatal("stale load started playback")
	}
}
