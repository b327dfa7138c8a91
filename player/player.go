// Package player turns a playlist into note and sample events slightly
// ahead of real time.
package player

import (
	"time"

	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/metronome"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/playlist"
	"github.com/chase3718/mixery/resources"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/units"
)

const (
	DefaultQuality = 1000
	DefaultAheadMs = 10
)

// Source is what the player plays.
type Source interface {
	BPM() float64
	Playlist() *playlist.Playlist
	Network() *nodes.Network
}

// Player is the transport. It is not safe for concurrent use; drive it from
// the goroutine that owns the engine.
type Player struct {
	// Quality is the number of ticks per second the owner should call Tick.
	Quality int
	AheadMs float64

	engine    signal.Engine
	src       Source
	loader    *resources.Loader
	metronome *metronome.Metronome

	playing   bool
	playAt    time.Duration // engine time at Play
	startAtMs float64
	lastMs    float64
	session   int

	scheduledClips map[*playlist.Clip]struct{}
	scheduled      queue
	active         queue
	onTick         []func()
}

// New builds a stopped player. loader and m may be nil.
func New(engine signal.Engine, src Source, loader *resources.Loader, m *metronome.Metronome) *Player {
	return &Player{
		Quality:        DefaultQuality,
		AheadMs:        DefaultAheadMs,
		engine:         engine,
		src:            src,
		loader:         loader,
		metronome:      m,
		scheduledClips: make(map[*playlist.Clip]struct{}),
	}
}

func (p *Player) Playing() bool { return p.playing }

// Interval is the tick period for the current quality.
func (p *Player) Interval() time.Duration {
	q := p.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	return time.Second / time.Duration(q)
}

// CurrentMs is the transport position. While playing it is derived from
// the engine clock, never accumulated.
func (p *Player) CurrentMs() float64 {
	if !p.playing {
		return p.startAtMs
	}
	return p.startAtMs + units.ToMs(p.engine.Now()-p.playAt)
}

// OnTick registers fn to run after every tick.
func (p *Player) OnTick(fn func()) { p.onTick = append(p.onTick, fn) }

// Scheduled and Active expose the queue sizes.
func (p *Player) Scheduled() int { return len(p.scheduled) }
func (p *Player) Active() int    { return len(p.active) }

// Play starts the transport at atMs and runs the first tick. It does
// nothing while already playing.
func (p *Player) Play(atMs float64) {
	if p.playing {
		return
	}
	p.startAtMs = atMs
	p.playAt = p.engine.Now()
	p.playing = true
	p.session++
	p.lastMs = p.CurrentMs()
	logging.L().Debug("player: play", "at_ms", atMs)
	p.Tick()
}

// Resume plays from the current position.
func (p *Player) Resume() { p.Play(p.startAtMs) }

// Stop halts the transport, releasing everything in flight.
func (p *Player) Stop() {
	if !p.playing {
		return
	}
	clear(p.scheduledClips)
	p.scheduled = nil
	active := p.active
	p.active = nil
	for _, a := range active {
		a.Stop(0)
	}
	if p.metronome != nil {
		p.metronome.Clear()
	}
	p.playing = false
	logging.L().Debug("player: stop")
}

// Pause stops and keeps the position.
func (p *Player) Pause() {
	if !p.playing {
		return
	}
	at := p.CurrentMs()
	p.Stop()
	p.startAtMs = at
}

// Seek moves the transport to atMs and keeps playing from there.
func (p *Player) Seek(atMs float64) {
	p.Pause()
	p.Play(atMs)
}

// Tick runs one scheduling pass.
func (p *Player) Tick() {
	if !p.playing {
		return
	}
	bpm := p.src.BPM()
	current := p.CurrentMs()
	search := current + p.AheadMs

	p.discover(bpm, current, search)
	p.lastMs = current

	for i := 0; i < len(p.scheduled); {
		s := p.scheduled[i]
		switch {
		case current > s.EndMs():
			p.scheduled = append(p.scheduled[:i], p.scheduled[i+1:]...)
		case search >= s.StartMs:
			// Play may append to scheduled; those entries are visited in
			// this same pass.
			p.scheduled = append(p.scheduled[:i], p.scheduled[i+1:]...)
			p.active.add(s)
			s.Play(s.StartMs - current)
		default:
			i++
		}
	}

	for _, a := range append(queue(nil), p.active...) {
		if search < a.EndMs() || !p.active.has(a) {
			continue
		}
		p.active.remove(a)
		a.Stop(a.EndMs() - current)
	}

	if p.metronome != nil {
		p.metronome.PlaceTicks(bpm, current)
	}
	for _, fn := range p.onTick {
		fn()
	}
}

// discover expands clips overlapping [lastMs, search].
func (p *Player) discover(bpm, current, search float64) {
	pl := p.src.Playlist()
	if pl == nil {
		return
	}
	for _, track := range pl.Tracks {
		if track.Muted {
			continue
		}
		for _, clip := range track.Clips {
			if _, ok := p.scheduledClips[clip]; ok {
				continue
			}
			start := clip.StartMs(bpm)
			end := start + clip.DurationMs(bpm)
			if start > search || end < p.lastMs {
				continue
			}
			switch clip.Type {
			case playlist.KindNotes:
				p.scheduleNotesClip(bpm, clip)
			case playlist.KindAudio:
				p.scheduleAudioClip(bpm, clip)
			}
			p.scheduledClips[clip] = struct{}{}
		}
	}
}
