package signal

import (
	"fmt"
	"time"

	"github.com/chase3718/mixery/internal/logging"
	"github.com/gopxl/beep"
)

// Engine is what nodes and the player need from the underlying audio engine.
type Engine interface {
	Clock
	NewBus(name string) *Bus
	NewConstant(name string, offset float64) *Constant
	NewOscillator(name string, shape Waveform) *Oscillator
	Destination() Socket
	// After fires fn once, d from now, on the engine's control goroutine.
	After(d time.Duration, fn func()) Timer
	PlayBuffer(buf *beep.Buffer, dst Socket, opts PlayOptions) *BufferSource
}

type edge struct{ from, to Socket }

// Graph is the in-process engine: it keeps the socket connection graph and a
// timer queue against a Clock. It is not safe for concurrent use; all calls
// must come from the single control goroutine that also calls Flush.
type Graph struct {
	clock  Clock
	dest   *Bus
	edges  map[edge]struct{}
	timers timerQueue
}

func NewGraph(clock Clock) *Graph {
	if clock == nil {
		clock = SystemClock()
	}
	g := &Graph{clock: clock, edges: make(map[edge]struct{})}
	g.dest = g.NewBus("destination")
	return g
}

func (g *Graph) Now() time.Duration  { return g.clock.Now() }
func (g *Graph) Destination() Socket { return g.dest }
func (g *Graph) Clock() Clock        { return g.clock }
func (g *Graph) PendingTimers() int  { return g.timers.len() }

func (g *Graph) NewBus(name string) *Bus {
	return &Bus{name: name, g: g, Gain: NewParam(name+".gain", 1, 0, 10)}
}

func (g *Graph) NewConstant(name string, offset float64) *Constant {
	c := &Constant{Offset: NewParam(name+".offset", offset, -1e9, 1e9)}
	c.src = source{name: name, g: g}
	return c
}

func (g *Graph) After(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	return g.timers.push(g.clock.Now()+d, fn)
}

// Flush runs every timer that is due.
func (g *Graph) Flush() int {
	return g.timers.flushDue(g.clock.Now())
}

// Connected reports whether from feeds to.
func (g *Graph) Connected(from, to Socket) bool {
	_, ok := g.edges[edge{from, to}]
	return ok
}

// Outputs lists what from feeds.
func (g *Graph) Outputs(from Socket) []Socket {
	var out []Socket
	for e := range g.edges {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	return out
}

// Inputs lists what feeds to.
func (g *Graph) Inputs(to Socket) []Socket {
	var in []Socket
	for e := range g.edges {
		if e.to == to {
			in = append(in, e.from)
		}
	}
	return in
}

func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) connect(from Source, to Socket) error {
	if to == nil {
		return ErrNilSocket
	}
	g.edges[edge{from, to}] = struct{}{}
	logging.L().Debug("signal: connect", "from", from.Name(), "to", to.Name())
	return nil
}

func (g *Graph) disconnect(from Source, to Socket) error {
	e := edge{from, to}
	if _, ok := g.edges[e]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrNotConnected, from.Name(), to.Name())
	}
	delete(g.edges, e)
	logging.L().Debug("signal: disconnect", "from", from.Name(), "to", to.Name())
	return nil
}

// disconnectAll drops every edge out of from.
func (g *Graph) disconnectAll(from Socket) {
	for e := range g.edges {
		if e.from == from {
			delete(g.edges, e)
		}
	}
}

// source is the shared part of scheduled sources.
type source struct {
	name    string
	g       *Graph
	started bool
	stopped bool
	startAt time.Duration
	stopAt  time.Duration
	ended   []func()
	timer   Timer
}

func (s *source) Name() string { return s.name }

func (s *source) start(at time.Duration) {
	if s.started {
		return
	}
	s.started = true
	s.startAt = at
}

// stop is idempotent and may come before start; the latest call wins only
// if it is earlier than an already scheduled stop.
func (s *source) stop(at time.Duration, self Source) {
	if s.stopped && at >= s.stopAt {
		return
	}
	s.stopped = true
	s.stopAt = at
	s.timer.Cancel()
	delay := at - s.g.Now()
	s.timer = s.g.After(delay, func() {
		s.g.disconnectAll(self)
		for _, fn := range s.ended {
			fn()
		}
		s.ended = nil
	})
}

// Constant is a source emitting a constant, automatable offset.
type Constant struct {
	src    source
	Offset *Param
}

func (c *Constant) Name() string                { return c.src.name }
func (c *Constant) Connect(dst Socket) error    { return c.src.g.connect(c, dst) }
func (c *Constant) Disconnect(dst Socket) error { return c.src.g.disconnect(c, dst) }
func (c *Constant) Start(at time.Duration)      { c.src.start(at) }
func (c *Constant) Stop(at time.Duration)       { c.src.stop(at, c) }
func (c *Constant) Started() bool               { return c.src.started }
func (c *Constant) Stopped() bool               { return c.src.stopped }

// OnEnded registers fn to run once the source has stopped.
func (c *Constant) OnEnded(fn func()) { c.src.ended = append(c.src.ended, fn) }

// PlayOptions describe one playback of a sample buffer.
type PlayOptions struct {
	At       time.Duration // engine time to start
	Offset   time.Duration // position inside the buffer
	Duration time.Duration // 0 plays to the end
	Rate     float64       // playback rate, 0 means 1
}

// BufferSource plays a slice of a decoded sample buffer into a socket.
type BufferSource struct {
	src    source
	buf    *beep.Buffer
	opts   PlayOptions
	frames [2]int
}

func (g *Graph) PlayBuffer(buf *beep.Buffer, dst Socket, opts PlayOptions) *BufferSource {
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	b := &BufferSource{buf: buf, opts: opts}
	b.src = source{name: "buffer", g: g}
	b.frames = sliceFrames(buf, opts.Offset, opts.Duration)
	if dst != nil {
		_ = b.Connect(dst)
	}
	b.src.start(opts.At)
	if opts.Duration > 0 {
		b.Stop(opts.At + time.Duration(float64(opts.Duration)/opts.Rate))
	}
	return b
}

func (b *BufferSource) Name() string                { return b.src.name }
func (b *BufferSource) Connect(dst Socket) error    { return b.src.g.connect(b, dst) }
func (b *BufferSource) Disconnect(dst Socket) error { return b.src.g.disconnect(b, dst) }

// Stop may be called any number of times, before or after the start time.
func (b *BufferSource) Stop(at time.Duration)  { b.src.stop(at, b) }
func (b *BufferSource) Stopped() bool          { return b.src.stopped }
func (b *BufferSource) StartAt() time.Duration { return b.src.startAt }
func (b *BufferSource) StopAt() time.Duration  { return b.src.stopAt }
func (b *BufferSource) Options() PlayOptions   { return b.opts }

// Frames is the [from, to) sample range of the buffer this playback covers.
func (b *BufferSource) Frames() (from, to int) { return b.frames[0], b.frames[1] }

// Streamer returns the covered sample range for an output stage to mix.
func (b *BufferSource) Streamer() beep.StreamSeeker {
	return b.buf.Streamer(b.frames[0], b.frames[1])
}

func sliceFrames(buf *beep.Buffer, offset, dur time.Duration) [2]int {
	if buf == nil {
		return [2]int{}
	}
	sr := buf.Format().SampleRate
	from := sr.N(offset)
	to := buf.Len()
	if dur > 0 {
		to = from + sr.N(dur)
	}
	if from > buf.Len() {
		from = buf.Len()
	}
	if to > buf.Len() {
		to = buf.Len()
	}
	if from < 0 {
		from = 0
	}
	return [2]int{from, to}
}

type Waveform uint8

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	default:
		return "sine"
	}
}

// Oscillator is a periodic source. Frequency and Detune accept modulation.
type Oscillator struct {
	src       source
	Shape     Waveform
	Frequency *Param
	Detune    *Param
}

func (g *Graph) NewOscillator(name string, shape Waveform) *Oscillator {
	o := &Oscillator{
		Shape:     shape,
		Frequency: NewParam(name+".frequency", 0, 0, 24000),
		Detune:    NewParam(name+".detune", 0, -4800, 4800),
	}
	o.src = source{name: name, g: g}
	return o
}

func (o *Oscillator) Name() string                { return o.src.name }
func (o *Oscillator) Connect(dst Socket) error    { return o.src.g.connect(o, dst) }
func (o *Oscillator) Disconnect(dst Socket) error { return o.src.g.disconnect(o, dst) }
func (o *Oscillator) Start(at time.Duration)      { o.src.start(at) }
func (o *Oscillator) Stop(at time.Duration)       { o.src.stop(at, o) }
func (o *Oscillator) Started() bool               { return o.src.started }
func (o *Oscillator) Stopped() bool               { return o.src.stopped }
func (o *Oscillator) OnEnded(fn func())           { o.src.ended = append(o.src.ended, fn) }
