// Package metronome places click notes on a beat grid ahead of the
// transport position.
package metronome

import (
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/uid"
	"github.com/chase3718/mixery/units"
)

const (
	NodeID        = "system-metronome"
	MajorIndex    = 72
	MinorIndex    = 69
	ClickVelocity = 0.8
)

// Metronome emits one click per grid line inside a forward buffer window.
// Every placed grid line is remembered until Clear.
type Metronome struct {
	Enabled     bool
	Division    int     // grid spacing in units
	BufferMs    float64 // how far ahead of the position clicks are placed
	BeatsPerBar int

	engine signal.Engine
	node   *nodes.PluckNode
	out    signal.Source
	placed map[int]struct{}
}

// New builds a metronome whose pluck voice plays straight into the engine
// destination.
func New(ctx *nodes.Context) (*Metronome, error) {
	node := nodes.NewPluckNode(ctx, NodeID)
	out, ok := node.AudioOut().Socket().(signal.Source)
	if !ok {
		return nil, fault.New("metronome: pluck output is not a source")
	}
	if err := out.Connect(ctx.Engine.Destination()); err != nil {
		return nil, fault.Wrap(err, fmsg.With("metronome: connect click voice"))
	}
	return &Metronome{
		Division:    units.Beat,
		BufferMs:    100,
		BeatsPerBar: 4,
		engine:      ctx.Engine,
		node:        node,
		out:         out,
		placed:      make(map[int]struct{}),
	}, nil
}

func (m *Metronome) Node() *nodes.PluckNode { return m.node }

// IsMajor reports whether the grid line at unit starts a bar.
func (m *Metronome) IsMajor(unit int) bool {
	bar := m.BeatsPerBar
	if bar <= 0 {
		bar = 4
	}
	beat := int(math.Floor(float64(unit) / units.Beat))
	return beat%bar == 0
}

// PlaceTicks emits clicks for unvisited grid lines between the line at or
// before currentMs and currentMs+BufferMs. It returns the number of clicks
// emitted.
func (m *Metronome) PlaceTicks(bpm, currentMs float64) int {
	if !m.Enabled || bpm <= 0 {
		return 0
	}
	div := m.Division
	if div <= 0 {
		div = units.Beat
	}
	current := units.MsToUnits(bpm, currentMs)
	limit := units.MsToUnits(bpm, currentMs+m.BufferMs)

	placed := 0
	first := int(math.Floor(current/float64(div))) * div
	for pos := first; pos == first || float64(pos) < limit; pos += div {
		if _, ok := m.placed[pos]; ok {
			continue
		}
		m.placed[pos] = struct{}{}
		index := MinorIndex
		if m.IsMajor(pos) {
			index = MajorIndex
		}
		delay := units.UnitsToMs(bpm, float64(pos)) - currentMs
		if err := m.node.MidiIn().EmitNote(note.Down(uid.New(), index, ClickVelocity).After(delay)); err != nil {
			logging.L().Warn("metronome: click failed", "pos", pos, "err", err)
			continue
		}
		placed++
	}
	return placed
}

// Clear forgets placed grid lines. Call on stop and seek.
func (m *Metronome) Clear() {
	clear(m.placed)
}

func (m *Metronome) Destroy() {
	_ = m.out.Disconnect(m.engine.Destination())
	m.node.Destroy()
}
