package player

import (
	"math"

	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/playlist"
	"github.com/chase3718/mixery/resources"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/uid"
	"github.com/chase3718/mixery/units"
)

func (p *Player) send(channel string, ev note.Note) {
	ok, err := p.src.Network().SendNote(channel, ev)
	switch {
	case err != nil:
		logging.L().Warn("player: send failed", "channel", channel, "note", ev, "err", err)
	case !ok:
		logging.L().Debug("player: no notes source", "channel", channel)
	}
}

// notePlayable wraps one clipped note. Each instance gets its own uid, and
// a trigger is dropped when one at the same or an earlier time already
// fired.
func (p *Player) notePlayable(clip *playlist.Clip, clipStartMs, bpm float64, cn playlist.ClippedNote) *Playable {
	id := uid.New()
	var (
		down, up     bool
		downAt, upAt float64
	)
	pl := &Playable{
		Ref:        cn,
		StartMs:    clipStartMs + units.UnitsToMs(bpm, float64(cn.StartAtUnit)),
		DurationMs: units.UnitsToMs(bpm, float64(cn.DurationUnit)),
	}
	pl.play = func(ahead float64) {
		at := p.CurrentMs() + ahead
		if down && at >= downAt {
			return
		}
		p.send(clip.Channel, note.Down(id, cn.Index, cn.Velocity).After(math.Max(ahead, 0)))
		down, downAt = true, at
	}
	pl.stop = func(ahead float64) {
		if !down {
			return
		}
		at := p.CurrentMs() + ahead
		if up && at >= upAt {
			return
		}
		p.send(clip.Channel, note.Up(id, cn.Index, cn.Velocity).After(math.Max(ahead, 0)))
		up, upAt = true, at
	}
	return pl
}

func (p *Player) scheduleNotesClip(bpm float64, clip *playlist.Clip) {
	if len(clip.Notes) == 0 {
		return
	}
	start := clip.StartMs(bpm)
	notes := make([]*Playable, len(clip.Notes))
	for i, cn := range clip.Notes {
		notes[i] = p.notePlayable(clip, start, bpm, cn)
	}
	p.scheduled.add(&Playable{
		Ref:        clip,
		StartMs:    start,
		DurationMs: clip.DurationMs(bpm),
		play: func(float64) {
			for _, n := range notes {
				p.scheduled.add(n)
			}
		},
		stop: func(ahead float64) {
			for _, n := range notes {
				if p.active.remove(n) {
					n.Stop(ahead)
				} else {
					p.scheduled.remove(n)
				}
			}
		},
	})
}

func (p *Player) scheduleAudioClip(bpm float64, clip *playlist.Clip) {
	start := clip.StartMs(bpm)
	duration := clip.DurationMs(bpm)
	audioStart := units.UnitsToMs(bpm, float64(clip.AudioStartAtUnit))
	session := p.session

	var (
		src     *signal.BufferSource
		waiting bool
		play    func(ahead float64)
	)
	startSource := func(res *resources.Resource, ahead float64) {
		dst := p.src.Network().AudioSource(clip.Channel)
		if dst == nil {
			logging.L().Debug("player: no audio source", "channel", clip.Channel)
			return
		}
		late := math.Max(-ahead, 0)
		if late >= duration {
			return
		}
		rate := clip.Rate()
		src = p.engine.PlayBuffer(res.Buffer, dst.Bus(), signal.PlayOptions{
			At:       p.engine.Now() + units.Ms(math.Max(ahead, 0)),
			Offset:   units.Ms(audioStart + late*rate),
			Duration: units.Ms((duration - late) * rate),
			Rate:     rate,
		})
	}
	play = func(ahead float64) {
		if src != nil || waiting {
			return
		}
		if p.loader == nil {
			return
		}
		if res, ok := p.loader.Get(clip.Resource); ok {
			startSource(res, ahead)
			return
		}
		waiting = true
		requested := p.CurrentMs()
		p.loader.Load(clip.Resource, func(res *resources.Resource, err error) {
			waiting = false
			if err != nil || !p.playing || p.session != session {
				return
			}
			startSource(res, ahead-(p.CurrentMs()-requested))
		})
	}
	p.scheduled.add(&Playable{
		Ref:        clip,
		StartMs:    start,
		DurationMs: duration,
		play:       play,
		stop: func(ahead float64) {
			if src == nil {
				// A pending load must not start after the stop.
				session = -1
				return
			}
			src.Stop(p.engine.Now() + units.Ms(math.Max(ahead, 0)))
		},
	})
}
