package player

// Playable is a clip or note scheduled by the player. Play and Stop take
// the offset in ms between now and the moment the event belongs to; it is
// negative when the event is already late.
type Playable struct {
	Ref        any
	StartMs    float64
	DurationMs float64

	play func(aheadMs float64)
	stop func(aheadMs float64)
}

func (p *Playable) EndMs() float64 { return p.StartMs + p.DurationMs }

func (p *Playable) Play(aheadMs float64) {
	if p.play != nil {
		p.play(aheadMs)
	}
}

func (p *Playable) Stop(aheadMs float64) {
	if p.stop != nil {
		p.stop(aheadMs)
	}
}

// queue is an insertion ordered set of playables.
type queue []*Playable

func (q queue) has(p *Playable) bool {
	for _, e := range q {
		if e == p {
			return true
		}
	}
	return false
}

func (q *queue) add(p *Playable) {
	if !q.has(p) {
		*q = append(*q, p)
	}
}

func (q *queue) remove(p *Playable) bool {
	for i, e := range *q {
		if e == p {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}
