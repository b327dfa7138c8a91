package note

import "github.com/chase3718/mixery/uid"

// Voices tracks the playing voices of a node, keyed by note uid. A keydown for
// an already active uid and a keyup for an inactive one are both ignored.
// The zero value is ready to use.
type Voices[T any] struct {
	active map[uid.UID]T
	order  []uid.UID
}

// Press starts a voice for id, building it with start. It reports false, and
// does not call start, when id is already active.
func (v *Voices[T]) Press(id uid.UID, start func() T) (T, bool) {
	if _, ok := v.active[id]; ok {
		var zero T
		return zero, false
	}
	if v.active == nil {
		v.active = make(map[uid.UID]T)
	}
	voice := start()
	v.active[id] = voice
	v.order = append(v.order, id)
	return voice, true
}

// Release removes and returns the voice for id.
func (v *Voices[T]) Release(id uid.UID) (T, bool) {
	voice, ok := v.active[id]
	if !ok {
		return voice, false
	}
	delete(v.active, id)
	for i, o := range v.order {
		if o == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return voice, true
}

func (v *Voices[T]) Get(id uid.UID) (T, bool) {
	voice, ok := v.active[id]
	return voice, ok
}

func (v *Voices[T]) Active(id uid.UID) bool {
	_, ok := v.active[id]
	return ok
}

func (v *Voices[T]) Len() int { return len(v.active) }

// Drain releases every voice, oldest first.
func (v *Voices[T]) Drain() []T {
	out := make([]T, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.active[id])
	}
	v.active = nil
	v.order = nil
	return out
}

// Handle applies the voice invariants to n: start is called for a fresh
// keydown, stop for the keyup of an active voice. It reports whether n had
// any effect.
func (v *Voices[T]) Handle(n Note, start func() T, stop func(T)) bool {
	switch n.Event {
	case KeyDown:
		_, ok := v.Press(n.UID, start)
		return ok
	case KeyUp:
		voice, ok := v.Release(n.UID)
		if ok && stop != nil {
			stop(voice)
		}
		return ok
	}
	return false
}
