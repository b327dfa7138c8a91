package note

import "github.com/chase3718/mixery/uid"

// KeyID identifies a physical key on a controller.
type KeyID struct{ Ch, Key int }

// KeyTracker assigns a fresh voice uid to each hardware note-on and hands it
// back on the matching note-off, so controller input obeys the same uid
// invariants as scheduled notes.
type KeyTracker struct {
	gen  func() uid.UID
	down map[KeyID]uid.UID
}

// NewKeyTracker returns a tracker drawing uids from gen, or uid.New if nil.
func NewKeyTracker(gen func() uid.UID) *KeyTracker {
	if gen == nil {
		gen = uid.New
	}
	return &KeyTracker{gen: gen, down: make(map[KeyID]uid.UID)}
}

// On returns the uid for a note-on. A repeated note-on for a key that is
// already down yields a new uid together with the uid it replaces, which the
// caller should release first.
func (k *KeyTracker) On(ch, key int) (id uid.UID, replaced uid.UID, hadPrev bool) {
	kid := KeyID{ch, key}
	replaced, hadPrev = k.down[kid]
	id = k.gen()
	k.down[kid] = id
	return id, replaced, hadPrev
}

// Off returns the uid of the key being released.
func (k *KeyTracker) Off(ch, key int) (uid.UID, bool) {
	kid := KeyID{ch, key}
	id, ok := k.down[kid]
	if ok {
		delete(k.down, kid)
	}
	return id, ok
}

// ReleaseAll forgets every held key and returns them, used when the device
// disappears.
func (k *KeyTracker) ReleaseAll() map[KeyID]uid.UID {
	out := k.down
	k.down = make(map[KeyID]uid.UID)
	return out
}

func (k *KeyTracker) Held() int { return len(k.down) }
