package note

import (
	"math"
	"testing"
	"time"

	"github.com/chase3718/mixery/uid"
	"gitlab.com/gomidi/midi/v2"
)

func TestVoicesLifecycle(t *testing.T) {
	var v Voices[int]
	u := uid.New()
	other := uid.New()
	started, stopped := 0, 0
	start := func() int { started++; return started }
	stop := func(int) { stopped++ }

	steps := []struct {
		name   string
		n      Note
		effect bool
		active int
	}{
		{"keydown", Down(u, 60, 1), true, 1},
		{"duplicate keydown", Down(u, 60, 1), false, 1},
		{"keyup unknown uid", Up(other, 60, 0), false, 1},
		{"keyup", Up(u, 60, 0), true, 0},
		{"second keyup", Up(u, 60, 0), false, 0},
	}
	for _, s := range steps {
		if got := v.Handle(s.n, start, stop); got != s.effect {
			t.Errorf("%s: effect = %v, want %v", s.name, got, s.effect)
		}
		if v.Len() != s.active {
			t.Errorf("%s: active = %d, want %d", s.name, v.Len(), s.active)
		}
	}
	if started != 1 || stopped != 1 {
		t.Errorf("started=%d stopped=%d, want 1/1", started, stopped)
	}
}

func TestVoicesDrainOrder(t *testing.T) {
	var v Voices[string]
	a, b, c := uid.New(), uid.New(), uid.New()
	v.Press(a, func() string { return "a" })
	v.Press(b, func() string { return "b" })
	v.Press(c, func() string { return "c" })
	v.Release(b)

	got := v.Drain()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Drain = %v, want [a c]", got)
	}
	if v.Len() != 0 {
		t.Errorf("Len after drain = %d", v.Len())
	}
}

func TestNoteDelay(t *testing.T) {
	n := Down(uid.New(), 60, 1)
	if n.Delay() != 0 {
		t.Errorf("instant delay = %v", n.Delay())
	}
	if d := n.After(12.5).Delay(); d != 12500*time.Microsecond {
		t.Errorf("delayed = %v", d)
	}
	if d := n.After(-3).Delay(); d != 0 {
		t.Errorf("late note delay = %v, want 0", d)
	}
}

func TestKeyTracker(t *testing.T) {
	k := NewKeyTracker(nil)
	id, _, had := k.On(0, 60)
	if had {
		t.Fatal("fresh key reported a previous voice")
	}
	id2, prev, had := k.On(0, 60)
	if !had || prev != id || id2 == id {
		t.Errorf("retrigger: id2=%v prev=%v had=%v", id2, prev, had)
	}
	got, ok := k.Off(0, 60)
	if !ok || got != id2 {
		t.Errorf("Off = %v,%v want %v", got, ok, id2)
	}
	if _, ok := k.Off(0, 60); ok {
		t.Error("second Off should miss")
	}
	k.On(1, 40)
	k.On(2, 41)
	if n := len(k.ReleaseAll()); n != 2 || k.Held() != 0 {
		t.Errorf("ReleaseAll = %d, held = %d", n, k.Held())
	}
}

func TestMessageCodec(t *testing.T) {
	keys := NewKeyTracker(nil)

	down, prev, ok := FromMessage(midi.NoteOn(3, 64, 127), keys)
	if !ok || prev != nil || down.Event != KeyDown || down.Index != 64 || down.Velocity != 1 {
		t.Fatalf("note on decoded as %+v ok=%v", down, ok)
	}
	up, _, ok := FromMessage(midi.NoteOff(3, 64), keys)
	if !ok || up.Event != KeyUp || up.UID != down.UID {
		t.Fatalf("note off decoded as %+v ok=%v", up, ok)
	}
	if _, _, ok := FromMessage(midi.NoteOff(3, 64), keys); ok {
		t.Error("stray note off should be dropped")
	}
	if _, _, ok := FromMessage(midi.ControlChange(0, 7, 100), keys); ok {
		t.Error("control change should be ignored")
	}

	var ch, key, vel uint8
	msg := ToMessage(Down(uid.New(), 200, 0), 1)
	if !msg.GetNoteStart(&ch, &key, &vel) || key != 127 || vel != 1 || ch != 1 {
		t.Errorf("ToMessage keydown = %v", msg)
	}
	msg = ToMessage(Up(uid.New(), 60, 0), 2)
	if !msg.GetNoteEnd(&ch, &key) || key != 60 {
		t.Errorf("ToMessage keyup = %v", msg)
	}
}

func TestPitch(t *testing.T) {
	if got := Name(69); got != "A4" {
		t.Errorf("Name(69) = %q", got)
	}
	if got := Name(60); got != "C4" {
		t.Errorf("Name(60) = %q", got)
	}
	if f := Frequency(81); math.Abs(f-880) > 1e-9 {
		t.Errorf("Frequency(81) = %v", f)
	}
}
