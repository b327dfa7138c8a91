package signal

import (
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

func TestTimersFireInOrder(t *testing.T) {
	clk := &ManualClock{}
	g := NewGraph(clk)

	var got []int
	g.After(30*time.Millisecond, func() { got = append(got, 3) })
	g.After(10*time.Millisecond, func() { got = append(got, 1) })
	g.After(10*time.Millisecond, func() { got = append(got, 2) })
	canceled := g.After(20*time.Millisecond, func() { got = append(got, 99) })
	canceled.Cancel()
	canceled.Cancel()

	if n := g.Flush(); n != 0 {
		t.Fatalf("nothing due yet, fired %d", n)
	}
	clk.Advance(15 * time.Millisecond)
	g.Flush()
	clk.Advance(20 * time.Millisecond)
	g.Flush()

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if g.PendingTimers() != 0 {
		t.Fatalf("pending = %d", g.PendingTimers())
	}
}

func TestTimerScheduledFromCallbackFiresSameFlush(t *testing.T) {
	clk := &ManualClock{}
	g := NewGraph(clk)
	fired := false
	g.After(0, func() {
		g.After(0, func() { fired = true })
	})
	g.Flush()
	if !fired {
		t.Fatal("nested zero-delay timer should fire in the same flush")
	}
}

func TestConnectDisconnect(t *testing.T) {
	g := NewGraph(&ManualClock{})
	a := g.NewBus("a")
	b := g.NewBus("b")

	if err := a.Connect(b); err != nil {
		t.Fatal(err)
	}
	if err := a.Connect(b); err != nil {
		t.Fatal(err)
	}
	if !g.Connected(a, b) || g.EdgeCount() != 1 {
		t.Fatalf("expected one edge a->b, have %d", g.EdgeCount())
	}
	if err := a.Connect(b.Gain); err != nil {
		t.Fatal(err)
	}
	if err := a.Disconnect(b); err != nil {
		t.Fatal(err)
	}
	if err := a.Disconnect(b); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("second disconnect: %v", err)
	}
	if err := a.Connect(nil); !errors.Is(err, ErrNilSocket) {
		t.Fatalf("nil connect: %v", err)
	}
}

func TestConstantStopIsIdempotent(t *testing.T) {
	clk := &ManualClock{}
	g := NewGraph(clk)
	c := g.NewConstant("teardown", 0)
	c.Connect(g.Destination())

	ended := 0
	c.OnEnded(func() { ended++ })
	c.Start(0)
	c.Stop(50 * time.Millisecond)
	c.Stop(80 * time.Millisecond)

	clk.Set(60 * time.Millisecond)
	g.Flush()
	if ended != 1 {
		t.Fatalf("ended = %d, want 1", ended)
	}
	if g.Connected(c, g.Destination()) {
		t.Fatal("stopped source still connected")
	}
	c.Stop(90 * time.Millisecond)
	clk.Set(100 * time.Millisecond)
	g.Flush()
	if ended != 1 {
		t.Fatalf("ended = %d after late stop, want 1", ended)
	}
}

func TestPlayBufferSlices(t *testing.T) {
	format := beep.Format{SampleRate: 1000, NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	samples := make([][2]float64, 2000)
	buf.Append(&sliceStreamer{s: samples})

	clk := &ManualClock{}
	g := NewGraph(clk)
	p := g.PlayBuffer(buf, g.Destination(), PlayOptions{At: 0, Offset: 500 * time.Millisecond})
	if from, to := p.Frames(); from != 500 || to != 2000 {
		t.Fatalf("frames = [%d,%d)", from, to)
	}
	if p.Stopped() {
		t.Fatal("open-ended playback should not be stopped")
	}

	p = g.PlayBuffer(buf, g.Destination(), PlayOptions{At: 0, Offset: 1900 * time.Millisecond, Duration: time.Second})
	if from, to := p.Frames(); from != 1900 || to != 2000 {
		t.Fatalf("clamped frames = [%d,%d)", from, to)
	}
	if !p.Stopped() || p.StopAt() != time.Second {
		t.Fatalf("stop at %v", p.StopAt())
	}
	p.Stop(0)
	p.Stop(0)
	g.Flush()
	if g.Connected(p, g.Destination()) {
		t.Fatal("playback not torn down")
	}
}

func TestAutomation(t *testing.T) {
	env := Envelope{AttackDelay: 0, AttackDuration: 100, DecayDuration: 200, SustainLevel: 0.5}
	a := env.AttackPhase()
	cases := []struct {
		at   float64
		want float64
	}{
		{0, 0},
		{50, 0.5},
		{100, 1},
		{200, 0.75},
		{300, 0.5},
		{1000, 0.5},
	}
	for _, c := range cases {
		if got := a.Get(c.at); abs(got-c.want) > 1e-9 {
			t.Errorf("Get(%v) = %v, want %v", c.at, got, c.want)
		}
	}

	step := (&Automation{Initial: 1}).Add(Frame{At: 10, Curve: CurveInstant, Value: 2})
	if step.Get(9) != 1 || step.Get(10) != 2 {
		t.Fatalf("instant frame: %v %v", step.Get(9), step.Get(10))
	}
}

func TestParamEvents(t *testing.T) {
	p := NewParam("gain", 1, 0, 2)
	p.SetValueAt(0, 0)
	p.RampTo(1, 10*time.Millisecond)
	p.RampTo(0, 50*time.Millisecond)
	p.CancelFrom(20 * time.Millisecond)
	if ev := p.Events(); len(ev) != 2 || !ev[1].Linear {
		t.Fatalf("events = %+v", ev)
	}
}

type sliceStreamer struct {
	s   [][2]float64
	pos int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.s) {
		return 0, false
	}
	n := copy(samples, s.s[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
