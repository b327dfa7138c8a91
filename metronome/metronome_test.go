package metronome

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
)

func newTestMetronome(t *testing.T) (*Metronome, *signal.Graph, *[]note.Note) {
	t.Helper()
	g := signal.NewGraph(&signal.ManualClock{})
	m, err := New(&nodes.Context{Engine: g})
	if err != nil {
		t.Fatal(err)
	}
	var got []note.Note
	m.Node().MidiIn().Listen(func(n note.Note) { got = append(got, n) })
	return m, g, &got
}

func TestPlaceTicks(t *testing.T) {
	m, g, got := newTestMetronome(t)
	if !g.Connected(m.Node().AudioOut().Socket(), g.Destination()) {
		t.Fatal("click voice not wired to the destination")
	}

	if n := m.PlaceTicks(120, 0); n != 0 {
		t.Fatalf("disabled metronome placed %d", n)
	}
	m.Enabled = true

	steps := []struct {
		ms     float64
		placed int
		index  int
		delay  float64
	}{
		{ms: 0, placed: 1, index: MajorIndex, delay: 0},
		{ms: 10, placed: 0},
		{ms: 450, placed: 1, index: MinorIndex, delay: 50},
		{ms: 450, placed: 0},
		{ms: 950, placed: 1, index: MinorIndex, delay: 50},
		{ms: 1450, placed: 1, index: MinorIndex, delay: 50},
		{ms: 1950, placed: 1, index: MajorIndex, delay: 50},
	}
	for _, st := range steps {
		before := len(*got)
		if n := m.PlaceTicks(120, st.ms); n != st.placed {
			t.Fatalf("at %vms placed %d, want %d", st.ms, n, st.placed)
		}
		if st.placed == 0 {
			continue
		}
		ev := (*got)[before]
		if ev.Event != note.KeyDown || ev.Index != st.index || ev.Velocity != ClickVelocity {
			t.Fatalf("at %vms got %v", st.ms, ev)
		}
		if ev.Signal != note.Delayed || ev.DelayMs != st.delay {
			t.Fatalf("at %vms delay = %v, want %v", st.ms, ev.DelayMs, st.delay)
		}
	}
	if m.Node().Plucks() != 5 {
		t.Fatalf("plucks = %d", m.Node().Plucks())
	}
}

func TestClearReplaces(t *testing.T) {
	m, _, got := newTestMetronome(t)
	m.Enabled = true
	m.PlaceTicks(120, 450)
	if len(*got) != 2 {
		t.Fatalf("placed %d", len(*got))
	}
	if (*got)[0].Delay() != 0 {
		t.Fatal("late click should play immediately")
	}
	m.Clear()
	if n := m.PlaceTicks(120, 450); n != 2 {
		t.Fatalf("after clear placed %d", n)
	}
}

func TestIsMajor(t *testing.T) {
	m, _, _ := newTestMetronome(t)
	tests := []struct {
		bar  int
		unit int
		want bool
	}{
		{4, 0, true},
		{4, 96, false},
		{4, 384, true},
		{4, 400, true},
		{3, 288, true},
		{3, 384, false},
		{0, 384, true},
	}
	for _, tt := range tests {
		m.BeatsPerBar = tt.bar
		if got := m.IsMajor(tt.unit); got != tt.want {
			t.Errorf("IsMajor(%d) with %d beats = %v", tt.unit, tt.bar, got)
		}
	}
}

func TestDivision(t *testing.T) {
	m, _, got := newTestMetronome(t)
	m.Enabled = true
	m.Division = 48
	m.BufferMs = 500
	// 120 bpm: 500ms is one beat, so lines at 0 and 48 fall inside.
	if n := m.PlaceTicks(120, 0); n != 2 {
		t.Fatalf("placed %d", n)
	}
	if (*got)[1].DelayMs != 250 {
		t.Fatalf("half beat delay = %v", (*got)[1].DelayMs)
	}
}

func TestDestroy(t *testing.T) {
	m, g, _ := newTestMetronome(t)
	m.Destroy()
	if g.Connected(m.Node().AudioOut().Socket(), g.Destination()) {
		t.Fatal("still connected")
	}
}

func TestClickFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logging.Set(slog.New(slog.NewTextHandler(&buf, nil)))
	defer logging.Set(nil)

	m, _, _ := newTestMetronome(t)
	m.Enabled = true
	m.Destroy()
	if n := m.PlaceTicks(120, 0); n != 0 {
		t.Fatalf("placed %d clicks on a destroyed voice", n)
	}
	out := buf.String()
	if !strings.Contains(out, "metronome: click failed") || !strings.Contains(out, "is destroyed") {
		t.Fatalf("log = %q", out)
	}
}
