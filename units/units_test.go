package units

import (
	"math"
	"testing"
	"time"
)

func TestUnitsToMs(t *testing.T) {
	tests := []struct {
		bpm, units, want float64
	}{
		{120, 96, 500},
		{120, 0, 0},
		{60, 96, 1000},
		{140, 384, 60_000 * 4 / 140.0},
	}
	for _, tt := range tests {
		if got := UnitsToMs(tt.bpm, tt.units); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("UnitsToMs(%v, %v) = %v, want %v", tt.bpm, tt.units, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, bpm := range []float64{1, 60, 97.5, 120, 200} {
		for _, u := range []float64{0, 1, 48, 96, 1000, 12345} {
			got := MsToUnits(bpm, UnitsToMs(bpm, u))
			if math.Abs(got-u) > 1e-9 {
				t.Errorf("bpm %v: MsToUnits(UnitsToMs(%v)) = %v", bpm, u, got)
			}
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	if got := Ms(1.5); got != 1500*time.Microsecond {
		t.Errorf("Ms(1.5) = %v", got)
	}
	if got := ToMs(250 * time.Millisecond); got != 250 {
		t.Errorf("ToMs = %v", got)
	}
}
