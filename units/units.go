// Package units converts between tempo-independent timeline units and time.
// 96 units make one beat, so a tempo change only rescales the conversion.
package units

import "time"

// Beat is the number of units in one beat.
const Beat = 96

// UnitsToMs converts units to milliseconds at the given tempo.
func UnitsToMs(bpm, units float64) float64 {
	return 60_000 * units / bpm / Beat
}

// MsToUnits converts milliseconds to units at the given tempo.
func MsToUnits(bpm, ms float64) float64 {
	return ms * bpm * Beat / 60_000
}

// Ms turns a millisecond value into a time.Duration.
func Ms(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// ToMs turns a time.Duration into fractional milliseconds.
func ToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
