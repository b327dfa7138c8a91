package note

import (
	"fmt"
	"math"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name renders a MIDI index as scientific pitch, e.g. 69 -> A4.
func Name(index int) string {
	if index < 0 {
		return fmt.Sprintf("?\"%d\"", index)
	}
	return fmt.Sprintf("%s%d", noteNames[index%12], (index/12)-1)
}

// A4 reference used by the default temperament.
const (
	A4Index = 69
	A4Freq  = 440.0
)

// Temperament maps a MIDI index to a frequency.
type Temperament interface {
	Frequency(index, a4Index int, a4Freq float64) float64
}

type equal struct{}

func (equal) Frequency(index, a4Index int, a4Freq float64) float64 {
	return math.Pow(2, float64(index-a4Index)/12) * a4Freq
}

// Equal is twelve-tone equal temperament.
var Equal Temperament = equal{}

// Frequency is the equal-tempered frequency of index with A4 = 440 Hz.
func Frequency(index int) float64 {
	return Equal.Frequency(index, A4Index, A4Freq)
}
