package signal

import "sort"

type Curve uint8

const (
	CurveInstant Curve = iota
	CurveLinear
)

// Frame is an automation breakpoint; At is in milliseconds.
type Frame struct {
	At    float64
	Curve Curve
	Value float64
}

// Automation evaluates a piecewise curve over time.
type Automation struct {
	Initial float64
	frames  []Frame
}

// Add inserts f keeping frames sorted by time.
func (a *Automation) Add(f Frame) *Automation {
	i := sort.Search(len(a.frames), func(i int) bool { return a.frames[i].At > f.At })
	a.frames = append(a.frames, Frame{})
	copy(a.frames[i+1:], a.frames[i:])
	a.frames[i] = f
	return a
}

// Get returns the value at t milliseconds. A linear frame ramps from the
// previous value; an instant frame holds the previous value until it is
// reached.
func (a *Automation) Get(t float64) float64 {
	prevVal, prevAt := a.Initial, 0.0
	for _, f := range a.frames {
		if t < f.At {
			if f.Curve == CurveInstant {
				return prevVal
			}
			span := f.At - prevAt
			if span <= 0 {
				return f.Value
			}
			return prevVal + (f.Value-prevVal)*(t-prevAt)/span
		}
		prevVal, prevAt = f.Value, f.At
	}
	return prevVal
}

func (a *Automation) Len() int { return len(a.frames) }

// Envelope is the attack/decay/sustain/release shape shared by envelope nodes.
type Envelope struct {
	AttackDelay     float64 // ms
	AttackDuration  float64 // ms
	DecayDuration   float64 // ms
	SustainLevel    float64 // 0-1
	ReleaseDuration float64 // ms
}

// AttackPhase builds the attack and decay part of e starting from silence.
func (e Envelope) AttackPhase() *Automation {
	a := &Automation{}
	a.Add(Frame{At: e.AttackDelay, Curve: CurveInstant, Value: 0})
	a.Add(Frame{At: e.AttackDelay + e.AttackDuration, Curve: CurveLinear, Value: 1})
	a.Add(Frame{At: e.AttackDelay + e.AttackDuration + e.DecayDuration, Curve: CurveLinear, Value: e.SustainLevel})
	return a
}
