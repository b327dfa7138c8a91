package nodes

import (
	"math"
	"strconv"
)

// Params is a node's saved parameter payload.
type Params map[string]any

// Float reads key as a number, accepting every numeric type a decoder
// might produce.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type ControlKind uint8

const (
	ControlNumber ControlKind = iota
	ControlText
)

// Control is a named, bounded tunable of a node.
type Control struct {
	Key      string
	Label    string
	Kind     ControlKind
	Min, Max float64

	number float64
	text   string

	// OnChange runs after every successful Set.
	OnChange func(*Control)
}

func NumberControl(key, label string, min, max, value float64, onChange func(*Control)) *Control {
	c := &Control{Key: key, Label: label, Kind: ControlNumber, Min: min, Max: max, OnChange: onChange}
	c.number = c.clamp(value)
	return c
}

func TextControl(key, label, value string, onChange func(*Control)) *Control {
	return &Control{Key: key, Label: label, Kind: ControlText, text: value, OnChange: onChange}
}

func (c *Control) Float() float64 { return c.number }
func (c *Control) Text() string   { return c.text }

// SetFloat clamps v into [Min, Max]. NaN is ignored.
func (c *Control) SetFloat(v float64) {
	if c.Kind != ControlNumber || math.IsNaN(v) {
		return
	}
	c.number = c.clamp(v)
	if c.OnChange != nil {
		c.OnChange(c)
	}
}

func (c *Control) SetText(v string) {
	if c.Kind != ControlText {
		return
	}
	c.text = v
	if c.OnChange != nil {
		c.OnChange(c)
	}
}

func (c *Control) clamp(v float64) float64 {
	if c.Max > c.Min {
		v = math.Max(c.Min, math.Min(c.Max, v))
	}
	return v
}

// controlsParams saves every control under its key.
func controlsParams(cs []*Control) Params {
	p := make(Params, len(cs))
	for _, c := range cs {
		if c.Kind == ControlText {
			p[c.Key] = c.text
		} else {
			p[c.Key] = c.number
		}
	}
	return p
}

// applyParams restores saved values through the controls, firing their
// callbacks.
func applyParams(cs []*Control, p Params) {
	for _, c := range cs {
		if _, ok := p[c.Key]; !ok {
			continue
		}
		if c.Kind == ControlText {
			c.SetText(p.String(c.Key, c.text))
		} else {
			c.SetFloat(p.Float(c.Key, c.number))
		}
	}
}
