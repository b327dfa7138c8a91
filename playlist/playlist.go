// Package playlist is the timeline: tracks of note and audio clips placed
// in tempo-independent units.
package playlist

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/chase3718/mixery/units"
)

type Kind string

const (
	KindNotes Kind = "notes"
	KindAudio Kind = "audio"
)

// ClippedNote is a note inside a notes clip. Start is relative to the clip.
type ClippedNote struct {
	Color        string  `yaml:"color,omitempty"`
	StartAtUnit  int     `yaml:"startAtUnit"`
	DurationUnit int     `yaml:"durationUnit"`
	Index        int     `yaml:"midiIndex"`
	Velocity     float64 `yaml:"velocity"`
}

func (n ClippedNote) EndUnit() int { return n.StartAtUnit + n.DurationUnit }

// Clip is either a notes clip or an audio clip. Channel is matched against
// the channel names of source nodes, not node ids.
type Clip struct {
	Type         Kind   `yaml:"type"`
	Channel      string `yaml:"channel"`
	StartAtUnit  int    `yaml:"startAtUnit"`
	DurationUnit int    `yaml:"durationUnit"`

	Notes []ClippedNote `yaml:"notes,omitempty"`

	Resource         string  `yaml:"resource,omitempty"`
	AudioStartAtUnit int     `yaml:"audioStartAtUnit,omitempty"`
	Stretch          float64 `yaml:"stretch,omitempty"`
}

func NewNotesClip(channel string, start, duration int, notes ...ClippedNote) *Clip {
	return &Clip{Type: KindNotes, Channel: channel, StartAtUnit: start, DurationUnit: duration, Notes: notes}
}

func NewAudioClip(channel, resource string, start, duration int) *Clip {
	return &Clip{Type: KindAudio, Channel: channel, Resource: resource, StartAtUnit: start, DurationUnit: duration, Stretch: 1}
}

func (c *Clip) EndUnit() int { return c.StartAtUnit + c.DurationUnit }

func (c *Clip) StartMs(bpm float64) float64 {
	return units.UnitsToMs(bpm, float64(c.StartAtUnit))
}

func (c *Clip) DurationMs(bpm float64) float64 {
	return units.UnitsToMs(bpm, float64(c.DurationUnit))
}

// Rate is the playback rate of an audio clip. A zero stretch plays at 1.
func (c *Clip) Rate() float64 {
	if c.Stretch <= 0 {
		return 1
	}
	return c.Stretch
}

func (c *Clip) Validate() error {
	switch c.Type {
	case KindNotes, KindAudio:
	default:
		return invalidf("clip: unknown type %q", c.Type)
	}
	if c.StartAtUnit < 0 || c.DurationUnit < 0 {
		return invalidf("clip: negative start %d or duration %d", c.StartAtUnit, c.DurationUnit)
	}
	if c.Type == KindAudio {
		if c.Resource == "" {
			return invalidf("clip: audio clip without resource")
		}
		if c.AudioStartAtUnit < 0 || c.Stretch < 0 {
			return invalidf("clip: negative audio offset %d or stretch %v", c.AudioStartAtUnit, c.Stretch)
		}
		return nil
	}
	for i, n := range c.Notes {
		if n.StartAtUnit < 0 || n.DurationUnit < 0 {
			return invalidf("clip: note %d has negative start %d or duration %d", i, n.StartAtUnit, n.DurationUnit)
		}
		if n.Index < 0 || n.Index > 127 {
			return invalidf("clip: note %d index %d out of range", i, n.Index)
		}
		if n.Velocity < 0 || n.Velocity > 1 {
			return invalidf("clip: note %d velocity %v out of range", i, n.Velocity)
		}
	}
	return nil
}

// Track is one row of the playlist.
type Track struct {
	Name   string  `yaml:"name,omitempty"`
	Color  string  `yaml:"color,omitempty"`
	Height int     `yaml:"height,omitempty"`
	Muted  bool    `yaml:"muted"`
	Clips  []*Clip `yaml:"clips"`
}

const DefaultTrackHeight = 50

func NewTrack(name string) *Track {
	return &Track{Name: name, Height: DefaultTrackHeight}
}

func (t *Track) Add(c *Clip) *Track {
	t.Clips = append(t.Clips, c)
	return t
}

// Remove reports whether c was on the track.
func (t *Track) Remove(c *Clip) bool {
	for i, other := range t.Clips {
		if other == c {
			t.Clips = append(t.Clips[:i], t.Clips[i+1:]...)
			return true
		}
	}
	return false
}

type Playlist struct {
	Tracks []*Track `yaml:"tracks"`
}

func (p *Playlist) AddTrack(t *Track) *Track {
	p.Tracks = append(p.Tracks, t)
	return t
}

// EndUnit is where the last clip ends.
func (p *Playlist) EndUnit() int {
	var end int
	for _, t := range p.Tracks {
		for _, c := range t.Clips {
			if c.EndUnit() > end {
				end = c.EndUnit()
			}
		}
	}
	return end
}

func (p *Playlist) Validate() error {
	for ti, t := range p.Tracks {
		for ci, c := range t.Clips {
			if c == nil {
				return invalidf("playlist: track %d clip %d is empty", ti, ci)
			}
			if err := c.Validate(); err != nil {
				return fault.Wrap(err, fmsg.With(fmt.Sprintf("playlist: track %d clip %d", ti, ci)))
			}
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fault.Wrap(fault.New(fmt.Sprintf(format, args...)), ftag.With(ftag.InvalidArgument))
}
