// Package config holds the runtime settings of the mixery command.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug     bool      `yaml:"debug"`
	Player    Player    `yaml:"player"`
	Project   Project   `yaml:"project"`
	Metronome Metronome `yaml:"metronome"`
	MIDI      MIDI      `yaml:"midi"`
	Serial    Serial    `yaml:"serial"`
	Resources Resources `yaml:"resources"`
}

type Player struct {
	Quality int     `yaml:"quality"`  // ticks per second
	AheadMs float64 `yaml:"ahead_ms"` // lookahead window
}

type Project struct {
	BPM float64 `yaml:"bpm"`
}

type Metronome struct {
	Enabled       bool    `yaml:"enabled"`
	BeatsPerBar   int     `yaml:"beats_per_bar"`
	DivisionUnits int     `yaml:"division_units"`
	BufferMs      float64 `yaml:"buffer_ms"`
}

type MIDI struct {
	// Preferred input devices, matched case-insensitively as substrings.
	Preferred []string `yaml:"preferred"`
	// Excluded devices are never opened, typically virtual ports.
	Excluded []string `yaml:"excluded"`
	// Channel restricts live input to one channel, 0-15. -1 accepts all.
	Channel int `yaml:"channel"`
	// InputChannelName is the notes source channel live input plays into.
	InputChannelName string `yaml:"input_channel_name"`
	// Output device pattern; empty disables MIDI out.
	Output string `yaml:"output"`
}

type Serial struct {
	Device string `yaml:"device"` // empty disables the serial sink
	Baud   int    `yaml:"baud"`
}

type Resources struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Player:  Player{Quality: 1000, AheadMs: 10},
		Project: Project{BPM: 120},
		Metronome: Metronome{
			BeatsPerBar:   4,
			DivisionUnits: 96,
			BufferMs:      100,
		},
		MIDI: MIDI{
			Preferred:        []string{"Launchkey", "Novation"},
			Excluded:         []string{"Midi Through", "Through Port", "Dummy"},
			Channel:          -1,
			InputChannelName: "Default Channel",
		},
		Serial:    Serial{Baud: 31250},
		Resources: Resources{Dir: "resources"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fault.Wrap(err, fmsg.With("config: read "+path))
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fault.Wrap(err, fmsg.With("config: decode"), ftag.With(ftag.InvalidArgument))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func invalid(msg string) error {
	return fault.Wrap(fault.New("config: "+msg), ftag.With(ftag.InvalidArgument))
}

func (c Config) Validate() error {
	switch {
	case c.Player.Quality <= 0:
		return invalid("player.quality must be positive")
	case c.Player.AheadMs < 0:
		return invalid("player.ahead_ms must not be negative")
	case c.Project.BPM <= 0:
		return invalid("project.bpm must be positive")
	case c.Metronome.BeatsPerBar <= 0:
		return invalid("metronome.beats_per_bar must be positive")
	case c.Metronome.DivisionUnits <= 0:
		return invalid("metronome.division_units must be positive")
	case c.Metronome.BufferMs < 0:
		return invalid("metronome.buffer_ms must not be negative")
	case c.MIDI.Channel < -1 || c.MIDI.Channel > 15:
		return invalid("midi.channel must be -1 or within 0-15")
	case c.Serial.Baud <= 0:
		return invalid("serial.baud must be positive")
	}
	return nil
}
