package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/note"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.bug.st/serial"
)

// serialSink writes raw MIDI bytes to a serial line, e.g. a DIN MIDI
// adapter at 31250 baud.
type serialSink struct {
	port io.WriteCloser
	name string
}

func openSerial(device string, baud int) (*serialSink, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("serial: open %s at %d baud", device, baud)))
	}
	logging.L().Info("serial: port opened", "device", device, "baud", baud)
	return &serialSink{port: p, name: device}, nil
}

func (s *serialSink) SendNote(channel uint8, n note.Note) error {
	msg := note.ToMessage(n, channel)
	if _, err := s.port.Write(msg); err != nil {
		return fault.Wrap(err, fmsg.With("serial: write"))
	}
	logging.L().Debug("serial: sent", "device", s.name, "msg", msg.String())
	return nil
}

func (s *serialSink) Close() error {
	logging.L().Info("serial: closing port", "device", s.name)
	return s.port.Close()
}

// midiOut sends to a MIDI output port.
type midiOut struct {
	out  drivers.Out
	send func(midi.Message) error
}

// openMIDIOut opens the first output whose name contains pattern.
func openMIDIOut(drv drivers.Driver, pattern string) (*midiOut, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("midi: list outputs"))
	}
	for _, out := range outs {
		if !containsCI(out.String(), pattern) {
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("midi: open output "+out.String()))
		}
		logging.L().Info("midi: output connected", "device", out.String())
		return &midiOut{out: out, send: send}, nil
	}
	return nil, fault.New(fmt.Sprintf("midi: no output matching %q", pattern))
}

func (m *midiOut) SendNote(channel uint8, n note.Note) error {
	return m.send(note.ToMessage(n, channel))
}

func (m *midiOut) Close() error { return m.out.Close() }

// fanout delivers every note to all senders.
type fanout []nodes.MIDISender

func (f fanout) SendNote(channel uint8, n note.Note) error {
	var errs []error
	for _, s := range f {
		if err := s.SendNote(channel, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
