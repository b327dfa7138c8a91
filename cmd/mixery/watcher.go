package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chase3718/mixery/internal/logging"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const midiRescanInterval = 1000 * time.Millisecond

// MIDIWatcher keeps a connection to the preferred MIDI input and survives
// hot-plug and hot-unplug.
//
// onMessage runs on the driver's listener goroutine. onDisconnect runs on
// its own goroutine when the active device is lost; callers use it to
// release every held note.
type MIDIWatcher struct {
	mu           sync.Mutex
	drv          drivers.Driver
	preferred    []string
	excluded     []string
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	onMessage    func(midi.Message)
	onDisconnect func()
}

func NewMIDIWatcher(drv drivers.Driver, preferred, excluded []string, onMessage func(midi.Message), onDisconnect func()) *MIDIWatcher {
	return &MIDIWatcher{
		drv:          drv,
		preferred:    preferred,
		excluded:     excluded,
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
	}
}

// Close shuts down the active input. The driver is owned by the caller.
func (m *MIDIWatcher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
}

// Device is the connected input name, empty when disconnected.
func (m *MIDIWatcher) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedName
}

// Tick rescans the inputs at most once per rescan interval. Call it from a
// regular ticker.
func (m *MIDIWatcher) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastRescanAt.IsZero() && now.Sub(m.lastRescanAt) < midiRescanInterval {
		return
	}
	m.lastRescanAt = now

	inputs := m.listInputs()

	if m.connected {
		for _, n := range inputs {
			if n == m.selectedName {
				return
			}
		}
		logging.L().Warn("midi: device disappeared", "device", m.selectedName)
		m.closeConn()
		m.lastRescanAt = time.Time{}
		if m.onDisconnect != nil {
			go m.onDisconnect()
		}
		return
	}

	cand, ok := pickPreferred(inputs, m.preferred)
	if !ok {
		return
	}
	if err := m.openByName(cand); err != nil {
		logging.L().Error("midi: connect failed", "device", cand, "err", err)
	}
}

func (m *MIDIWatcher) listInputs() []string {
	ins, err := m.drv.Ins()
	if err != nil {
		logging.L().Error("midi: list inputs failed", "err", err)
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	names = filterExcluded(names, m.excluded)
	logging.L().Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func (m *MIDIWatcher) closeConn() {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.inPort != nil {
		_ = m.inPort.Close()
		m.inPort = nil
	}
	m.connected = false
	m.selectedName = ""
}

func (m *MIDIWatcher) openByName(name string) error {
	ins, err := m.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		logging.L().Debug("midi: message", "device", name, "msg", msg.String())
		m.onMessage(msg)
	}, midi.HandleError(func(listenErr error) {
		logging.L().Warn("midi: listener error", "device", name, "err", listenErr)
		// closeConn stops the listener, so it cannot run on the listener
		// goroutine.
		go func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.connected && m.selectedName == name {
				m.closeConn()
				m.lastRescanAt = time.Time{}
				if m.onDisconnect != nil {
					go m.onDisconnect()
				}
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	m.inPort = found
	m.stopFn = stop
	m.connected = true
	m.selectedName = name
	logging.L().Info("midi: connected", "device", name)
	return nil
}

func filterExcluded(names, excluded []string) []string {
	out := names[:0:0]
	for _, name := range names {
		skip := false
		for _, pat := range excluded {
			if containsCI(name, pat) {
				skip = true
				break
			}
		}
		if skip {
			logging.L().Debug("midi: device excluded", "device", name)
			continue
		}
		out = append(out, name)
	}
	return out
}

// pickPreferred returns the first device matching a preferred pattern, in
// pattern order, or the only device when there is exactly one.
func pickPreferred(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
