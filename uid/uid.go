// Package uid generates process-unique, chronologically sortable identifiers.
//
// A UID is 96 bits: a 64-bit millisecond timestamp in the high bits and a
// 32-bit per-millisecond sequence in the low bits. UIDs tag note voices so a
// keydown and its keyup can be correlated; they are never used as storage keys.
package uid

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// UID is comparable and can be used as a map key. The zero value is never
// returned by a Generator.
type UID struct {
	ts  uint64
	seq uint32
}

// Extract splits a UID back into its timestamp (Unix milliseconds) and sequence.
func Extract(u UID) (timestamp uint64, sequence uint32) {
	return u.ts, u.seq
}

// Make builds a UID from its parts.
func Make(timestamp uint64, sequence uint32) UID {
	return UID{ts: timestamp, seq: sequence}
}

func (u UID) IsZero() bool { return u.ts == 0 && u.seq == 0 }

// Less orders UIDs chronologically.
func (u UID) Less(o UID) bool {
	if u.ts != o.ts {
		return u.ts < o.ts
	}
	return u.seq < o.seq
}

// String renders the 96-bit value as 24 hex digits.
func (u UID) String() string {
	return fmt.Sprintf("%016x%08x", u.ts, u.seq)
}

// Parse is the inverse of String.
func Parse(s string) (UID, error) {
	if len(s) != 24 {
		return UID{}, fmt.Errorf("uid: invalid length %d", len(s))
	}
	ts, err := strconv.ParseUint(s[:16], 16, 64)
	if err != nil {
		return UID{}, fmt.Errorf("uid: timestamp: %w", err)
	}
	seq, err := strconv.ParseUint(s[16:], 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("uid: sequence: %w", err)
	}
	return UID{ts: ts, seq: uint32(seq)}, nil
}

// Generator hands out monotonic UIDs. Safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last uint64
	seq  uint32
}

// NewGenerator returns a generator reading time from now. A nil now uses
// time.Now.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Generate returns the next UID. The timestamp never goes backwards even if
// the wall clock does; the sequence restarts at 0 whenever it advances.
func (g *Generator) Generate() UID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := uint64(g.now().UnixMilli())
	if ts > g.last {
		g.last = ts
		g.seq = 0
	} else if g.seq == ^uint32(0) {
		// sequence space for this millisecond is spent
		g.last++
		g.seq = 0
	}
	u := UID{ts: g.last, seq: g.seq}
	g.seq++
	return u
}

var std = NewGenerator(nil)

// New returns a UID from the process-wide generator.
func New() UID { return std.Generate() }
