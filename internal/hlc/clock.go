// Package hlc implements the hybrid logical clock used to stamp every event
// in the log. A timestamp is the triple (wall_time, counter, node_id); the
// total order is lexicographic over that triple, which is why node_id is
// carried on the timestamp itself rather than looked up separately.
package hlc

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrExcessiveDrift is returned by Now when the clock's own last-seen wall
// time has drifted more than MaxDrift ahead of physical time.
var ErrExcessiveDrift = errors.New("hlc: excessive clock drift")

// ErrRemoteClockAhead is returned by Receive when the remote timestamp's
// wall time is more than MaxDrift ahead of physical time.
var ErrRemoteClockAhead = errors.New("hlc: remote clock too far ahead")

// Timestamp is a hybrid logical clock value. Comparisons use Compare /
// Less, never field-by-field equality checks on WallTime alone.
type Timestamp struct {
	WallTime uint64 `json:"wall_time"`
	Counter  uint32 `json:"counter"`
	NodeID   uint64 `json:"node_id"`
}

// NewTimestamp constructs a Timestamp from its three components.
func NewTimestamp(wallTime uint64, counter uint32, nodeID uint64) Timestamp {
	return Timestamp{WallTime: wallTime, Counter: counter, NodeID: nodeID}
}

// Less reports whether t sorts strictly before other under the total HLC
// order: wall_time, then counter, then node_id.
func (t Timestamp) Less(other Timestamp) bool {
	if t.WallTime != other.WallTime {
		return t.WallTime < other.WallTime
	}
	if t.Counter != other.Counter {
		return t.Counter < other.Counter
	}
	return t.NodeID < other.NodeID
}

// Greater reports whether t sorts strictly after other.
func (t Timestamp) Greater(other Timestamp) bool {
	return other.Less(t)
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than
// other. Because node_id breaks every tie, 0 implies t == other exactly.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.Less(other):
		return -1
	case other.Less(t):
		return 1
	default:
		return 0
	}
}

func (t Timestamp) String() string {
	return fmt.Sprintf("HLC(%d,%d,n%d)", t.WallTime, t.Counter, t.NodeID)
}

// Clock is a node-local hybrid logical clock. The zero value is not usable;
// construct with NewClock. Safe for concurrent use.
type Clock struct {
	mu       sync.Mutex
	last     Timestamp
	nodeID   uint64
	maxDrift time.Duration
	wallNow  func() time.Time // overridable for tests
}

// NewClock returns a Clock for nodeID with the given maximum drift bound.
// A maxDrift of zero makes the bound maximally strict: any timestamp even
// one millisecond ahead of physical time is rejected. Callers should pass
// the configured hlc_max_drift_ms.
func NewClock(nodeID uint64, maxDrift time.Duration) *Clock {
	return &Clock{
		nodeID:   nodeID,
		maxDrift: maxDrift,
		wallNow:  time.Now,
	}
}

func (c *Clock) physicalMillis() uint64 {
	return uint64(c.wallNow().UnixMilli())
}

// Now produces the next local timestamp, advancing and returning the
// clock's internal state under a single critical section. It never
// suspends.
func (c *Clock) Now() (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.physicalMillis()
	if c.last.WallTime > p+uint64(c.maxDrift.Milliseconds()) {
		return Timestamp{}, ErrExcessiveDrift
	}

	var next Timestamp
	if p > c.last.WallTime {
		next = Timestamp{WallTime: p, Counter: 0, NodeID: c.nodeID}
	} else {
		next = Timestamp{WallTime: c.last.WallTime, Counter: saturatingIncr(c.last.Counter), NodeID: c.nodeID}
	}

	c.last = next
	return next, nil
}

// Receive folds a remote timestamp into the clock, producing a new local
// timestamp that is strictly greater than both the prior local state and
// remote under the total order. It never suspends.
func (c *Clock) Receive(remote Timestamp) (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.physicalMillis()
	if remote.WallTime > p+uint64(c.maxDrift.Milliseconds()) {
		return Timestamp{}, ErrRemoteClockAhead
	}

	m := maxU64(p, maxU64(c.last.WallTime, remote.WallTime))

	var counter uint32
	switch {
	case m == p && p > c.last.WallTime && p > remote.WallTime:
		counter = 0
	case m == c.last.WallTime && c.last.WallTime == remote.WallTime:
		counter = saturatingIncr(maxU32(c.last.Counter, remote.Counter))
	case m == c.last.WallTime:
		counter = saturatingIncr(c.last.Counter)
	default:
		counter = saturatingIncr(remote.Counter)
	}

	next := Timestamp{WallTime: m, Counter: counter, NodeID: c.nodeID}
	c.last = next
	return next, nil
}

// Last returns the most recently produced timestamp without advancing the
// clock; primarily for diagnostics and tests.
func (c *Clock) Last() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func saturatingIncr(c uint32) uint32 {
	if c == math.MaxUint32 {
		return c
	}
	return c + 1
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
