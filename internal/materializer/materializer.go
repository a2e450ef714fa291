// Package materializer projects the append-only event log into current
// entity state under last-write-wins semantics. Every function here is
// pure: no I/O, no locking, deterministic over its inputs.
package materializer

import (
	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/eventlog"
)

// FromEvent builds the Entity a single event implies. Tombstones zero out
// position/icon/label: those fields are undefined once deleted and must
// never be surfaced to a caller.
func FromEvent(event eventlog.Event) entityview.Entity {
	if event.Payload.IsTombstone() {
		return entityview.Entity{
			ID:          event.EntityID,
			HLC:         event.HLC,
			SourceEvent: event.ID,
			Deleted:     true,
		}
	}
	return entityview.Entity{
		ID:          event.EntityID,
		Lat:         event.Payload.Lat,
		Lon:         event.Payload.Lon,
		IconID:      event.Payload.IconID,
		Label:       event.Payload.Label,
		HLC:         event.HLC,
		SourceEvent: event.ID,
		Deleted:     false,
	}
}

// Materialize picks the event with the greatest HLC among events (assumed
// to share one entity_id) and returns the Entity it implies. Returns
// false if events is empty.
func Materialize(events []eventlog.Event) (entityview.Entity, bool) {
	if len(events) == 0 {
		return entityview.Entity{}, false
	}

	best := events[0]
	for _, e := range events[1:] {
		if e.HLC.Greater(best.HLC) {
			best = e
		}
	}
	return FromEvent(best), true
}

// ShouldReplace reports whether incoming should replace existing. Because
// node_id breaks every HLC tie, this is never ambiguous between distinct
// events.
func ShouldReplace(existing entityview.Entity, incoming eventlog.Event) bool {
	return incoming.HLC.Greater(existing.HLC)
}
