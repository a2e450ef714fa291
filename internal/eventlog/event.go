// Package eventlog defines the append-only event representation and the
// durable store that persists it, keyed by (node_id, sequence).
package eventlog

import (
	"github.com/google/uuid"

	"github.com/markerstore/marker-node/internal/hlc"
)

// PayloadType discriminates the two Payload variants. Adding a third is a
// breaking wire-format change and must not be done casually.
type PayloadType string

const (
	PayloadUpsert    PayloadType = "Upsert"
	PayloadTombstone PayloadType = "Tombstone"
)

// Payload is the tagged union carried by every Event. Upsert fields are
// populated only when Type == PayloadUpsert.
type Payload struct {
	Type   PayloadType `json:"type"`
	Lat    float64     `json:"lat"`
	Lon    float64     `json:"lon"`
	IconID string      `json:"icon_id"`
	Label  *string     `json:"label,omitempty"`
}

// NewUpsertPayload builds an Upsert payload.
func NewUpsertPayload(lat, lon float64, iconID string, label *string) Payload {
	return Payload{Type: PayloadUpsert, Lat: lat, Lon: lon, IconID: iconID, Label: label}
}

// TombstonePayload builds a Tombstone payload.
func TombstonePayload() Payload {
	return Payload{Type: PayloadTombstone}
}

// IsTombstone reports whether p is a deletion marker.
func (p Payload) IsTombstone() bool {
	return p.Type == PayloadTombstone
}

// EventID identifies an event by the node that produced it and its
// per-node sequence number. Sequences start at 1 and have no local gaps.
type EventID struct {
	NodeID   uint64 `json:"node_id"`
	Sequence uint64 `json:"sequence"`
}

// Event is an immutable, appended record in the per-node log. Two events
// sharing an EventID must be byte-identical; duplicate detection relies on
// this producer discipline.
type Event struct {
	ID       EventID       `json:"id"`
	EntityID uuid.UUID     `json:"entity_id"`
	HLC      hlc.Timestamp `json:"hlc"`
	Payload  Payload       `json:"payload"`
}

// AppendResult is returned by AppendLocal: the newly constructed event and
// the sequence it was assigned.
type AppendResult struct {
	Event    Event
	Sequence uint64
}
