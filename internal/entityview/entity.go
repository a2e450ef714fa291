// Package entityview holds the current materialized state keyed by entity
// identifier, guarded by a last-write-wins check independent of any
// upstream check the caller already performed.
package entityview

import (
	"github.com/google/uuid"

	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
)

// Entity is the current materialized state of one marker. A deleted
// Entity is a tombstone, never a removed row: late upserts older than the
// tombstone's HLC must not resurrect it.
type Entity struct {
	ID          uuid.UUID        `json:"id"`
	Lat         float64          `json:"lat"`
	Lon         float64          `json:"lon"`
	IconID      string           `json:"icon_id"`
	Label       *string          `json:"label,omitempty"`
	HLC         hlc.Timestamp    `json:"hlc"`
	SourceEvent eventlog.EventID `json:"source_event"`
	Deleted     bool             `json:"deleted"`
}
