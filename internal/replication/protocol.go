// Package replication implements pull-based event synchronization between
// nodes: the wire protocol, an HTTP peer client, and the replicator loop
// that drives checkpointed, idempotent catch-up.
package replication

import "github.com/markerstore/marker-node/internal/eventlog"

// PullRequest asks a peer for events produced by TargetNode with sequence
// greater than SinceSeq. Limit is advisory; a peer may return fewer events
// than Limit and still set HasMore.
type PullRequest struct {
	FromNode   uint64 `json:"from_node"`
	TargetNode uint64 `json:"target_node"`
	SinceSeq   uint64 `json:"since_seq"`
	Limit      int    `json:"limit,omitempty"`
}

// PullResponse carries events from TargetNode's log, in sequence order.
type PullResponse struct {
	FromNode uint64           `json:"from_node"`
	Events   []eventlog.Event `json:"events"`
	HasMore  bool             `json:"has_more"`
}
