package replication

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markerstore/marker-node/internal/checkpoint"
	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/materializer"
	"github.com/markerstore/marker-node/internal/metrics"
)

// PeerConfig names a remote node. PullIntervalSecs is carried from
// configuration but not read by the Replicator: Run polls every peer on the
// single interval it is given.
type PeerConfig struct {
	NodeID           uint64
	Endpoint         string
	PullIntervalSecs int
}

// SyncStats summarizes the outcome of one sync_once pass across all peers.
type SyncStats struct {
	EventsReceived  int
	EntitiesUpdated int
	PeersSynced     int
	PeersFailed     int
}

// Replicator pulls events from configured peers, applies them idempotently
// to the local log and entity view, and advances per-peer checkpoints
// through the contiguous prefix it has actually absorbed.
type Replicator struct {
	nodeID      uint64
	events      eventlog.Store
	view        entityview.Store
	checkpoints checkpoint.Store
	clock       *hlc.Clock
	peerClient  PeerClient
	peers       []PeerConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger

	// pullLimit bounds how many events are requested per pull; zero means
	// no limit is sent and the peer decides.
	pullLimit int

	lastSuccessMu sync.Mutex
	lastSuccess   map[uint64]time.Time // peer node id -> last successful sync
}

// NewReplicator constructs a Replicator. logger may be nil.
func NewReplicator(nodeID uint64, events eventlog.Store, view entityview.Store, checkpoints checkpoint.Store, clock *hlc.Clock, peerClient PeerClient, peers []PeerConfig, m *metrics.Metrics, logger *zap.Logger) *Replicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replicator{
		nodeID:      nodeID,
		events:      events,
		view:        view,
		checkpoints: checkpoints,
		clock:       clock,
		peerClient:  peerClient,
		peers:       peers,
		metrics:     m,
		logger:      logger,
		pullLimit:   500,
		lastSuccess: make(map[uint64]time.Time),
	}
}

// SyncOnce pulls from every configured peer once. A single peer's failure
// is logged and counted but never aborts the remaining peers. Cancellation
// is observed at each peer-iteration boundary.
func (r *Replicator) SyncOnce(ctx context.Context) SyncStats {
	var stats SyncStats

	for _, peer := range r.peers {
		if ctx.Err() != nil {
			return stats
		}
		peerStats, err := r.SyncFromPeer(ctx, peer)
		if err != nil {
			stats.PeersFailed++
			r.logger.Warn("sync from peer failed",
				zap.Uint64("peer_node_id", peer.NodeID),
				zap.String("endpoint", peer.Endpoint),
				zap.Error(err))
			if r.metrics != nil {
				r.metrics.ReplicationPullTotal.WithLabelValues(peer.Endpoint, "error").Inc()
			}
			continue
		}
		stats.EventsReceived += peerStats.EventsReceived
		stats.EntitiesUpdated += peerStats.EntitiesUpdated
		stats.PeersSynced++
		r.recordSuccess(peer)
		if r.metrics != nil {
			r.metrics.ReplicationPullTotal.WithLabelValues(peer.Endpoint, "ok").Inc()
		}
	}

	r.reportLag()
	return stats
}

// recordSuccess notes the wall-clock time of a successful sync round
// against peer, the basis for the replication-lag gauge.
func (r *Replicator) recordSuccess(peer PeerConfig) {
	r.lastSuccessMu.Lock()
	defer r.lastSuccessMu.Unlock()
	r.lastSuccess[peer.NodeID] = time.Now()
}

// reportLag updates the replication-lag gauge for every configured peer to
// the time elapsed since that peer's last successful sync; a peer never
// successfully synced reports no lag value rather than a misleading zero.
func (r *Replicator) reportLag() {
	if r.metrics == nil {
		return
	}
	r.lastSuccessMu.Lock()
	defer r.lastSuccessMu.Unlock()
	for _, peer := range r.peers {
		last, ok := r.lastSuccess[peer.NodeID]
		if !ok {
			continue
		}
		r.metrics.ReplicationLag.WithLabelValues(peer.Endpoint).Set(time.Since(last).Seconds())
	}
}

// SyncFromPeer implements one pull/apply/checkpoint round against a single
// peer: load the checkpoint, request events past it, fold each event's HLC
// into the local clock before persisting it, materialize and upsert, then
// advance the checkpoint only through the contiguous run actually absorbed.
// An event whose HLC fails the drift bound is skipped entirely: not
// appended, not counted toward the checkpoint — the peer re-delivers it
// once its clock aligns.
func (r *Replicator) SyncFromPeer(ctx context.Context, peer PeerConfig) (SyncStats, error) {
	var stats SyncStats

	current, err := r.checkpoints.Get(peer.NodeID)
	if err != nil {
		return stats, err
	}

	request := PullRequest{
		FromNode:   r.nodeID,
		TargetNode: peer.NodeID,
		SinceSeq:   current,
		Limit:      r.pullLimit,
	}

	start := time.Now()
	response, err := r.peerClient.PullEvents(ctx, peer.Endpoint, request)
	if r.metrics != nil {
		r.metrics.ReplicationPullLatency.WithLabelValues(peer.Endpoint).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return stats, err
	}

	if len(response.Events) == 0 {
		return stats, nil
	}
	stats.EventsReceived = len(response.Events)

	applied := make([]eventlog.Event, 0, len(response.Events))
	for _, event := range response.Events {
		if _, err := r.clock.Receive(event.HLC); err != nil {
			if r.metrics != nil {
				r.metrics.ClockDriftRejections.WithLabelValues("remote").Inc()
			}
			r.logger.Warn("rejected remote event's HLC timestamp",
				zap.Uint64("peer_node_id", peer.NodeID),
				zap.String("event_hlc", event.HLC.String()),
				zap.Error(err))
			continue
		}

		inserted, err := r.events.Append(event)
		if err != nil {
			return stats, err
		}
		applied = append(applied, event)
		if !inserted {
			continue
		}
		if r.metrics != nil {
			r.metrics.EventsAppended.WithLabelValues("remote").Inc()
		}

		existing, found, err := r.view.Get(event.EntityID)
		if err != nil {
			return stats, err
		}
		if found && !materializer.ShouldReplace(existing, event) {
			if r.metrics != nil {
				r.metrics.ConflictsResolved.Inc()
			}
			continue
		}

		entity := materializer.FromEvent(event)
		if err := r.view.Upsert(entity); err != nil {
			return stats, err
		}
		stats.EntitiesUpdated++
	}

	newCheckpoint := checkpoint.UpdateContiguous(current, peer.NodeID, applied)
	if newCheckpoint != current {
		if err := r.checkpoints.Set(peer.NodeID, newCheckpoint); err != nil {
			return stats, err
		}
	}
	if newCheckpoint < current+uint64(len(response.Events)) && r.metrics != nil {
		r.metrics.CheckpointGapTotal.WithLabelValues(peer.Endpoint).Inc()
	}

	return stats, nil
}

// Run polls every peer on a fixed interval until ctx is canceled.
func (r *Replicator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats := r.SyncOnce(ctx)
		if stats.EventsReceived > 0 {
			r.logger.Info("replication sync completed",
				zap.Int("events_received", stats.EventsReceived),
				zap.Int("entities_updated", stats.EntitiesUpdated),
				zap.Int("peers_synced", stats.PeersSynced),
				zap.Int("peers_failed", stats.PeersFailed))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("replication loop stopped")
			return
		case <-ticker.C:
		}
	}
}
