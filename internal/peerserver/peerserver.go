// Package peerserver exposes the HTTP endpoint peers pull from: a single
// GET /replication/events route backed by the local event log.
package peerserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/replication"
)

// defaultLimit caps how many events a single pull returns when the caller
// does not specify (or specifies an unreasonable) limit.
const defaultLimit = 1000

// Handler serves replication pull requests against the local event log.
type Handler struct {
	nodeID uint64
	events eventlog.Store
	logger *zap.Logger
}

// NewHandler constructs a Handler. logger may be nil.
func NewHandler(nodeID uint64, events eventlog.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{nodeID: nodeID, events: events, logger: logger}
}

// Routes mounts the handler's endpoints onto a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/events", h.handlePullEvents)
	return r
}

// handlePullEvents serves GET /replication/events?since_seq=N&limit=M. The
// node serves its own local log only; TargetNode in the request is
// informational and not checked against this node's identity, since a
// caller always contacts the node it wants events from directly.
func (h *Handler) handlePullEvents(w http.ResponseWriter, r *http.Request) {
	sinceSeq, err := parseUintParam(r, "since_seq", 0)
	if err != nil {
		http.Error(w, "invalid since_seq", http.StatusBadRequest)
		return
	}
	limit, err := parseUintParam(r, "limit", defaultLimit)
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	if limit == 0 || limit > defaultLimit {
		limit = defaultLimit
	}

	events, err := h.events.GetEventsSince(h.nodeID, sinceSeq)
	if err != nil {
		h.logger.Error("failed to read events since checkpoint", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	hasMore := false
	if uint64(len(events)) > limit {
		events = events[:limit]
		hasMore = true
	}

	response := replication.PullResponse{
		FromNode: h.nodeID,
		Events:   events,
		HasMore:  hasMore,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode pull response", zap.Error(err))
	}
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return value, nil
}
