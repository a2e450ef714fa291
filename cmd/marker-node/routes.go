package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.etcd.io/bbolt"

	"github.com/markerstore/marker-node/internal/checkpoint"
	"github.com/markerstore/marker-node/internal/command"
	"github.com/markerstore/marker-node/internal/validation"
)

// checkpointStore wraps the database's checkpoints bucket; a small
// indirection point so main doesn't need the checkpoint package directly
// wired into its import block twice.
func checkpointStore(db *bbolt.DB) checkpoint.Store {
	return checkpoint.NewBoltStore(db)
}

type createMarkerRequest struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	IconID string  `json:"icon_id"`
	Label  *string `json:"label,omitempty"`
}

type createMarkerResponse struct {
	NodeID   uint64 `json:"node_id"`
	Sequence uint64 `json:"sequence"`
}

// markerRoutes wires the create/delete command surface onto a chi router.
// This is the minimal JSON surface needed to drive the command API from
// outside the process; the full browser-facing marker/event API is out of
// scope here.
func markerRoutes(svc *command.Service, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		var body createMarkerRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		id, err := svc.CreateMarker(body.Lat, body.Lon, body.IconID, body.Label)
		if err != nil {
			writeCommandError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createMarkerResponse{NodeID: id.NodeID, Sequence: id.Sequence})
	})

	r.Delete("/{entityID}", func(w http.ResponseWriter, req *http.Request) {
		entityID, err := uuid.Parse(chi.URLParam(req, "entityID"))
		if err != nil {
			http.Error(w, "invalid entity id", http.StatusBadRequest)
			return
		}

		if err := svc.DeleteMarker(entityID); err != nil {
			writeCommandError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func writeCommandError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidLatitude),
		errors.Is(err, validation.ErrInvalidLongitude),
		errors.Is(err, validation.ErrInvalidIconID),
		errors.Is(err, validation.ErrLabelTooLong),
		errors.Is(err, command.ErrIconNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, command.ErrMarkerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, command.ErrAlreadyDeleted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("command failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
