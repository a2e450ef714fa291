// Package command implements the thin entry points an end-user request
// drives: createMarker and deleteMarker. Each wraps validation, clock
// access, and the atomic event-log append that materializes into the
// entity view.
package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/icons"
	"github.com/markerstore/marker-node/internal/materializer"
	"github.com/markerstore/marker-node/internal/metrics"
	"github.com/markerstore/marker-node/internal/validation"
)

// ErrIconNotFound is raised when icon_id passes charset/length validation
// but does not name a configured icon.
var ErrIconNotFound = errors.New("icon not found")

// ErrMarkerNotFound is raised by DeleteMarker when the entity does not
// exist.
var ErrMarkerNotFound = errors.New("marker not found")

// ErrAlreadyDeleted is raised by DeleteMarker when the entity is already
// tombstoned.
var ErrAlreadyDeleted = errors.New("marker already deleted")

// Service is the command API: the caller-facing surface that drives
// Clock, EventLog, and EntityView atomically for a single node.
type Service struct {
	nodeID  uint64
	clock   *hlc.Clock
	events  eventlog.Store
	view    entityview.Store
	icons   *icons.Set
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService constructs a command Service. logger may be nil, in which
// case a no-op logger is used.
func NewService(nodeID uint64, clock *hlc.Clock, events eventlog.Store, view entityview.Store, iconSet *icons.Set, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		nodeID:  nodeID,
		clock:   clock,
		events:  events,
		view:    view,
		icons:   iconSet,
		metrics: m,
		logger:  logger,
	}
}

// CreateMarker validates input, stamps an HLC timestamp, appends an
// Upsert event, and materializes it into the entity view. Validation
// failures never reach the clock or the log.
func (s *Service) CreateMarker(lat, lon float64, iconID string, label *string) (eventlog.EventID, error) {
	if err := validation.Latitude(lat); err != nil {
		s.countValidationError("latitude")
		return eventlog.EventID{}, err
	}
	if err := validation.Longitude(lon); err != nil {
		s.countValidationError("longitude")
		return eventlog.EventID{}, err
	}
	if err := validation.IconID(iconID); err != nil {
		s.countValidationError("icon_id")
		return eventlog.EventID{}, err
	}
	if err := validation.Label(label); err != nil {
		s.countValidationError("label")
		return eventlog.EventID{}, err
	}
	if s.icons != nil && !s.icons.Contains(iconID) {
		s.countValidationError("icon_not_found")
		return eventlog.EventID{}, fmt.Errorf("%w: %s", ErrIconNotFound, iconID)
	}

	ts, err := s.clock.Now()
	if err != nil {
		return eventlog.EventID{}, fmt.Errorf("clock error: %w", err)
	}

	entityID := uuid.New()
	payload := eventlog.NewUpsertPayload(lat, lon, iconID, label)
	result, err := s.events.AppendLocal(s.nodeID, entityID, ts, payload)
	if err != nil {
		return eventlog.EventID{}, fmt.Errorf("storage error: %w", err)
	}

	entity := materializer.FromEvent(result.Event)
	if err := s.view.Upsert(entity); err != nil {
		return eventlog.EventID{}, fmt.Errorf("storage error: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsAppended.WithLabelValues("local").Inc()
	}
	s.logger.Info("marker created",
		zap.String("entity_id", entityID.String()),
		zap.Uint64("node_id", s.nodeID),
		zap.Uint64("sequence", result.Sequence))

	return result.Event.ID, nil
}

// DeleteMarker tombstones an existing, not-already-deleted entity.
func (s *Service) DeleteMarker(entityID uuid.UUID) error {
	existing, found, err := s.view.Get(entityID)
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}
	if !found {
		return ErrMarkerNotFound
	}
	if existing.Deleted {
		return ErrAlreadyDeleted
	}

	ts, err := s.clock.Now()
	if err != nil {
		return fmt.Errorf("clock error: %w", err)
	}

	result, err := s.events.AppendLocal(s.nodeID, entityID, ts, eventlog.TombstonePayload())
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}

	entity := materializer.FromEvent(result.Event)
	if err := s.view.Upsert(entity); err != nil {
		return fmt.Errorf("storage error: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsAppended.WithLabelValues("local").Inc()
	}
	s.logger.Info("marker deleted",
		zap.String("entity_id", entityID.String()),
		zap.Uint64("node_id", s.nodeID),
		zap.Uint64("sequence", result.Sequence))

	return nil
}

func (s *Service) countValidationError(reason string) {
	if s.metrics != nil {
		s.metrics.ValidationErrors.WithLabelValues(reason).Inc()
	}
}
