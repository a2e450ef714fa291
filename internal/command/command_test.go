package command

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/icons"
	"github.com/markerstore/marker-node/internal/storage"
	"github.com/markerstore/marker-node/internal/validation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "command.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	events := eventlog.NewBoltStore(db)
	view := entityview.NewBoltStore(db)
	clock := hlc.NewClock(1, time.Minute)
	iconSet := icons.NewSet([]icons.Icon{{ID: "ship", Name: "Ship"}, {ID: "buoy", Name: "Buoy"}})

	return NewService(1, clock, events, view, iconSet, nil, nil)
}

func TestCreateMarker_Success(t *testing.T) {
	svc := newTestService(t)

	id, err := svc.CreateMarker(59.9, 10.7, "ship", nil)
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}
	if id.NodeID != 1 || id.Sequence != 1 {
		t.Errorf("expected event id {1,1}, got %+v", id)
	}

	all, err := svc.view.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(all))
	}
	if all[0].Lat != 59.9 || all[0].Lon != 10.7 {
		t.Errorf("unexpected entity coordinates: %+v", all[0])
	}
}

func TestCreateMarker_RejectsInvalidLatitude(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CreateMarker(91, 10.7, "ship", nil); !errors.Is(err, validation.ErrInvalidLatitude) {
		t.Errorf("expected ErrInvalidLatitude, got %v", err)
	}
}

func TestCreateMarker_RejectsUnknownIcon(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CreateMarker(0, 0, "unknown-icon", nil); !errors.Is(err, ErrIconNotFound) {
		t.Errorf("expected ErrIconNotFound, got %v", err)
	}
}

func TestCreateMarker_ValidationNeverTouchesLog(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CreateMarker(200, 0, "ship", nil); err == nil {
		t.Fatal("expected validation error")
	}
	all, err := svc.view.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no entity created on validation failure, got %d", len(all))
	}
	logged, err := svc.events.GetAllEvents()
	if err != nil {
		t.Fatalf("get all events: %v", err)
	}
	if len(logged) != 0 {
		t.Errorf("expected no event appended on validation failure, got %d", len(logged))
	}
}

func TestDeleteMarker_Success(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.CreateMarker(1, 1, "ship", nil)
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}

	entities, err := svc.view.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	entityID := entities[0].ID
	_ = id

	if err := svc.DeleteMarker(entityID); err != nil {
		t.Fatalf("delete marker: %v", err)
	}

	entity, found, err := svc.view.Get(entityID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected entity to still exist as a tombstone")
	}
	if !entity.Deleted {
		t.Error("expected entity to be marked deleted")
	}
}

func TestDeleteMarker_NotFound(t *testing.T) {
	svc := newTestService(t)
	if err := svc.DeleteMarker(uuid.New()); !errors.Is(err, ErrMarkerNotFound) {
		t.Errorf("expected ErrMarkerNotFound, got %v", err)
	}
}

func TestDeleteMarker_AlreadyDeleted(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateMarker(1, 1, "ship", nil)
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}
	entities, _ := svc.view.GetAll()
	entityID := entities[0].ID

	if err := svc.DeleteMarker(entityID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.DeleteMarker(entityID); !errors.Is(err, ErrAlreadyDeleted) {
		t.Errorf("expected ErrAlreadyDeleted, got %v", err)
	}
}
