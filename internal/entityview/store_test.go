package entityview

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/storage"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "entities.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBoltStore(db)
}

func TestBoltStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()
	entity := Entity{
		ID:          id,
		Lat:         59.9,
		Lon:         10.7,
		IconID:      "ship",
		HLC:         hlc.NewTimestamp(1000, 0, 1),
		SourceEvent: eventlog.EventID{NodeID: 1, Sequence: 1},
	}

	if err := store.Upsert(entity); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected entity to be found")
	}
	if got.IconID != "ship" {
		t.Errorf("expected icon ship, got %s", got.IconID)
	}
}

func TestBoltStore_UpsertGuardsAgainstOlderHLC(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()

	newer := Entity{ID: id, IconID: "plane", HLC: hlc.NewTimestamp(2000, 0, 1)}
	older := Entity{ID: id, IconID: "ship", HLC: hlc.NewTimestamp(1000, 0, 1)}

	if err := store.Upsert(newer); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}
	if err := store.Upsert(older); err != nil {
		t.Fatalf("upsert older: %v", err)
	}

	got, _, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IconID != "plane" {
		t.Errorf("expected newer entity to survive, got %s", got.IconID)
	}
}

func TestBoltStore_UpsertEqualHLCIsNoOp(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()
	ts := hlc.NewTimestamp(1000, 0, 1)

	first := Entity{ID: id, IconID: "ship", HLC: ts}
	second := Entity{ID: id, IconID: "plane", HLC: ts}

	if err := store.Upsert(first); err != nil {
		t.Fatalf("upsert first: %v", err)
	}
	if err := store.Upsert(second); err != nil {
		t.Fatalf("upsert second: %v", err)
	}

	got, _, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IconID != "ship" {
		t.Errorf("expected equal-HLC upsert to be a no-op, got %s", got.IconID)
	}
}

func TestBoltStore_TombstoneSurvivesLateUpsert(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()

	tombstone := Entity{ID: id, HLC: hlc.NewTimestamp(1001, 0, 1), Deleted: true}
	lateUpsert := Entity{ID: id, IconID: "ship", HLC: hlc.NewTimestamp(999, 0, 2)}

	if err := store.Upsert(tombstone); err != nil {
		t.Fatalf("upsert tombstone: %v", err)
	}
	if err := store.Upsert(lateUpsert); err != nil {
		t.Fatalf("upsert late upsert: %v", err)
	}

	got, _, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deleted {
		t.Error("expected tombstone to dominate late-arriving upsert")
	}
}

func TestBoltStore_GetAll(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 3; i++ {
		entity := Entity{ID: uuid.New(), HLC: hlc.NewTimestamp(uint64(1000+i), 0, 1)}
		if err := store.Upsert(entity); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	all, err := store.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(all))
	}
}
