package entityview

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/markerstore/marker-node/internal/storage"
)

// ErrDatabase wraps any underlying bbolt/serialization failure.
var ErrDatabase = errors.New("entityview: storage fault")

// Store is the current-state view over entities.
type Store interface {
	Get(id uuid.UUID) (Entity, bool, error)
	GetAll() ([]Entity, error)
	Upsert(entity Entity) error
	Delete(id uuid.UUID) (bool, error)
}

// BoltStore is the bbolt-backed Store implementation.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore wraps an already-open database (see storage.Open).
func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) Get(id uuid.UUID) (Entity, bool, error) {
	var entity Entity
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(storage.EntitiesBucket).Get(id[:])
		if value == nil {
			return nil
		}
		if err := json.Unmarshal(value, &entity); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		found = true
		return nil
	})
	return entity, found, err
}

func (s *BoltStore) GetAll() ([]Entity, error) {
	var out []Entity
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(storage.EntitiesBucket).ForEach(func(_, value []byte) error {
			var entity Entity
			if err := json.Unmarshal(value, &entity); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			out = append(out, entity)
			return nil
		})
	})
	return out, err
}

// Upsert is a no-op when an existing entity has an HLC greater than or
// equal to the incoming one. This guard is mandatory and independent of
// any Materializer-side check a caller already performed: the two
// together are defense in depth against out-of-order delivery.
func (s *BoltStore) Upsert(entity Entity) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(storage.EntitiesBucket)
		key := entity.ID[:]

		if existing := bucket.Get(key); existing != nil {
			var current Entity
			if err := json.Unmarshal(existing, &current); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			if current.HLC.Compare(entity.HLC) >= 0 {
				return nil
			}
		}

		value, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		if err := bucket.Put(key, value); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		return nil
	})
}

// Delete is present for administrative use only; the normal deletion path
// is tombstoning through the command API's DeleteMarker.
func (s *BoltStore) Delete(id uuid.UUID) (bool, error) {
	existed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(storage.EntitiesBucket)
		key := id[:]
		if bucket.Get(key) != nil {
			existed = true
		}
		if err := bucket.Delete(key); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		return nil
	})
	return existed, err
}
