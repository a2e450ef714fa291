package eventlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/storage"
)

// ErrDatabase wraps any underlying bbolt/serialization failure.
var ErrDatabase = errors.New("eventlog: storage fault")

// ErrEventIDCollision is returned by Append when an event arrives bearing
// an EventID already present in the log with different bytes. Producer
// discipline guarantees identical EventIDs carry identical events; seeing
// otherwise means two hosts are misconfigured with the same node_id.
var ErrEventIDCollision = errors.New("eventlog: event id collision with differing event bytes")

// Store is the append-only, duplicate-safe persistence contract for
// events. NextSequence is advisory only; AppendLocal is the sole safe path
// for producing a local event.
type Store interface {
	Append(event Event) (bool, error)
	AppendLocal(nodeID uint64, entityID uuid.UUID, ts hlc.Timestamp, payload Payload) (AppendResult, error)
	GetEventsForEntity(entityID uuid.UUID) ([]Event, error)
	GetEventsSince(nodeID uint64, sinceSeq uint64) ([]Event, error)
	GetAllEvents() ([]Event, error)
	NextSequence(nodeID uint64) (uint64, error)
}

// BoltStore is the bbolt-backed Store implementation. A single database
// transaction covers each operation, which is what makes AppendLocal's
// reserve-seq/persist/advance-watermark sequence indivisible.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore wraps an already-open database (see storage.Open).
func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) Append(event Event) (bool, error) {
	inserted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(storage.EventsBucket)
		key := storage.EncodeEventKey(event.ID.NodeID, event.ID.Sequence)

		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if existing := events.Get(key); existing != nil {
			if !bytes.Equal(existing, value) {
				return fmt.Errorf("%w: node=%d sequence=%d", ErrEventIDCollision, event.ID.NodeID, event.ID.Sequence)
			}
			return nil
		}

		if err := events.Put(key, value); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if err := bumpWatermark(tx, event.ID.NodeID, event.ID.Sequence); err != nil {
			return err
		}

		inserted = true
		return nil
	})
	return inserted, err
}

func (s *BoltStore) AppendLocal(nodeID uint64, entityID uuid.UUID, ts hlc.Timestamp, payload Payload) (AppendResult, error) {
	var result AppendResult
	err := s.db.Update(func(tx *bbolt.Tx) error {
		sequences := tx.Bucket(storage.SequencesBucket)
		nodeKey := storage.EncodeNodeKey(nodeID)

		current := decodeSeq(sequences.Get(nodeKey))
		sequence := current + 1

		event := Event{
			ID:       EventID{NodeID: nodeID, Sequence: sequence},
			EntityID: entityID,
			HLC:      ts,
			Payload:  payload,
		}

		events := tx.Bucket(storage.EventsBucket)
		key := storage.EncodeEventKey(nodeID, sequence)
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		if err := events.Put(key, value); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		if err := sequences.Put(nodeKey, encodeSeq(sequence)); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		result = AppendResult{Event: event, Sequence: sequence}
		return nil
	})
	return result, err
}

func (s *BoltStore) GetEventsForEntity(entityID uuid.UUID) ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(storage.EventsBucket).ForEach(func(_, value []byte) error {
			var event Event
			if err := json.Unmarshal(value, &event); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			if event.EntityID == entityID {
				out = append(out, event)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) GetEventsSince(nodeID uint64, sinceSeq uint64) ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(storage.EventsBucket).Cursor()
		start := storage.EncodeEventKey(nodeID, sinceSeq+1)
		end := storage.EncodeEventKey(nodeID+1, 0)

		for k, v := c.Seek(start); k != nil && bytes.Compare(k, end) < 0; k, v = c.Next() {
			var event Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			out = append(out, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Sequence < out[j].ID.Sequence })
	return out, nil
}

func (s *BoltStore) GetAllEvents() ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(storage.EventsBucket).ForEach(func(_, value []byte) error {
			var event Event
			if err := json.Unmarshal(value, &event); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			out = append(out, event)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) NextSequence(nodeID uint64) (uint64, error) {
	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		current := decodeSeq(tx.Bucket(storage.SequencesBucket).Get(storage.EncodeNodeKey(nodeID)))
		next = current + 1
		return nil
	})
	return next, err
}

func bumpWatermark(tx *bbolt.Tx, nodeID, sequence uint64) error {
	sequences := tx.Bucket(storage.SequencesBucket)
	nodeKey := storage.EncodeNodeKey(nodeID)
	current := decodeSeq(sequences.Get(nodeKey))
	if sequence > current {
		if err := sequences.Put(nodeKey, encodeSeq(sequence)); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}
	return nil
}

func decodeSeq(value []byte) uint64 {
	if len(value) != 8 {
		return 0
	}
	return storage.DecodeNodeKey(value)
}

func encodeSeq(seq uint64) []byte {
	return storage.EncodeNodeKey(seq)
}
