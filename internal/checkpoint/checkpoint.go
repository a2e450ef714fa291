// Package checkpoint tracks, per peer, the highest sequence number for
// which every event with a lower-or-equal sequence has been durably
// appended locally. Checkpoints mutate only monotonically upward.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/storage"
)

// ErrDatabase wraps any underlying bbolt failure.
var ErrDatabase = errors.New("checkpoint: storage fault")

// Store persists the last contiguously-observed sequence per peer. A
// missing entry denotes zero (never seen).
type Store interface {
	Get(peer uint64) (uint64, error)
	Set(peer uint64, seq uint64) error
	GetAll() (map[uint64]uint64, error)
}

// BoltStore is the bbolt-backed Store implementation.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore wraps an already-open database (see storage.Open).
func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) Get(peer uint64) (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(storage.CheckpointsBucket).Get(storage.EncodeNodeKey(peer))
		if value == nil {
			return nil
		}
		if len(value) != 8 {
			return fmt.Errorf("%w: corrupt checkpoint value for peer %d", ErrDatabase, peer)
		}
		seq = binary.BigEndian.Uint64(value)
		return nil
	})
	return seq, err
}

func (s *BoltStore) Set(peer uint64, seq uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, seq)
		if err := tx.Bucket(storage.CheckpointsBucket).Put(storage.EncodeNodeKey(peer), value); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		return nil
	})
}

// GetAll returns every peer with a recorded checkpoint, for operator
// inspection; the replicator itself only ever looks up one peer at a time.
func (s *BoltStore) GetAll() (map[uint64]uint64, error) {
	out := make(map[uint64]uint64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(storage.CheckpointsBucket).ForEach(func(key, value []byte) error {
			if len(value) != 8 {
				return fmt.Errorf("%w: corrupt checkpoint value", ErrDatabase)
			}
			out[storage.DecodeNodeKey(key)] = binary.BigEndian.Uint64(value)
			return nil
		})
	})
	return out, err
}

// UpdateContiguous is the single most important rule in the replicator: it
// advances current only through a strictly contiguous run of sequences
// from peer, stopping at the first gap. It never advances past a missing
// sequence and is idempotent — applying the same events a second time
// after the first application is a no-op.
func UpdateContiguous(current uint64, peer uint64, events []eventlog.Event) uint64 {
	if len(events) == 0 {
		return current
	}

	var peerSeqs []uint64
	for _, e := range events {
		if e.ID.NodeID == peer {
			peerSeqs = append(peerSeqs, e.ID.Sequence)
		}
	}
	sort.Slice(peerSeqs, func(i, j int) bool { return peerSeqs[i] < peerSeqs[j] })

	newSeq := current
	for _, seq := range peerSeqs {
		switch {
		case seq == newSeq+1:
			newSeq = seq
		case seq > newSeq+1:
			return newSeq
		}
		// seq <= newSeq: already accounted for, skip silently.
	}

	return newSeq
}

// NextExpectedSeq returns the next sequence the replicator should request
// from peer, i.e. the first sequence not yet covered by current.
func NextExpectedSeq(current uint64) uint64 {
	return current + 1
}
