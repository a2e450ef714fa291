// Package storage owns the single bbolt database shared by the event log,
// entity view, and checkpoint store, and the byte-key encoding contract
// between them. Keeping one *bbolt.DB per node matches the original
// single-file embedded B-tree design: one handle, four buckets, one set of
// ACID transaction boundaries.
package storage

import (
	"encoding/binary"

	"go.etcd.io/bbolt"
)

var (
	EventsBucket      = []byte("events")
	EntitiesBucket    = []byte("entities")
	CheckpointsBucket = []byte("checkpoints")
	SequencesBucket   = []byte("sequences")
)

// Open creates or opens the bbolt database at path and ensures all four
// buckets exist.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{EventsBucket, EntitiesBucket, CheckpointsBucket, SequencesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EncodeEventKey produces the 16-byte big-endian (node_id || sequence) key.
// Lexicographic ordering of this key equals numeric ordering of the pair,
// so a range scan answers getEventsSince in one pass.
func EncodeEventKey(nodeID, sequence uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], nodeID)
	binary.BigEndian.PutUint64(key[8:], sequence)
	return key
}

// DecodeEventKey reverses EncodeEventKey.
func DecodeEventKey(key []byte) (nodeID, sequence uint64) {
	nodeID = binary.BigEndian.Uint64(key[:8])
	sequence = binary.BigEndian.Uint64(key[8:])
	return
}

// EncodeNodeKey produces the 8-byte big-endian key used for sequence
// high-watermarks and checkpoints, both keyed by a single node id.
func EncodeNodeKey(nodeID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, nodeID)
	return key
}

// DecodeNodeKey reverses EncodeNodeKey.
func DecodeNodeKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
