// Package checkpoint persists last-processed-block cursors per withdrawal
// kind in a small bbolt database.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

var checkpointsBucket = []byte("withdrawal_checkpoints")

// Store is a bbolt-backed checkpoint store. Checkpoints are monotonically
// non-decreasing: writes below the stored value are ignored.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointsBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastProcessedBlock returns the stored cursor for a withdrawal kind.
func (s *Store) LastProcessedBlock(kind withdrawals.CheckpointKind) (uint64, bool, error) {
	var (
		block uint64
		found bool
	)

	if err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(checkpointsBucket).Get([]byte(kind))
		if enc == nil {
			return nil
		}

		block = binary.BigEndian.Uint64(enc)
		found = true

		return nil
	}); err != nil {
		return 0, false, fmt.Errorf("failed to read checkpoint %q: %w", kind, err)
	}

	return block, found, nil
}

// SetLastProcessedBlock advances the cursor for a withdrawal kind. A value
// below the stored cursor is dropped.
func (s *Store) SetLastProcessedBlock(kind withdrawals.CheckpointKind, blockNumber uint64) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(checkpointsBucket)

		if enc := bucket.Get([]byte(kind)); enc != nil && binary.BigEndian.Uint64(enc) > blockNumber {
			return nil
		}

		enc := make([]byte, 8)
		binary.BigEndian.PutUint64(enc, blockNumber)

		return bucket.Put([]byte(kind), enc)
	}); err != nil {
		return fmt.Errorf("failed to store checkpoint %q: %w", kind, err)
	}

	return nil
}
