// Package boltstore persists the disk cache's scan bookkeeping in an
// embedded bolt database, so a process restart does not force a full
// directory scan.
package boltstore

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/boltdb/bolt"
)

var bucketName = []byte("stats")

// Store implements cache.StatsStore over a bolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("stats db path is empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// GetInt64 returns the stored value for key. Absent or malformed values
// report ok=false; a stale stats entry only costs an extra scan.
func (s *Store) GetInt64(key string) (int64, bool) {
	var v int64
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if len(raw) != 8 {
			return nil
		}
		v = int64(binary.BigEndian.Uint64(raw)) //nolint:gosec // round-trips SetInt64's encoding
		ok = true
		return nil
	})
	if err != nil {
		return 0, false
	}
	return v, ok
}

// SetInt64 stores the value for key.
func (s *Store) SetInt64(key string, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)) //nolint:gosec // symmetric with GetInt64
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), buf[:])
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
