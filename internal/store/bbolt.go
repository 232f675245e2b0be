// Package store provides bbolt-based persistence for folio's engine-owned
// metadata: content plans and the append-only change ledger.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the ledger store.
var (
	bucketPlans       = []byte("plans")
	bucketChanges     = []byte("changes")      // plan id bucket -> seq -> record
	bucketChangeIndex = []byte("change_index") // change id -> change ref
	bucketRecordIndex = []byte("record_index") // resource bucket -> record bucket -> created/change -> change ref
)

// Store represents the bbolt database store.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// New opens or creates a bbolt database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize creates all required buckets.
func (s *Store) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketPlans,
			bucketChanges,
			bucketChangeIndex,
			bucketRecordIndex,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}
