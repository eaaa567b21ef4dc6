// Package prefs is a small durable key/value store for user preferences such
// as the account list and the history window. Values are JSON documents kept in
// a single bbolt bucket.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("defaults")

// Store wraps an open bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the preferences file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create preferences bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value stored under key into v. It reports false when the key
// has never been set.
func (s *Store) Get(key string, v any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, v)
	})
	if err != nil {
		return false, fmt.Errorf("failed to read preference %q: %w", key, err)
	}
	return found, nil
}

// Set stores v under key.
func (s *Store) Set(key string, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode preference %q: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), enc)
	})
}

// Update runs a read-modify-write of the value under key inside one bbolt
// transaction. fn receives the current value (zero when unset); when fn returns
// an error nothing is written.
func Update[T any](s *Store, key string, fn func(v *T) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var v T
		if raw := b.Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("failed to decode preference %q: %w", key, err)
			}
		}
		if err := fn(&v); err != nil {
			return err
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode preference %q: %w", key, err)
		}
		return b.Put([]byte(key), enc)
	})
}
