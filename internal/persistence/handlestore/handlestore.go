// Package handlestore implements §4.4's directory-handle store: a small
// key-value store for opaque directory capabilities, kept on a genuinely
// different backend/API from the Postgres catalog store because handles
// are non-portable capability tokens some persistence backends will not
// serialize. bbolt (an embedded, single-file, B+tree key-value store) is
// the natural fit — it needs no network round trip and no schema, the
// way the spec's handle store wants to be "small" and separate.
//
// In this Go deployment the "directory handle" is realized as an
// absolute filesystem path (§9, "Scheme for opaque directory handle" —
// "substitute a wrapper over a path string"), so persisting a handle is
// just persisting that path string.
package handlestore

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("directory_handles")

// Store is a bbolt-backed key-value store mapping a folder's
// handle-lookup key to the filesystem path it was opened from.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a bbolt database file at path and
// ensures its single bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open handle store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init handle store bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the path under key, overwriting any prior value.
func (s *Store) Put(_ context.Context, key string, path string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(path))
	})
	if err != nil {
		return fmt.Errorf("put handle %s: %w", key, err)
	}
	return nil
}

// Get retrieves the path stored under key. ok is false if absent.
func (s *Store) Get(_ context.Context, key string) (path string, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			path = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get handle %s: %w", key, err)
	}
	return path, ok, nil
}

// Delete removes key, if present.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete handle %s: %w", key, err)
	}
	return nil
}
