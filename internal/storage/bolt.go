package storage

import (
	"github.com/boltdb/bolt"
)

var boltBucket = []byte("default")

// BoltStore implements Store on a memory-mapped bolt B+tree file.
//
// bolt allows one writer and many concurrent readers; every Insert and
// Remove is its own read-write transaction.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBolt opens or creates "<root>.bolt".
func OpenBolt(root string, cfg BoltConfig) (*BoltStore, error) {
	path := ArtifactPath(root, BackendBolt)
	if err := ensureParent(path); err != nil {
		return nil, wrapErr(BackendBolt, "open", path, err)
	}

	if cfg.MapSize <= 0 {
		cfg.MapSize = DefaultBoltConfig().MapSize
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         cfg.Timeout,
		InitialMmapSize: cfg.MapSize,
	})
	if err != nil {
		return nil, wrapErr(BackendBolt, "open", path, err)
	}
	db.NoSync = cfg.NoSync

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapErr(BackendBolt, "open", path, err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Insert stores value under key.
func (s *BoltStore) Insert(key string, value []byte) error {
	if err := checkKey(BackendBolt, "insert", s.path, key); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
	return wrapErr(BackendBolt, "insert", s.path, err)
}

// Get returns a copy of the value; bolt memory is only valid inside the tx.
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get([]byte(key)); v != nil {
			value = append(make([]byte, 0, len(v)), v...)
			ok = true
		}
		return nil
	})
	if err != nil {
		return nil, false, wrapErr(BackendBolt, "get", s.path, err)
	}
	return value, ok, nil
}

// Exists checks the key without copying the value.
func (s *BoltStore) Exists(key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(boltBucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, wrapErr(BackendBolt, "exists", s.path, err)
}

// Remove deletes key.
func (s *BoltStore) Remove(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	return wrapErr(BackendBolt, "remove", s.path, err)
}

// List returns all entries in key order.
func (s *BoltStore) List() ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			entries = append(entries, Entry{
				Key:   string(k),
				Value: append(make([]byte, 0, len(v)), v...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(BackendBolt, "list", s.path, err)
	}
	return entries, nil
}

// Keys returns all keys in key order.
func (s *BoltStore) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(BackendBolt, "keys", s.path, err)
	}
	return keys, nil
}

// Path returns the bolt file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	return wrapErr(BackendBolt, "close", s.path, s.db.Close())
}
