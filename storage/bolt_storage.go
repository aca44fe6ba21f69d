package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
)

const boltStoreFile = "election.db"

var recordsBucket = []byte("election-records")

// BoltStore keeps records in a single bbolt bucket. bbolt transactions give
// the all-or-nothing semantics directly.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(basePath string) (*BoltStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(basePath, boltStoreFile), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(fn func(Tx) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltTx{b: tx.Bucket(recordsBucket), readOnly: true})
	})
}

func (s *BoltStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{b: tx.Bucket(recordsBucket)})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	b        *bbolt.Bucket
	readOnly bool
}

func (tx *boltTx) Get(key Key, v interface{}) error {
	raw := tx.b.Get([]byte(key))
	if raw == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (tx *boltTx) Create(key Key, v interface{}) error {
	if tx.b.Get([]byte(key)) != nil {
		return ErrAlreadyExists
	}
	return tx.put(key, v)
}

func (tx *boltTx) Update(key Key, v interface{}) error {
	if tx.b.Get([]byte(key)) == nil {
		return ErrNotFound
	}
	return tx.put(key, v)
}

func (tx *boltTx) put(key Key, v interface{}) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.b.Put([]byte(key), raw)
}
