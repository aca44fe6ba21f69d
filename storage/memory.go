package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps records in a map. Update stages its writes and applies
// them only when the callback succeeds.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key][]byte)}
}

func (s *MemoryStore) View(fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newStagedTx(s.records, true))
}

func (s *MemoryStore) Update(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newStagedTx(s.records, false)
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply(s.records)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// stagedTx reads through pending writes to a base map that it never
// modifies.
type stagedTx struct {
	base     map[Key][]byte
	writes   map[Key][]byte
	readOnly bool
}

func newStagedTx(base map[Key][]byte, readOnly bool) *stagedTx {
	return &stagedTx{base: base, writes: make(map[Key][]byte), readOnly: readOnly}
}

func (tx *stagedTx) lookup(key Key) ([]byte, bool) {
	if v, ok := tx.writes[key]; ok {
		return v, true
	}
	v, ok := tx.base[key]
	return v, ok
}

func (tx *stagedTx) Get(key Key, v interface{}) error {
	raw, ok := tx.lookup(key)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (tx *stagedTx) Create(key Key, v interface{}) error {
	if _, ok := tx.lookup(key); ok {
		return ErrAlreadyExists
	}
	return tx.put(key, v)
}

func (tx *stagedTx) Update(key Key, v interface{}) error {
	if _, ok := tx.lookup(key); !ok {
		return ErrNotFound
	}
	return tx.put(key, v)
}

func (tx *stagedTx) put(key Key, v interface{}) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	tx.writes[key] = raw
	return nil
}

// priorValue is what a key held before apply overwrote it.
type priorValue struct {
	value   []byte
	existed bool
}

// apply writes the staged records into records and returns what they
// replaced, for revert. The caller holds the store's write lock.
func (tx *stagedTx) apply(records map[Key][]byte) map[Key]priorValue {
	prior := make(map[Key]priorValue, len(tx.writes))
	for k, v := range tx.writes {
		old, ok := records[k]
		prior[k] = priorValue{value: old, existed: ok}
		records[k] = v
	}
	return prior
}

// revert undoes apply.
func revert(records map[Key][]byte, prior map[Key]priorValue) {
	for k, p := range prior {
		if p.existed {
			records[k] = p.value
		} else {
			delete(records, k)
		}
	}
}
