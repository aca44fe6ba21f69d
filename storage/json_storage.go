package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const jsonStoreFile = "election_store.json"

// snapshot is the on-disk form of a JSONStore.
type snapshot struct {
	Records map[Key]json.RawMessage `json:"records"`
}

// JSONStore keeps all records in one JSON file that is rewritten on every
// successful Update.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex
	records  map[Key][]byte
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	// Create storage directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	store := &JSONStore{
		basePath: basePath,
		records:  make(map[Key][]byte),
	}
	if err := store.loadFromFile(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return store, nil
}

func (s *JSONStore) View(fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newStagedTx(s.records, true))
}

func (s *JSONStore) Update(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newStagedTx(s.records, false)
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.writes) == 0 {
		return nil
	}

	prior := tx.apply(s.records)
	if err := s.saveToFile(s.records); err != nil {
		revert(s.records, prior)
		return err
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) path() string {
	return filepath.Join(s.basePath, jsonStoreFile)
}

func (s *JSONStore) loadFromFile() error {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}
	for k, v := range snap.Records {
		s.records[k] = v
	}
	return nil
}

func (s *JSONStore) saveToFile(records map[Key][]byte) error {
	snap := snapshot{Records: make(map[Key]json.RawMessage, len(records))}
	for k, v := range records {
		snap.Records[k] = v
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	// Write to temporary file first
	path := s.path()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath) // Clean up temp file if rename fails
		return fmt.Errorf("failed to save store file: %w", err)
	}

	return nil
}
