package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"

	"election-backend/models"
)

var (
	ErrNotFound      = errors.New("storage: record not found")
	ErrAlreadyExists = errors.New("storage: record already exists")
	ErrReadOnly      = errors.New("storage: write in read-only transaction")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendBolt   = "bolt"
)

// Open returns the store for backend rooted at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendJSON:
		s, err := NewJSONStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBolt:
		s, err := NewBoltStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Key addresses one record. Keys are derived, never built from raw input.
type Key string

// Tx reads and writes records inside one atomic unit. Values are encoded as
// JSON.
type Tx interface {
	// Get decodes the record at key into v or returns ErrNotFound.
	Get(key Key, v interface{}) error
	// Create stores v at key and returns ErrAlreadyExists if the slot is taken.
	Create(key Key, v interface{}) error
	// Update overwrites an existing record and returns ErrNotFound otherwise.
	Update(key Key, v interface{}) error
}

// Store runs transactions. Writes of an Update become visible together when
// fn returns nil and are discarded otherwise.
type Store interface {
	View(fn func(Tx) error) error
	Update(fn func(Tx) error) error
	Close() error
}

// KeySpace derives record keys for one deployment. The namespace keeps two
// deployments sharing a store apart.
type KeySpace struct {
	namespace string
}

func NewKeySpace(namespace string) KeySpace {
	return KeySpace{namespace: namespace}
}

func (ks KeySpace) Election(electionID string) Key {
	return ks.derive("election", []byte(electionID))
}

// Voter is the slot of one identity within an election. It depends on the
// identity alone, so an identity has at most one record.
func (ks KeySpace) Voter(electionID string, voter models.Identity) Key {
	return ks.derive("voter", []byte(electionID), voter[:])
}

func (ks KeySpace) Roster(electionID string) Key {
	return ks.derive("roster", []byte(electionID))
}

func (ks KeySpace) AuditHead(electionID string) Key {
	return ks.derive("audit", []byte(electionID))
}

func (ks KeySpace) AuditBlock(electionID string, index uint64) Key {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return ks.derive("block", []byte(electionID), idx[:])
}

// derive hashes the length-prefixed seeds with Keccak-256.
func (ks KeySpace) derive(kind string, seeds ...[]byte) Key {
	d := sha3.NewLegacyKeccak256()
	writeSeed(d, []byte(ks.namespace))
	writeSeed(d, []byte(kind))
	for _, s := range seeds {
		writeSeed(d, s)
	}
	return Key(kind + "/" + hexutil.Encode(d.Sum(nil)))
}

func writeSeed(w io.Writer, seed []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(seed)))
	w.Write(n[:])
	w.Write(seed)
}
