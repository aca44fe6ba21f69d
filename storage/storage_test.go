package storage

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-backend/models"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func backends(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		BackendMemory: func() Store { return NewMemoryStore() },
		BackendJSON: func() Store {
			s, err := NewJSONStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		BackendBolt: func() Store {
			s, err := NewBoltStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreConformance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			t.Run("CreateGetUpdate", func(t *testing.T) {
				err := s.Update(func(tx Tx) error {
					return tx.Create("a", &record{Name: "a", Count: 1})
				})
				require.NoError(t, err)

				var got record
				require.NoError(t, s.View(func(tx Tx) error { return tx.Get("a", &got) }))
				assert.Equal(t, record{Name: "a", Count: 1}, got)

				require.NoError(t, s.Update(func(tx Tx) error {
					return tx.Update("a", &record{Name: "a", Count: 2})
				}))
				require.NoError(t, s.View(func(tx Tx) error { return tx.Get("a", &got) }))
				assert.Equal(t, 2, got.Count)
			})

			t.Run("CreateTwiceFails", func(t *testing.T) {
				err := s.Update(func(tx Tx) error {
					return tx.Create("a", &record{Name: "dup"})
				})
				require.ErrorIs(t, err, ErrAlreadyExists)
			})

			t.Run("MissingRecord", func(t *testing.T) {
				err := s.View(func(tx Tx) error {
					var r record
					return tx.Get("missing", &r)
				})
				require.ErrorIs(t, err, ErrNotFound)

				err = s.Update(func(tx Tx) error {
					return tx.Update("missing", &record{})
				})
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("FailedUpdateWritesNothing", func(t *testing.T) {
				boom := errors.New("boom")
				err := s.Update(func(tx Tx) error {
					if err := tx.Create("b", &record{Name: "b"}); err != nil {
						return err
					}
					if err := tx.Update("a", &record{Name: "a", Count: 99}); err != nil {
						return err
					}
					return boom
				})
				require.ErrorIs(t, err, boom)

				err = s.View(func(tx Tx) error {
					var r record
					if err := tx.Get("b", &r); !errors.Is(err, ErrNotFound) {
						t.Errorf("staged create leaked: %v", err)
					}
					if err := tx.Get("a", &r); err != nil {
						return err
					}
					assert.Equal(t, 2, r.Count)
					return nil
				})
				require.NoError(t, err)
			})

			t.Run("ReadsSeeOwnWrites", func(t *testing.T) {
				err := s.Update(func(tx Tx) error {
					if err := tx.Create("c", &record{Count: 1}); err != nil {
						return err
					}
					var r record
					if err := tx.Get("c", &r); err != nil {
						return err
					}
					assert.Equal(t, 1, r.Count)
					return tx.Create("c", &record{})
				})
				require.ErrorIs(t, err, ErrAlreadyExists)
			})

			t.Run("ViewIsReadOnly", func(t *testing.T) {
				err := s.View(func(tx Tx) error {
					return tx.Create("d", &record{})
				})
				require.ErrorIs(t, err, ErrReadOnly)
			})
		})
	}
}

func TestJSONStorePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.Create("k", &record{Name: "persisted", Count: 7})
	}))

	reopened, err := NewJSONStore(dir)
	require.NoError(t, err)
	var got record
	require.NoError(t, reopened.View(func(tx Tx) error { return tx.Get("k", &got) }))
	assert.Equal(t, record{Name: "persisted", Count: 7}, got)
}

func TestJSONStoreRevertsFailedSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.Create("kept", &record{Name: "before"})
	}))

	// Without its directory the store cannot write the snapshot.
	require.NoError(t, os.RemoveAll(dir))
	err = s.Update(func(tx Tx) error {
		if err := tx.Update("kept", &record{Name: "after"}); err != nil {
			return err
		}
		return tx.Create("added", &record{Name: "new"})
	})
	require.Error(t, err)

	var got record
	require.NoError(t, s.View(func(tx Tx) error { return tx.Get("kept", &got) }))
	assert.Equal(t, "before", got.Name)
	err = s.View(func(tx Tx) error { return tx.Get("added", &got) })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAppliesWritesInPlace(t *testing.T) {
	s := NewMemoryStore()
	records := reflect.ValueOf(s.records).Pointer()

	for i := 0; i < 100; i++ {
		key := Key(fmt.Sprintf("k%d", i))
		require.NoError(t, s.Update(func(tx Tx) error {
			return tx.Create(key, &record{Count: i})
		}))
	}
	assert.Equal(t, records, reflect.ValueOf(s.records).Pointer())
	assert.Len(t, s.records, 100)

	var got record
	require.NoError(t, s.View(func(tx Tx) error { return tx.Get("k42", &got) }))
	assert.Equal(t, 42, got.Count)
}

func TestApplyAndRevert(t *testing.T) {
	records := map[Key][]byte{"a": []byte(`1`)}
	tx := newStagedTx(records, false)
	require.NoError(t, tx.Update("a", 2))
	require.NoError(t, tx.Create("b", 3))

	prior := tx.apply(records)
	assert.Equal(t, []byte(`2`), records["a"])
	assert.Equal(t, []byte(`3`), records["b"])

	revert(records, prior)
	assert.Equal(t, map[Key][]byte{"a": []byte(`1`)}, records)
}

func TestBoltStorePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.Create("k", &record{Name: "persisted"})
	}))
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	var got record
	require.NoError(t, reopened.View(func(tx Tx) error { return tx.Get("k", &got) }))
	assert.Equal(t, "persisted", got.Name)
}

func TestOpen(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendJSON, BackendBolt} {
		s, err := Open(backend, t.TempDir())
		require.NoError(t, err, backend)
		require.NoError(t, s.Close())
	}
	_, err := Open("redis", "")
	require.Error(t, err)
}

func TestKeySpaceDerivation(t *testing.T) {
	ks := NewKeySpace("program-a")
	var v1, v2 models.Identity
	v1[0], v2[0] = 1, 2

	assert.Equal(t, ks.Voter("e1", v1), ks.Voter("e1", v1))
	assert.NotEqual(t, ks.Voter("e1", v1), ks.Voter("e1", v2))
	assert.NotEqual(t, ks.Voter("e1", v1), ks.Voter("e2", v1))
	assert.NotEqual(t, ks.Voter("e1", v1), NewKeySpace("program-b").Voter("e1", v1))
	assert.NotEqual(t, ks.Election("e1"), ks.Roster("e1"))
	assert.NotEqual(t, ks.AuditBlock("e1", 0), ks.AuditBlock("e1", 1))

	// Length prefixes keep ("ab","c") and ("a","bc") apart.
	assert.NotEqual(t, ks.derive("x", []byte("ab"), []byte("c")), ks.derive("x", []byte("a"), []byte("bc")))

	key := string(ks.Election("e1"))
	assert.True(t, strings.HasPrefix(key, "election/0x"))
	assert.Len(t, key, len("election/0x")+64)
}
