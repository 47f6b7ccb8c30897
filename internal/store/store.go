// Package store implements the top-level keyspace: a hash table from
// key to Entry, where Entry is a tagged union of the two supported
// value kinds, a kind tag plus exactly one populated payload, so a
// plain string key never pays for an empty sorted set.
package store

import (
	"errors"

	"github.com/edirooss/kvserver/internal/strhash"
	"github.com/edirooss/kvserver/internal/zset"
	"github.com/edirooss/kvserver/pkg/rehash"
)

// ErrBadType is returned when a command expects one value kind but
// the key holds another.
var ErrBadType = errors.New("wrong value kind for key")

// Kind identifies which payload an Entry carries.
type Kind int

const (
	KindString Kind = iota + 1
	KindSortedSet
)

// Entry is one keyspace value. Kind never changes after creation:
// once a key is a string it can never become a sorted set without an
// intervening Delete, and vice versa.
type Entry struct {
	Kind Kind
	Str  string
	ZSet *zset.ZSet
}

// Store is the single-goroutine-owned top-level keyspace.
type Store struct {
	entries *rehash.Map[string, *Entry]
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries: rehash.New[string, *Entry](strhash.String, strhash.Equal),
	}
}

// Len returns the number of keys.
func (s *Store) Len() int {
	return s.entries.Len()
}

// RehashInProgress reports whether the top-level table is mid-migration.
func (s *Store) RehashInProgress() bool {
	return s.entries.RehashInProgress()
}

// Keys returns every key, in unspecified order.
func (s *Store) Keys() []string {
	out := make([]string, 0, s.entries.Len())
	s.entries.ForEach(func(k string, _ *Entry) bool {
		out = append(out, k)
		return true
	})
	return out
}

// GetString returns the string value at key. found is false if the
// key is absent; err is ErrBadType if the key holds a sorted set.
func (s *Store) GetString(key string) (val string, found bool, err error) {
	e, ok := s.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	if e.Kind != KindString {
		return "", false, ErrBadType
	}
	return e.Str, true, nil
}

// SetString creates or overwrites the string value at key.
func (s *Store) SetString(key, val string) error {
	if e, ok := s.entries.Get(key); ok {
		if e.Kind != KindString {
			return ErrBadType
		}
		e.Str = val
		return nil
	}
	s.entries.Set(key, &Entry{Kind: KindString, Str: val})
	return nil
}

// Delete removes key regardless of the kind of value it holds; DEL
// has no type restriction. Reports whether a key was removed.
func (s *Store) Delete(key string) bool {
	return s.entries.Delete(key)
}

// zsetFor returns the sorted set at key, or a fresh, unstored empty
// set if key is absent, so read-only zset commands against a missing
// key see "no members" rather than an error. Returns ErrBadType if
// key holds a string.
func (s *Store) zsetFor(key string) (*zset.ZSet, error) {
	e, ok := s.entries.Get(key)
	if !ok {
		return zset.New(), nil
	}
	if e.Kind != KindSortedSet {
		return nil, ErrBadType
	}
	return e.ZSet, nil
}

// ZAdd upserts member name at score within the sorted set at key,
// creating the set (and the key) if absent. Reports whether name is
// new to the set.
func (s *Store) ZAdd(key, name string, score float64) (added bool, err error) {
	e, ok := s.entries.Get(key)
	if !ok {
		e = &Entry{Kind: KindSortedSet, ZSet: zset.New()}
		s.entries.Set(key, e)
	} else if e.Kind != KindSortedSet {
		return false, ErrBadType
	}
	return e.ZSet.Insert(name, score), nil
}

// ZRem removes member name from the sorted set at key. Reports
// whether it was present; never creates key.
func (s *Store) ZRem(key, name string) (removed bool, err error) {
	z, err := s.zsetFor(key)
	if err != nil {
		return false, err
	}
	return z.Delete(name), nil
}

// ZScore returns the score of member name within key's sorted set.
func (s *Store) ZScore(key, name string) (score float64, found bool, err error) {
	z, err := s.zsetFor(key)
	if err != nil {
		return 0, false, err
	}
	score, found = z.Score(name)
	return score, found, nil
}

// ZQuery runs a range query over key's sorted set.
func (s *Store) ZQuery(key string, score float64, name string, offset, limit int64) ([]zset.Pair, error) {
	z, err := s.zsetFor(key)
	if err != nil {
		return nil, err
	}
	return z.Query(score, name, offset, limit), nil
}
