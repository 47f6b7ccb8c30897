package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.SetString("k", "v1"))

	v, found, err := s.GetString("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.SetString("k", "v2"))
	v, found, err = s.GetString("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)
}

func TestGetStringAbsent(t *testing.T) {
	s := New()
	_, found, err := s.GetString("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTypeLockedAfterCreation(t *testing.T) {
	s := New()
	require.NoError(t, s.SetString("k", "v"))

	require.NoError(t, s.SetString("k", "v2")) // same kind, fine

	_, err := s.ZAdd("k", "m", 1)
	assert.ErrorIs(t, err, ErrBadType)

	_, err = s.ZAdd("z", "m", 1)
	require.NoError(t, err)
	err = s.SetString("z", "v")
	assert.ErrorIs(t, err, ErrBadType)
}

func TestDeleteRemovesAnyKind(t *testing.T) {
	s := New()
	require.NoError(t, s.SetString("str", "v"))
	_, err := s.ZAdd("zs", "m", 1)
	require.NoError(t, err)

	assert.True(t, s.Delete("str"))
	assert.True(t, s.Delete("zs"))
	assert.False(t, s.Delete("str"))
	assert.Equal(t, 0, s.Len())
}

func TestZAddCreatesKeyAndReportsNewness(t *testing.T) {
	s := New()
	added, err := s.ZAdd("z", "a", 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.ZAdd("z", "a", 2)
	require.NoError(t, err)
	assert.False(t, added)

	score, found, err := s.ZScore("z", "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2.0, score)
}

func TestZCommandsOnAbsentKeyReturnEmptyNotBadType(t *testing.T) {
	s := New()

	removed, err := s.ZRem("missing", "a")
	require.NoError(t, err)
	assert.False(t, removed)

	_, found, err := s.ZScore("missing", "a")
	require.NoError(t, err)
	assert.False(t, found)

	pairs, err := s.ZQuery("missing", 0, "", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	// none of these should have created the key
	assert.Equal(t, 0, s.Len())
}

func TestZCommandsOnWrongTypeReturnBadType(t *testing.T) {
	s := New()
	require.NoError(t, s.SetString("k", "v"))

	_, err := s.ZRem("k", "a")
	assert.ErrorIs(t, err, ErrBadType)

	_, _, err = s.ZScore("k", "a")
	assert.ErrorIs(t, err, ErrBadType)

	_, err = s.ZQuery("k", 0, "", 0, 10)
	assert.ErrorIs(t, err, ErrBadType)
}

func TestKeysListsAllKeys(t *testing.T) {
	s := New()
	require.NoError(t, s.SetString("a", "1"))
	require.NoError(t, s.SetString("b", "2"))
	_, err := s.ZAdd("c", "m", 1)
	require.NoError(t, err)

	keys := s.Keys()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}
