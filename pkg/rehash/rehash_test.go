package rehash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringHash(s string) uint64 {
	var h uint64 = 0x811C9DC5
	for i := 0; i < len(s); i++ {
		h = (h + uint64(s[i])) * 0x01000193
	}
	return h
}

func stringEq(a, b string) bool { return a == b }

func newStrMap[V any]() *Map[string, V] {
	return New[string, V](stringHash, stringEq)
}

func TestSetGetDelete(t *testing.T) {
	m := newStrMap[int]()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Set("a", 10)
	v, ok = m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, m.Len())

	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestTriggersIncrementalRehash(t *testing.T) {
	m := newStrMap[int]()
	const n = 5000
	for i := 0; i < n; i++ {
		m.Set(fmt.Sprintf("key-%d", i), i)
	}
	assert.Equal(t, n, m.Len())

	for i := 0; i < n; i++ {
		v, ok := m.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestRehashDrainsEventually(t *testing.T) {
	m := newStrMap[int]()
	for i := 0; i < 2000; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	// enough subsequent calls must drain any in-progress migration
	for i := 0; i < 2000; i++ {
		m.Get(fmt.Sprintf("probe%d", i))
	}
	assert.False(t, m.RehashInProgress())
}

func TestForEachVisitsAllEntries(t *testing.T) {
	m := newStrMap[int]()
	want := map[string]int{}
	for i := 0; i < 300; i++ {
		k := fmt.Sprintf("k%d", i)
		m.Set(k, i)
		want[k] = i
	}

	got := map[string]int{}
	m.ForEach(func(k string, v int) bool {
		got[k] = v
		return true
	})
	assert.Equal(t, want, got)
}

func TestForEachEarlyStop(t *testing.T) {
	m := newStrMap[int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	count := 0
	m.ForEach(func(k string, v int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}
