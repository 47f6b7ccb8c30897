// Package zset implements the sorted-set engine: a dual index over a
// shared set of members, ordered by (score, name) in an AVL tree
// (pkg/avltree) and looked up by name in a hash table (pkg/rehash).
// Both indexes point at the same member value, so there is exactly
// one allocation per member and deleting it updates both structures.
package zset

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/edirooss/kvserver/internal/strhash"
	"github.com/edirooss/kvserver/pkg/avltree"
	"github.com/edirooss/kvserver/pkg/rehash"
)

type member struct {
	name     string
	score    float64
	treeNode *avltree.Node[*member]
}

func less(a, b *member) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.name < b.name
}

// ZSet is a sorted set of (name, score) pairs.
type ZSet struct {
	tree   *avltree.Tree[*member]
	byName *rehash.Map[string, *member]
}

// New returns an empty sorted set.
func New() *ZSet {
	return &ZSet{
		tree:   avltree.New[*member](less),
		byName: rehash.New[string, *member](strhash.String, strhash.Equal),
	}
}

// Len reports the number of members.
func (z *ZSet) Len() int {
	return z.byName.Len()
}

// Insert adds name with score, or updates its score if name already
// exists. Reports true iff a new member was added.
func (z *ZSet) Insert(name string, score float64) bool {
	if m, ok := z.byName.Get(name); ok {
		if m.score != score {
			z.tree.Delete(m.treeNode)
			m.score = score
			m.treeNode = z.tree.Insert(m)
		}
		return false
	}

	m := &member{name: name, score: score}
	z.byName.Set(name, m)
	m.treeNode = z.tree.Insert(m)
	return true
}

// Score returns the score of name and whether it is present.
func (z *ZSet) Score(name string) (float64, bool) {
	m, ok := z.byName.Get(name)
	if !ok {
		return 0, false
	}
	return m.score, true
}

// Delete removes name. Reports whether it was present.
func (z *ZSet) Delete(name string) bool {
	m, ok := z.byName.Get(name)
	if !ok {
		return false
	}
	z.byName.Delete(name)
	z.tree.Delete(m.treeNode)
	return true
}

// Clear empties the set.
func (z *ZSet) Clear() {
	z.tree = avltree.New[*member](less)
	z.byName = rehash.New[string, *member](strhash.String, strhash.Equal)
}

// Pair is one (name, score) result from a range query.
type Pair struct {
	Name  string
	Score float64
}

// Query returns up to limit members starting from the first member
// whose (score, name) is >= (score, name), skipping offset of them
// first. limit <= 0 yields an empty result.
func (z *ZSet) Query(score float64, name string, offset, limit int64) []Pair {
	if limit <= 0 {
		return nil
	}

	seek := &member{name: name, score: score}
	node := z.tree.SeekGE(seek)
	if node != nil {
		node = avltree.Offset(node, offset)
	}

	out := make([]Pair, 0, limit)
	var n int64
	for node != nil && n < limit {
		out = append(out, Pair{Name: node.Value.name, Score: node.Value.score})
		node = avltree.Offset(node, 1)
		n++
	}
	return out
}

// DebugString dumps the set's in-order (score, name) shape via
// go-spew, the same structural-dump tool pkg/fmtt uses for error
// chains. Tests use it to assert on tree shape after a sequence of
// inserts/deletes without poking at avltree's unexported fields.
func (z *ZSet) DebugString() string {
	return spew.Sdump(z.tree.Shape())
}
