package avltree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func inorder(n *Node[int], out *[]int) {
	if n == nil {
		return
	}
	inorder(n.left, out)
	*out = append(*out, n.Value)
	inorder(n.right, out)
}

func checkInvariant(t *testing.T, n *Node[int]) (height, size uint32) {
	t.Helper()
	if n == nil {
		return 0, 0
	}
	lh, ls := checkInvariant(t, n.left)
	rh, rs := checkInvariant(t, n.right)

	diff := int64(lh) - int64(rh)
	if diff < -1 || diff > 1 {
		t.Fatalf("AVL height invariant violated: lh=%d rh=%d", lh, rh)
	}
	wantHeight := lh
	if rh > wantHeight {
		wantHeight = rh
	}
	wantHeight++
	if n.height != wantHeight {
		t.Fatalf("height field stale: got %d want %d", n.height, wantHeight)
	}
	if n.size != 1+ls+rs {
		t.Fatalf("size field stale: got %d want %d", n.size, 1+ls+rs)
	}
	return n.height, n.size
}

func TestInsertMaintainsBSTOrder(t *testing.T) {
	tr := New[int](intLess)
	values := []int{5, 3, 8, 1, 4, 7, 9, 0, 2, 6}
	for _, v := range values {
		tr.Insert(v)
	}

	var out []int
	inorder(tr.root, &out)

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	assert.Equal(t, sorted, out)
	checkInvariant(t, tr.root)
}

func TestInsertManyMaintainsAVLInvariant(t *testing.T) {
	tr := New[int](intLess)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		tr.Insert(r.Intn(100000))
	}
	checkInvariant(t, tr.root)
	require.Equal(t, 2000, tr.Len())
}

func TestDeleteLeafAndInternal(t *testing.T) {
	tr := New[int](intLess)
	nodes := make(map[int]*Node[int])
	for _, v := range []int{50, 30, 70, 20, 40, 60, 80, 10} {
		nodes[v] = tr.Insert(v)
	}

	tr.Delete(nodes[10]) // leaf
	checkInvariant(t, tr.root)

	tr.Delete(nodes[30]) // has two children
	checkInvariant(t, tr.root)

	var out []int
	inorder(tr.root, &out)
	assert.Equal(t, []int{20, 40, 50, 60, 70, 80}, out)
}

func TestDeleteAllMaintainsInvariant(t *testing.T) {
	tr := New[int](intLess)
	r := rand.New(rand.NewSource(7))
	var nodes []*Node[int]
	seen := make(map[int]bool)
	for len(nodes) < 500 {
		v := r.Intn(1_000_000)
		if seen[v] {
			continue
		}
		seen[v] = true
		nodes = append(nodes, tr.Insert(v))
	}

	r.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	for _, n := range nodes {
		tr.Delete(n)
		if tr.Len() > 0 {
			checkInvariant(t, tr.root)
		}
	}
	assert.Equal(t, 0, tr.Len())
}

func TestOffsetWalksInOrderRank(t *testing.T) {
	tr := New[int](intLess)
	var nodes []*Node[int]
	for i := 0; i < 20; i++ {
		nodes = append(nodes, tr.Insert(i))
	}

	// nodes were inserted in ascending order, so rank == value here,
	// but tree shape doesn't follow insertion order; find the node
	// holding value 10 and offset from it.
	var mid *Node[int]
	for _, n := range nodes {
		if n.Value == 10 {
			mid = n
		}
	}
	require.NotNil(t, mid)

	assert.Equal(t, 12, Offset(mid, 2).Value)
	assert.Equal(t, 8, Offset(mid, -2).Value)
	assert.Nil(t, Offset(mid, 100))
}

func TestSeekGE(t *testing.T) {
	tr := New[int](intLess)
	for _, v := range []int{10, 20, 30, 40} {
		tr.Insert(v)
	}
	assert.Equal(t, 20, tr.SeekGE(15).Value)
	assert.Equal(t, 20, tr.SeekGE(20).Value)
	assert.Nil(t, tr.SeekGE(41))
}

func TestValuesAndShapeMatchInOrderWalk(t *testing.T) {
	tr := New[int](intLess)
	values := []int{5, 3, 8, 1, 4, 7, 9, 0, 2, 6}
	for _, v := range values {
		tr.Insert(v)
	}

	var want []int
	inorder(tr.root, &want)
	assert.Equal(t, want, tr.Values())

	shape := tr.Shape()
	require.Len(t, shape, len(want))
	for i, entry := range shape {
		assert.Equal(t, want[i], entry.Value)
		assert.Greater(t, entry.Height, uint32(0))
		assert.GreaterOrEqual(t, entry.Size, uint32(1))
	}
}
