// Package idlelist implements a generic intrusive circular doubly
// linked list, the shape used by the event loop to track connections
// in least-recently-active order for idle-timeout reaping.
//
// It is intrusive: a Node[T] is meant to be embedded (by pointer) in
// the caller's own struct, so moving a connection to the back of the
// list on activity costs a few pointer writes and no allocation.
package idlelist

// Node is one link in a List. The zero value is a detached node.
type Node[T any] struct {
	prev, next *Node[T]
	Value      T
}

// Attached reports whether n currently belongs to a list.
func (n *Node[T]) Attached() bool {
	return n.prev != nil
}

// Detach removes n from whatever list it belongs to. Detaching an
// already-detached node is a no-op.
func (n *Node[T]) Detach() {
	if n.prev == nil {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

// List is a sentinel-based circular doubly linked list. The zero
// value is not usable; construct with New.
type List[T any] struct {
	sentinel Node[T]
}

// New returns an empty list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.sentinel.prev = &l.sentinel
	l.sentinel.next = &l.sentinel
	return l
}

// Empty reports whether the list holds no nodes.
func (l *List[T]) Empty() bool {
	return l.sentinel.next == &l.sentinel
}

// PushBack inserts n immediately before the sentinel, i.e. at the
// "most recently active" end of the list. n must not already belong
// to a list.
func (l *List[T]) PushBack(n *Node[T]) {
	target := &l.sentinel
	prev := target.prev
	prev.next = n
	n.prev = prev
	n.next = target
	target.prev = n
}

// Front returns the oldest node (the one nearest to timing out), or
// nil if the list is empty.
func (l *List[T]) Front() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.sentinel.next
}

// MoveToBack detaches n (if attached) and reinserts it at the back,
// the operation the event loop performs on every read/write on a
// connection to reset its idle clock.
func (l *List[T]) MoveToBack(n *Node[T]) {
	n.Detach()
	l.PushBack(n)
}
