package eventloop

import "fmt"

// connIDAllocator hands out small, wrap-around connection identifiers
// for log correlation. File descriptors get reused by the kernel the
// instant a connection closes, which makes them unsuitable as a stable
// log key across a connection's lifetime if two short-lived
// connections race; a monotonically increasing, wrapping id avoids
// that ambiguity without unbounded growth.
//
// Only ever touched from the event loop goroutine, so it carries no
// lock.
type connIDAllocator struct {
	next  int64
	inUse map[int64]struct{}
	idMax int64
}

func newConnIDAllocator() *connIDAllocator {
	return &connIDAllocator{
		next:  1,
		idMax: 1 << 20,
		inUse: make(map[int64]struct{}),
	}
}

// alloc returns the next available connection id, or panics if the
// entire space is already in use (it isn't, in practice: the id space
// dwarfs any plausible concurrent connection count).
func (a *connIDAllocator) alloc() int64 {
	start := a.next
	for {
		id := a.next
		a.next++
		if a.next > a.idMax {
			a.next = 1
		}
		if _, used := a.inUse[id]; !used {
			a.inUse[id] = struct{}{}
			return id
		}
		if a.next == start {
			panic(fmt.Sprintf("connIDAllocator exhausted: 1..%d fully allocated", a.idMax))
		}
	}
}

func (a *connIDAllocator) release(id int64) {
	delete(a.inUse, id)
}
