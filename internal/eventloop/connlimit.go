package eventloop

import "sync"

// connLimiter is a non-blocking admission semaphore for accepted
// connections. Unlike a classic semaphore it never blocks the caller:
// the event loop goroutine must never wait on anything but epoll_wait,
// so admission is a tryAcquire-or-reject decision made inline in the
// accept handler.
type connLimiter struct {
	mu         sync.Mutex
	maxCap     int64
	usage      int64
	acquiredBy map[int32]struct{} // fd -> ownership
}

func newConnLimiter(max int64) *connLimiter {
	return &connLimiter{
		maxCap:     max,
		acquiredBy: make(map[int32]struct{}),
	}
}

// tryAcquire admits fd if capacity remains. Returns false if the
// connection table is full, in which case the caller should close the
// socket immediately without registering it.
func (s *connLimiter) tryAcquire(fd int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[fd]; holds {
		panic("connLimiter: fd already holds a slot")
	}
	if s.usage >= s.maxCap {
		return false
	}
	s.usage++
	s.acquiredBy[fd] = struct{}{}
	return true
}

// release frees the slot held by fd. Releasing an fd that holds no
// slot is a bookkeeping bug in the caller.
func (s *connLimiter) release(fd int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[fd]; !holds {
		panic("connLimiter: release for fd that holds no slot")
	}
	delete(s.acquiredBy, fd)
	s.usage--
}

// capacity returns the configured maximum connection count.
func (s *connLimiter) capacity() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCap
}

// current returns the number of connections currently admitted.
func (s *connLimiter) current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
