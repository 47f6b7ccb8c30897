package eventloop

import "time"

// StatsSnapshot is a point-in-time copy of the loop's counters, safe
// to read from any goroutine. The event loop publishes a fresh one at
// the end of every iteration; nothing outside the loop goroutine ever
// touches the live store or connection table directly.
type StatsSnapshot struct {
	Connections      int
	MaxConnections   int64
	Keys             int
	RehashInProgress bool
	Uptime           time.Duration
	IdleTimeout      time.Duration
}

// Stats returns the most recently published snapshot.
func (l *Loop) Stats() StatsSnapshot {
	l.statsMu.RLock()
	defer l.statsMu.RUnlock()
	return l.stats
}

func (l *Loop) publishStats() {
	snap := StatsSnapshot{
		Connections:      len(l.conns),
		MaxConnections:   l.limiter.capacity(),
		Keys:             l.store.Len(),
		RehashInProgress: l.store.RehashInProgress(),
		Uptime:           time.Since(l.startedAt),
		IdleTimeout:      time.Duration(l.cfg.IdleTimeoutMS) * time.Millisecond,
	}
	l.statsMu.Lock()
	l.stats = snap
	l.statsMu.Unlock()
}
