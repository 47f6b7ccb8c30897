package httpmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Limiter caps how many admin HTTP requests may be in flight at once.
// The admin surface shares a process with the event loop goroutine; a
// pile-up of slow /debug/keys scans must not be allowed to stack
// goroutines on top of it. Slots are a buffered channel so the
// current in-flight count is observable (InFlight) and reported by
// the /stats endpoint alongside the loop's own counters.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter returns a Limiter admitting up to max concurrent
// requests.
func NewLimiter(max int) *Limiter {
	return &Limiter{slots: make(chan struct{}, max)}
}

// InFlight reports how many admitted requests are currently being
// served.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// Capacity reports the configured admission limit.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// Middleware rejects requests beyond the cap with 429 instead of
// queueing them; the admin surface is diagnostics, not a work queue.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case l.slots <- struct{}{}:
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many concurrent requests",
				"request_id": GetRequestID(c),
			})
			return
		}
		defer func() { <-l.slots }()
		c.Next()
	}
}
