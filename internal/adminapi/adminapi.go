// Package adminapi is the read-only diagnostics HTTP surface: health,
// published stats, a recent-events feed, and a keyspace listing. It
// never touches the keyspace directly: keyspace and connection figures
// either come from the event loop's periodically published
// StatsSnapshot or are fetched from the loop goroutine over a request
// channel, so the admin surface cannot race with the loop's
// unsynchronized state. The events feed is read from diag.Ring, which
// carries its own lock, and the in-flight counts from the admin
// limiter.
package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/kvserver/internal/diag"
	"github.com/edirooss/kvserver/internal/eventloop"
	"github.com/edirooss/kvserver/internal/httpmw"
)

// Options configures the admin router.
type Options struct {
	Env            string // "dev" enables permissive CORS
	MaxConcurrent  int
	TrustedProxies []string
}

// New builds the admin gin.Engine. loop is the event loop to query for
// stats and keyspace snapshots; ring is the recent-events feed.
func New(log *zap.Logger, loop *eventloop.Loop, ring *diag.Ring, opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if len(opts.TrustedProxies) > 0 {
		_ = r.SetTrustedProxies(opts.TrustedProxies)
	} else {
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(gin.Recovery())

	if opts.Env == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(secure.New(secure.Config{
			SSLRedirect:           false,
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			BrowserXssFilter:      true,
			ContentSecurityPolicy: "default-src 'none'",
		}))
	}

	r.Use(httpmw.RequestID())
	r.Use(httpmw.ZapLogger(log))

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	limiter := httpmw.NewLimiter(maxConcurrent)
	r.Use(limiter.Middleware())

	h := &handlers{loop: loop, ring: ring, limiter: limiter}

	r.GET("/healthz", h.healthz)
	r.GET("/stats", h.stats)
	r.GET("/debug/keys", h.debugKeys)
	r.GET("/debug/events", h.debugEvents)

	return r
}

type handlers struct {
	loop    *eventloop.Loop
	ring    *diag.Ring
	limiter *httpmw.Limiter
}

func (h *handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) stats(c *gin.Context) {
	s := h.loop.Stats()
	c.JSON(http.StatusOK, gin.H{
		"connections":              s.Connections,
		"max_connections":          s.MaxConnections,
		"keys":                     s.Keys,
		"rehash_in_progress":       s.RehashInProgress,
		"uptime_seconds":           s.Uptime.Seconds(),
		"idle_timeout_ms":          s.IdleTimeout.Milliseconds(),
		"admin_requests_in_flight": h.limiter.InFlight(),
		"admin_requests_max":       h.limiter.Capacity(),
	})
}

// debugKeysQuery is bound (and validated, via go-playground/validator
// through gin's query binder) from the request's query string.
type debugKeysQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=10000"`
}

func (h *handlers) debugKeys(c *gin.Context) {
	var q debugKeysQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	keys, err := h.loop.RequestKeys(ctx, q.Limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": "event loop did not respond in time"})
		return
	}

	c.Header("X-Total-Count", strconv.Itoa(len(keys)))
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (h *handlers) debugEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.ring.Recent(200)})
}
