//go:build linux

// Package eventloop is the single-threaded, non-blocking connection
// manager: one goroutine owns an epoll instance, the keyspace, the fd
// table, and the idle-connection list, and nothing outside that
// goroutine ever touches them directly.
//
// Readiness multiplexing is level-triggered epoll(7) via
// golang.org/x/sys/unix rather than net.Listener, whose internal
// netpoller would hide the very event loop this component exists to
// implement.
package eventloop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/edirooss/kvserver/internal/command"
	"github.com/edirooss/kvserver/internal/diag"
	"github.com/edirooss/kvserver/internal/store"
	"github.com/edirooss/kvserver/internal/wire"
	"github.com/edirooss/kvserver/pkg/idlelist"
)

const (
	readBufSize    = 64 * 1024
	listenBacklog  = 1024
	maxEpollEvents = 256
	// maxPollTimeoutMs bounds how long a single epoll_wait call may
	// block, so Run notices context cancellation promptly even when
	// the idle list is empty (next timer == -1, meaning "no timer").
	maxPollTimeoutMs = 1000
)

// bootTime anchors nowMs; time.Since uses the monotonic reading
// embedded in a time.Time, so this is immune to wall-clock adjustment
// without needing direct access to CLOCK_MONOTONIC.
var bootTime = time.Now()

func nowMs() int64 {
	return time.Since(bootTime).Milliseconds()
}

// Config holds the loop's runtime knobs.
type Config struct {
	Addr          string
	IdleTimeoutMS int64
	MaxConns      int64
}

type conn struct {
	fd       int
	connID   int64
	incoming []byte
	outgoing []byte

	wantRead, wantWrite, wantClose bool
	curEvents                      uint32

	lastActiveMs int64
	idleNode     *idlelist.Node[*conn]
	remoteAddr   string
}

type keysRequest struct {
	limit int
	reply chan []string
}

// Loop is the event loop. Construct with New and run with Run; Run
// blocks until ctx is cancelled or an unrecoverable setup error occurs.
type Loop struct {
	cfg   Config
	log   *zap.Logger
	store *store.Store
	ring  *diag.Ring

	listenFd int
	epfd     int
	conns    map[int]*conn
	idle     *idlelist.List[*conn]
	limiter  *connLimiter
	ids      *connIDAllocator

	keysReqCh chan keysRequest

	startedAt time.Time
	statsMu   sync.RWMutex
	stats     StatsSnapshot
}

// New returns a Loop ready for Run. s is the keyspace the loop will
// own exclusively for its lifetime.
func New(cfg Config, log *zap.Logger, s *store.Store, ring *diag.Ring) *Loop {
	return &Loop{
		cfg:       cfg,
		log:       log,
		store:     s,
		ring:      ring,
		conns:     make(map[int]*conn),
		idle:      idlelist.New[*conn](),
		limiter:   newConnLimiter(cfg.MaxConns),
		ids:       newConnIDAllocator(),
		keysReqCh: make(chan keysRequest, 8),
		startedAt: time.Now(),
	}
}

// RequestKeys asks the loop goroutine for a snapshot of the keyspace,
// the only way the admin HTTP surface may observe store contents
// without risking a data race with the loop's own unsynchronized
// access to it.
func (l *Loop) RequestKeys(ctx context.Context, limit int) ([]string, error) {
	reply := make(chan []string, 1)
	select {
	case l.keysReqCh <- keysRequest{limit: limit, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case keys := <-reply:
		return keys, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loop) serveKeysRequests() {
	for {
		select {
		case req := <-l.keysReqCh:
			keys := l.store.Keys()
			if req.limit > 0 && req.limit < len(keys) {
				keys = keys[:req.limit]
			}
			req.reply <- keys
		default:
			return
		}
	}
}

func (l *Loop) setupListener() error {
	addr, err := net.ResolveTCPAddr("tcp4", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("eventloop: resolve %q: %w", l.cfg.Addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("eventloop: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("eventloop: setsockopt(SO_REUSEADDR): %w", err)
	}

	var sa unix.SockaddrInet4
	sa.Port = addr.Port
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("eventloop: bind: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("eventloop: set nonblocking: %w", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return fmt.Errorf("eventloop: listen: %w", err)
	}

	l.listenFd = fd
	return nil
}

// Run drives the loop until ctx is cancelled. It owns the listening
// socket, epoll instance, and every accepted connection for its
// entire lifetime.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.setupListener(); err != nil {
		return err
	}
	defer unix.Close(l.listenFd)

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	l.epfd = epfd
	defer unix.Close(epfd)

	lev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(l.listenFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, l.listenFd, &lev); err != nil {
		return fmt.Errorf("eventloop: epoll_ctl(listener): %w", err)
	}

	l.log.Info("event loop listening", zap.String("addr", l.cfg.Addr), zap.Int64("max_conns", l.cfg.MaxConns))

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		default:
		}

		timeout := l.nextTimerMs()
		if timeout < 0 || timeout > maxPollTimeoutMs {
			timeout = maxPollTimeoutMs
		}

		n, err := unix.EpollWait(epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("eventloop: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == l.listenFd {
				l.handleAccept()
				continue
			}

			c, ok := l.conns[fd]
			if !ok {
				continue
			}

			c.lastActiveMs = nowMs()
			l.idle.MoveToBack(c.idleNode)

			if ev.Events&unix.EPOLLIN != 0 {
				l.handleRead(c)
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				l.handleWrite(c)
			}
			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 || c.wantClose {
				l.destroyConn(c, "error or protocol violation")
				continue
			}
			l.updateEpoll(c)
		}

		l.processTimers()
		l.publishStats()
		l.serveKeysRequests()
	}
}

func (l *Loop) shutdown() error {
	l.log.Info("event loop shutting down", zap.Int("open_conns", len(l.conns)))
	for _, c := range l.conns {
		l.destroyConn(c, "server shutdown")
	}
	return nil
}

func (l *Loop) epollEventsFor(c *conn) uint32 {
	ev := uint32(unix.EPOLLERR)
	if c.wantRead {
		ev |= unix.EPOLLIN
	}
	if c.wantWrite {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (l *Loop) registerEpoll(c *conn) {
	want := l.epollEventsFor(c)
	ev := unix.EpollEvent{Events: want, Fd: int32(c.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, c.fd, &ev); err != nil {
		l.log.Warn("epoll_ctl(ADD) failed", zap.Int("fd", c.fd), zap.Error(err))
	}
	c.curEvents = want
}

func (l *Loop) updateEpoll(c *conn) {
	want := l.epollEventsFor(c)
	if want == c.curEvents {
		return
	}
	ev := unix.EpollEvent{Events: want, Fd: int32(c.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &ev); err != nil {
		l.log.Warn("epoll_ctl(MOD) failed", zap.Int("fd", c.fd), zap.Error(err))
	}
	c.curEvents = want
}

// handleAccept admits at most one connection per ready-listener
// event, keeping per-iteration work bounded the same way read, write,
// and timer handling are; the level-triggered poll reports the
// listener again while backlog remains.
func (l *Loop) handleAccept() {
	connFd, sa, err := unix.Accept(l.listenFd)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		l.log.Warn("accept() error", zap.Error(err))
		return
	}

	if !l.limiter.tryAcquire(int32(connFd)) {
		unix.Close(connFd)
		l.log.Warn("connection limit reached, rejecting new connection", zap.Int64("max_conns", l.cfg.MaxConns))
		return
	}
	if err := unix.SetNonblock(connFd, true); err != nil {
		l.log.Warn("set nonblocking failed, closing", zap.Int("fd", connFd), zap.Error(err))
		l.limiter.release(int32(connFd))
		unix.Close(connFd)
		return
	}

	c := &conn{
		fd:           connFd,
		connID:       l.ids.alloc(),
		wantRead:     true,
		lastActiveMs: nowMs(),
		remoteAddr:   formatSockaddr(sa),
	}
	c.idleNode = &idlelist.Node[*conn]{Value: c}
	l.idle.PushBack(c.idleNode)
	l.conns[connFd] = c
	l.registerEpoll(c)

	l.ring.Append(fmt.Sprintf("accept fd=%d id=%d addr=%s", c.fd, c.connID, c.remoteAddr))
	l.log.Debug("accepted connection", zap.Int("fd", c.fd), zap.Int64("conn_id", c.connID), zap.String("addr", c.remoteAddr))
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	default:
		return "unknown"
	}
}

func (l *Loop) handleRead(c *conn) {
	var buf [readBufSize]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		l.log.Debug("read() error", zap.Int("fd", c.fd), zap.Error(err))
		c.wantClose = true
		return
	}
	if n == 0 {
		c.wantClose = true
		return
	}
	c.incoming = append(c.incoming, buf[:n]...)

	for l.tryOneRequest(c) {
	}
	if c.wantClose {
		return
	}

	if len(c.outgoing) > 0 {
		c.wantRead = false
		c.wantWrite = true
		l.handleWrite(c)
	}
}

// tryOneRequest parses and serves at most one pipelined request from
// c.incoming. false means "wait for more bytes", not "error".
func (l *Loop) tryOneRequest(c *conn) bool {
	body, consumed, ok, err := wire.TryReadFrame(c.incoming)
	if err != nil {
		l.log.Debug("protocol error reading frame", zap.Int("fd", c.fd), zap.Error(err))
		c.wantClose = true
		return false
	}
	if !ok {
		return false
	}

	args, err := wire.ParseArgs(body)
	if err != nil {
		l.log.Debug("protocol error parsing args", zap.Int("fd", c.fd), zap.Error(err))
		c.wantClose = true
		return false
	}

	var header int
	c.outgoing, header = wire.BeginResponse(c.outgoing)
	c.outgoing = command.Dispatch(l.store, args, c.outgoing)
	c.outgoing = wire.EndResponse(c.outgoing, header)

	c.incoming = append(c.incoming[:0], c.incoming[consumed:]...)
	return true
}

func (l *Loop) handleWrite(c *conn) {
	n, err := unix.Write(c.fd, c.outgoing)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		l.log.Debug("write() error", zap.Int("fd", c.fd), zap.Error(err))
		c.wantClose = true
		return
	}
	c.outgoing = append(c.outgoing[:0], c.outgoing[n:]...)
	if len(c.outgoing) == 0 {
		c.wantRead = true
		c.wantWrite = false
	}
}

func (l *Loop) destroyConn(c *conn, reason string) {
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	unix.Close(c.fd)
	delete(l.conns, c.fd)
	c.idleNode.Detach()
	l.limiter.release(int32(c.fd))
	l.ids.release(c.connID)

	l.ring.Append(fmt.Sprintf("close fd=%d id=%d reason=%s", c.fd, c.connID, reason))
	l.log.Debug("closed connection", zap.Int("fd", c.fd), zap.Int64("conn_id", c.connID), zap.String("reason", reason))
}

// nextTimerMs returns the epoll_wait timeout, in milliseconds, implied
// by the oldest connection in the idle list: -1 if the list is empty
// (no timer pending), 0 if it has already expired.
func (l *Loop) nextTimerMs() int {
	front := l.idle.Front()
	if front == nil {
		return -1
	}
	deadline := front.Value.lastActiveMs + l.cfg.IdleTimeoutMS
	now := nowMs()
	if deadline <= now {
		return 0
	}
	return int(deadline - now)
}

// processTimers reaps every connection whose idle deadline has
// passed: a connection expires once lastActiveMs + IdleTimeoutMS <=
// now, the same rule nextTimerMs uses to report "already expired".
func (l *Loop) processTimers() {
	now := nowMs()
	for {
		front := l.idle.Front()
		if front == nil {
			return
		}
		c := front.Value
		if c.lastActiveMs+l.cfg.IdleTimeoutMS > now {
			return
		}
		l.destroyConn(c, "idle timeout")
	}
}
