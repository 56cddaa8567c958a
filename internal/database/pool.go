// Package database implements the historian data-access layer: a
// bounded, health-checked connection pool, vendor schema profiles that
// render SQL and map result rows, and the query source built on both.
package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/industryvis/historian/internal/apperr"
)

// Conn is one live backing-store session. *sql.DB satisfies it; tests
// substitute fakes.
type Conn interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close() error
}

// Dialer establishes new backing-store sessions. Implementations are
// responsible for classifying their own connection failures into
// apperr connection errors.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// PoolConfig sizes and times the connection pool.
type PoolConfig struct {
	MaxSize           int
	ConnectionTimeout time.Duration
	IdleTimeout       time.Duration
	MaxLifetime       time.Duration
}

// DefaultPoolConfig is the general-purpose sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:           5,
		ConnectionTimeout: 30 * time.Second,
		IdleTimeout:       10 * time.Minute,
		MaxLifetime:       30 * time.Minute,
	}
}

// DesktopPoolConfig is tuned for the desktop workload: few concurrent
// charts, fail fast, retire sessions well inside server-side limits.
func DesktopPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:           3,
		ConnectionTimeout: 15 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxLifetime:       15 * time.Minute,
	}
}

func (c PoolConfig) normalized() PoolConfig {
	d := DefaultPoolConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = d.MaxSize
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = d.ConnectionTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = d.MaxLifetime
	}
	return c
}

// PoolState is the observability snapshot.
type PoolState struct {
	Connections       int `json:"connections"`
	IdleConnections   int `json:"idleConnections"`
	ActiveConnections int `json:"activeConnections"`
	MaxSize           int `json:"maxSize"`
}

type pooledConn struct {
	conn          Conn
	createdAt     time.Time
	lastUsed      time.Time
	lastValidated time.Time
}

func (pc *pooledConn) expired(now time.Time, cfg PoolConfig) bool {
	return now.Sub(pc.lastUsed) > cfg.IdleTimeout || now.Sub(pc.createdAt) > cfg.MaxLifetime
}

// Pool manages a bounded set of live connections. A checkout is
// exclusive for the borrow's duration; a connection handed out is either
// freshly created or freshly validated, and one that fails validation is
// discarded, never returned. Acquisition blocks when the pool is at
// capacity and fails with a pool error after ConnectionTimeout.
type Pool struct {
	cfg    PoolConfig
	dialer Dialer
	logger *logrus.Entry

	// slots holds one capacity token per MaxSize; a token is held while
	// a connection is checked out.
	slots chan struct{}

	mu      sync.Mutex
	idle    []*pooledConn
	numOpen int
	closed  bool

	reaperStop chan struct{}
}

// NewPool creates the pool and starts its background reaper, which
// proactively retires idle and over-age connections.
func NewPool(dialer Dialer, cfg PoolConfig, logger *logrus.Logger) *Pool {
	cfg = cfg.normalized()

	p := &Pool{
		cfg:        cfg,
		dialer:     dialer,
		logger:     logger.WithField("component", "pool"),
		slots:      make(chan struct{}, cfg.MaxSize),
		reaperStop: make(chan struct{}),
	}
	for i := 0; i < cfg.MaxSize; i++ {
		p.slots <- struct{}{}
	}

	go p.reaper()
	return p
}

// Acquire returns a validated connection, dialing a new one when below
// capacity and none is idle. It suspends while the pool is exhausted and
// returns a pool-kind error if no connection frees up within
// ConnectionTimeout, distinct from connection-kind dial failures.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, apperr.New(apperr.KindPool, "pool is closed")
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.ConnectionTimeout)
	defer timer.Stop()

	select {
	case <-p.slots:
	case <-timer.C:
		return nil, apperr.New(apperr.KindPool,
			"no connection available within %s (all %d in use)",
			p.cfg.ConnectionTimeout, p.cfg.MaxSize)
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindPool, ctx.Err(), "acquire canceled")
	}

	// Token held from here on; it travels with the checked-out
	// connection and is returned on Release/Discard.
	for {
		pc := p.popIdle()
		if pc == nil {
			break
		}
		if err := p.validate(ctx, pc); err != nil {
			p.logger.WithField("error", err).Warn("idle connection failed validation, discarding")
			p.closeConn(pc)
			continue
		}
		return &PooledConn{pool: p, pc: pc}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()

	conn, err := p.dialer.Dial(dialCtx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}

	now := time.Now()
	pc := &pooledConn{conn: conn, createdAt: now, lastUsed: now, lastValidated: now}
	p.mu.Lock()
	p.numOpen++
	p.mu.Unlock()
	p.logger.Debug("new connection established")

	return &PooledConn{pool: p, pc: pc}, nil
}

// popIdle returns the most recently used non-expired idle connection,
// closing any expired ones it skips.
func (p *Pool) popIdle() *pooledConn {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if pc.expired(now, p.cfg) {
			pc.conn.Close()
			p.numOpen--
			continue
		}
		return pc
	}
	return nil
}

// validate probes a connection with a trivial round trip.
func (p *Pool) validate(ctx context.Context, pc *pooledConn) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pc.conn.PingContext(probeCtx); err != nil {
		return err
	}
	pc.lastValidated = time.Now()
	return nil
}

func (p *Pool) closeConn(pc *pooledConn) {
	pc.conn.Close()
	p.mu.Lock()
	p.numOpen--
	p.mu.Unlock()
}

// State returns the pool's observability snapshot.
func (p *Pool) State() PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolState{
		Connections:       p.numOpen,
		IdleConnections:   len(p.idle),
		ActiveConnections: p.numOpen - len(p.idle),
		MaxSize:           p.cfg.MaxSize,
	}
}

// Close shuts the pool down and closes all idle connections. Checked-out
// connections are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.numOpen -= len(idle)
	p.mu.Unlock()

	close(p.reaperStop)
	for _, pc := range idle {
		pc.conn.Close()
	}
	p.logger.Info("pool closed")
}

// reaper periodically retires idle connections past IdleTimeout or
// MaxLifetime, bounding staleness against server-side session limits.
func (p *Pool) reaper() {
	interval := p.cfg.IdleTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.reaperStop:
			return
		case <-ticker.C:
			p.reapExpired()
		}
	}
}

func (p *Pool) reapExpired() {
	p.mu.Lock()
	now := time.Now()
	kept := p.idle[:0]
	var expired []*pooledConn
	for _, pc := range p.idle {
		if pc.expired(now, p.cfg) {
			expired = append(expired, pc)
		} else {
			kept = append(kept, pc)
		}
	}
	p.idle = kept
	p.numOpen -= len(expired)
	p.mu.Unlock()

	for _, pc := range expired {
		pc.conn.Close()
	}
	if len(expired) > 0 {
		p.logger.WithField("retired", len(expired)).Debug("expired idle connections retired")
	}
}

// PooledConn is an exclusive borrow of one pool connection. Exactly one
// of Release or Discard must be called when done.
type PooledConn struct {
	pool *Pool
	pc   *pooledConn
	done bool
}

// QueryContext runs a query on the borrowed connection.
func (c *PooledConn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.pc.conn.QueryContext(ctx, query, args...)
}

// PingContext probes the borrowed connection.
func (c *PooledConn) PingContext(ctx context.Context) error {
	return c.pc.conn.PingContext(ctx)
}

// Release returns the connection to the idle set for reuse.
func (c *PooledConn) Release() {
	if c.done {
		return
	}
	c.done = true

	p := c.pool
	p.mu.Lock()
	if p.closed {
		p.numOpen--
		p.mu.Unlock()
		c.pc.conn.Close()
	} else {
		c.pc.lastUsed = time.Now()
		p.idle = append(p.idle, c.pc)
		p.mu.Unlock()
	}
	p.slots <- struct{}{}
}

// Discard closes the connection instead of returning it, freeing its
// capacity slot. Used when the borrower saw evidence the session is
// broken.
func (c *PooledConn) Discard() {
	if c.done {
		return
	}
	c.done = true

	c.pool.closeConn(c.pc)
	c.pool.slots <- struct{}{}
}
