// Package pool provides the bounded database connection pool every other
// fulfillment component borrows from. It is the only component with
// application-level shared mutable state; everything else leans on the
// database's row-level atomicity.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shipfloor/shipfloor/internal/sqlite"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Stats is a snapshot of the pool counters. Active counts currently
// borrowed connections; Idle counts connections waiting in the queue.
type Stats struct {
	Created  int64
	Borrowed int64
	Returned int64
	Active   int64
	Idle     int
}

// Pool is a bounded set of pinned database handles. Connections are created
// lazily up to PoolMin on first borrow, grown on demand to PoolMax, probed
// before hand-out, and discarded on validation failure.
type Pool struct {
	cfg types.Config
	log *slog.Logger

	idle chan *Conn

	mu       sync.Mutex
	total    int // connections in existence (idle + borrowed)
	borrowed int64
	returned int64
	created  int64
	active   int64
	closed   bool

	initOnce sync.Once
	initErr  error
}

// New builds a pool from cfg. No connections are dialed until the first
// borrow.
func New(cfg types.Config, log *slog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		cfg:  cfg,
		log:  log,
		idle: make(chan *Conn, cfg.PoolMax),
	}, nil
}

// init dials the minimum connections. Failure here puts the pool in
// degraded mode: Borrow returns the init error and WithConn falls back to
// direct connections.
func (p *Pool) init(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.log.Info("initializing connection pool",
			"min", p.cfg.PoolMin, "max", p.cfg.PoolMax)

		ok := 0
		for i := 0; i < p.cfg.PoolMin; i++ {
			if !p.reserve() {
				break
			}
			c, err := p.dial(ctx)
			if err != nil {
				p.log.Warn("initial connection failed", "error", err)
				continue
			}
			p.idle <- c
			ok++
		}
		if ok == 0 {
			p.initErr = fmt.Errorf("%w: no initial connections could be established", types.ErrConnectivity)
			return
		}
		p.log.Info("connection pool ready", "connections", ok)
	})
	return p.initErr
}

// reserve claims a connection slot under the cap. The claim must be
// released with unreserve if the dial fails.
func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total >= p.cfg.PoolMax {
		return false
	}
	p.total++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}

// dial creates one pinned connection for an already reserved slot.
func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	db, err := sqlite.OpenConnRetry(ctx, p.cfg.DBPath, p.cfg.ConnTimeout, p.log)
	if err != nil {
		p.unreserve()
		return nil, err
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return &Conn{db: db, pooled: true}, nil
}

// discard closes a connection and removes it from the accounting.
func (p *Pool) discard(c *Conn) {
	c.close()
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}

// Borrow leases a connection, blocking up to the configured borrow timeout
// when the pool is at capacity with nothing idle. A previously idle
// connection is probed first; a stale one is discarded and replaced.
func (p *Pool) Borrow(ctx context.Context) (*Conn, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(p.cfg.BorrowTimeout)
	defer deadline.Stop()

	for {
		// Fast path: something idle.
		select {
		case c := <-p.idle:
			if got, err := p.vet(ctx, c); err == nil {
				return got, nil
			}
			continue
		default:
		}

		// Nothing idle: grow if under the cap.
		if p.reserve() {
			c, err := p.dial(ctx)
			if err != nil {
				return nil, err
			}
			p.lease()
			return c, nil
		}

		// At capacity: wait for a release or the timeout.
		select {
		case c := <-p.idle:
			if got, err := p.vet(ctx, c); err == nil {
				return got, nil
			}
		case <-deadline.C:
			return nil, fmt.Errorf("%w (max %d, waited %s)",
				types.ErrPoolExhausted, p.cfg.PoolMax, p.cfg.BorrowTimeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("borrow canceled: %w", ctx.Err())
		}
	}
}

// vet probes an idle connection and replaces it when stale. The replacement
// counts as a fresh creation.
func (p *Pool) vet(ctx context.Context, c *Conn) (*Conn, error) {
	if c.validate(ctx) {
		p.lease()
		return c, nil
	}
	p.log.Warn("stale pooled connection discarded")
	p.discard(c)
	if !p.reserve() {
		return nil, fmt.Errorf("%w: no capacity for replacement connection", types.ErrPoolExhausted)
	}
	fresh, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.lease()
	return fresh, nil
}

func (p *Pool) lease() {
	p.mu.Lock()
	p.borrowed++
	p.active++
	p.mu.Unlock()
}

// Release returns a connection to the pool. Any open transaction is rolled
// back first; a connection that fails re-validation, or arrives after the
// pool closed, is discarded instead of requeued.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	if !c.pooled {
		c.close()
		return
	}

	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	if c.tx != nil {
		_ = c.tx.Rollback()
	}

	if !c.validate(context.Background()) {
		p.log.Warn("invalid connection discarded on release")
		p.discard(c)
		return
	}

	// The closed check and the requeue happen under one lock, so a Close
	// running in between cannot drain the queue and strand this connection.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(c)
		return
	}
	select {
	case p.idle <- c:
		p.returned++
		p.mu.Unlock()
	default:
		// Queue already full.
		p.mu.Unlock()
		p.discard(c)
	}
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Created:  p.created,
		Borrowed: p.borrowed,
		Returned: p.returned,
		Active:   p.active,
		Idle:     len(p.idle),
	}
}

// Close discards every idle connection and marks the pool closed. Borrowed
// connections are discarded as they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case c := <-p.idle:
			p.discard(c)
		default:
			p.log.Info("connection pool closed")
			return
		}
	}
}

// WithConn runs fn with a borrowed connection. When the pool never came up,
// it falls back to a direct unpooled connection; the fallback is logged,
// never silent.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Borrow(ctx)
	if err == nil {
		defer p.Release(c)
		return fn(c)
	}
	if p.initErr == nil {
		// Pool is healthy; the borrow failure (exhaustion, cancellation)
		// is the caller's to handle.
		return err
	}

	p.log.Warn("pool unavailable, using direct connection", "error", p.initErr)
	db, derr := sqlite.OpenConn(ctx, p.cfg.DBPath, p.cfg.ConnTimeout)
	if derr != nil {
		return fmt.Errorf("direct connection fallback: %w", derr)
	}
	direct := &Conn{db: db}
	defer direct.close()
	return fn(direct)
}
