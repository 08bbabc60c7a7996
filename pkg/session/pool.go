// Package session bounds how many browser sessions exist and hands them out
// as exclusive leases.
//
// Callers that find no idle session queue up in arrival order. A caller that
// waits longer than MaxWait, or arrives when MaxQueue callers are already
// waiting, gets a Busy error instead of a session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/sourcegraph/conc"
)

// Config sizes a Pool
type Config struct {
	// Size is the number of sessions that may exist at once
	Size int
	// MaxQueue is how many callers may wait for a session. Zero means none may.
	MaxQueue int
	// MaxWait bounds the time a caller spends queued
	MaxWait time.Duration
	// ResetTimeout bounds the reset of an invalidated session on release
	ResetTimeout time.Duration
	Logger       logger.Logger
}

// Stats is a point-in-time view of the pool
type Stats struct {
	Size    int `json:"size"`
	Idle    int `json:"idle"`
	InUse   int `json:"inUse"`
	Waiting int `json:"waiting"`
	Live    int `json:"live"`
}

type slot struct {
	id      int
	session browser.Session
	leases  int
}

// Pool owns up to Size browser sessions. Sessions are created on first use.
type Pool struct {
	factory browser.Factory
	cfg     Config
	logger  logger.Logger

	mu      sync.Mutex
	idle    []*slot
	waiters []chan *slot
	live    int
	closed  bool
}

// New creates a pool that builds sessions with factory
func New(factory browser.Factory, cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.MaxQueue < 0 {
		cfg.MaxQueue = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	p := &Pool{
		factory: factory,
		cfg:     cfg,
		logger:  log,
		idle:    make([]*slot, 0, cfg.Size),
	}
	for i := 0; i < cfg.Size; i++ {
		p.idle = append(p.idle, &slot{id: i})
	}

	log.InfoWithFields("Session pool ready", map[string]interface{}{
		"size":      cfg.Size,
		"max_queue": cfg.MaxQueue,
		"max_wait":  cfg.MaxWait,
	})
	return p
}

// Acquire waits for a free session. It fails with ErrorTypeBusy when the
// queue is full or MaxWait elapses, and with ErrorTypeSourceUnavailable
// when a new session cannot be started.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	s, err := p.take(ctx)
	if err != nil {
		return nil, err
	}

	if s.session == nil {
		sess, err := p.factory(ctx)
		if err != nil {
			p.put(s)
			if errs.TypeOf(err) == errs.ErrorTypeInternal {
				err = errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "start browser session")
			}
			return nil, err
		}
		s.session = sess

		p.mu.Lock()
		p.live++
		p.mu.Unlock()

		p.logger.DebugWithFields("Started browser session", map[string]interface{}{"slot": s.id})
	}

	s.leases++
	return &Lease{pool: p, slot: s}, nil
}

func (p *Pool) take(ctx context.Context) (*slot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errs.New(errs.ErrorTypeInternal, "session pool is closed")
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		return s, nil
	}
	if len(p.waiters) >= p.cfg.MaxQueue {
		waiting := len(p.waiters)
		p.mu.Unlock()
		p.logger.WarnWithFields("Session queue full", map[string]interface{}{"waiting": waiting})
		return nil, errs.New(errs.ErrorTypeBusy, "all browser sessions are busy and %d requests are already queued", waiting)
	}

	ch := make(chan *slot, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.MaxWait)
	defer timer.Stop()

	select {
	case s, ok := <-ch:
		if !ok {
			return nil, errs.New(errs.ErrorTypeInternal, "session pool is closed")
		}
		return s, nil
	case <-timer.C:
		return nil, p.abandon(ch, errs.New(errs.ErrorTypeBusy, "no browser session became free within %s", p.cfg.MaxWait))
	case <-ctx.Done():
		return nil, p.abandon(ch, errs.Wrap(ctx.Err(), errs.ErrorTypeBusy, "gave up waiting for a browser session"))
	}
}

// abandon removes a waiter that stopped waiting. A slot handed over in the
// meantime goes straight back into circulation.
func (p *Pool) abandon(ch chan *slot, cause error) error {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return cause
		}
	}
	p.mu.Unlock()

	if s, ok := <-ch; ok && s != nil {
		p.put(s)
	}
	return cause
}

// put hands s to the longest waiting caller, or parks it
func (p *Pool) put(s *slot) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.closeSlot(s)
		return
	}
	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		ch <- s
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

func (p *Pool) closeSlot(s *slot) {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		p.logger.WithError(err).Warn("Failed to close browser session")
	}
	s.session = nil

	p.mu.Lock()
	p.live--
	p.mu.Unlock()
}

// Stats reports the pool's occupancy
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:    p.cfg.Size,
		Idle:    len(p.idle),
		InUse:   p.cfg.Size - len(p.idle),
		Waiting: len(p.waiters),
		Live:    p.live,
	}
}

// Close rejects queued and future callers and closes idle sessions.
// Sessions still leased are closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	var wg conc.WaitGroup
	for _, s := range idle {
		s := s
		wg.Go(func() { p.closeSlot(s) })
	}
	wg.Wait()

	p.logger.Info("Session pool closed")
	return nil
}

// Lease is exclusive use of one session until Release
type Lease struct {
	pool    *Pool
	slot    *slot
	once    sync.Once
	tainted bool
}

// Session returns the leased browser session
func (l *Lease) Session() browser.Session {
	return l.slot.session
}

// Invalidate marks the session as unusable. It is reset before anyone else
// receives it.
func (l *Lease) Invalidate() {
	l.tainted = true
}

// Release returns the session to the pool. Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		p, s := l.pool, l.slot
		if l.tainted && s.session != nil {
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ResetTimeout)
			err := s.session.Reset(ctx)
			cancel()
			if err != nil {
				p.logger.WarnWithFields("Browser reset failed, session will be recreated", map[string]interface{}{
					"slot":  s.id,
					"error": err.Error(),
				})
				p.closeSlot(s)
			}
		}
		p.put(s)
	})
}
