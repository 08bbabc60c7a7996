package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// TokenBucket hands out one token every interval up to capacity.
// It paces navigations against the source.
type TokenBucket struct {
	capacity   int
	tokens     int
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a bucket that starts full
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		interval:   interval,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// PerMinute builds a bucket allowing requestsPerMinute with the given burst
func PerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return NewTokenBucket(burst, time.Minute/time.Duration(requestsPerMinute))
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		if err := sleep(ctx, tb.Delay()); err != nil {
			return err
		}
	}
	return nil
}

// Delay reports how long until the next token, zero when one is available now
func (tb *TokenBucket) Delay() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		return 0
	}
	return tb.interval - tb.now().Sub(tb.lastRefill)
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

func (tb *TokenBucket) refill() {
	if tb.interval <= 0 {
		tb.tokens = tb.capacity
		return
	}

	now := tb.now()
	earned := int(now.Sub(tb.lastRefill) / tb.interval)
	if earned <= 0 {
		return
	}

	tb.tokens += earned
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.lastRefill = now
		return
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(earned) * tb.interval)
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		if err := sleep(ctx, sw.RetryAfter()); err != nil {
			return err
		}
	}
	return nil
}

// RetryAfter reports how long until the oldest request leaves the window
func (sw *SlidingWindow) RetryAfter() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)
	if len(sw.requests) < sw.maxRequests || len(sw.requests) == 0 {
		return 0
	}
	return sw.windowSize - now.Sub(sw.requests[0])
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// idle reports whether the window has no requests left in it
func (sw *SlidingWindow) idle() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	return len(sw.requests) == 0
}

func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Keyed keeps one sliding window per key, such as a client IP
type Keyed struct {
	maxRequests int
	windowSize  time.Duration
	windows     map[string]*SlidingWindow
	lastSweep   time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewKeyed creates a per-key limiter allowing maxRequests per windowSize
func NewKeyed(maxRequests int, windowSize time.Duration) *Keyed {
	return &Keyed{
		maxRequests: maxRequests,
		windowSize:  windowSize,
		windows:     make(map[string]*SlidingWindow),
		lastSweep:   time.Now(),
		now:         time.Now,
	}
}

// Allow records a request for key. When refused it also returns the wait
// until the key may try again.
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	w := k.window(key)
	if w.Allow() {
		return true, 0
	}
	return false, w.RetryAfter()
}

func (k *Keyed) window(key string) *SlidingWindow {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.lastSweep) > k.windowSize {
		for tracked, w := range k.windows {
			if w.idle() {
				delete(k.windows, tracked)
			}
		}
		k.lastSweep = now
	}

	w, ok := k.windows[key]
	if !ok {
		w = NewSlidingWindow(k.maxRequests, k.windowSize)
		w.now = k.now
		k.windows[key] = w
	}
	return w
}

// Len returns the number of tracked keys
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.windows)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = 10 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
