package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id       int
	resets   atomic.Int32
	closed   atomic.Bool
	resetErr error
}

func (f *fakeSession) Fetch(ctx context.Context, url string, opts browser.FetchOptions) (*browser.Page, error) {
	return &browser.Page{URL: url}, nil
}

func (f *fakeSession) Reset(ctx context.Context) error {
	f.resets.Add(1)
	return f.resetErr
}

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	created  []*fakeSession
	err      error
	resetErr error
}

func (f *fakeFactory) New(ctx context.Context) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{id: len(f.created), resetErr: f.resetErr}
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newPool(f *fakeFactory, size, queue int, wait time.Duration) *Pool {
	return New(f.New, Config{Size: size, MaxQueue: queue, MaxWait: wait, Logger: logger.NewNopLogger()})
}

func TestSessionsAreCreatedLazily(t *testing.T) {
	f := &fakeFactory{}
	p := newPool(f, 2, 0, time.Second)

	assert.Zero(t, f.count())
	assert.Equal(t, Stats{Size: 2, Idle: 2}, p.Stats())

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.count())
	assert.Equal(t, 1, p.Stats().Live)

	lease.Release()

	// the same session is reused, not rebuilt
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.count())
	again.Release()
}

func TestQueueFullIsBusy(t *testing.T) {
	p := newPool(&fakeFactory{}, 1, 0, time.Second)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeBusy, errs.TypeOf(err))
}

func TestMaxWaitIsBusy(t *testing.T) {
	p := newPool(&fakeFactory{}, 1, 4, 30*time.Millisecond)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	start := time.Now()
	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeBusy))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Zero(t, p.Stats().Waiting)
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	p := newPool(&fakeFactory{}, 1, 4, time.Minute)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)
	cancel()

	err = <-done
	assert.True(t, errs.Is(err, errs.ErrorTypeBusy))
	assert.Zero(t, p.Stats().Waiting)

	lease.Release()
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestWaitersAreServedInArrivalOrder(t *testing.T) {
	p := newPool(&fakeFactory{}, 1, 4, 5*time.Second)

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			lease.Release()
		}()
		require.Eventually(t, func() bool { return p.Stats().Waiting == i }, time.Second, time.Millisecond)
	}

	first.Release()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestInvalidatedSessionIsResetBeforeReuse(t *testing.T) {
	f := &fakeFactory{}
	p := newPool(f, 1, 0, time.Second)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Invalidate()
	lease.Release()
	lease.Release()

	require.Equal(t, 1, f.count())
	assert.Equal(t, int32(1), f.created[0].resets.Load())

	next, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, f.created[0], next.Session())
	next.Release()
}

func TestFailedResetRecreatesSession(t *testing.T) {
	f := &fakeFactory{resetErr: errors.New("target crashed")}
	p := newPool(f, 1, 0, time.Second)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Invalidate()
	lease.Release()

	assert.True(t, f.created[0].closed.Load())
	assert.Zero(t, p.Stats().Live)

	next, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.count())
	assert.Same(t, f.created[1], next.Session())
	next.Release()
}

func TestFactoryFailureReturnsSlot(t *testing.T) {
	f := &fakeFactory{err: errors.New("chrome not found")}
	p := newPool(f, 1, 0, time.Second)

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeSourceUnavailable, errs.TypeOf(err))
	assert.Equal(t, 1, p.Stats().Idle)

	f.err = nil
	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
}

func TestCloseShutsSessionsDown(t *testing.T) {
	f := &fakeFactory{}
	p := newPool(f, 2, 2, time.Minute)

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	a.Release()

	require.NoError(t, p.Close())
	assert.True(t, f.created[0].closed.Load(), "idle session closed immediately")
	assert.False(t, f.created[1].closed.Load(), "leased session left alone")

	b.Release()
	assert.True(t, f.created[1].closed.Load(), "leased session closed on release")

	_, err = p.Acquire(context.Background())
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestCloseWakesWaiters(t *testing.T) {
	p := newPool(&fakeFactory{}, 1, 2, time.Minute)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.Close())
	assert.Error(t, <-done)
	lease.Release()
}
