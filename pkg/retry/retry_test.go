package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 100*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", delay)
		}
	}
}

func TestRetryStoreBusyUntilSuccess(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeStoreBusy, "database is locked")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	busy := errs.New(errs.ErrorTypeStoreBusy, "database is locked")
	op := func(ctx context.Context) error {
		attempts++
		return busy
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	err := Do(context.Background(), op, cfg)
	if !errors.Is(err, busy) {
		t.Errorf("expected wrapped busy error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryNonRetryableErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"conflict", errs.New(errs.ErrorTypePersistenceConflict, "duplicate post_id")},
		{"source unavailable", errs.New(errs.ErrorTypeSourceUnavailable, "timeout")},
		{"unclassified", errors.New("boom")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), func(ctx context.Context) error {
				attempts++
				return tt.err
			}, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Millisecond}})

			if err != tt.err {
				t.Errorf("expected original error, got %v", err)
			}
			if attempts != 1 {
				t.Errorf("expected a single attempt, got %d", attempts)
			}
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errs.New(errs.ErrorTypeStoreBusy, "locked")
	}

	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
	}

	if err := Do(ctx, op, cfg); err == nil {
		t.Error("expected error when context cancelled")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts before cancellation, got %d", attempts)
	}
}
