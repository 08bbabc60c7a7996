// Package browser drives a headless Chrome to render pages from the source.
//
// A Session is one browser with one page. It is stateful and not safe for
// concurrent use; the session package hands out exclusive leases on it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
)

// Driver names accepted by New
const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// Page is a rendered document
type Page struct {
	// URL is where the browser ended up, after redirects
	URL  string
	HTML string
}

// FetchOptions tune a single Fetch
type FetchOptions struct {
	// ClickSelector, when set, is clicked after load if present on the page.
	// A missing element is not an error.
	ClickSelector string
}

// Session renders pages. Implementations classify every failure as
// SourceUnavailable.
type Session interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error)
	// Reset tears the browser down and starts a fresh one
	Reset(ctx context.Context) error
	Close() error
}

// Factory creates a ready Session
type Factory func(ctx context.Context) (Session, error)

// Options configure a browser session
type Options struct {
	Driver            string
	RemoteURL         string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	Logger            logger.Logger
}

func (o *Options) defaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
}

// NewFactory returns a Factory for the configured driver
func NewFactory(opts Options) (Factory, error) {
	opts.defaults()

	switch strings.ToLower(opts.Driver) {
	case DriverRod, "":
		return func(ctx context.Context) (Session, error) {
			return NewRodSession(ctx, opts)
		}, nil
	case DriverChromedp:
		return func(ctx context.Context) (Session, error) {
			return NewChromedpSession(ctx, opts)
		}, nil
	default:
		return nil, fmt.Errorf("browser: unknown driver %q", opts.Driver)
	}
}

// classify turns a driver error into a SourceUnavailable error naming what failed
func classify(err error, action, target string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "%s timed out: %s", action, target)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "%s cancelled: %s", action, target)
	}
	return errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "%s failed: %s", action, target)
}

// settle waits d or until ctx is done, giving client-side rendering time to finish
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
