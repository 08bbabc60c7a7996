package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sourcegraph/conc/panics"
)

// ChromedpSession is a Session backed by chromedp
type ChromedpSession struct {
	opts Options

	mu          sync.Mutex
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	started     time.Time
}

// NewChromedpSession starts Chrome through an exec allocator, or attaches to
// RemoteURL when one is configured
func NewChromedpSession(ctx context.Context, opts Options) (*ChromedpSession, error) {
	opts.defaults()
	s := &ChromedpSession{opts: opts}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromedpSession) start(ctx context.Context) error {
	var allocCtx context.Context
	if s.opts.RemoteURL != "" {
		allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), s.opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.opts.Headless),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
			chromedp.WindowSize(1280, 900),
		)
		if s.opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(s.opts.UserAgent))
		}
		allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}

	s.tabCtx, s.tabCancel = chromedp.NewContext(allocCtx)

	startCtx, cancel := context.WithTimeout(s.tabCtx, s.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	)
	if err != nil {
		s.cleanup()
		return classify(err, "browser launch", "chromedp")
	}

	s.started = time.Now()
	return nil
}

// Fetch navigates the tab to url and returns the rendered HTML
func (s *ChromedpSession) Fetch(ctx context.Context, url string, opts FetchOptions) (page *Page, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tabCtx == nil {
		return nil, errs.New(errs.ErrorTypeSourceUnavailable, "browser session is closed")
	}

	var pc panics.Catcher
	pc.Try(func() {
		page, err = s.fetch(ctx, url, opts)
	})
	if r := pc.Recovered(); r != nil {
		return nil, errs.Wrap(r.AsError(), errs.ErrorTypeSourceUnavailable, "browser crashed while loading %s", url)
	}
	return page, err
}

func (s *ChromedpSession) fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error) {
	// Derived from the tab context so cancelling it never closes the tab
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.Sleep(s.opts.SettleDelay),
	}
	if opts.ClickSelector != "" {
		actions = append(actions, clickIfPresent(opts.ClickSelector, s.opts.SettleDelay))
	}

	var html, finalURL string
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, classify(ctx.Err(), "navigation", url)
		}
		return nil, classify(err, "navigation", url)
	}

	return &Page{URL: finalURL, HTML: html}, nil
}

func clickIfPresent(selector string, wait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return nil
		}
		if len(nodes) == 0 {
			return nil
		}
		if err := chromedp.MouseClickNode(nodes[0]).Do(ctx); err != nil {
			return nil
		}
		return chromedp.Sleep(wait).Do(ctx)
	})
}

// Reset closes the browser and starts a new one
func (s *ChromedpSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Logger.InfoWithFields("Recycling browser", map[string]interface{}{
		"uptime": time.Since(s.started),
	})
	s.cleanup()
	if err := s.start(ctx); err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	return nil
}

// Close shuts Chrome down
func (s *ChromedpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
	return nil
}

func (s *ChromedpSession) cleanup() {
	if s.tabCancel != nil {
		s.tabCancel()
		s.tabCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.tabCtx = nil
}
