package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sourcegraph/conc/panics"
)

// RodSession is a Session backed by go-rod with the stealth page patches applied
type RodSession struct {
	opts Options

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	started time.Time
}

// NewRodSession launches (or connects to) Chrome and opens a stealth page
func NewRodSession(ctx context.Context, opts Options) (*RodSession, error) {
	opts.defaults()
	s := &RodSession{opts: opts}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RodSession) start(ctx context.Context) error {
	log := s.opts.Logger

	wsURL := s.opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(s.opts.Headless).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage")

		u, err := l.Launch()
		if err != nil {
			return classify(err, "browser launch", "local chrome")
		}
		wsURL = u
		s.lnch = l
		log.DebugWithFields("Launched local chrome", map[string]interface{}{"url": wsURL})
	} else {
		log.DebugWithFields("Connecting to remote chrome", map[string]interface{}{"url": wsURL})
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return classify(err, "browser connect", wsURL)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.cleanup()
		return classify(err, "open page", wsURL)
	}
	if s.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.opts.UserAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		}); err != nil {
			log.WithError(err).Warn("Failed to override user agent")
		}
	}

	s.page = page
	s.started = time.Now()
	return nil
}

// Fetch navigates the session's page to url and returns the rendered HTML
func (s *RodSession) Fetch(ctx context.Context, url string, opts FetchOptions) (page *Page, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
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

func (s *RodSession) fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error) {
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return nil, classify(err, "navigation", url)
	}
	if err := p.WaitLoad(); err != nil {
		if navCtx.Err() != nil {
			return nil, classify(navCtx.Err(), "navigation", url)
		}
		s.opts.Logger.WithError(err).Debug("Load event not seen, reading the page anyway")
	}
	if err := settle(navCtx, s.opts.SettleDelay); err != nil {
		return nil, classify(err, "navigation", url)
	}

	if opts.ClickSelector != "" {
		if el, err := p.Timeout(2 * time.Second).Element(opts.ClickSelector); err == nil {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
				_ = settle(navCtx, s.opts.SettleDelay)
			}
		}
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, classify(err, "read document", url)
	}

	finalURL := url
	if info, err := p.Info(); err == nil {
		finalURL = info.URL
	}

	return &Page{URL: finalURL, HTML: res.Value.Str()}, nil
}

// Reset closes the browser and starts a new one
func (s *RodSession) Reset(ctx context.Context) error {
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
func (s *RodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
	return nil
}

func (s *RodSession) cleanup() {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}
