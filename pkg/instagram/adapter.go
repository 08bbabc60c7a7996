package instagram

import (
	"context"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/ratelimit"
)

// AdapterOptions are shared by every Adapter a process creates
type AdapterOptions struct {
	// NavigationTimeout bounds each page load
	NavigationTimeout time.Duration
	// Limiter paces requests to Instagram across all sessions
	Limiter ratelimit.Limiter
	Logger  logger.Logger
}

// Adapter fetches profiles, posts and reels through one leased browser session
type Adapter struct {
	session browser.Session
	opts    AdapterOptions
	logger  logger.Logger
}

// NewAdapter binds an adapter to session
func NewAdapter(session browser.Session, opts AdapterOptions) *Adapter {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Adapter{session: session, opts: opts, logger: log}
}

// Binder returns a function that binds adapters with opts to leased sessions
func Binder(opts AdapterOptions) func(browser.Session) *Adapter {
	return func(s browser.Session) *Adapter {
		return NewAdapter(s, opts)
	}
}

func (a *Adapter) load(ctx context.Context, url string, fo browser.FetchOptions) (*browser.Page, error) {
	if a.opts.Limiter != nil {
		start := time.Now()
		if err := a.opts.Limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "waiting for instagram rate limit")
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			logger.LogRateLimit(a.logger, "instagram", waited)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, a.opts.NavigationTimeout)
	defer cancel()

	a.logger.DebugWithFields("Loading page", map[string]interface{}{"url": url})
	page, err := a.session.Fetch(navCtx, url, fo)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeInternal {
			err = errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "load %s", url)
		}
		return nil, err
	}
	return page, nil
}

// FetchProfile loads and parses the profile page of identity
func (a *Adapter) FetchProfile(ctx context.Context, identity string) (models.ProfileData, error) {
	page, err := a.load(ctx, ProfileURL(identity), browser.FetchOptions{})
	if err != nil {
		return models.ProfileData{}, err
	}

	raw, err := ParseProfile(page, identity)
	if err != nil {
		return models.ProfileData{}, err
	}
	return MapProfile(raw)
}

// FetchPosts returns up to limit posts from the profile grid. Fewer is not an error.
func (a *Adapter) FetchPosts(ctx context.Context, identity string, limit int) ([]models.PostData, error) {
	limit = ClampLimit(limit, DefaultPostsLimit, MaxLimit)

	page, err := a.load(ctx, ProfileURL(identity), browser.FetchOptions{})
	if err != nil {
		return nil, err
	}

	raw, err := ParseMedia(page, identity, false)
	if err != nil {
		return nil, err
	}

	posts, rejected := mapAll(raw, limit, MapPost)
	a.reportRejected(identity, "posts", rejected)
	return posts, nil
}

// FetchReels opens the reels tab and returns up to limit reels. The tab link
// is clicked as well for layouts that land on the post grid.
func (a *Adapter) FetchReels(ctx context.Context, identity string, limit int) ([]models.ReelData, error) {
	limit = ClampLimit(limit, DefaultReelsLimit, MaxLimit)

	page, err := a.load(ctx, ReelsURL(identity), browser.FetchOptions{ClickSelector: ReelsTabSelector})
	if err != nil {
		return nil, err
	}

	raw, err := ParseMedia(page, identity, true)
	if err != nil {
		return nil, err
	}

	reels, rejected := mapAll(raw, limit, MapReel)
	a.reportRejected(identity, "reels", rejected)
	return reels, nil
}

func (a *Adapter) reportRejected(identity, kind string, rejected []error) {
	for _, err := range rejected {
		a.logger.WarnWithFields("Dropped unreadable tile", map[string]interface{}{
			"username": identity,
			"kind":     kind,
			"error":    err.Error(),
		})
	}
}
