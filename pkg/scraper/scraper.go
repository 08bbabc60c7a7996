package scraper

import (
	"context"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/config"
	"github.com/Adwaitkp/primaspot/pkg/ingest"
	"github.com/Adwaitkp/primaspot/pkg/instagram"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/metrics"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/staleness"
	"github.com/Adwaitkp/primaspot/pkg/storage"
	"github.com/sourcegraph/conc/pool"
)

// recentLimit is how many profiles the status view lists
const recentLimit = 10

// Deps wires a Coordinator
type Deps struct {
	Profiles ProfileStore
	Posts    ingest.Repository[*models.Post]
	Reels    ingest.Repository[*models.Reel]
	Pool     SessionPool
	Bind     AdapterBinder
	Config   config.ScrapeConfig
	Logger   logger.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// Coordinator sequences the profile, posts and reels stages for one identity
type Coordinator struct {
	profiles ProfileStore
	posts    *ingest.Pipeline[*models.Post]
	reels    *ingest.Pipeline[*models.Reel]
	pool     SessionPool
	bind     AdapterBinder
	gate     *staleness.Gate
	cfg      config.ScrapeConfig
	logger   logger.Logger
	now      func() time.Time
}

// New creates a Coordinator
func New(d Deps) *Coordinator {
	log := d.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	cfg := d.Config
	if cfg.PostsLimit <= 0 {
		cfg.PostsLimit = instagram.DefaultPostsLimit
	}
	if cfg.ReelsLimit <= 0 {
		cfg.ReelsLimit = instagram.DefaultReelsLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = instagram.MaxLimit
	}
	if cfg.CompleteTimeout <= 0 {
		cfg.CompleteTimeout = 5 * time.Minute
	}

	gate := staleness.NewGate(cfg.CacheThreshold)
	gate.Now = now

	return &Coordinator{
		profiles: d.Profiles,
		posts:    ingest.New[*models.Post](d.Posts, metrics.ScorePost, log),
		reels:    ingest.New[*models.Reel](d.Reels, metrics.ScoreReel, log),
		pool:     d.Pool,
		bind:     d.Bind,
		gate:     gate,
		cfg:      cfg,
		logger:   log,
		now:      now,
	}
}

// ScrapeProfile returns the stored profile when it is fresh and force is
// unset. Otherwise it fetches the profile and stores it. A failed fetch is
// reported in Result.Errors with a nil Profile.
func (c *Coordinator) ScrapeProfile(ctx context.Context, identity string, force bool) (*Result, error) {
	username, err := instagram.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	return c.newRun(username, plan{
		fetchProfile: true,
		useCache:     true,
		force:        force,
	}).execute(ctx)
}

// ScrapePosts fetches and ingests posts of an already stored profile
func (c *Coordinator) ScrapePosts(ctx context.Context, identity string, limit int) (*Result, error) {
	username, err := instagram.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	return c.newRun(username, plan{
		posts:      true,
		postsLimit: instagram.ClampLimit(limit, c.cfg.PostsLimit, c.cfg.MaxLimit),
	}).execute(ctx)
}

// ScrapeReels fetches and ingests reels of an already stored profile
func (c *Coordinator) ScrapeReels(ctx context.Context, identity string, limit int) (*Result, error) {
	username, err := instagram.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	return c.newRun(username, plan{
		reels:      true,
		reelsLimit: instagram.ClampLimit(limit, c.cfg.ReelsLimit, c.cfg.MaxLimit),
	}).execute(ctx)
}

// ScrapeComplete always fetches the profile, then posts, then reels, inside
// one session lease and under the complete timeout. Posts and reels are
// skipped when the profile stage fails.
func (c *Coordinator) ScrapeComplete(ctx context.Context, identity string, postsLimit, reelsLimit int) (*Result, error) {
	username, err := instagram.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CompleteTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.newRun(username, plan{
		fetchProfile: true,
		posts:        true,
		reels:        true,
		postsLimit:   instagram.ClampLimit(postsLimit, c.cfg.PostsLimit, c.cfg.MaxLimit),
		reelsLimit:   instagram.ClampLimit(reelsLimit, c.cfg.ReelsLimit, c.cfg.MaxLimit),
	}).execute(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("Complete scrape finished", map[string]interface{}{
		"username":    username,
		"posts":       res.Summary.PostsCount,
		"reels":       res.Summary.ReelsCount,
		"errors":      res.Summary.ErrorsCount,
		"warnings":    len(res.Warnings),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}

// Status collects store aggregates and the recent profiles concurrently
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	var (
		stats  *storage.Stats
		recent []*models.Profile
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		stats, err = c.profiles.Stats(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		recent, err = c.profiles.RecentProfiles(ctx, recentLimit)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return &Status{
		Stats:             stats,
		RecentInfluencers: recent,
		Sessions:          c.pool.Stats(),
	}, nil
}
