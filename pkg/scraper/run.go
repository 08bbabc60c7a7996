package scraper

import (
	"context"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/ingest"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/metrics"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/session"
)

// State is a position in the scrape state machine
type State int

const (
	StateIdle State = iota
	StateFetchingProfile
	StateProfileFailed
	StateProfileReady
	StateFetchingPosts
	StateFetchingReels
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingProfile:
		return "fetching_profile"
	case StateProfileFailed:
		return "profile_failed"
	case StateProfileReady:
		return "profile_ready"
	case StateFetchingPosts:
		return "fetching_posts"
	case StateFetchingReels:
		return "fetching_reels"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// plan selects the stages of a run
type plan struct {
	// fetchProfile hits the source for the profile. Without it the profile
	// must already be stored.
	fetchProfile bool
	// useCache lets a fresh stored profile end the run early
	useCache   bool
	force      bool
	posts      bool
	reels      bool
	postsLimit int
	reelsLimit int
}

// run is one pass through the state machine. Every stage writes only to its
// own error slice; they are merged into the Result at Done.
type run struct {
	c        *Coordinator
	plan     plan
	username string
	log      logger.Logger

	lease   *session.Lease
	adapter SourceAdapter

	profile *models.Profile
	cached  bool
	posts   []*models.Post
	reels   []*models.Reel

	profileErrs []StageError
	postErrs    []StageError
	reelErrs    []StageError
	warnings    []ingest.ItemError

	// fatal aborts the run: busy pool or a failed profile lookup/save
	fatal error
}

func (c *Coordinator) newRun(username string, p plan) *run {
	return &run{
		c:        c,
		plan:     p,
		username: username,
		log:      c.logger.WithField("username", username),
		posts:    []*models.Post{},
		reels:    []*models.Reel{},
	}
}

// execute drives the run from Idle to Done
func (r *run) execute(ctx context.Context) (*Result, error) {
	defer r.release()

	state := StateIdle
	for state != StateDone {
		next := r.step(ctx, state)
		r.log.DebugWithFields("Scrape state transition", map[string]interface{}{
			"from": state.String(),
			"to":   next.String(),
		})
		state = next
	}

	if r.fatal != nil {
		return nil, r.fatal
	}
	return r.result(), nil
}

func (r *run) step(ctx context.Context, state State) State {
	switch state {
	case StateIdle:
		return r.resolve(ctx)
	case StateFetchingProfile:
		return r.fetchProfile(ctx)
	case StateProfileFailed:
		return StateDone
	case StateProfileReady:
		switch {
		case r.plan.posts:
			return StateFetchingPosts
		case r.plan.reels:
			return StateFetchingReels
		default:
			return StateDone
		}
	case StateFetchingPosts:
		r.fetchPosts(ctx)
		if r.fatal != nil || !r.plan.reels {
			return StateDone
		}
		return StateFetchingReels
	case StateFetchingReels:
		r.fetchReels(ctx)
		return StateDone
	default:
		return StateDone
	}
}

// resolve loads the stored profile and decides whether the source is needed
func (r *run) resolve(ctx context.Context) State {
	existing, err := r.c.profiles.GetProfile(ctx, r.username)
	if err != nil {
		r.fatal = err
		return StateDone
	}

	if !r.plan.fetchProfile {
		if existing == nil {
			r.fatal = errs.New(errs.ErrorTypeNotFound, "Influencer not found. Please scrape profile first.")
			return StateDone
		}
		r.profile = existing
		return StateProfileReady
	}

	r.profile = existing
	if r.plan.useCache && !r.c.gate.ShouldRefetch(existing, r.plan.force) {
		r.cached = true
		r.log.DebugWithFields("Serving cached profile", map[string]interface{}{
			"age": r.c.gate.Age(existing).String(),
		})
		return StateDone
	}
	return StateFetchingProfile
}

func (r *run) fetchProfile(ctx context.Context) State {
	start := time.Now()

	adapter, err := r.bind(ctx)
	if err != nil {
		if r.fatal != nil {
			return StateDone
		}
		r.profileErrs = append(r.profileErrs, r.fail(StageProfile, err, start))
		return StateProfileFailed
	}

	data, err := adapter.FetchProfile(ctx, r.username)
	if err != nil {
		r.profileErrs = append(r.profileErrs, r.fail(StageProfile, err, start))
		// a stale stored profile is not a result of this run
		r.profile = nil
		return StateProfileFailed
	}

	now := r.c.now()
	if r.profile == nil {
		r.profile = models.NewProfile(data, now)
	} else {
		r.profile.Replace(data, now)
	}
	metrics.RefreshProfile(r.profile)

	if err := r.c.profiles.SaveProfile(ctx, r.profile); err != nil {
		r.fatal = err
		return StateDone
	}

	logger.LogStage(r.c.logger, r.username, string(StageProfile), 1, time.Since(start), nil)
	return StateProfileReady
}

func (r *run) fetchPosts(ctx context.Context) {
	start := time.Now()

	adapter, err := r.bind(ctx)
	if err != nil {
		if r.fatal == nil {
			r.postErrs = append(r.postErrs, r.fail(StagePosts, err, start))
		}
		return
	}

	data, err := adapter.FetchPosts(ctx, r.username, r.plan.postsLimit)
	if err != nil {
		r.postErrs = append(r.postErrs, r.fail(StagePosts, err, start))
		return
	}

	now := r.c.now()
	items := make([]*models.Post, 0, len(data))
	for _, d := range data {
		items = append(items, models.NewPost(d, now))
	}

	out := r.c.posts.Ingest(ctx, items, r.profile)
	r.posts = out.Saved
	r.warnings = append(r.warnings, out.Errors...)

	if len(out.Saved) > 0 {
		if err := r.refreshAnalytics(ctx, out.Saved); err != nil {
			r.postErrs = append(r.postErrs, r.fail(StagePosts, err, start))
			return
		}
	}
	logger.LogStage(r.c.logger, r.username, string(StagePosts), len(out.Saved), time.Since(start), nil)
}

// refreshAnalytics recomputes the profile snapshot from the posts saved in this run
func (r *run) refreshAnalytics(ctx context.Context, saved []*models.Post) error {
	avgLikes, avgComments := metrics.Averages(saved)
	r.profile.Analytics.AverageLikes = avgLikes
	r.profile.Analytics.AverageComments = avgComments
	r.profile.Analytics.LastUpdated = r.c.now()
	metrics.RefreshProfile(r.profile)

	return r.c.profiles.UpdateAnalytics(ctx, r.profile)
}

func (r *run) fetchReels(ctx context.Context) {
	start := time.Now()

	adapter, err := r.bind(ctx)
	if err != nil {
		if r.fatal == nil {
			r.reelErrs = append(r.reelErrs, r.fail(StageReels, err, start))
		}
		return
	}

	data, err := adapter.FetchReels(ctx, r.username, r.plan.reelsLimit)
	if err != nil {
		r.reelErrs = append(r.reelErrs, r.fail(StageReels, err, start))
		return
	}

	now := r.c.now()
	items := make([]*models.Reel, 0, len(data))
	for _, d := range data {
		items = append(items, models.NewReel(d, now))
	}

	out := r.c.reels.Ingest(ctx, items, r.profile)
	r.reels = out.Saved
	r.warnings = append(r.warnings, out.Errors...)
	logger.LogStage(r.c.logger, r.username, string(StageReels), len(out.Saved), time.Since(start), nil)
}

// bind leases a browser session on first use. A busy pool is fatal; any
// other acquire failure is left to the calling stage.
func (r *run) bind(ctx context.Context) (SourceAdapter, error) {
	if r.adapter != nil {
		return r.adapter, nil
	}

	lease, err := r.c.pool.Acquire(ctx)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeBusy) {
			r.fatal = err
		}
		return nil, err
	}
	r.lease = lease
	r.adapter = r.c.bind(lease.Session())
	return r.adapter, nil
}

// fail logs a stage failure and invalidates the session when the source
// looked broken, so the next lease gets a fresh browser.
func (r *run) fail(stage Stage, err error, start time.Time) StageError {
	logger.LogStage(r.c.logger, r.username, string(stage), 0, time.Since(start), err)
	if r.lease != nil && errs.Is(err, errs.ErrorTypeSourceUnavailable) {
		r.lease.Invalidate()
	}
	return newStageError(stage, err)
}

func (r *run) release() {
	if r.lease != nil {
		r.lease.Release()
		r.lease = nil
		r.adapter = nil
	}
}

func (r *run) result() *Result {
	stageErrs := make([]StageError, 0, len(r.profileErrs)+len(r.postErrs)+len(r.reelErrs))
	stageErrs = append(stageErrs, r.profileErrs...)
	stageErrs = append(stageErrs, r.postErrs...)
	stageErrs = append(stageErrs, r.reelErrs...)

	return &Result{
		Username: r.username,
		Profile:  r.profile,
		Cached:   r.cached,
		Posts:    r.posts,
		Reels:    r.reels,
		Errors:   stageErrs,
		Warnings: r.warnings,
		Summary: Summary{
			ProfileScraped: r.plan.fetchProfile && !r.cached && r.profile != nil && len(r.profileErrs) == 0,
			PostsCount:     len(r.posts),
			ReelsCount:     len(r.reels),
			ErrorsCount:    len(stageErrs),
		},
	}
}
