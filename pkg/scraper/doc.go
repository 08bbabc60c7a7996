// Package scraper coordinates scrape runs for Instagram profiles.
//
// The Coordinator sequences the three fetch stages of a run against a leased
// browser session and persists what they produce.
//
// Architecture:
//
// Every operation is one pass through a small state machine:
//
//	Idle -> FetchingProfile -> ProfileFailed | ProfileReady -> FetchingPosts -> FetchingReels -> Done
//
//   - Idle loads the stored profile and applies the staleness gate. A fresh
//     profile ends the profile operation without touching the browser.
//   - FetchingProfile fetches and upserts the profile. On failure posts and
//     reels are not attempted.
//   - FetchingPosts and FetchingReels fetch content and run it through the
//     ingestion pipeline. A failed stage is recorded and the run moves on.
//   - Done merges the per-stage errors into the Result.
//
// Only a malformed identity, a busy session pool or a store failure while
// resolving the profile make an operation return an error. Everything else
// is reported in Result.Errors (stage failures) and Result.Warnings (items
// that could not be saved).
//
// Usage:
//
//	store, err := storage.Open(cfg.Database.Path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	factory, _ := browser.NewFactory(browser.Options{Headless: true})
//	sessions := session.New(factory, session.Config{Size: 1, MaxQueue: 8})
//	bind := instagram.Binder(instagram.AdapterOptions{NavigationTimeout: 30 * time.Second})
//
//	c := scraper.New(scraper.Deps{
//	    Profiles: store,
//	    Posts:    store.Posts(),
//	    Reels:    store.Reels(),
//	    Pool:     sessions,
//	    Bind:     func(s browser.Session) scraper.SourceAdapter { return bind(s) },
//	    Config:   cfg.Scrape,
//	})
//
//	res, err := c.ScrapeComplete(ctx, "natgeo", 12, 5)
//
// Sessions:
//
// A run holds at most one lease, taken when the first stage needs the
// browser and released at Done. A stage that fails with a source error
// invalidates the lease, so the session is reset before anyone else uses it.
package scraper
