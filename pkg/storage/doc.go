// Package storage persists profiles, posts and reels in SQLite.
//
// The database is opened through modernc.org/sqlite (no cgo) and its schema is
// kept current by golang-migrate, reading the SQL files embedded from
// migrations/. Every connection in the pool gets the same pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = <database.busy_timeout>
//	synchronous  = NORMAL
//
// Profiles are upserted by username. Posts and reels are insert-only: a
// duplicate post_id, reel_id or shortcode surfaces as a persistence conflict,
// and a locked database is retried with exponential backoff before it is
// reported as store_busy.
//
// Usage:
//
//	store, err := storage.Open("./data/primaspot.db", storage.WithRetryAttempts(3))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	profile, err := store.GetProfile(ctx, "natgeo")
package storage
