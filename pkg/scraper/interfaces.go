package scraper

import (
	"context"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/session"
	"github.com/Adwaitkp/primaspot/pkg/storage"
)

// SourceAdapter fetches typed payloads for one identity from the source.
// Failures are classified as NotFound or SourceUnavailable.
type SourceAdapter interface {
	FetchProfile(ctx context.Context, identity string) (models.ProfileData, error)
	FetchPosts(ctx context.Context, identity string, limit int) ([]models.PostData, error)
	FetchReels(ctx context.Context, identity string, limit int) ([]models.ReelData, error)
}

// AdapterBinder builds a SourceAdapter on top of a leased browser session
type AdapterBinder func(browser.Session) SourceAdapter

// ProfileStore is the profile side of the result store
type ProfileStore interface {
	GetProfile(ctx context.Context, username string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	UpdateAnalytics(ctx context.Context, p *models.Profile) error
	RecentProfiles(ctx context.Context, limit int) ([]*models.Profile, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

// SessionPool hands out exclusive browser sessions
type SessionPool interface {
	Acquire(ctx context.Context) (*session.Lease, error)
	Stats() session.Stats
}
