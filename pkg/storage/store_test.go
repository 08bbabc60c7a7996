package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"), WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func saveProfile(t *testing.T, store *Store, username string, followers int64, at time.Time) *models.Profile {
	t.Helper()
	p := models.NewProfile(models.ProfileData{Username: username, FullName: username, Followers: followers}, at)
	require.NoError(t, store.SaveProfile(context.Background(), p))
	return p
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(path, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	saveProfile(t, first, "natgeo", 10, epoch)
	require.NoError(t, first.Close())

	second, err := Open(path, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	defer second.Close()

	p, err := second.GetProfile(context.Background(), "natgeo")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, second.Ping(context.Background()))
}

func TestGetProfileMissing(t *testing.T) {
	store := openTestStore(t)

	p, err := store.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSaveProfileRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	in := models.NewProfile(models.ProfileData{
		Username:   "natgeo",
		FullName:   "National Geographic",
		Biography:  "Photos",
		Followers:  283000000,
		Following:  180,
		PostsCount: 30000,
		IsVerified: true,
		Category:   "travel",
	}, epoch)
	require.NoError(t, store.SaveProfile(ctx, in))

	out, err := store.GetProfile(ctx, "natgeo")
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "National Geographic", out.FullName)
	assert.Equal(t, int64(283000000), out.Followers)
	assert.True(t, out.IsVerified)
	assert.False(t, out.IsPrivate)
	assert.Equal(t, models.CategoryTravel, out.Category)
	assert.True(t, epoch.Equal(out.LastScraped))
	assert.True(t, epoch.Equal(out.CreatedAt))
	assert.True(t, out.Analytics.LastUpdated.IsZero())
}

func TestSaveProfileReplacesButKeepsIdentity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	original := saveProfile(t, store, "natgeo", 100, epoch)
	original.Analytics = models.Analytics{AverageLikes: 12, AverageComments: 3, EngagementRate: 15, LastUpdated: epoch}
	require.NoError(t, store.UpdateAnalytics(ctx, original))

	// a rescrape builds a fresh record with a new id
	later := epoch.Add(48 * time.Hour)
	rescraped := models.NewProfile(models.ProfileData{Username: "natgeo", FullName: "Nat Geo", Followers: 200}, later)
	require.NotEqual(t, original.ID, rescraped.ID)
	require.NoError(t, store.SaveProfile(ctx, rescraped))

	assert.Equal(t, original.ID, rescraped.ID, "stored id is written back")
	assert.True(t, epoch.Equal(rescraped.CreatedAt))

	stored, err := store.GetProfile(ctx, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, original.ID, stored.ID)
	assert.Equal(t, "Nat Geo", stored.FullName)
	assert.Equal(t, int64(200), stored.Followers)
	assert.True(t, later.Equal(stored.LastScraped))
	assert.True(t, epoch.Equal(stored.CreatedAt))
	assert.Equal(t, 12.0, stored.Analytics.AverageLikes, "analytics survive a profile replace")
}

func TestSaveProfileWritesEngagementRate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := saveProfile(t, store, "natgeo", 100, epoch)
	p.Analytics = models.Analytics{AverageLikes: 12, AverageComments: 3, EngagementRate: 15, LastUpdated: epoch}
	require.NoError(t, store.UpdateAnalytics(ctx, p))

	p.Followers = 300
	p.Analytics.EngagementRate = 5
	require.NoError(t, store.SaveProfile(ctx, p))

	stored, err := store.GetProfile(ctx, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, int64(300), stored.Followers)
	assert.Equal(t, 5.0, stored.Analytics.EngagementRate)
	assert.Equal(t, 12.0, stored.Analytics.AverageLikes)
	assert.Equal(t, 3.0, stored.Analytics.AverageComments)
}

func TestUpdateAnalyticsUnknownProfile(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateAnalytics(context.Background(), &models.Profile{ID: "missing", Username: "ghost"})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestPostsAreInsertOnly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	owner := saveProfile(t, store, "natgeo", 1000, epoch)

	post := models.NewPost(models.PostData{PostID: "CxA", Shortcode: "CxA", Caption: "Hello #World @friend", Likes: 50, Comments: 5}, epoch)
	post.AttachOwner(owner.ID)
	post.Performance = models.PostPerformance{EngagementRate: 5.5, LikesToFollowersRatio: 5, CommentsToLikesRatio: 10}
	require.NoError(t, store.Posts().Insert(ctx, post))

	found, ok, err := store.Posts().FindByContentID(ctx, "CxA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, post.ID, found.ID)
	assert.Equal(t, owner.ID, found.ProfileID)
	assert.Equal(t, []string{"world"}, found.Hashtags)
	assert.Equal(t, []string{"friend"}, found.Mentions)
	assert.Equal(t, 5.5, found.Performance.EngagementRate)
	assert.JSONEq(t, `{}`, string(found.Analysis))
	assert.Equal(t, models.PostTypePhoto, found.Type)

	dup := models.NewPost(models.PostData{PostID: "CxA", Shortcode: "CxA", Likes: 900}, epoch)
	dup.AttachOwner(owner.ID)
	err = store.Posts().Insert(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePersistenceConflict, errs.TypeOf(err))
	assert.Contains(t, errs.Message(err), "already exists")

	_, ok, err = store.Posts().FindByContentID(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostNeedsStoredOwner(t *testing.T) {
	store := openTestStore(t)

	orphan := models.NewPost(models.PostData{PostID: "o1", Shortcode: "o1"}, epoch)
	orphan.AttachOwner("no-such-profile")
	err := store.Posts().Insert(context.Background(), orphan)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInternal, errs.TypeOf(err))
}

func TestReelsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	owner := saveProfile(t, store, "natgeo", 4000, epoch)

	for i, id := range []string{"r1", "r2"} {
		reel := models.NewReel(models.ReelData{ReelID: id, Shortcode: id, Views: 1000, Likes: 80, Shares: 5}, epoch.Add(time.Duration(i)*time.Hour))
		reel.AttachOwner(owner.ID)
		require.NoError(t, store.Reels().Insert(ctx, reel))
	}

	reels, err := store.Reels().ForProfile(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, reels, 2)
	assert.Equal(t, "r2", reels[0].ReelID, "newest first")
	assert.Equal(t, models.DefaultReelDuration, reels[0].Duration)

	dup := models.NewReel(models.ReelData{ReelID: "r3", Shortcode: "r1"}, epoch)
	dup.AttachOwner(owner.ID)
	err = store.Reels().Insert(ctx, dup)
	assert.Equal(t, errs.ErrorTypePersistenceConflict, errs.TypeOf(err), "shortcode is unique too")
}

func TestStatsAndRecentProfiles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalInfluencers)
	assert.True(t, empty.LastUpdate.IsZero())

	a := saveProfile(t, store, "alpha", 100, epoch)
	saveProfile(t, store, "bravo", 201, epoch.Add(time.Hour))
	saveProfile(t, store, "charlie", 0, epoch.Add(2*time.Hour))

	post := models.NewPost(models.PostData{PostID: "p1", Shortcode: "p1"}, epoch)
	post.AttachOwner(a.ID)
	require.NoError(t, store.Posts().Insert(ctx, post))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalInfluencers)
	assert.Equal(t, int64(301), st.TotalFollowers)
	assert.Equal(t, 100.33, st.AvgFollowers)
	assert.True(t, epoch.Add(2*time.Hour).Equal(st.LastUpdate))
	assert.Equal(t, int64(1), st.PostsCount)
	assert.Zero(t, st.ReelsCount)

	recent, err := store.RecentProfiles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "charlie", recent[0].Username)
	assert.Equal(t, "bravo", recent[1].Username)
}

func TestWriteRetriesStoreBusy(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "test.db"),
		WithLogger(logger.NewNopLogger()),
		WithRetryAttempts(3),
		WithBackoff(&retry.ConstantBackoff{Delay: time.Millisecond}),
	)
	require.NoError(t, err)
	defer store.Close()

	attempts := 0
	err = store.write(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Wrap(errors.New("database is locked"), errs.ErrorTypeStoreBusy, "locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = store.write(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypePersistenceConflict, "dup")
	})
	assert.Equal(t, 1, attempts, "conflicts are not retried")
	assert.Equal(t, errs.ErrorTypePersistenceConflict, errs.TypeOf(err))
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	early := formatTime(time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC))
	late := formatTime(time.Date(2026, 1, 1, 0, 0, 5, 500_000_000, time.UTC))
	assert.Less(t, early, late)
	assert.Len(t, early, len(late))

	parsed, err := parseTime(late)
	require.NoError(t, err)
	assert.Equal(t, 500_000_000, parsed.Nanosecond())

	assert.Empty(t, formatTime(time.Time{}))
}
