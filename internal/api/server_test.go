package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/ingest"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/scraper"
	"github.com/Adwaitkp/primaspot/pkg/session"
	"github.com/Adwaitkp/primaspot/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	identity string
	force    bool
	a, b     int
}

type fakeScraper struct {
	result *scraper.Result
	status *scraper.Status
	err    error
	calls  []call
}

func (f *fakeScraper) ScrapeProfile(ctx context.Context, identity string, force bool) (*scraper.Result, error) {
	f.calls = append(f.calls, call{identity: identity, force: force})
	return f.result, f.err
}

func (f *fakeScraper) ScrapePosts(ctx context.Context, identity string, limit int) (*scraper.Result, error) {
	f.calls = append(f.calls, call{identity: identity, a: limit})
	return f.result, f.err
}

func (f *fakeScraper) ScrapeReels(ctx context.Context, identity string, limit int) (*scraper.Result, error) {
	f.calls = append(f.calls, call{identity: identity, a: limit})
	return f.result, f.err
}

func (f *fakeScraper) ScrapeComplete(ctx context.Context, identity string, postsLimit, reelsLimit int) (*scraper.Result, error) {
	f.calls = append(f.calls, call{identity: identity, a: postsLimit, b: reelsLimit})
	return f.result, f.err
}

func (f *fakeScraper) Status(ctx context.Context) (*scraper.Status, error) {
	return f.status, f.err
}

func newTestServer(f *fakeScraper, opts Options) http.Handler {
	opts.Logger = logger.NewNopLogger()
	return NewServer(f, opts).Handler()
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

var testProfile = &models.Profile{ID: "id-1", Username: "natgeo", FullName: "National Geographic", Followers: 1000}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeScraper{}, Options{}), http.MethodGet, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "uptime")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeScraper{}, Options{}), http.MethodGet, "/api/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", body["error"])
}

func TestScrapeProfileResponses(t *testing.T) {
	tests := []struct {
		name        string
		result      *scraper.Result
		target      string
		wantStatus  int
		wantMessage string
		wantError   string
		wantForce   bool
	}{
		{
			name:        "cached",
			result:      &scraper.Result{Profile: testProfile, Cached: true},
			target:      "/api/scraping/profile/natgeo",
			wantStatus:  http.StatusOK,
			wantMessage: "Using cached data",
		},
		{
			name:        "fresh",
			result:      &scraper.Result{Profile: testProfile},
			target:      "/api/scraping/profile/natgeo?forceUpdate=true",
			wantStatus:  http.StatusOK,
			wantMessage: "Profile scraped successfully",
			wantForce:   true,
		},
		{
			name: "not found",
			result: &scraper.Result{Errors: []scraper.StageError{
				{Stage: scraper.StageProfile, Kind: errs.ErrorTypeNotFound, Message: "gone"},
			}},
			target:     "/api/scraping/profile/natgeo",
			wantStatus: http.StatusNotFound,
			wantError:  "Profile not found or private",
		},
		{
			name: "source unavailable",
			result: &scraper.Result{Errors: []scraper.StageError{
				{Stage: scraper.StageProfile, Kind: errs.ErrorTypeSourceUnavailable, Message: "navigation timed out"},
			}},
			target:     "/api/scraping/profile/natgeo",
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Unable to access this profile. It may be private, deleted, or Instagram is blocking access.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeScraper{result: tt.result}
			rec, body := do(t, newTestServer(f, Options{}), http.MethodPost, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, tt.wantMessage, body["message"])
				data := body["data"].(map[string]interface{})
				assert.Equal(t, "natgeo", data["username"])
			}
			if tt.wantError != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotEmpty(t, body["details"])
			}
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "Try again in a few minutes or verify the username is correct and public.", body["suggestion"])
			}
			require.Len(t, f.calls, 1)
			assert.Equal(t, tt.wantForce, f.calls[0].force)
		})
	}
}

func TestOperationErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{errs.New(errs.ErrorTypeInputInvalid, "invalid username"), http.StatusBadRequest},
		{errs.New(errs.ErrorTypeNotFound, "Influencer not found. Please scrape profile first."), http.StatusNotFound},
		{errs.New(errs.ErrorTypeBusy, "browser busy"), http.StatusServiceUnavailable},
		{errs.New(errs.ErrorTypeInternal, "disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(errs.TypeOf(tt.err)), func(t *testing.T) {
			h := newTestServer(&fakeScraper{err: tt.err}, Options{RetryAfter: 45 * time.Second})
			rec, body := do(t, h, http.MethodPost, "/api/scraping/posts/natgeo")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, errs.Message(tt.err), body["error"])
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "45", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestScrapePostsResponses(t *testing.T) {
	t.Run("processed", func(t *testing.T) {
		f := &fakeScraper{result: &scraper.Result{
			Profile:  testProfile,
			Posts:    []*models.Post{{PostID: "p1"}, {PostID: "p2"}},
			Warnings: []ingest.ItemError{{ContentID: "p3", Kind: errs.ErrorTypePersistenceConflict, Reason: "post p3 already exists"}},
		}}
		rec, body := do(t, newTestServer(f, Options{}), http.MethodPost, "/api/scraping/posts/natgeo?limit=7")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2 posts processed", body["message"])
		assert.Len(t, body["data"], 2)
		assert.Len(t, body["skipped"], 1)
		assert.Equal(t, 7, f.calls[0].a)
	})

	t.Run("stage failed", func(t *testing.T) {
		f := &fakeScraper{result: &scraper.Result{
			Profile: testProfile,
			Posts:   []*models.Post{},
			Errors:  []scraper.StageError{{Stage: scraper.StagePosts, Kind: errs.ErrorTypeSourceUnavailable, Message: "timeout"}},
		}}
		rec, body := do(t, newTestServer(f, Options{}), http.MethodPost, "/api/scraping/posts/natgeo?limit=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "timeout", body["warning"])
		assert.Empty(t, body["data"])
		assert.Zero(t, f.calls[0].a, "malformed limit falls back to the default")
	})

	t.Run("empty", func(t *testing.T) {
		f := &fakeScraper{result: &scraper.Result{Profile: testProfile, Reels: []*models.Reel{}}}
		_, body := do(t, newTestServer(f, Options{}), http.MethodPost, "/api/scraping/reels/natgeo")

		assert.Equal(t, "No reels found", body["message"])
	})
}

func TestScrapeComplete(t *testing.T) {
	f := &fakeScraper{result: &scraper.Result{
		Profile: testProfile,
		Posts:   []*models.Post{},
		Reels:   []*models.Reel{{ReelID: "r1"}},
		Errors:  []scraper.StageError{{Stage: scraper.StagePosts, Kind: errs.ErrorTypeSourceUnavailable, Message: "timeout"}},
		Summary: scraper.Summary{ProfileScraped: true, ReelsCount: 1, ErrorsCount: 1},
	}}
	rec, body := do(t, newTestServer(f, Options{}), http.MethodPost, "/api/scraping/complete/natgeo?postsLimit=20&reelsLimit=3")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Scraping completed with some issues - Instagram may be blocking access", body["message"])
	assert.Equal(t, []interface{}{"Posts scraping failed: timeout"}, body["warnings"])

	data := body["data"].(map[string]interface{})
	assert.Len(t, data["reels"], 1)
	assert.Len(t, data["errors"], 1)

	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, true, summary["profileScraped"])
	assert.Equal(t, float64(1), summary["errorsCount"])

	assert.Equal(t, call{identity: "natgeo", a: 20, b: 3}, f.calls[0])
}

func TestStatusEndpoint(t *testing.T) {
	f := &fakeScraper{status: &scraper.Status{
		Stats:             &storage.Stats{TotalInfluencers: 2, TotalFollowers: 300, AvgFollowers: 150, PostsCount: 4, ReelsCount: 1},
		RecentInfluencers: []*models.Profile{testProfile},
		Sessions:          session.Stats{Size: 1, Idle: 1},
	}}
	rec, body := do(t, newTestServer(f, Options{}), http.MethodGet, "/api/scraping/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	stats := data["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["totalInfluencers"])
	assert.Nil(t, stats["lastUpdate"])
	assert.Equal(t, float64(4), data["postsCount"])

	recent := data["recentInfluencers"].([]interface{})
	require.Len(t, recent, 1)
	assert.Equal(t, "natgeo", recent[0].(map[string]interface{})["username"])
}

func TestRateLimitPerClient(t *testing.T) {
	h := newTestServer(&fakeScraper{}, Options{RequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/health")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := do(t, h, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", body["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	other.RemoteAddr = "10.0.0.9:4000"
	otherRec := httptest.NewRecorder()
	h.ServeHTTP(otherRec, other)
	assert.Equal(t, http.StatusOK, otherRec.Code, "budgets are per client IP")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeScraper{}, Options{FrontendURL: "https://app.example.com"})
	rec, _ := do(t, h, http.MethodOptions, "/api/scraping/profile/natgeo")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIKey(t *testing.T) {
	f := &fakeScraper{result: &scraper.Result{Profile: testProfile}}
	h := newTestServer(f, Options{APIKey: "secret"})

	rec, _ := do(t, h, http.MethodPost, "/api/scraping/profile/natgeo")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/scraping/profile/natgeo", nil)
	req.Header.Set("X-API-Key", "secret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	health, _ := do(t, h, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, health.Code, "health stays open")
}

func TestRecoveryReturnsJSON(t *testing.T) {
	h := newTestServer(&fakeScraper{}, Options{})
	// a nil status makes the handler dereference nil
	rec, body := do(t, h, http.MethodGet, "/api/scraping/status")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}
