package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/scraper"
	"github.com/gin-gonic/gin"
)

const (
	msgCached           = "Using cached data"
	msgProfileScraped   = "Profile scraped successfully"
	msgProfileBlocked   = "Unable to access this profile. It may be private, deleted, or Instagram is blocking access."
	msgProfileSuggest   = "Try again in a few minutes or verify the username is correct and public."
	msgProfileMissing   = "Profile not found or private"
	msgCompleteIssues   = "Scraping completed with some issues - Instagram may be blocking access"
	msgCompleteFinished = "Complete scraping finished successfully"
)

// Handler serves the scraping routes
type Handler struct {
	svc        Scraper
	retryAfter time.Duration
	logger     logger.Logger
	started    time.Time
}

// NewHandler creates a Handler
func NewHandler(svc Scraper, retryAfter time.Duration, log logger.Logger) *Handler {
	return &Handler{svc: svc, retryAfter: retryAfter, logger: log, started: time.Now()}
}

// Health reports liveness and process uptime in seconds
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

// ScrapeProfile handles POST /api/scraping/profile/:username?forceUpdate=
func (h *Handler) ScrapeProfile(c *gin.Context) {
	force := queryBool(c, "forceUpdate")

	res, err := h.svc.ScrapeProfile(c.Request.Context(), c.Param("username"), force)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if failure, failed := res.Failure(scraper.StageProfile); failed {
		if failure.Kind == errs.ErrorTypeNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   msgProfileMissing,
				"details": failure.Message,
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":    false,
			"error":      msgProfileBlocked,
			"details":    failure.Message,
			"suggestion": msgProfileSuggest,
		})
		return
	}

	message := msgProfileScraped
	if res.Cached {
		message = msgCached
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"data":    res.Profile,
	})
}

// ScrapePosts handles POST /api/scraping/posts/:username?limit=
func (h *Handler) ScrapePosts(c *gin.Context) {
	res, err := h.svc.ScrapePosts(c.Request.Context(), c.Param("username"), queryInt(c, "limit"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeContent(c, res, scraper.StagePosts, res.Posts, len(res.Posts))
}

// ScrapeReels handles POST /api/scraping/reels/:username?limit=
func (h *Handler) ScrapeReels(c *gin.Context) {
	res, err := h.svc.ScrapeReels(c.Request.Context(), c.Param("username"), queryInt(c, "limit"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeContent(c, res, scraper.StageReels, res.Reels, len(res.Reels))
}

// writeContent answers a single-stage run. A failed stage still returns 200
// with an empty list and the failure as a warning.
func writeContent(c *gin.Context, res *scraper.Result, stage scraper.Stage, items interface{}, n int) {
	if failure, failed := res.Failure(stage); failed {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": fmt.Sprintf("Unable to retrieve %s at this time. The profile may be private or Instagram is limiting access.", stage),
			"data":    []struct{}{},
			"warning": failure.Message,
		})
		return
	}

	body := gin.H{
		"success": true,
		"message": fmt.Sprintf("%d %s processed", n, stage),
		"data":    items,
	}
	if n == 0 && len(res.Warnings) == 0 {
		body["message"] = fmt.Sprintf("No %s found", stage)
	}
	if len(res.Warnings) > 0 {
		body["skipped"] = res.Warnings
	}
	c.JSON(http.StatusOK, body)
}

// ScrapeComplete handles POST /api/scraping/complete/:username?postsLimit=&reelsLimit=
func (h *Handler) ScrapeComplete(c *gin.Context) {
	res, err := h.svc.ScrapeComplete(c.Request.Context(), c.Param("username"),
		queryInt(c, "postsLimit"), queryInt(c, "reelsLimit"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	stageErrors := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		stageErrors = append(stageErrors, e.Error())
	}

	message := msgCompleteFinished
	if res.Summary.ErrorsCount > 0 {
		message = msgCompleteIssues
	}

	body := gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"profile": res.Profile,
			"posts":   res.Posts,
			"reels":   res.Reels,
			"errors":  stageErrors,
		},
		"summary": res.Summary,
	}
	if len(stageErrors) > 0 {
		body["warnings"] = stageErrors
	}
	if len(res.Warnings) > 0 {
		body["skipped"] = res.Warnings
	}
	c.JSON(http.StatusOK, body)
}

type influencerSummary struct {
	Username    string    `json:"username"`
	FullName    string    `json:"fullName"`
	LastScraped time.Time `json:"lastScraped"`
	Followers   int64     `json:"followers"`
	PostsCount  int64     `json:"postsCount"`
}

func summarize(profiles []*models.Profile) []influencerSummary {
	out := make([]influencerSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, influencerSummary{
			Username:    p.Username,
			FullName:    p.FullName,
			LastScraped: p.LastScraped,
			Followers:   p.Followers,
			PostsCount:  p.PostsCount,
		})
	}
	return out
}

// Status handles GET /api/scraping/status
func (h *Handler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	stats := gin.H{
		"totalInfluencers": st.Stats.TotalInfluencers,
		"totalFollowers":   st.Stats.TotalFollowers,
		"avgFollowers":     st.Stats.AvgFollowers,
		"lastUpdate":       nil,
	}
	if !st.Stats.LastUpdate.IsZero() {
		stats["lastUpdate"] = st.Stats.LastUpdate
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"stats":             stats,
			"postsCount":        st.Stats.PostsCount,
			"reelsCount":        st.Stats.ReelsCount,
			"recentInfluencers": summarize(st.RecentInfluencers),
			"sessions":          st.Sessions,
		},
	})
}

// writeError maps an operation-level error onto a status code
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.TypeOf(err) {
	case errs.ErrorTypeInputInvalid:
		status = http.StatusBadRequest
	case errs.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errs.ErrorTypeBusy:
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("Scrape request failed")
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   errs.Message(err),
	})
}

// queryInt returns 0 for a missing or malformed value so the caller's default applies
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func queryBool(c *gin.Context, key string) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		// ?forceUpdate with any other value counts as set
		return v != ""
	}
	return b
}
