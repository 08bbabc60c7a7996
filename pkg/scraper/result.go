package scraper

import (
	"fmt"
	"strings"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/ingest"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/Adwaitkp/primaspot/pkg/session"
	"github.com/Adwaitkp/primaspot/pkg/storage"
)

// Stage names one fetch phase of a run
type Stage string

const (
	StageProfile Stage = "profile"
	StagePosts   Stage = "posts"
	StageReels   Stage = "reels"
)

// Title is the stage name with its first letter capitalized, for messages
func (s Stage) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// StageError records a stage that produced nothing usable
type StageError struct {
	Stage   Stage          `json:"stage"`
	Kind    errs.ErrorType `json:"kind"`
	Message string         `json:"message"`
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s scraping failed: %s", e.Stage.Title(), e.Message)
}

func newStageError(stage Stage, err error) StageError {
	return StageError{Stage: stage, Kind: errs.TypeOf(err), Message: errs.Message(err)}
}

// Summary counts what a run produced
type Summary struct {
	ProfileScraped bool `json:"profileScraped"`
	PostsCount     int  `json:"postsCount"`
	ReelsCount     int  `json:"reelsCount"`
	ErrorsCount    int  `json:"errorsCount"`
}

// Result is what every scrape operation returns. A run that reached Done
// always yields a Result, whatever its stages did.
type Result struct {
	Username string             `json:"username"`
	Profile  *models.Profile    `json:"profile"`
	Cached   bool               `json:"cached"`
	Posts    []*models.Post     `json:"posts"`
	Reels    []*models.Reel     `json:"reels"`
	Errors   []StageError       `json:"errors"`
	Warnings []ingest.ItemError `json:"warnings,omitempty"`
	Summary  Summary            `json:"summary"`
}

// Failure returns the error recorded for stage, if any
func (r *Result) Failure(stage Stage) (StageError, bool) {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return e, true
		}
	}
	return StageError{}, false
}

// Status is the read-only aggregate view of the store and the session pool
type Status struct {
	Stats             *storage.Stats    `json:"stats"`
	RecentInfluencers []*models.Profile `json:"recentInfluencers"`
	Sessions          session.Stats     `json:"sessions"`
}
