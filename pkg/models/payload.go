package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ProfileData is a validated profile as returned by the source adapter.
// Nothing reaches the store without passing through one of these payloads.
type ProfileData struct {
	Username      string
	FullName      string
	ProfilePicURL string
	InstagramID   string
	Biography     string
	Website       string
	Followers     int64
	Following     int64
	PostsCount    int64
	IsVerified    bool
	IsPrivate     bool
	Category      string
}

// Validate rejects payloads that must not be persisted
func (d ProfileData) Validate() error {
	var errs []error
	if d.Username == "" {
		errs = append(errs, errors.New("username is empty"))
	}
	if d.Followers < 0 || d.Following < 0 || d.PostsCount < 0 {
		errs = append(errs, fmt.Errorf("negative counters (followers=%d following=%d posts=%d)",
			d.Followers, d.Following, d.PostsCount))
	}
	return errors.Join(errs...)
}

// PostData is a validated post as returned by the source adapter
type PostData struct {
	PostID       string
	Shortcode    string
	Type         PostType
	ImageURL     string
	ThumbnailURL string
	DisplayURL   string
	Caption      string
	Likes        int64
	Comments     int64
	Views        int64
	Timestamp    time.Time
	Location     string
}

// Validate rejects payloads that must not be persisted
func (d PostData) Validate() error {
	var errs []error
	if d.PostID == "" {
		errs = append(errs, errors.New("post id is empty"))
	}
	if d.Shortcode == "" {
		errs = append(errs, errors.New("shortcode is empty"))
	}
	switch d.Type {
	case "", PostTypePhoto, PostTypeVideo, PostTypeCarousel:
	default:
		errs = append(errs, fmt.Errorf("unknown post type %q", d.Type))
	}
	if d.Likes < 0 || d.Comments < 0 || d.Views < 0 {
		errs = append(errs, fmt.Errorf("negative counters (likes=%d comments=%d views=%d)",
			d.Likes, d.Comments, d.Views))
	}
	return errors.Join(errs...)
}

// ReelData is a validated reel as returned by the source adapter
type ReelData struct {
	ReelID       string
	Shortcode    string
	ThumbnailURL string
	VideoURL     string
	Caption      string
	Duration     int
	Views        int64
	Likes        int64
	Comments     int64
	Shares       int64
	Timestamp    time.Time
	Music        string
}

// Validate rejects payloads that must not be persisted
func (d ReelData) Validate() error {
	var errs []error
	if d.ReelID == "" {
		errs = append(errs, errors.New("reel id is empty"))
	}
	if d.Shortcode == "" {
		errs = append(errs, errors.New("shortcode is empty"))
	}
	if d.Views < 0 || d.Likes < 0 || d.Comments < 0 || d.Shares < 0 || d.Duration < 0 {
		errs = append(errs, fmt.Errorf("negative counters (views=%d likes=%d comments=%d shares=%d duration=%d)",
			d.Views, d.Likes, d.Comments, d.Shares, d.Duration))
	}
	return errors.Join(errs...)
}

var (
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9._]+)`)
)

// ExtractHashtags returns the lowercased hashtags in caption, first occurrence order, no duplicates
func ExtractHashtags(caption string) []string {
	return extractTags(hashtagPattern, caption)
}

// ExtractMentions returns the lowercased @mentions in caption, first occurrence order, no duplicates
func ExtractMentions(caption string) []string {
	return extractTags(mentionPattern, caption)
}

func extractTags(re *regexp.Regexp, caption string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(caption, -1) {
		tag := strings.ToLower(strings.Trim(m[1], "."))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
