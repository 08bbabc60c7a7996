package instagram

import (
	"fmt"
	"strings"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/models"
)

// MapProfile types and validates a raw profile. Anything that fails is a
// parse error, classified SourceUnavailable, and must not be stored.
func MapProfile(raw *RawProfile) (models.ProfileData, error) {
	if raw == nil {
		return models.ProfileData{}, errs.New(errs.ErrorTypeSourceUnavailable, "no profile on page")
	}

	followers, err := ParseCount(raw.Followers)
	if err != nil {
		return models.ProfileData{}, parseError(raw.Username, "followers", err)
	}
	following, err := ParseCount(raw.Following)
	if err != nil {
		return models.ProfileData{}, parseError(raw.Username, "following", err)
	}
	posts, err := ParseCount(raw.Posts)
	if err != nil {
		return models.ProfileData{}, parseError(raw.Username, "posts", err)
	}

	fullName := raw.FullName
	if fullName == "" {
		fullName = strings.ReplaceAll(raw.Username, ".", " ")
	}

	d := models.ProfileData{
		Username:      raw.Username,
		FullName:      fullName,
		ProfilePicURL: raw.ProfilePicURL,
		Biography:     raw.Biography,
		Website:       raw.Website,
		Followers:     followers,
		Following:     following,
		PostsCount:    posts,
		IsVerified:    raw.IsVerified,
		IsPrivate:     raw.IsPrivate,
	}
	if err := d.Validate(); err != nil {
		return models.ProfileData{}, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "profile %s has an unexpected shape", raw.Username)
	}
	return d, nil
}

func parseError(username, field string, err error) error {
	return errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "profile %s: cannot read %s", username, field)
}

// counters reads the tile overlay. A counter that cannot be read is
// reported rather than guessed.
func counters(raw RawMedia) ([]int64, error) {
	out := make([]int64, 0, len(raw.Counters))
	for _, c := range raw.Counters {
		n, err := ParseCount(c)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// MapPost types and validates one grid tile as a post
func MapPost(raw RawMedia) (models.PostData, error) {
	n, err := counters(raw)
	if err != nil {
		return models.PostData{}, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "post %s: bad counter", raw.Shortcode)
	}

	d := models.PostData{
		PostID:    raw.Shortcode,
		Shortcode: raw.Shortcode,
		Type:      models.PostTypePhoto,
		ImageURL:  raw.ImageURL,
		Caption:   raw.Alt,
	}
	switch {
	case raw.IsCarousel:
		d.Type = models.PostTypeCarousel
	case raw.IsVideo:
		d.Type = models.PostTypeVideo
	}
	if len(n) > 0 {
		d.Likes = n[0]
	}
	if len(n) > 1 {
		d.Comments = n[1]
	}

	if err := d.Validate(); err != nil {
		return models.PostData{}, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "post %s has an unexpected shape", raw.Shortcode)
	}
	return d, nil
}

// MapReel types and validates one grid tile as a reel. A single overlay
// number is the view count; three are likes, comments and views.
func MapReel(raw RawMedia) (models.ReelData, error) {
	n, err := counters(raw)
	if err != nil {
		return models.ReelData{}, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "reel %s: bad counter", raw.Shortcode)
	}

	d := models.ReelData{
		ReelID:       raw.Shortcode,
		Shortcode:    raw.Shortcode,
		ThumbnailURL: raw.ImageURL,
		VideoURL:     ReelURL(raw.Shortcode),
		Caption:      raw.Alt,
	}
	if !raw.IsReel {
		d.VideoURL = PostURL(raw.Shortcode)
	}
	switch len(n) {
	case 0:
	case 1:
		d.Views = n[0]
	case 2:
		d.Likes, d.Comments = n[0], n[1]
	default:
		d.Likes, d.Comments, d.Views = n[0], n[1], n[2]
	}

	if err := d.Validate(); err != nil {
		return models.ReelData{}, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "reel %s has an unexpected shape", raw.Shortcode)
	}
	return d, nil
}

// mapAll maps up to limit tiles, skipping and reporting the ones that fail
func mapAll[T any](raw []RawMedia, limit int, mapOne func(RawMedia) (T, error)) ([]T, []error) {
	out := make([]T, 0, min(limit, len(raw)))
	var rejected []error
	for _, r := range raw {
		if len(out) == limit {
			break
		}
		d, err := mapOne(r)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("%s: %w", r.Shortcode, err))
			continue
		}
		out = append(out, d)
	}
	return out, rejected
}
