package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/models"
)

// PostRepository stores posts. Rows are written once and never updated.
type PostRepository struct {
	store *Store
}

const postColumns = `id, profile_id, post_id, shortcode, type, image_url, thumbnail_url, display_url,
	caption, likes, comments, views, timestamp, hashtags, mentions, location, analysis,
	engagement_rate, likes_to_followers, comments_to_likes, created_at`

func scanPost(row scanner) (*models.Post, error) {
	var (
		p                          models.Post
		typ, ts, created           string
		hashtags, mentions, analys string
	)
	err := row.Scan(
		&p.ID, &p.ProfileID, &p.PostID, &p.Shortcode, &typ, &p.ImageURL, &p.ThumbnailURL, &p.DisplayURL,
		&p.Caption, &p.Likes, &p.Comments, &p.Views, &ts, &hashtags, &mentions, &p.Location, &analys,
		&p.Performance.EngagementRate, &p.Performance.LikesToFollowersRatio, &p.Performance.CommentsToLikesRatio, &created,
	)
	if err != nil {
		return nil, err
	}
	p.Type = models.PostType(typ)
	p.Analysis = json.RawMessage(analys)

	if p.Timestamp, err = parseTime(ts); err != nil {
		return nil, fmt.Errorf("post %s: bad timestamp: %w", p.PostID, err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("post %s: bad created_at: %w", p.PostID, err)
	}
	if err := decodeTags(hashtags, &p.Hashtags); err != nil {
		return nil, fmt.Errorf("post %s: bad hashtags: %w", p.PostID, err)
	}
	if err := decodeTags(mentions, &p.Mentions); err != nil {
		return nil, fmt.Errorf("post %s: bad mentions: %w", p.PostID, err)
	}
	return &p, nil
}

// FindByContentID returns the post with the given source id
func (r *PostRepository) FindByContentID(ctx context.Context, postID string) (*models.Post, bool, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE post_id = ?`, postID)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err, "load post %s", postID)
	}
	return p, true, nil
}

// Insert writes a new post. A post_id or shortcode that is already stored is
// a persistence conflict.
func (r *PostRepository) Insert(ctx context.Context, p *models.Post) error {
	hashtags, mentions, err := encodeTags(p.Hashtags, p.Mentions)
	if err != nil {
		return classify(err, "encode tags of post %s", p.PostID)
	}

	return r.store.write(ctx, func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO posts (`+postColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProfileID, p.PostID, p.Shortcode, string(p.Type), p.ImageURL, p.ThumbnailURL, p.DisplayURL,
			p.Caption, p.Likes, p.Comments, p.Views, formatTime(p.Timestamp), hashtags, mentions, p.Location, analysis(p.Analysis),
			p.Performance.EngagementRate, p.Performance.LikesToFollowersRatio, p.Performance.CommentsToLikesRatio, formatTime(p.CreatedAt),
		)
		return insertError(err, "post", p.PostID)
	})
}

// ForProfile returns up to limit posts of a profile, newest first
func (r *PostRepository) ForProfile(ctx context.Context, profileID string, limit int) ([]*models.Post, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE profile_id = ? ORDER BY timestamp DESC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, classify(err, "list posts")
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, classify(err, "scan post row")
		}
		posts = append(posts, p)
	}
	return posts, classify(rows.Err(), "list posts")
}

// ReelRepository stores reels. Rows are written once and never updated.
type ReelRepository struct {
	store *Store
}

const reelColumns = `id, profile_id, reel_id, shortcode, thumbnail_url, video_url, caption, duration,
	views, likes, comments, shares, timestamp, hashtags, mentions, music, analysis,
	engagement_rate, views_to_followers, share_rate, created_at`

func scanReel(row scanner) (*models.Reel, error) {
	var (
		r                          models.Reel
		ts, created                string
		hashtags, mentions, analys string
	)
	err := row.Scan(
		&r.ID, &r.ProfileID, &r.ReelID, &r.Shortcode, &r.ThumbnailURL, &r.VideoURL, &r.Caption, &r.Duration,
		&r.Views, &r.Likes, &r.Comments, &r.Shares, &ts, &hashtags, &mentions, &r.Music, &analys,
		&r.Performance.EngagementRate, &r.Performance.ViewsToFollowersRatio, &r.Performance.ShareRate, &created,
	)
	if err != nil {
		return nil, err
	}
	r.Analysis = json.RawMessage(analys)

	if r.Timestamp, err = parseTime(ts); err != nil {
		return nil, fmt.Errorf("reel %s: bad timestamp: %w", r.ReelID, err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("reel %s: bad created_at: %w", r.ReelID, err)
	}
	if err := decodeTags(hashtags, &r.Hashtags); err != nil {
		return nil, fmt.Errorf("reel %s: bad hashtags: %w", r.ReelID, err)
	}
	if err := decodeTags(mentions, &r.Mentions); err != nil {
		return nil, fmt.Errorf("reel %s: bad mentions: %w", r.ReelID, err)
	}
	return &r, nil
}

// FindByContentID returns the reel with the given source id
func (r *ReelRepository) FindByContentID(ctx context.Context, reelID string) (*models.Reel, bool, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+reelColumns+` FROM reels WHERE reel_id = ?`, reelID)
	reel, err := scanReel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err, "load reel %s", reelID)
	}
	return reel, true, nil
}

// Insert writes a new reel
func (r *ReelRepository) Insert(ctx context.Context, reel *models.Reel) error {
	hashtags, mentions, err := encodeTags(reel.Hashtags, reel.Mentions)
	if err != nil {
		return classify(err, "encode tags of reel %s", reel.ReelID)
	}

	return r.store.write(ctx, func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO reels (`+reelColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			reel.ID, reel.ProfileID, reel.ReelID, reel.Shortcode, reel.ThumbnailURL, reel.VideoURL, reel.Caption, reel.Duration,
			reel.Views, reel.Likes, reel.Comments, reel.Shares, formatTime(reel.Timestamp), hashtags, mentions, reel.Music, analysis(reel.Analysis),
			reel.Performance.EngagementRate, reel.Performance.ViewsToFollowersRatio, reel.Performance.ShareRate, formatTime(reel.CreatedAt),
		)
		return insertError(err, "reel", reel.ReelID)
	})
}

// ForProfile returns up to limit reels of a profile, newest first
func (r *ReelRepository) ForProfile(ctx context.Context, profileID string, limit int) ([]*models.Reel, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+reelColumns+` FROM reels WHERE profile_id = ? ORDER BY timestamp DESC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, classify(err, "list reels")
	}
	defer rows.Close()

	reels := []*models.Reel{}
	for rows.Next() {
		reel, err := scanReel(rows)
		if err != nil {
			return nil, classify(err, "scan reel row")
		}
		reels = append(reels, reel)
	}
	return reels, classify(rows.Err(), "list reels")
}

func insertError(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if classified := classify(err, "%s %s already exists", kind, id); errs.Is(classified, errs.ErrorTypePersistenceConflict) {
		return classified
	}
	return classify(err, "store %s %s", kind, id)
}

func encodeTags(hashtags, mentions []string) (string, string, error) {
	if hashtags == nil {
		hashtags = []string{}
	}
	if mentions == nil {
		mentions = []string{}
	}
	h, err := json.Marshal(hashtags)
	if err != nil {
		return "", "", err
	}
	m, err := json.Marshal(mentions)
	if err != nil {
		return "", "", err
	}
	return string(h), string(m), nil
}

func decodeTags(raw string, dst *[]string) error {
	*dst = []string{}
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func analysis(a json.RawMessage) string {
	if len(a) == 0 {
		return string(models.EmptyAnalysis)
	}
	return string(a)
}
