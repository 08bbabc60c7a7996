package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/models"
)

const profileColumns = `id, username, full_name, profile_pic_url, instagram_id, biography, website,
	followers, following, posts_count, is_verified, is_private, category,
	avg_likes, avg_comments, engagement_rate, analytics_updated_at,
	last_scraped, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		p                                  models.Profile
		verified, private                  int
		category                           string
		analyticsAt, scraped, created, upd string
	)
	err := row.Scan(
		&p.ID, &p.Username, &p.FullName, &p.ProfilePicURL, &p.InstagramID, &p.Biography, &p.Website,
		&p.Followers, &p.Following, &p.PostsCount, &verified, &private, &category,
		&p.Analytics.AverageLikes, &p.Analytics.AverageComments, &p.Analytics.EngagementRate, &analyticsAt,
		&scraped, &created, &upd,
	)
	if err != nil {
		return nil, err
	}

	p.IsVerified = verified != 0
	p.IsPrivate = private != 0
	p.Category = models.ParseCategory(category)

	times := []struct {
		dst *time.Time
		src string
	}{
		{&p.Analytics.LastUpdated, analyticsAt},
		{&p.LastScraped, scraped},
		{&p.CreatedAt, created},
		{&p.UpdatedAt, upd},
	}
	for _, f := range times {
		t, err := parseTime(f.src)
		if err != nil {
			return nil, fmt.Errorf("profile %s: bad timestamp %q: %w", p.Username, f.src, err)
		}
		*f.dst = t
	}
	return &p, nil
}

// GetProfile returns the profile stored under username, or nil when there is none
func (s *Store) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = ?`, username)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "load profile %s", username)
	}
	return p, nil
}

// SaveProfile inserts p, or fully replaces the scraped fields of the stored
// row with the same username. The stored id and created_at always win, and
// p is updated to carry them.
func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	return s.write(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			INSERT INTO profiles (`+profileColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (username) DO UPDATE SET
				full_name       = excluded.full_name,
				profile_pic_url = excluded.profile_pic_url,
				instagram_id    = excluded.instagram_id,
				biography       = excluded.biography,
				website         = excluded.website,
				followers       = excluded.followers,
				following       = excluded.following,
				posts_count     = excluded.posts_count,
				is_verified     = excluded.is_verified,
				is_private      = excluded.is_private,
				category        = excluded.category,
				engagement_rate = excluded.engagement_rate,
				last_scraped    = excluded.last_scraped,
				updated_at      = excluded.updated_at
			RETURNING id, created_at`,
			p.ID, p.Username, p.FullName, p.ProfilePicURL, p.InstagramID, p.Biography, p.Website,
			p.Followers, p.Following, p.PostsCount, boolToInt(p.IsVerified), boolToInt(p.IsPrivate), string(p.Category),
			p.Analytics.AverageLikes, p.Analytics.AverageComments, p.Analytics.EngagementRate, formatTime(p.Analytics.LastUpdated),
			formatTime(p.LastScraped), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		)

		var id, created string
		if err := row.Scan(&id, &created); err != nil {
			return classify(err, "save profile %s", p.Username)
		}
		createdAt, err := parseTime(created)
		if err != nil {
			return errs.Wrap(err, errs.ErrorTypeInternal, "save profile %s", p.Username)
		}
		p.ID, p.CreatedAt = id, createdAt
		return nil
	})
}

// UpdateAnalytics persists the rolling analytics of p
func (s *Store) UpdateAnalytics(ctx context.Context, p *models.Profile) error {
	return s.write(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE profiles
			SET avg_likes = ?, avg_comments = ?, engagement_rate = ?, analytics_updated_at = ?, updated_at = ?
			WHERE id = ?`,
			p.Analytics.AverageLikes, p.Analytics.AverageComments, p.Analytics.EngagementRate,
			formatTime(p.Analytics.LastUpdated), formatTime(s.cfg.now()), p.ID,
		)
		if err != nil {
			return classify(err, "update analytics of %s", p.Username)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.New(errs.ErrorTypeNotFound, "profile %s is not stored", p.Username)
		}
		return nil
	})
}

// RecentProfiles returns up to limit profiles, most recently scraped first
func (s *Store) RecentProfiles(ctx context.Context, limit int) ([]*models.Profile, error) {
	if limit <= 0 {
		return []*models.Profile{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY last_scraped DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify(err, "list recent profiles")
	}
	defer rows.Close()

	profiles := make([]*models.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify(err, "scan profile row")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list recent profiles")
	}
	return profiles, nil
}
