package storage

import (
	"context"
	"math"
	"time"
)

// Stats aggregates what the store holds
type Stats struct {
	TotalInfluencers int64     `json:"totalInfluencers"`
	TotalFollowers   int64     `json:"totalFollowers"`
	AvgFollowers     float64   `json:"avgFollowers"`
	LastUpdate       time.Time `json:"lastUpdate"`
	PostsCount       int64     `json:"postsCount"`
	ReelsCount       int64     `json:"reelsCount"`
}

// Stats computes the aggregate counters in a single query
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st         Stats
		lastUpdate string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM profiles),
			(SELECT COALESCE(SUM(followers), 0) FROM profiles),
			(SELECT COALESCE(AVG(followers), 0) FROM profiles),
			(SELECT COALESCE(MAX(last_scraped), '') FROM profiles),
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM reels)`,
	).Scan(&st.TotalInfluencers, &st.TotalFollowers, &st.AvgFollowers, &lastUpdate, &st.PostsCount, &st.ReelsCount)
	if err != nil {
		return nil, classify(err, "compute stats")
	}

	st.AvgFollowers = math.Round(st.AvgFollowers*100) / 100
	if st.LastUpdate, err = parseTime(lastUpdate); err != nil {
		return nil, classify(err, "compute stats")
	}
	return &st, nil
}
