// Package metrics derives engagement figures from raw counters.
//
// Every function here is pure. Callers invoke them explicitly before a write;
// nothing is recomputed as a side effect of persistence.
package metrics

import (
	"math"

	"github.com/Adwaitkp/primaspot/pkg/models"
)

// Round2 rounds x to two decimal places, halves away from zero
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// percent returns round2(num/den*100), or 0 when den is not positive
func percent(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return Round2(num / den * 100)
}

// ProfileEngagement computes a profile's engagement rate from its averages.
// With no followers the prior value is returned untouched.
func ProfileEngagement(avgLikes, avgComments float64, followers int64, prior float64) float64 {
	if followers <= 0 {
		return prior
	}
	return percent(avgLikes+avgComments, float64(followers))
}

// RefreshProfile recomputes p's engagement rate in place
func RefreshProfile(p *models.Profile) {
	p.Analytics.EngagementRate = ProfileEngagement(
		p.Analytics.AverageLikes,
		p.Analytics.AverageComments,
		p.Followers,
		p.Analytics.EngagementRate,
	)
}

// PostPerformance computes the ratios of a post against its owner's follower count.
// views is accepted for symmetry with reels and does not enter any ratio.
func PostPerformance(likes, comments, views, followers int64) models.PostPerformance {
	perf := models.PostPerformance{
		EngagementRate:        percent(float64(likes+comments), float64(followers)),
		LikesToFollowersRatio: percent(float64(likes), float64(followers)),
	}
	if likes > 0 {
		perf.CommentsToLikesRatio = percent(float64(comments), float64(likes))
	}
	return perf
}

// ReelPerformance computes the ratios of a reel. Everything is zero without views.
func ReelPerformance(likes, comments, shares, views, followers int64) models.ReelPerformance {
	if views <= 0 {
		return models.ReelPerformance{}
	}
	return models.ReelPerformance{
		EngagementRate:        percent(float64(likes+comments+shares), float64(views)),
		ViewsToFollowersRatio: percent(float64(views), float64(followers)),
		ShareRate:             percent(float64(shares), float64(views)),
	}
}

// ScorePost fills p.Performance from its own counters and the owner's followers
func ScorePost(p *models.Post, owner *models.Profile) {
	p.Performance = PostPerformance(p.Likes, p.Comments, p.Views, owner.Followers)
}

// ScoreReel fills r.Performance from its own counters and the owner's followers
func ScoreReel(r *models.Reel, owner *models.Profile) {
	r.Performance = ReelPerformance(r.Likes, r.Comments, r.Shares, r.Views, owner.Followers)
}

// Averages returns the mean likes and comments over posts, each rounded to the
// nearest whole number. Both are zero for an empty slice.
func Averages(posts []*models.Post) (avgLikes, avgComments float64) {
	if len(posts) == 0 {
		return 0, 0
	}

	var likes, comments int64
	for _, p := range posts {
		likes += p.Likes
		comments += p.Comments
	}

	n := float64(len(posts))
	return math.Round(float64(likes) / n), math.Round(float64(comments) / n)
}
