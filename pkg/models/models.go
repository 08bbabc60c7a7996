package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Category is the editorial bucket a profile is filed under
type Category string

const (
	CategoryLifestyle Category = "lifestyle"
	CategoryFashion   Category = "fashion"
	CategoryFood      Category = "food"
	CategoryTravel    Category = "travel"
	CategoryFitness   Category = "fitness"
	CategoryBeauty    Category = "beauty"
	CategoryTech      Category = "tech"
	CategoryBusiness  Category = "business"
	CategoryOther     Category = "other"
)

// ParseCategory maps s onto a known category, falling back to CategoryOther
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryLifestyle, CategoryFashion, CategoryFood, CategoryTravel,
		CategoryFitness, CategoryBeauty, CategoryTech, CategoryBusiness:
		return c
	default:
		return CategoryOther
	}
}

// PostType is the media kind of a post
type PostType string

const (
	PostTypePhoto    PostType = "photo"
	PostTypeVideo    PostType = "video"
	PostTypeCarousel PostType = "carousel"
)

// DefaultReelDuration is used when the source does not expose a reel's length
const DefaultReelDuration = 15

// Analytics is the rolling aggregate snapshot owned by a Profile
type Analytics struct {
	AverageLikes    float64   `json:"averageLikes"`
	AverageComments float64   `json:"averageComments"`
	EngagementRate  float64   `json:"engagementRate"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Profile is a scraped account. Username is its identity and never changes.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	FullName      string    `json:"fullName"`
	ProfilePicURL string    `json:"profilePicUrl"`
	InstagramID   string    `json:"instagramId,omitempty"`
	Biography     string    `json:"biography"`
	Website       string    `json:"website,omitempty"`
	Followers     int64     `json:"followers"`
	Following     int64     `json:"following"`
	PostsCount    int64     `json:"postsCount"`
	IsVerified    bool      `json:"isVerified"`
	IsPrivate     bool      `json:"isPrivate"`
	Category      Category  `json:"category"`
	Analytics     Analytics `json:"analytics"`
	LastScraped   time.Time `json:"lastScraped"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewProfile builds a Profile from a freshly fetched payload
func NewProfile(d ProfileData, now time.Time) *Profile {
	p := &Profile{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	p.Replace(d, now)
	return p
}

// Replace overwrites every scraped field with d and stamps LastScraped.
// ID, CreatedAt and Analytics are kept.
func (p *Profile) Replace(d ProfileData, now time.Time) {
	p.Username = d.Username
	p.FullName = d.FullName
	p.ProfilePicURL = d.ProfilePicURL
	p.InstagramID = d.InstagramID
	p.Biography = d.Biography
	p.Website = d.Website
	p.Followers = d.Followers
	p.Following = d.Following
	p.PostsCount = d.PostsCount
	p.IsVerified = d.IsVerified
	p.IsPrivate = d.IsPrivate
	p.Category = ParseCategory(d.Category)
	p.LastScraped = now
	p.UpdatedAt = now
}

// PostPerformance holds the derived ratios of a post, in percent
type PostPerformance struct {
	EngagementRate        float64 `json:"engagementRate"`
	LikesToFollowersRatio float64 `json:"likesToFollowersRatio"`
	CommentsToLikesRatio  float64 `json:"commentsToLikesRatio"`
}

// ReelPerformance holds the derived ratios of a reel, in percent
type ReelPerformance struct {
	EngagementRate        float64 `json:"engagementRate"`
	ViewsToFollowersRatio float64 `json:"viewsToFollowersRatio"`
	ShareRate             float64 `json:"shareRate"`
}

// EmptyAnalysis is stored when no content analysis has been attached yet
var EmptyAnalysis = json.RawMessage(`{}`)

// ContentItem is what the ingestion pipeline deduplicates: a Post or a Reel
type ContentItem interface {
	ContentID() string
	AttachOwner(profileID string)
}

// Post is a single feed post. PostID is assigned by the source and never reassigned.
type Post struct {
	ID           string          `json:"id"`
	ProfileID    string          `json:"profileId"`
	PostID       string          `json:"postId"`
	Shortcode    string          `json:"shortcode"`
	Type         PostType        `json:"type"`
	ImageURL     string          `json:"imageUrl"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty"`
	DisplayURL   string          `json:"displayUrl,omitempty"`
	Caption      string          `json:"caption"`
	Likes        int64           `json:"likes"`
	Comments     int64           `json:"comments"`
	Views        int64           `json:"views"`
	Timestamp    time.Time       `json:"timestamp"`
	Hashtags     []string        `json:"hashtags"`
	Mentions     []string        `json:"mentions"`
	Location     string          `json:"location,omitempty"`
	Analysis     json.RawMessage `json:"analysis"`
	Performance  PostPerformance `json:"performance"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewPost builds a Post from a fetched payload, filling source-side defaults
func NewPost(d PostData, now time.Time) *Post {
	p := &Post{
		ID:           uuid.NewString(),
		PostID:       d.PostID,
		Shortcode:    d.Shortcode,
		Type:         d.Type,
		ImageURL:     d.ImageURL,
		ThumbnailURL: d.ThumbnailURL,
		DisplayURL:   d.DisplayURL,
		Caption:      d.Caption,
		Likes:        d.Likes,
		Comments:     d.Comments,
		Views:        d.Views,
		Timestamp:    d.Timestamp,
		Hashtags:     ExtractHashtags(d.Caption),
		Mentions:     ExtractMentions(d.Caption),
		Location:     d.Location,
		Analysis:     EmptyAnalysis,
		CreatedAt:    now,
	}
	if p.Type == "" {
		p.Type = PostTypePhoto
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p *Post) ContentID() string            { return p.PostID }
func (p *Post) AttachOwner(profileID string) { p.ProfileID = profileID }

// Reel is a short video. ReelID is assigned by the source and never reassigned.
type Reel struct {
	ID           string          `json:"id"`
	ProfileID    string          `json:"profileId"`
	ReelID       string          `json:"reelId"`
	Shortcode    string          `json:"shortcode"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	VideoURL     string          `json:"videoUrl"`
	Caption      string          `json:"caption"`
	Duration     int             `json:"duration"`
	Views        int64           `json:"views"`
	Likes        int64           `json:"likes"`
	Comments     int64           `json:"comments"`
	Shares       int64           `json:"shares"`
	Timestamp    time.Time       `json:"timestamp"`
	Hashtags     []string        `json:"hashtags"`
	Mentions     []string        `json:"mentions"`
	Music        string          `json:"music,omitempty"`
	Analysis     json.RawMessage `json:"analysis"`
	Performance  ReelPerformance `json:"performance"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewReel builds a Reel from a fetched payload, filling source-side defaults
func NewReel(d ReelData, now time.Time) *Reel {
	r := &Reel{
		ID:           uuid.NewString(),
		ReelID:       d.ReelID,
		Shortcode:    d.Shortcode,
		ThumbnailURL: d.ThumbnailURL,
		VideoURL:     d.VideoURL,
		Caption:      d.Caption,
		Duration:     d.Duration,
		Views:        d.Views,
		Likes:        d.Likes,
		Comments:     d.Comments,
		Shares:       d.Shares,
		Timestamp:    d.Timestamp,
		Hashtags:     ExtractHashtags(d.Caption),
		Mentions:     ExtractMentions(d.Caption),
		Music:        d.Music,
		Analysis:     EmptyAnalysis,
		CreatedAt:    now,
	}
	if r.Duration <= 0 {
		r.Duration = DefaultReelDuration
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	return r
}

func (r *Reel) ContentID() string            { return r.ReelID }
func (r *Reel) AttachOwner(profileID string) { r.ProfileID = profileID }
