package instagram

import (
	"testing"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/Adwaitkp/primaspot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileHTML = `<html><head>
<meta property="og:title" content="National Geographic (@natgeo) • Instagram photos and videos">
<meta property="og:image" content="https://cdn.example/natgeo.jpg">
<meta property="og:description" content="283M Followers, 180 Following, 30K Posts - See Instagram photos and videos from National Geographic (@natgeo)">
</head><body><main>
<header>
  <img src="https://cdn.example/header.jpg">
  <section>
    <h2>natgeo</h2>
    <svg aria-label="Verified"></svg>
    <ul>
      <li><span>30,412</span> posts</li>
      <li><span title="283,114,507"><span>283M</span></span> followers</li>
      <li><span>180</span> following</li>
    </ul>
    <span class="_ap3a">Experience the world through the eyes of our photographers.</span>
    <a href="https://natgeo.com/link">natgeo.com</a>
  </section>
</header>
<article>
  <a href="/p/CxAAA111/"><img src="https://cdn.example/a.jpg" alt="Sunrise over #Iceland with @natgeotravel"><ul><li><span>12.5K</span></li><li><span>340</span></li></ul></a>
  <a href="/natgeo/p/CxBBB222/"><img src="https://cdn.example/b.jpg" alt="Second"><svg aria-label="Carousel"></svg></a>
  <a href="/p/CxAAA111/"><img src="https://cdn.example/a.jpg"></a>
  <a href="/reel/CrCCC333/"><img src="https://cdn.example/c.jpg" alt="A reel"><svg aria-label="Clip"></svg><span>1.2M</span></a>
  <a href="/natgeo/reels/">Reels</a>
</article>
</main></body></html>`

func page(html string) *browser.Page {
	return &browser.Page{URL: "https://www.instagram.com/natgeo/", HTML: html}
}

func TestParseProfile(t *testing.T) {
	raw, err := ParseProfile(page(profileHTML), "natgeo")
	require.NoError(t, err)

	assert.Equal(t, "natgeo", raw.Username)
	assert.Equal(t, "National Geographic", raw.FullName)
	assert.Equal(t, "https://cdn.example/natgeo.jpg", raw.ProfilePicURL)
	assert.Equal(t, "30,412", raw.Posts)
	assert.Equal(t, "283,114,507", raw.Followers)
	assert.Equal(t, "180", raw.Following)
	assert.Equal(t, "https://natgeo.com/link", raw.Website)
	assert.Contains(t, raw.Biography, "Experience the world")
	assert.True(t, raw.IsVerified)
	assert.False(t, raw.IsPrivate)

	d, err := MapProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(283114507), d.Followers)
	assert.Equal(t, int64(180), d.Following)
	assert.Equal(t, int64(30412), d.PostsCount)
}

func TestParseProfileFallsBackToMetaCounts(t *testing.T) {
	html := `<html><head>
<meta property="og:description" content="1,234 Followers, 56 Following, 7 Posts - See Instagram photos">
</head><body><p>This account is private</p></body></html>`

	raw, err := ParseProfile(page(html), "quiet.one")
	require.NoError(t, err)
	assert.Equal(t, "1,234", raw.Followers)
	assert.True(t, raw.IsPrivate)

	d, err := MapProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, "quiet one", d.FullName)
	assert.Equal(t, int64(1234), d.Followers)
}

func TestParseProfileErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		html := `<html><body><h2>Sorry, this page isn't available.</h2></body></html>`
		_, err := ParseProfile(page(html), "ghost")
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
	})

	t.Run("typographic apostrophe", func(t *testing.T) {
		html := `<html><body><h2>Sorry, this page isn’t available.</h2></body></html>`
		_, err := ParseProfile(page(html), "ghost")
		assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
	})

	t.Run("login wall", func(t *testing.T) {
		p := &browser.Page{URL: "https://www.instagram.com/accounts/login/?next=/natgeo/", HTML: "<html></html>"}
		_, err := ParseProfile(p, "natgeo")
		assert.Equal(t, errs.ErrorTypeSourceUnavailable, errs.TypeOf(err))
	})

	t.Run("nothing rendered", func(t *testing.T) {
		_, err := ParseProfile(page(`<html><body><div id="root"></div></body></html>`), "natgeo")
		assert.Equal(t, errs.ErrorTypeSourceUnavailable, errs.TypeOf(err))
	})
}

func TestParseMediaPosts(t *testing.T) {
	items, err := ParseMedia(page(profileHTML), "natgeo", false)
	require.NoError(t, err)
	require.Len(t, items, 2, "duplicates and reel links are dropped")

	assert.Equal(t, "CxAAA111", items[0].Shortcode)
	assert.Equal(t, []string{"12.5K", "340"}, items[0].Counters)
	assert.Equal(t, "CxBBB222", items[1].Shortcode)
	assert.True(t, items[1].IsCarousel)

	posts, rejected := mapAll(items, 10, MapPost)
	assert.Empty(t, rejected)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(12500), posts[0].Likes)
	assert.Equal(t, int64(340), posts[0].Comments)
	assert.Equal(t, models.PostTypePhoto, posts[0].Type)
	assert.Equal(t, models.PostTypeCarousel, posts[1].Type)
	assert.Equal(t, "Sunrise over #Iceland with @natgeotravel", posts[0].Caption)
}

func TestParseMediaReels(t *testing.T) {
	items, err := ParseMedia(page(profileHTML), "natgeo", true)
	require.NoError(t, err)
	require.Len(t, items, 3)

	reels, rejected := mapAll(items, 10, MapReel)
	assert.Empty(t, rejected)
	require.Len(t, reels, 3)

	clip := reels[2]
	assert.Equal(t, "CrCCC333", clip.ReelID)
	assert.Equal(t, int64(1200000), clip.Views)
	assert.Equal(t, ReelURL("CrCCC333"), clip.VideoURL)
	assert.Equal(t, PostURL("CxAAA111"), reels[0].VideoURL)
}

func TestMapAllHonorsLimit(t *testing.T) {
	items := []RawMedia{
		{Shortcode: "a"},
		{Shortcode: "bad", Counters: []string{"lots"}},
		{Shortcode: "b"},
		{Shortcode: "c"},
	}
	posts, rejected := mapAll(items, 2, MapPost)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].PostID)
	assert.Equal(t, "b", posts[1].PostID)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Error(), "bad")
}

func TestShortcodeFromHref(t *testing.T) {
	tests := []struct {
		href      string
		shortcode string
		reel      bool
	}{
		{"/p/ABC/", "ABC", false},
		{"/user/p/ABC/", "ABC", false},
		{"/reel/XYZ/", "XYZ", true},
		{"/user/reels/", "", false},
		{"/explore/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			code, reel := shortcodeFromHref(tt.href)
			assert.Equal(t, tt.shortcode, code)
			assert.Equal(t, tt.reel, reel)
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
		wantErr  bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1,234", 1234, false},
		{"283,114,507", 283114507, false},
		{"12.5K", 12500, false},
		{"12.5k", 12500, false},
		{"3M", 3000000, false},
		{"1.2 M", 1200000, false},
		{"2B", 2000000000, false},
		{"lots", 0, true},
		{"-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := ParseCount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}
