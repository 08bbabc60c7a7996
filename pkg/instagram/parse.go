package instagram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	errs "github.com/Adwaitkp/primaspot/pkg/errors"
	"github.com/PuerkitoBio/goquery"
)

// RawProfile is what the profile page shows, before typing and validation
type RawProfile struct {
	Username      string
	FullName      string
	Biography     string
	ProfilePicURL string
	Website       string
	Followers     string
	Following     string
	Posts         string
	IsVerified    bool
	IsPrivate     bool
}

// RawMedia is one grid tile linking to a post or reel
type RawMedia struct {
	Href      string
	Shortcode string
	IsReel    bool
	ImageURL  string
	Alt       string
	// Counters shows the numbers overlaid on the tile, in page order
	Counters   []string
	IsVideo    bool
	IsCarousel bool
}

var (
	ogCountsPattern = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s+Followers?,\s*([\d.,]+\s*[KMB]?)\s+Following,\s*([\d.,]+\s*[KMB]?)\s+Posts?`)
	ogTitlePattern  = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9._]+)\)`)
	countPattern    = regexp.MustCompile(`(?i)^([\d.,]+)\s*([KMB])?$`)
	leadingCount    = regexp.MustCompile(`(?i)^\s*([\d.,]+\s*[KMB]?)\b`)
)

const (
	// the apostrophe is sometimes typographic
	notFoundMarker = "Sorry, this page isn"
	privateMarker  = "This account is private"
)

func document(page *browser.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeSourceUnavailable, "parse page %s", page.URL)
	}
	return doc, nil
}

// checkPage classifies pages that carry no profile at all
func checkPage(page *browser.Page, doc *goquery.Document, username string) error {
	if strings.Contains(page.URL, "/accounts/login") || strings.Contains(page.URL, "/challenge/") {
		return errs.New(errs.ErrorTypeSourceUnavailable, "instagram redirected to a login wall for %s", username)
	}
	if strings.Contains(doc.Find("body").Text(), notFoundMarker) {
		return errs.New(errs.ErrorTypeNotFound, "profile %s not found", username)
	}
	return nil
}

// ParseProfile reads the profile header and meta tags of a rendered profile page
func ParseProfile(page *browser.Page, username string) (*RawProfile, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}
	if err := checkPage(page, doc, username); err != nil {
		return nil, err
	}

	raw := &RawProfile{Username: username}

	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if m := ogTitlePattern.FindStringSubmatch(title); m != nil {
			raw.FullName = strings.TrimSpace(m[1])
		}
	}
	if raw.FullName == "" {
		raw.FullName = strings.TrimSpace(doc.Find("header section h2, header h1, header h2").First().Text())
	}

	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		raw.ProfilePicURL = img
	} else if src, ok := doc.Find(`header img`).First().Attr("src"); ok {
		raw.ProfilePicURL = src
	}

	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if m := ogCountsPattern.FindStringSubmatch(desc); m != nil {
			raw.Followers = strings.TrimSpace(m[1])
			raw.Following = strings.TrimSpace(m[2])
			raw.Posts = strings.TrimSpace(m[3])
		}
	}

	// Header stats are more precise: followers carry the exact count in a title attribute
	stats := doc.Find("header li")
	if stats.Length() >= 3 {
		stats.EachWithBreak(func(i int, s *goquery.Selection) bool {
			value := statValue(s)
			if value == "" {
				return true
			}
			switch i {
			case 0:
				raw.Posts = value
			case 1:
				raw.Followers = value
			case 2:
				raw.Following = value
			}
			return i < 2
		})
	}

	raw.Biography = strings.TrimSpace(doc.Find(`header section h1._ap3a, header section span._ap3a, header section div.-vDIg span`).First().Text())

	doc.Find(`header a[href^="http"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "instagram.com") {
			raw.Website = href
			return false
		}
		return true
	})

	raw.IsVerified = doc.Find(`header svg[aria-label="Verified"]`).Length() > 0
	raw.IsPrivate = strings.Contains(doc.Find("main, body").First().Text(), privateMarker)

	if raw.Followers == "" && raw.Posts == "" {
		return nil, errs.New(errs.ErrorTypeSourceUnavailable, "profile stats for %s did not render", username)
	}
	return raw, nil
}

func statValue(s *goquery.Selection) string {
	if title, ok := s.Find("span[title]").First().Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if m := leadingCount.FindStringSubmatch(s.Text()); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseMedia collects the distinct post and reel tiles of a rendered grid,
// in page order. reels selects /reel/ links as well as /p/ links.
func ParseMedia(page *browser.Page, username string, reels bool) ([]RawMedia, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}
	if err := checkPage(page, doc, username); err != nil {
		return nil, err
	}

	selector := `a[href*="/p/"]`
	if reels {
		selector = `a[href*="/reel/"], a[href*="/p/"]`
	}

	seen := make(map[string]struct{})
	var items []RawMedia

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		shortcode, isReel := shortcodeFromHref(href)
		if shortcode == "" {
			return
		}
		if _, dup := seen[shortcode]; dup {
			return
		}
		seen[shortcode] = struct{}{}

		item := RawMedia{
			Href:      href,
			Shortcode: shortcode,
			IsReel:    isReel,
		}
		img := s.Find("img").First()
		item.ImageURL, _ = img.Attr("src")
		item.Alt, _ = img.Attr("alt")

		s.Find("li span, span").Each(func(_ int, span *goquery.Selection) {
			if span.Children().Length() > 0 {
				return
			}
			text := strings.TrimSpace(span.Text())
			if countPattern.MatchString(text) {
				item.Counters = append(item.Counters, text)
			}
		})

		item.IsCarousel = s.Find(`svg[aria-label="Carousel"]`).Length() > 0
		item.IsVideo = isReel || s.Find(`svg[aria-label="Clip"], svg[aria-label="Video"]`).Length() > 0

		items = append(items, item)
	})

	return items, nil
}

// shortcodeFromHref extracts the shortcode after /p/ or /reel/.
// Links look like /p/CODE/, /user/p/CODE/ or /reel/CODE/.
func shortcodeFromHref(href string) (string, bool) {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		switch parts[i] {
		case "p":
			return parts[i+1], false
		case "reel", "reels":
			return parts[i+1], true
		}
	}
	return "", false
}

// ParseCount reads counts as Instagram renders them: 1,234 or 12.5K or 3M
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unrecognized count %q", s)
	}

	digits := m[1]
	multiplier := 1.0
	switch strings.ToUpper(m[2]) {
	case "K":
		multiplier = 1e3
	case "M":
		multiplier = 1e6
	case "B":
		multiplier = 1e9
	}

	if multiplier == 1 {
		n, err := strconv.ParseInt(strings.NewReplacer(",", "", ".", "").Replace(digits), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized count %q: %w", s, err)
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized count %q: %w", s, err)
	}
	return int64(f*multiplier + 0.5), nil
}
