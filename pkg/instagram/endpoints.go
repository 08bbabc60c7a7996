package instagram

import (
	"fmt"
	"strings"

	errs "github.com/Adwaitkp/primaspot/pkg/errors"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ReelsTabSelector matches the reels tab link on a profile page
	ReelsTabSelector = `a[href*="/reels/"]`

	// DefaultPostsLimit is the number of posts fetched when no limit is given
	DefaultPostsLimit = 12

	// DefaultReelsLimit is the number of reels fetched when no limit is given
	DefaultReelsLimit = 5

	// MaxLimit is the largest number of items a single fetch returns
	MaxLimit = 50

	maxUsernameLength = 30
)

// ProfileURL constructs the public profile URL for a user
func ProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// ReelsURL constructs the URL of a user's reels tab
func ReelsURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/reels/", BaseURL, username)
}

// PostURL constructs the URL for a specific post
func PostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// ReelURL constructs the URL for a specific reel
func ReelURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/reel/%s/", BaseURL, shortcode)
}

// ClampLimit applies def to a non-positive limit and caps it at max
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > maxUsernameLength {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, a profile URL prefix and trailing slashes or spaces
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}

	for _, prefix := range []string{BaseURL + "/", "https://instagram.com/", "instagram.com/"} {
		if len(username) >= len(prefix) && strings.EqualFold(username[:len(prefix)], prefix) {
			username = username[len(prefix):]
			break
		}
	}

	username = strings.TrimPrefix(username, "@")

	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}

// NormalizeIdentity turns caller input into the lookup key used everywhere
// else: runs of whitespace become ".", and the result is lowercased.
func NormalizeIdentity(raw string) (string, error) {
	identity := SanitizeUsername(strings.TrimSpace(raw))
	identity = strings.ToLower(strings.Join(strings.Fields(identity), "."))

	if !IsValidUsername(identity) {
		return "", errs.New(errs.ErrorTypeInputInvalid, "invalid username %q", raw)
	}
	return identity, nil
}
