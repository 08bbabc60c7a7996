// Package staleness decides whether a stored profile is fresh enough to serve.
package staleness

import (
	"time"

	"github.com/Adwaitkp/primaspot/pkg/models"
)

// DefaultThreshold is the freshness window used when none is configured
const DefaultThreshold = 24 * time.Hour

// ShouldRefetch reports whether the source must be hit again. It is true when
// nothing is stored, when force is set, or when the stored profile was scraped
// strictly more than threshold before now.
func ShouldRefetch(existing *models.Profile, force bool, threshold time.Duration, now time.Time) bool {
	if existing == nil || force {
		return true
	}
	return now.Sub(existing.LastScraped) > threshold
}

// Gate binds a threshold and a clock
type Gate struct {
	Threshold time.Duration
	Now       func() time.Time
}

// NewGate returns a gate on the wall clock. A non-positive threshold falls back to DefaultThreshold.
func NewGate(threshold time.Duration) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{Threshold: threshold, Now: time.Now}
}

// ShouldRefetch applies ShouldRefetch with the gate's threshold and clock
func (g *Gate) ShouldRefetch(existing *models.Profile, force bool) bool {
	return ShouldRefetch(existing, force, g.Threshold, g.Now())
}

// Age returns how long ago existing was scraped
func (g *Gate) Age(existing *models.Profile) time.Duration {
	if existing == nil {
		return 0
	}
	return g.Now().Sub(existing.LastScraped)
}
