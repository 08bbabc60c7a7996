// Package ratelimit provides the limiters used on both sides of the service.
//
// TokenBucket paces navigations sent to the source. Keyed holds one
// SlidingWindow per client IP for the HTTP surface.
package ratelimit
