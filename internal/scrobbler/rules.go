package scrobbler

import (
	"time"
)

// MinimumPlayDuration is the shortest listen Last.fm counts as a scrobble.
const MinimumPlayDuration = 30 * time.Second

// IsEligible reports whether a listen of the given length may be scrobbled.
// A play of exactly 30 seconds qualifies.
func IsEligible(played time.Duration) bool {
	return played >= MinimumPlayDuration
}
