package lastfm

import (
	"time"
)

// Track represents a music track for scrobbling.
type Track struct {
	Artist      string // Required: Artist name
	Track       string // Required: Track name
	Album       string // Optional: Album name
	AlbumArtist string // Optional: Album artist (if different from track artist)
	Duration    int    // Optional: Track duration in seconds
}

// Scrobble represents a single scrobble with timestamp.
type Scrobble struct {
	Track     Track     // The track being scrobbled
	Timestamp time.Time // When the track was played
}

// Session is the result of auth.getMobileSession.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Last.fm username
	Subscriber bool   // Whether user is a subscriber
}

// IgnoredMessage explains why Last.fm ignored a scrobble. Code 0 means it
// was not ignored.
type IgnoredMessage struct {
	Code int
	Text string
}

// ScrobbleResult is the per-scrobble part of a track.scrobble response.
type ScrobbleResult struct {
	Artist         string
	Track          string
	Album          string
	Timestamp      int64
	IgnoredMessage IgnoredMessage
}

// ScrobbleResponse represents the response from track.scrobble.
type ScrobbleResponse struct {
	Accepted  int // Number of scrobbles accepted
	Ignored   int // Number of scrobbles ignored
	Scrobbles []ScrobbleResult
}
