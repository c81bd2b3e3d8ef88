package scrobbler

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/rs/zerolog"
)

// Client wraps the Last.fm API client
type Client struct {
	client   *lastfm.Client
	username string
}

// Scrobble represents a single scrobble to submit
type Scrobble struct {
	Artist    string
	Track     string
	Album     string
	Timestamp time.Time
}

// NewFromConfig creates a client from an SDK configuration. The client has
// no session until Login succeeds.
func NewFromConfig(cfg lastfm.Config) (*Client, error) {
	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

// Login authenticates with a username and plain password using Last.fm's
// mobile session flow. The password is md5-hashed before it leaves this
// function.
func (c *Client) Login(ctx context.Context, username, password string) error {
	session, err := c.client.Auth().GetMobileSession(ctx, username, lastfm.HashPassword(password))
	if err != nil {
		return fmt.Errorf("failed to log in as %s: %w", username, err)
	}

	if session.Key == "" {
		return fmt.Errorf("received empty session key")
	}

	c.client.SetSessionKey(session.Key)
	c.username = session.Username
	if c.username == "" {
		c.username = username
	}

	return nil
}

// Username returns the account name reported by the last successful Login.
func (c *Client) Username() string {
	return c.username
}

func (s Scrobble) track() lastfm.Track {
	return lastfm.Track{Artist: s.Artist, Track: s.Track, Album: s.Album}
}

// Result is Last.fm's verdict on one scrobble of a batch
type Result struct {
	Accepted bool
	Reason   string // why Last.fm ignored the scrobble
}

// Scrobble submits a single play. A scrobble that Last.fm receives but
// ignores is reported as an error.
func (c *Client) Scrobble(ctx context.Context, s Scrobble) error {
	resp, err := c.client.Scrobble().Scrobble(ctx, s.track(), s.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to scrobble track: %w", err)
	}

	results, err := batchResults(resp, 1)
	if err != nil {
		return err
	}

	if !results[0].Accepted {
		if results[0].Reason != "" {
			return fmt.Errorf("scrobble was ignored: %s", results[0].Reason)
		}
		return fmt.Errorf("scrobble was ignored by Last.fm")
	}

	return nil
}

// ScrobbleBatch submits up to lastfm.MaxBatchSize plays in one request and
// returns one Result per play, in order. An error means nothing in the batch
// can be assumed accepted.
func (c *Client) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) ([]Result, error) {
	if len(scrobbles) == 0 {
		return nil, nil
	}

	if len(scrobbles) > lastfm.MaxBatchSize {
		return nil, fmt.Errorf("cannot scrobble more than %d tracks at once (got %d)", lastfm.MaxBatchSize, len(scrobbles))
	}

	lfmScrobbles := make([]lastfm.Scrobble, len(scrobbles))
	for i, s := range scrobbles {
		lfmScrobbles[i] = lastfm.Scrobble{Track: s.track(), Timestamp: s.Timestamp}
	}

	resp, err := c.client.Scrobble().ScrobbleBatch(ctx, lfmScrobbles)
	if err != nil {
		return nil, fmt.Errorf("failed to scrobble batch: %w", err)
	}

	return batchResults(resp, len(scrobbles))
}

// batchResults matches Last.fm's per-scrobble answers to the submitted plays.
// Answers come back in submission order; an ignored play carries a non-zero
// ignoredMessage code.
func batchResults(resp *lastfm.ScrobbleResponse, n int) ([]Result, error) {
	results := make([]Result, n)

	if len(resp.Scrobbles) != n {
		// Without per-play answers only an all-accepted response is usable
		if resp.Ignored > 0 {
			return nil, fmt.Errorf("%d of %d scrobbles were ignored by Last.fm", resp.Ignored, n)
		}
		if resp.Accepted != n {
			return nil, fmt.Errorf("only %d of %d scrobbles were accepted by Last.fm", resp.Accepted, n)
		}
		for i := range results {
			results[i].Accepted = true
		}
		return results, nil
	}

	for i, s := range resp.Scrobbles {
		if s.IgnoredMessage.Code != 0 {
			results[i].Reason = s.IgnoredMessage.Text
			if results[i].Reason == "" {
				results[i].Reason = fmt.Sprintf("ignored by Last.fm (code %d)", s.IgnoredMessage.Code)
			}
			continue
		}
		results[i].Accepted = true
	}

	return results, nil
}

// debugLogger adapts zerolog to lastfm.Logger.
type debugLogger struct {
	logger zerolog.Logger
}

func (l debugLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// DebugLogger returns a lastfm.Logger that writes SDK diagnostics at debug
// level.
func DebugLogger(logger zerolog.Logger) lastfm.Logger {
	return debugLogger{logger: logger.With().Str("component", "lastfm").Logger()}
}
