package lastfm

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ScrobbleService submits plays with track.scrobble.
type ScrobbleService struct {
	client *Client
}

// MaxBatchSize is the most scrobbles Last.fm accepts in one request.
const MaxBatchSize = 50

// Scrobble submits one play. A session key is required.
//
// Example:
//
//	track := lastfm.Track{Artist: "Radiohead", Track: "Reckoner"}
//	resp, err := client.Scrobble().Scrobble(ctx, track, time.Now().Add(-time.Hour))
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track, timestamp time.Time) (*ScrobbleResponse, error) {
	return s.ScrobbleBatch(ctx, []Scrobble{{Track: track, Timestamp: timestamp}})
}

// ScrobbleBatch submits up to MaxBatchSize plays in one request; anything
// past that is dropped. An empty batch makes no request. A session key is
// required.
func (s *ScrobbleService) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*ScrobbleResponse, error) {
	if s.client.sessionKey == "" {
		return nil, ErrNoSessionKey
	}
	if len(scrobbles) == 0 {
		return &ScrobbleResponse{}, nil
	}
	if len(scrobbles) > MaxBatchSize {
		scrobbles = scrobbles[:MaxBatchSize]
	}

	resp, err := s.client.call(ctx, "track.scrobble", batchParams(scrobbles), true)
	if err != nil {
		return nil, err
	}

	scrobbleResp, err := unmarshalScrobbles(resp)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
	}

	return scrobbleResp, nil
}

// batchParams encodes scrobbles as indexed form fields: artist[0], track[0],
// timestamp[0], artist[1] and so on. Empty optional fields are left out.
func batchParams(scrobbles []Scrobble) map[string]string {
	params := make(map[string]string, len(scrobbles)*3)

	for i, sc := range scrobbles {
		set := func(name, value string) {
			if value != "" {
				params[fmt.Sprintf("%s[%d]", name, i)] = value
			}
		}

		set("artist", sc.Track.Artist)
		set("track", sc.Track.Track)
		set("timestamp", strconv.FormatInt(sc.Timestamp.Unix(), 10))
		set("album", sc.Track.Album)
		set("albumArtist", sc.Track.AlbumArtist)
		if sc.Track.Duration > 0 {
			set("duration", strconv.Itoa(sc.Track.Duration))
		}
	}

	return params
}

// scrobbleResponse represents the XML response from track.scrobble.
type scrobbleResponse struct {
	Scrobbles struct {
		Accepted  int `xml:"accepted,attr"`
		Ignored   int `xml:"ignored,attr"`
		Scrobbles []struct {
			Artist         string `xml:"artist"`
			Track          string `xml:"track"`
			Album          string `xml:"album"`
			Timestamp      int64  `xml:"timestamp"`
			IgnoredMessage struct {
				Code int    `xml:"code,attr"`
				Text string `xml:",chardata"`
			} `xml:"ignoredMessage"`
		} `xml:"scrobble"`
	} `xml:"scrobbles"`
}

// unmarshalScrobbles parses the XML response from track.scrobble.
func unmarshalScrobbles(data []byte) (*ScrobbleResponse, error) {
	var resp scrobbleResponse
	if err := unmarshalInner(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrobble response: %w", err)
	}

	result := &ScrobbleResponse{
		Accepted:  resp.Scrobbles.Accepted,
		Ignored:   resp.Scrobbles.Ignored,
		Scrobbles: make([]ScrobbleResult, len(resp.Scrobbles.Scrobbles)),
	}

	for i, s := range resp.Scrobbles.Scrobbles {
		result.Scrobbles[i] = ScrobbleResult{
			Artist:    s.Artist,
			Track:     s.Track,
			Album:     s.Album,
			Timestamp: s.Timestamp,
			IgnoredMessage: IgnoredMessage{
				Code: s.IgnoredMessage.Code,
				Text: s.IgnoredMessage.Text,
			},
		}
	}

	return result, nil
}
