// Package lastfm is a client for the parts of the Last.fm API 2.0 needed to
// import listening history: authentication and scrobbling.
//
// # Authentication
//
// Sessions come from the mobile flow, which logs in directly with a username
// and an md5 password hash. The password itself is never sent:
//
//	session, err := client.Auth().GetMobileSession(ctx, username, lastfm.HashPassword(password))
//	client.SetSessionKey(session.Key)
//
// # Scrobbling
//
// With a session key set, scrobble one track or up to MaxBatchSize at once:
//
//	resp, err := client.Scrobble().Scrobble(ctx, track, timestamp)
//	resp, err = client.Scrobble().ScrobbleBatch(ctx, scrobbles)
//
// Last.fm may accept the request but ignore individual scrobbles; check
// ScrobbleResponse.Ignored and the per-scrobble IgnoredMessage.
//
// # Errors
//
// API failures are returned as *Error carrying the Last.fm error code.
// Temporary codes (service offline, temporarily unavailable, rate limit) and
// 5xx responses are retried with exponential backoff before being returned.
//
//	var lastfmErr *lastfm.Error
//	if errors.As(err, &lastfmErr) && lastfmErr.Code == lastfm.ErrCodeAuthenticationFailed {
//	    // bad credentials
//	}
//
// See https://www.last.fm/api/scrobbling for the protocol.
package lastfm
