package lastfm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
)

// AuthService logs in to the Last.fm API.
type AuthService struct {
	client *Client
}

// GetMobileSession logs in with a username and an md5 password hash.
//
// This is the legacy mobile flow: the request carries
// authToken = md5(username + passwordHash) instead of the password itself.
// Use HashPassword to produce passwordHash from a plain password.
//
// Example:
//
//	session, err := client.Auth().GetMobileSession(ctx, "rj", lastfm.HashPassword(password))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
func (a *AuthService) GetMobileSession(ctx context.Context, username, passwordHash string) (*Session, error) {
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("lastfm: username and password hash are required")
	}

	params := map[string]string{
		"username":  username,
		"authToken": md5Hex(username + passwordHash),
	}

	resp, err := a.client.call(ctx, "auth.getMobileSession", params, false)
	if err != nil {
		return nil, err
	}

	return unmarshalSession(resp)
}

// HashPassword returns the md5 hex digest of password, the form expected by
// GetMobileSession.
func HashPassword(password string) string {
	return md5Hex(password)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

type sessionResponse struct {
	Name       string `xml:"session>name"`
	Key        string `xml:"session>key"`
	Subscriber int    `xml:"session>subscriber"`
}

func unmarshalSession(data []byte) (*Session, error) {
	var resp sessionResponse
	if err := unmarshalInner(data, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}

	return &Session{
		Key:        resp.Key,
		Username:   resp.Name,
		Subscriber: resp.Subscriber == 1,
	}, nil
}

// unmarshalInner wraps the inner XML of an <lfm> response in a root element
// and decodes it into v.
func unmarshalInner(data []byte, v interface{}) error {
	wrapped := []byte("<root>" + string(data) + "</root>")
	return xml.Unmarshal(wrapped, v)
}
