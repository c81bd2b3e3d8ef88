// Package history reads Spotify extended streaming history exports.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// JSON keys of a streaming history entry
const (
	KeyArtist   = "master_metadata_album_artist_name"
	KeyTrack    = "master_metadata_track_name"
	KeyAlbum    = "master_metadata_album_album_name"
	KeyMsPlayed = "ms_played"
)

// requiredKeys must all be present for a record to be usable
var requiredKeys = []string{KeyArtist, KeyTrack, KeyMsPlayed}

var (
	// ErrNotFound is returned when the history file does not exist.
	ErrNotFound = errors.New("history file not found")

	// ErrInvalidJSON is returned when the history file is not a JSON array.
	ErrInvalidJSON = errors.New("could not decode JSON from the history file")
)

// Record is one playback event from the export.
//
// Missing lists required keys absent from the object. A key holding JSON
// null is present: its value is the empty string. Err is set when the entry
// cannot be interpreted at all, for example a string where ms_played should
// be a number.
type Record struct {
	Index    int
	Artist   string
	Track    string
	Album    string
	MsPlayed int64
	Missing  []string
	Raw      json.RawMessage
	Err      error
}

// Played returns how long the track was listened to.
func (r Record) Played() time.Duration {
	return time.Duration(r.MsPlayed) * time.Millisecond
}

// Malformed reports whether required keys are missing.
func (r Record) Malformed() bool {
	return len(r.Missing) > 0
}

// Load reads and parses the history file at path.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a JSON array of history entries. Only a document that is not
// a JSON array is an error; problems with individual entries are reported on
// the returned records.
func Parse(data []byte) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	records := make([]Record, len(items))
	for i, raw := range items {
		records[i] = parseRecord(i, raw)
	}

	return records, nil
}

func parseRecord(index int, raw json.RawMessage) Record {
	rec := Record{Index: index, Raw: raw}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		rec.Err = fmt.Errorf("entry is not an object")
		return rec
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		rec.Err = fmt.Errorf("failed to decode entry: %w", err)
		return rec
	}

	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			rec.Missing = append(rec.Missing, key)
		}
	}

	var err error
	if rec.Artist, err = optionalString(fields, KeyArtist); err != nil {
		rec.Err = err
		return rec
	}
	if rec.Track, err = optionalString(fields, KeyTrack); err != nil {
		rec.Err = err
		return rec
	}
	if rec.Album, err = optionalString(fields, KeyAlbum); err != nil {
		rec.Err = err
		return rec
	}
	if v, ok := fields[KeyMsPlayed]; ok {
		if rec.MsPlayed, err = decodeMillis(v); err != nil {
			rec.Err = err
			return rec
		}
	}

	return rec
}

// optionalString decodes a string field; absent and null both yield "".
func optionalString(fields map[string]json.RawMessage, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}

	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%s: expected a string, got %s", key, v)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// decodeMillis accepts integral and fractional numbers, truncating the latter.
func decodeMillis(v json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return 0, fmt.Errorf("%s: expected a number, got %s", KeyMsPlayed, v)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil || n == "" {
		return 0, fmt.Errorf("%s: expected a number, got %s", KeyMsPlayed, v)
	}

	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: expected a number, got %s", KeyMsPlayed, v)
	}
	return int64(f), nil
}
