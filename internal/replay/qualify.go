package replay

import (
	"github.com/jfmyers9/backfill/internal/history"
	"github.com/jfmyers9/backfill/internal/scrobbler"
)

// Verdict is the qualification result for one history record.
type Verdict int

const (
	// VerdictScrobble means the record becomes a scrobble.
	VerdictScrobble Verdict = iota
	// VerdictMalformed means required keys are missing from the entry.
	VerdictMalformed
	// VerdictTooShort means the listen was under the minimum duration.
	VerdictTooShort
	// VerdictEmptyField means artist or track is present but empty.
	VerdictEmptyField
	// VerdictInvalid means the entry could not be interpreted.
	VerdictInvalid
)

// String returns a short label for the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictScrobble:
		return "scrobble"
	case VerdictMalformed:
		return "malformed"
	case VerdictTooShort:
		return "too short"
	case VerdictEmptyField:
		return "empty field"
	case VerdictInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Qualify decides what happens to a record. The checks run in a fixed order:
// missing keys, undecodable values, listen duration, then empty artist or
// track.
func Qualify(rec history.Record) Verdict {
	switch {
	case rec.Malformed():
		return VerdictMalformed
	case rec.Err != nil:
		return VerdictInvalid
	case !scrobbler.IsEligible(rec.Played()):
		return VerdictTooShort
	case rec.Artist == "" || rec.Track == "":
		return VerdictEmptyField
	default:
		return VerdictScrobble
	}
}
