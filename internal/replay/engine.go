// Package replay turns exported listening history into Last.fm scrobbles.
//
// The engine walks the history in order, decides for each record whether it
// qualifies, assigns qualifying records strictly increasing timestamps
// starting one hour in the past, and submits them one at a time with a pause
// between submissions. Problems with individual records are logged and never
// stop the run.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfmyers9/backfill/internal/history"
	"github.com/jfmyers9/backfill/internal/journal"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/rs/zerolog"
)

const (
	// DefaultPace is the pause after each real submission.
	DefaultPace = 500 * time.Millisecond

	// baseOffset is how far before the run the first timestamp lies.
	baseOffset = time.Hour
)

// Submitter sends one scrobble to the remote service.
type Submitter interface {
	Scrobble(ctx context.Context, s scrobbler.Scrobble) error
}

// Recorder is told about every real submission attempt. A nil submitErr
// means the scrobble was accepted.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry, submitErr error) error
}

// ScrobbleRequest is a qualifying record ready for submission.
type ScrobbleRequest struct {
	Artist    string
	Title     string
	Album     string // optional
	Timestamp int64  // unix seconds
}

// Time returns the request timestamp as a time.Time
func (r ScrobbleRequest) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// Scrobble converts the request for submission
func (r ScrobbleRequest) Scrobble() scrobbler.Scrobble {
	return scrobbler.Scrobble{
		Artist:    r.Artist,
		Track:     r.Title,
		Album:     r.Album,
		Timestamp: r.Time(),
	}
}

// Config holds the engine's collaborators
type Config struct {
	Submitter Submitter           // Required unless every run is a dry run
	Recorder  Recorder            // Optional: receives real submission outcomes
	DebugLog  *DebugLog           // Optional: defaults to DefaultDebugLogPath
	Pace      time.Duration       // Pause after each real submission; negative disables
	Pacer     func(time.Duration) // Defaults to time.Sleep
	Clock     func() time.Time    // Defaults to time.Now
	Logger    zerolog.Logger
}

// Options control a single run
type Options struct {
	StartIndex int  // Records before this index are ignored
	MaxCount   int  // Stop after this many scrobbles; 0 means no limit
	DryRun     bool // Qualify and count without submitting
}

// Summary reports what a run did. Scrobbled counts every record that passed
// qualification, whether or not its submission succeeded.
type Summary struct {
	Scrobbled    int
	Submitted    int
	Failed       int
	SkippedShort int
	SkippedEmpty int
	Malformed    int
	Errored      int
	LimitReached bool
}

// Engine replays history records
type Engine struct {
	submitter Submitter
	recorder  Recorder
	debugLog  *DebugLog
	pace      time.Duration
	pacer     func(time.Duration)
	clock     func() time.Time
	logger    zerolog.Logger
}

// state is the per-run bookkeeping
type state struct {
	index     int
	scrobbled int
	base      int64
}

// New creates an engine from cfg, filling in defaults
func New(cfg Config) *Engine {
	e := &Engine{
		submitter: cfg.Submitter,
		recorder:  cfg.Recorder,
		debugLog:  cfg.DebugLog,
		pace:      cfg.Pace,
		pacer:     cfg.Pacer,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With().Str("component", "replay").Logger(),
	}

	if e.debugLog == nil {
		e.debugLog = NewDebugLog(DefaultDebugLogPath)
	}
	if e.pace == 0 {
		e.pace = DefaultPace
	}
	if e.pacer == nil {
		e.pacer = time.Sleep
	}
	if e.clock == nil {
		e.clock = time.Now
	}

	return e
}

// Run replays records according to opts. It returns an error only for
// invalid options or when ctx is cancelled; per-record failures are logged
// and reflected in the summary.
func (e *Engine) Run(ctx context.Context, records []history.Record, opts Options) (Summary, error) {
	var summary Summary

	if opts.StartIndex < 0 {
		return summary, fmt.Errorf("start index must not be negative (got %d)", opts.StartIndex)
	}
	if opts.MaxCount < 0 {
		return summary, fmt.Errorf("max scrobbles must not be negative (got %d)", opts.MaxCount)
	}
	if !opts.DryRun && e.submitter == nil {
		return summary, errors.New("a submitter is required unless running dry")
	}

	st := state{base: e.clock().Add(-baseOffset).Unix()}

	for st.index = opts.StartIndex; st.index < len(records); st.index++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Int("index", st.index).Msg("Replay interrupted")
			summary.Scrobbled = st.scrobbled
			e.logSummary(summary)
			return summary, err
		}

		if opts.MaxCount > 0 && st.scrobbled >= opts.MaxCount {
			e.logger.Info().Msgf("Reached max scrobbles limit of %d.", opts.MaxCount)
			summary.LimitReached = true
			break
		}

		if err := e.process(ctx, records[st.index], &st, &summary, opts.DryRun); err != nil {
			summary.Errored++
			e.logger.Error().
				Err(err).
				Int("index", st.index).
				Msgf("An error occurred at index %d", st.index)
		}
	}

	summary.Scrobbled = st.scrobbled
	e.logSummary(summary)
	return summary, nil
}

// process takes one record to its terminal state. A returned error means the
// record could not be handled at all.
func (e *Engine) process(ctx context.Context, rec history.Record, st *state, summary *Summary, dryRun bool) error {
	index := st.index

	switch Qualify(rec) {
	case VerdictMalformed:
		if err := e.debugLog.Write(index, rec.Raw, rec.Missing); err != nil {
			return err
		}
		summary.Malformed++
		e.logger.Warn().
			Int("index", index).
			Strs("missing", rec.Missing).
			Msgf("Skipping item at index %d due to missing data. See %s for details.", index, e.debugLog.Path())
		return nil

	case VerdictInvalid:
		return rec.Err

	case VerdictTooShort:
		summary.SkippedShort++
		e.logger.Info().
			Int("index", index).
			Int64("ms_played", rec.MsPlayed).
			Msgf("Skipping song at index %d due to listen time being under 30 seconds.", index)
		return nil

	case VerdictEmptyField:
		summary.SkippedEmpty++
		return nil
	}

	req := ScrobbleRequest{
		Artist:    rec.Artist,
		Title:     rec.Track,
		Album:     rec.Album,
		Timestamp: st.base + int64(st.scrobbled),
	}

	if dryRun {
		e.logger.Info().
			Int("index", index).
			Int64("timestamp", req.Timestamp).
			Msgf("[DRY RUN] Would scrobble %s - %s", req.Artist, req.Title)
		st.scrobbled++
		return nil
	}

	e.logger.Info().
		Int("index", index).
		Int64("timestamp", req.Timestamp).
		Msgf("Scrobbling %s - %s", req.Artist, req.Title)

	submitErr := e.submitter.Scrobble(ctx, req.Scrobble())
	if submitErr != nil {
		summary.Failed++
		e.logger.Error().
			Err(submitErr).
			Int("index", index).
			Msgf("Error scrobbling %s - %s", req.Artist, req.Title)
	} else {
		summary.Submitted++
	}

	if e.recorder != nil {
		entry := journal.Entry{
			Index:     index,
			Artist:    req.Artist,
			Track:     req.Title,
			Album:     req.Album,
			Timestamp: req.Time(),
		}
		if err := e.recorder.Record(ctx, entry, submitErr); err != nil {
			e.logger.Warn().Err(err).Int("index", index).Msg("Failed to journal submission")
		}
	}

	st.scrobbled++

	if e.pace > 0 {
		e.pacer(e.pace)
	}

	return nil
}

func (e *Engine) logSummary(summary Summary) {
	e.logger.Info().
		Int("scrobbled", summary.Scrobbled).
		Int("submitted", summary.Submitted).
		Int("failed", summary.Failed).
		Int("skipped_short", summary.SkippedShort).
		Int("skipped_empty", summary.SkippedEmpty).
		Int("malformed", summary.Malformed).
		Int("errored", summary.Errored).
		Msgf("Scrobbled %d tracks", summary.Scrobbled)
}
