package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/backfill/internal/journal"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/rs/zerolog"
)

// FailedStore holds submissions that Last.fm rejected
type FailedStore interface {
	CleanupOldFailed(ctx context.Context, now time.Time) (int64, error)
	Cleanup(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
	Failed(ctx context.Context, limit int) ([]journal.Entry, error)
	MarkSubmittedBatch(ctx context.Context, ids []int64) error
	MarkError(ctx context.Context, id int64, errMsg string) error
	MarkRejected(ctx context.Context, id int64, reason string) error
}

// BatchSubmitter sends several scrobbles in one request and reports the
// outcome of each
type BatchSubmitter interface {
	ScrobbleBatch(ctx context.Context, scrobbles []scrobbler.Scrobble) ([]scrobbler.Result, error)
}

// SubmittedRetention is how long accepted submissions stay in the journal
const SubmittedRetention = 30 * 24 * time.Hour

// RetryOptions configure RetryFailed
type RetryOptions struct {
	Pace   time.Duration       // Pause between batches; 0 uses DefaultPace
	Pacer  func(time.Duration) // Defaults to time.Sleep
	Clock  func() time.Time    // Defaults to time.Now
	Logger zerolog.Logger
}

// RetrySummary reports what RetryFailed did
type RetrySummary struct {
	Expired     int64 // failures dropped for being too old to submit
	Pruned      int64 // accepted submissions past SubmittedRetention
	Resubmitted int
	Rejected    int // ignored by Last.fm and not retried again
	Failed      int
}

// RetryFailed resubmits journaled failures with their original timestamps,
// oldest first, in batches of up to lastfm.MaxBatchSize. Failures older than
// Last.fm accepts are purged first. Within a batch, accepted entries are
// marked submitted and entries Last.fm ignores are marked rejected so they
// are never sent again. A batch that fails as a whole is marked with the new
// error and ends the retry so the same entries are not resent in a loop.
func RetryFailed(ctx context.Context, store FailedStore, submitter BatchSubmitter, opts RetryOptions) (RetrySummary, error) {
	var summary RetrySummary

	pace := opts.Pace
	if pace == 0 {
		pace = DefaultPace
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = time.Sleep
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger.With().Str("component", "retry").Logger()

	expired, err := store.CleanupOldFailed(ctx, clock())
	if err != nil {
		return summary, fmt.Errorf("failed to purge expired failures: %w", err)
	}
	summary.Expired = expired
	if expired > 0 {
		logger.Info().Int64("count", expired).Msg("Dropped failures older than Last.fm accepts")
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		pending, err := store.Failed(ctx, lastfm.MaxBatchSize)
		if err != nil {
			return summary, fmt.Errorf("failed to load failed submissions: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		batch := make([]scrobbler.Scrobble, len(pending))
		for i, entry := range pending {
			batch[i] = scrobbler.Scrobble{
				Artist:    entry.Artist,
				Track:     entry.Track,
				Album:     entry.Album,
				Timestamp: entry.Timestamp,
			}
		}

		logger.Info().Int("count", len(pending)).Msg("Resubmitting failed scrobbles")

		results, err := submitter.ScrobbleBatch(ctx, batch)
		if err == nil && len(results) != len(pending) {
			err = fmt.Errorf("expected %d results, got %d", len(pending), len(results))
		}
		if err != nil {
			logger.Warn().Err(err).Int("count", len(pending)).Msg("Batch resubmission failed")
			for _, entry := range pending {
				if markErr := store.MarkError(ctx, entry.ID, err.Error()); markErr != nil {
					logger.Error().Err(markErr).Int64("id", entry.ID).Msg("Failed to record error")
				}
			}
			summary.Failed += len(pending)
			break
		}

		var accepted []int64
		for i, entry := range pending {
			if results[i].Accepted {
				accepted = append(accepted, entry.ID)
				continue
			}
			logger.Warn().
				Str("artist", entry.Artist).
				Str("track", entry.Track).
				Str("reason", results[i].Reason).
				Msg("Last.fm ignored scrobble; not retrying it")
			if err := store.MarkRejected(ctx, entry.ID, results[i].Reason); err != nil {
				return summary, fmt.Errorf("failed to mark submission rejected: %w", err)
			}
			summary.Rejected++
		}

		if err := store.MarkSubmittedBatch(ctx, accepted); err != nil {
			return summary, fmt.Errorf("failed to mark batch submitted: %w", err)
		}
		summary.Resubmitted += len(accepted)

		if pace > 0 {
			pacer(pace)
		}
	}

	pruned, err := store.Cleanup(ctx, SubmittedRetention, clock())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to prune submitted entries")
	}
	summary.Pruned = pruned

	logger.Info().
		Int("resubmitted", summary.Resubmitted).
		Int("rejected", summary.Rejected).
		Int("failed", summary.Failed).
		Int64("expired", summary.Expired).
		Int64("pruned", summary.Pruned).
		Msg("Retry finished")

	return summary, nil
}
