package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfmyers9/backfill/internal/config"
	"github.com/jfmyers9/backfill/internal/journal"
	"github.com/jfmyers9/backfill/internal/replay"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/spf13/cobra"
)

var (
	retryDataDir string
	retryList    bool
)

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resend scrobbles that failed during a replay",
	Long: `Resend journaled scrobbles that Last.fm rejected during an earlier replay.

Failures are resent with their original timestamps in batches of up to 50.
Last.fm does not accept scrobbles older than two weeks, so those are dropped
from the journal first. If a batch is rejected again the error is recorded
and the retry stops. Scrobbles that Last.fm ignores are marked rejected and
not sent again.

Use --list to print the journal without contacting Last.fm.`,
	Args: cobra.NoArgs,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)

	retryCmd.Flags().BoolVar(&retryList, "list", false, "List journaled submissions and exit")
	retryCmd.Flags().StringVar(&retryDataDir, "data-dir", "", "Data directory holding the submission journal (default: ~/.local/share/backfill)")
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if retryList {
		return listJournal(context.Background(), cmd.OutOrStdout(), cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := openJournal(cfg, retryDataDir)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	pending, err := j.Count(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if pending == 0 {
		logger.Info().Msg("No failed scrobbles to retry")
		return nil
	}

	client, err := scrobbler.NewFromConfig(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		APISecret: cfg.LastFM.APISecret,
		Logger:    scrobbler.DebugLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create Last.fm client: %w", err)
	}
	if err := client.Login(ctx, cfg.LastFM.Username, cfg.LastFM.Password); err != nil {
		return fmt.Errorf("error connecting to Last.fm: %w", err)
	}

	summary, err := replay.RetryFailed(ctx, j, client, replay.RetryOptions{
		Pace:   cfg.Replay.Pace,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("retry stopped: %w", err)
	}

	fmt.Printf("Resubmitted %d, rejected %d, still failing %d, expired %d, pruned %d\n",
		summary.Resubmitted, summary.Rejected, summary.Failed, summary.Expired, summary.Pruned)
	return nil
}

func listJournal(ctx context.Context, w io.Writer, cfg *config.Config) error {
	j, err := openJournal(cfg, retryDataDir)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	renderJournal(w, entries)
	return nil
}

// entryStatus names where a journal entry stands
func entryStatus(e journal.Entry) string {
	switch {
	case e.Submitted:
		return "submitted"
	case e.Rejected:
		return "rejected"
	default:
		return "failed"
	}
}

// renderJournal writes one row per entry, newest first as All returns them,
// with the error text for entries that were not accepted.
func renderJournal(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Journal is empty")
		return
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %s - %s",
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			padToWidth(entryStatus(e), len("submitted")),
			e.Artist, e.Track)
		if e.Error != "" && !e.Submitted {
			line += "  (" + e.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
}
