package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jfmyers9/backfill/internal/config"
	"github.com/jfmyers9/backfill/internal/history"
	"github.com/jfmyers9/backfill/internal/journal"
	"github.com/jfmyers9/backfill/internal/replay"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/spf13/cobra"
)

var (
	replayDryRun       bool
	replayStartIndex   int
	replayMaxScrobbles int
	replayDebugLog     string
	replayDataDir      string
	replayNoJournal    bool
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <history_file>",
	Short: "Scrobble a Spotify history file to Last.fm",
	Long: `Replay a Spotify extended streaming history file to Last.fm.

The replay will:
- Skip plays shorter than 30 seconds
- Write entries missing required fields to the debug log
- Silently skip entries with an empty artist or track
- Scrobble everything else with timestamps starting one hour ago, one second apart
- Pause between submissions to stay under Last.fm's rate limit
- Journal every submission so failures can be resent with 'backfill retry'

Use --dry-run to see what would be scrobbled without sending anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Simulate scrobbling without sending data to Last.fm")
	replayCmd.Flags().IntVar(&replayStartIndex, "start-index", 0, "Index to start scrobbling from")
	replayCmd.Flags().IntVar(&replayMaxScrobbles, "max-scrobbles", 0, "Maximum number of songs to scrobble (0 = no limit)")
	replayCmd.Flags().StringVar(&replayDebugLog, "debug-log", "", "File for entries with missing data (default: debug.log)")
	replayCmd.Flags().StringVar(&replayDataDir, "data-dir", "", "Data directory for the submission journal (default: ~/.local/share/backfill)")
	replayCmd.Flags().BoolVar(&replayNoJournal, "no-journal", false, "Do not record submissions in the journal")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayStartIndex < 0 {
		return fmt.Errorf("--start-index must not be negative")
	}
	if replayMaxScrobbles < 0 {
		return fmt.Errorf("--max-scrobbles must not be negative")
	}

	// Load configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Credentials are checked before the history file is touched
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	logger.Info().Str("username", client.Username()).Msg("Authenticated with Last.fm")

	records, err := history.Load(args[0])
	if err != nil {
		return err
	}
	logger.Info().Int("records", len(records)).Str("file", args[0]).Msg("Loaded listening history")

	debugLog := cfg.Replay.DebugLog
	if replayDebugLog != "" {
		debugLog = replayDebugLog
	}

	engineCfg := replay.Config{
		Submitter: client,
		DebugLog:  replay.NewDebugLog(debugLog),
		Pace:      cfg.Replay.Pace,
		Logger:    logger,
	}

	if !replayDryRun && !replayNoJournal {
		j, err := openJournal(cfg, replayDataDir)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		engineCfg.Recorder = j
	}

	summary, err := replay.New(engineCfg).Run(ctx, records, replay.Options{
		StartIndex: replayStartIndex,
		MaxCount:   replayMaxScrobbles,
		DryRun:     replayDryRun,
	})
	if err != nil {
		return fmt.Errorf("replay stopped: %w", err)
	}

	if summary.Failed > 0 && engineCfg.Recorder != nil {
		logger.Warn().
			Int("failed", summary.Failed).
			Msg("Some scrobbles failed. Run 'backfill retry' to resend them.")
	}

	return nil
}

// openJournal opens the submission journal in dataDir, or the configured data
// directory when dataDir is empty, creating the directory if needed
func openJournal(cfg *config.Config, dataDir string) (*journal.Journal, error) {
	if dataDir == "" {
		dataDir = cfg.Replay.DataDir
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	j, err := journal.Open(filepath.Join(dataDir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}
