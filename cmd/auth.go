package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/backfill/internal/config"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check Last.fm credentials",
	Long: `Log in to Last.fm with the configured credentials and report the account.

Set LASTFM_API_KEY, LASTFM_API_SECRET, LASTFM_USERNAME and LASTFM_PASSWORD
in the environment or in a .env file in the working directory.

You can get API credentials from: https://www.last.fm/api/account/create`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(logLevel)

	client, err := scrobbler.NewFromConfig(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		APISecret: cfg.LastFM.APISecret,
		Logger:    scrobbler.DebugLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create Last.fm client: %w", err)
	}

	fmt.Println("Logging in to Last.fm...")
	if err := client.Login(ctx, cfg.LastFM.Username, cfg.LastFM.Password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Printf("\n✓ Authenticated as %s\n", client.Username())
	fmt.Println("\nYou can now use 'backfill replay <history_file>' to start scrobbling.")

	return nil
}
