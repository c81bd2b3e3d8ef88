package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	logLevel string
	envFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay Spotify listening history to Last.fm",
	Long: `backfill replays an exported Spotify extended streaming history to Last.fm.

Each qualifying play becomes a scrobble. Plays under 30 seconds and entries
without an artist or track are skipped, and entries missing required fields
are written to a debug log for inspection.

Last.fm credentials are read from LASTFM_API_KEY, LASTFM_API_SECRET,
LASTFM_USERNAME and LASTFM_PASSWORD, either in the environment or in a
.env file in the working directory.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with Last.fm credentials")
}
