package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvFile is the dotenv file read from the working directory
const DefaultEnvFile = ".env"

// ErrMissingCredentials is returned by Validate when Last.fm credentials are
// not set
var ErrMissingCredentials = errors.New("missing Last.fm credentials")

// Config holds application configuration
type Config struct {
	// Last.fm API credentials
	LastFM LastFMConfig

	// Replay tuning
	Replay ReplayConfig
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey    string
	APISecret string
	Username  string
	Password  string
}

// ReplayConfig holds settings for replaying history
type ReplayConfig struct {
	// Pause after each submission
	// Default: 500ms
	Pace time.Duration

	// File receiving malformed records
	// Default: debug.log
	DebugLog string

	// Directory holding the submission journal
	// Default: ~/.local/share/backfill
	DataDir string
}

// credentialVars maps config keys to the environment variables users set
var credentialVars = []struct {
	key string
	env string
}{
	{"lastfm_api_key", "LASTFM_API_KEY"},
	{"lastfm_api_secret", "LASTFM_API_SECRET"},
	{"lastfm_username", "LASTFM_USERNAME"},
	{"lastfm_password", "LASTFM_PASSWORD"},
}

// Load reads configuration from an optional dotenv file and the environment.
// Environment variables take precedence over the file. An empty envFile
// means DefaultEnvFile.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("backfill_pace", "500ms")
	v.SetDefault("backfill_debug_log", "debug.log")
	v.SetDefault("backfill_data_dir", defaultDataDir())

	// Read dotenv file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	// Read from environment variables; lastfm_api_key is read from LASTFM_API_KEY
	v.AutomaticEnv()

	cfg := &Config{
		LastFM: LastFMConfig{
			APIKey:    v.GetString("lastfm_api_key"),
			APISecret: v.GetString("lastfm_api_secret"),
			Username:  v.GetString("lastfm_username"),
			Password:  v.GetString("lastfm_password"),
		},
		Replay: ReplayConfig{
			Pace:     v.GetDuration("backfill_pace"),
			DebugLog: v.GetString("backfill_debug_log"),
			DataDir:  v.GetString("backfill_data_dir"),
		},
	}

	return cfg, nil
}

// Validate checks that every Last.fm credential is set. The returned error
// wraps ErrMissingCredentials and names the missing environment variables.
func (c *Config) Validate() error {
	values := map[string]string{
		"lastfm_api_key":    c.LastFM.APIKey,
		"lastfm_api_secret": c.LastFM.APISecret,
		"lastfm_username":   c.LastFM.Username,
		"lastfm_password":   c.LastFM.Password,
	}

	var missing []string
	for _, cv := range credentialVars {
		if values[cv.key] == "" {
			missing = append(missing, cv.env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s in the environment or %s",
			ErrMissingCredentials, strings.Join(missing, ", "), DefaultEnvFile)
	}

	return nil
}

// defaultDataDir returns ~/.local/share/backfill, or the working directory
// when the home directory is unknown
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "backfill")
}
