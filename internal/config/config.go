package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alexjbarnes/settings-sync/internal/auth"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultHTTPListenAddr is used when HTTP_LISTEN_ADDR is not set at all.
const DefaultHTTPListenAddr = "127.0.0.1:8091"

// Config holds all environment-based configuration for settings-sync.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Optional log file, rotated by size. Empty logs to stdout only.
	LogFile string `env:"LOG_FILE"`

	// Local settings database. Defaults to ~/.settings-sync/state.db.
	StatePath string `env:"STATE_PATH"`

	// Shared platform sync store. Every device profile on the host
	// points at the same file. Defaults to ~/.settings-sync/sync-store.db.
	SyncStorePath string `env:"SYNC_STORE_PATH"`

	// Directory watched for backup files to restore. Empty disables it.
	ImportDir string `env:"IMPORT_DIR"`

	// YAML document applied through restore on first run only.
	SeedFile string `env:"SEED_FILE"`

	// Cron spec for the periodic pull.
	SyncPullSchedule string `env:"SYNC_PULL_SCHEDULE" envDefault:"@every 5m"`

	// Overrides the version stamped on saved and exported settings.
	AppVersion string `env:"APP_VERSION"`

	// Passphrase used to seal the WebDAV password at rest. Empty stores
	// it in the clear.
	SettingsSecret string `env:"SETTINGS_SECRET"`

	// Operator HTTP surface (MCP and metrics) for the daemon. Unset uses
	// DefaultHTTPListenAddr; set to empty to disable it.
	HTTPListenAddr string `env:"HTTP_LISTEN_ADDR"`
	APIKeys        string `env:"API_KEYS"`

	// Language of user-facing messages.
	Locale string `env:"LOCALE" envDefault:"en"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// env treats a variable set to "" like an unset one and would apply
	// an envDefault, so the listen default is filled in here instead.
	if _, ok := os.LookupEnv("HTTP_LISTEN_ADDR"); !ok {
		cfg.HTTPListenAddr = DefaultHTTPListenAddr
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// resolvePaths fills default paths and makes every configured path
// absolute, so log lines and watchers refer to the same file no matter
// the working directory.
func (c *Config) resolvePaths() error {
	if c.StatePath == "" {
		p, err := DefaultPath("state.db")
		if err != nil {
			return err
		}

		c.StatePath = p
	}

	if c.SyncStorePath == "" {
		p, err := DefaultPath("sync-store.db")
		if err != nil {
			return err
		}

		c.SyncStorePath = p
	}

	for _, p := range []*string{&c.StatePath, &c.SyncStorePath, &c.ImportDir, &c.SeedFile, &c.LogFile} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolving %s to absolute path: %w", *p, err)
		}

		*p = abs
	}

	return nil
}

func (c *Config) validate() error {
	if c.StatePath == c.SyncStorePath {
		return fmt.Errorf("STATE_PATH and SYNC_STORE_PATH must be different files")
	}

	if strings.TrimSpace(c.SyncPullSchedule) == "" {
		return fmt.Errorf("SYNC_PULL_SCHEDULE must not be empty")
	}

	if _, err := c.ParseAPIKeys(); err != nil {
		return err
	}

	return nil
}

// ValidateDaemon checks what only the long-running daemon needs. The
// one-shot commands never serve HTTP, so they do not need API keys.
func (c *Config) ValidateDaemon() error {
	if c.HTTPListenAddr != "" && c.APIKeys == "" {
		return fmt.Errorf("API_KEYS is required when HTTP_LISTEN_ADDR is set")
	}

	return nil
}

// DefaultPath returns ~/.settings-sync/<name>.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".settings-sync", name), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseAPIKeys parses the API_KEYS string.
// Format: "user1:ss_key1,user2:ss_key2"
func (c *Config) ParseAPIKeys() ([]auth.APIKey, error) {
	if c.APIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []auth.APIKey

	for _, pair := range strings.Split(c.APIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		userID, key, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("API_KEYS entry %d is not user:key", len(entries)+1)
		}

		if userID == "" || key == "" {
			return nil, fmt.Errorf("empty user or key in entry %d", len(entries)+1)
		}

		if err := auth.CheckAPIKey(key); err != nil {
			return nil, fmt.Errorf("API key in entry %d: %w", len(entries)+1, err)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, auth.APIKey{UserID: userID, Key: key})
	}

	return entries, nil
}
