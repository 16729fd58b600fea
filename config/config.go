package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

// Duration lets TOML values like "10s" decode into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// UpstreamConfig points at the external news feed.
type UpstreamConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// SyncConfig bounds a synchronizer pass.
type SyncConfig struct {
	// FetchLimit caps how many ids from the top of the upstream index are
	// fetched per pass.
	FetchLimit int `toml:"fetch_limit"`
	// Retain is the retention cap; pruning removes the oldest items beyond it.
	Retain int `toml:"retain"`
}

// FeedConfig shapes the read API responses.
type FeedConfig struct {
	PerPage       int `toml:"per_page"`
	NewsfeedLimit int `toml:"newsfeed_limit"`
}

// Config is the top-level TOML configuration.
type Config struct {
	Hostname string         `toml:"hostname"`
	Admins   []string       `toml:"admins"`
	Upstream UpstreamConfig `toml:"upstream"`
	Sync     SyncConfig     `toml:"sync"`
	Feed     FeedConfig     `toml:"feed"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL: "https://hacker-news.firebaseio.com/v0",
			Timeout: Duration{10 * time.Second},
		},
		Sync: SyncConfig{
			FetchLimit: 50,
			Retain:     150,
		},
		Feed: FeedConfig{
			PerPage:       10,
			NewsfeedLimit: 10,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. An empty path returns
// the defaults; a missing file at an explicit path is an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Validate rejects values the synchronizer and feed cannot work with.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url must be set")
	}
	if c.Upstream.Timeout.Duration <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if c.Sync.FetchLimit < 1 {
		return errors.New("sync.fetch_limit must be at least 1")
	}
	if c.Sync.Retain < 1 {
		return errors.New("sync.retain must be at least 1")
	}
	if c.Feed.PerPage < 1 {
		return errors.New("feed.per_page must be at least 1")
	}
	if c.Feed.NewsfeedLimit < 1 {
		return errors.New("feed.newsfeed_limit must be at least 1")
	}
	return nil
}

// IsAdmin reports whether the email belongs to a configured admin. Emails
// compare case-insensitively.
func (c *Config) IsAdmin(email string) bool {
	return lo.SomeBy(c.Admins, func(admin string) bool {
		return strings.EqualFold(admin, email)
	})
}
