package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tekkamanendless/altumview-skeleton-processor/altumview"
	"github.com/tekkamanendless/altumview-skeleton-processor/skeletonconv"
)

// Environment variables that override the credentials in the file.
const (
	EnvClientID     = "ALTUMVIEW_CLIENT_ID"
	EnvClientSecret = "ALTUMVIEW_CLIENT_SECRET"
)

// Export formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config is the contents of the TOML configuration file.
type Config struct {
	Auth   AuthConfig   `toml:"auth"`
	API    APIConfig    `toml:"api"`
	Fetch  FetchConfig  `toml:"fetch"`
	Export ExportConfig `toml:"export"`
}

// AuthConfig is the [auth] section: the client credentials for the token endpoint.
type AuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	TokenURL     string   `toml:"token_url"`
	Scopes       []string `toml:"scopes"`
}

// APIConfig is the [api] section.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`
	Version    string `toml:"version"`
	PageLength int    `toml:"page_length"`
	Timeout    string `toml:"timeout"`
}

// FetchConfig is the [fetch] section.
//
// RetryInterval is a duration string such as "500ms".
type FetchConfig struct {
	Concurrency       int      `toml:"concurrency"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	MaxRetries        int      `toml:"max_retries"`
	RetryInterval     string   `toml:"retry_interval"`
	CameraIDs         []uint32 `toml:"camera_ids"`
	PersonIDs         []uint32 `toml:"person_ids"`
}

// ExportConfig is the [export] section; Mode only applies to CSV.
type ExportConfig struct {
	Format string `toml:"format"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	client := altumview.DefaultConfig()
	return &Config{
		Auth: AuthConfig{
			TokenURL: client.TokenURL,
			Scopes:   client.Scopes,
		},
		API: APIConfig{
			BaseURL:    client.BaseURL,
			Version:    client.APIVersion,
			PageLength: client.PageLength,
			Timeout:    client.Timeout.String(),
		},
		Fetch: FetchConfig{
			Concurrency:       client.Concurrency,
			RequestsPerSecond: client.RequestsPerSecond,
			Burst:             client.Burst,
			MaxRetries:        client.MaxRetries,
			RetryInterval:     client.RetryInterval.String(),
		},
		Export: ExportConfig{
			Format: FormatCSV,
			Output: "skeletons.csv",
			Mode:   skeletonconv.ModeTruncate,
		},
	}
}

// Load reads the configuration file on top of the defaults, then applies the environment.
//
// An empty filename just uses the defaults and the environment.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		cfgBytes, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		err = toml.Unmarshal(cfgBytes, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not parse config file %s: %w", filename, err)
		}
	}

	if value := os.Getenv(EnvClientID); value != "" {
		cfg.Auth.ClientID = value
	}
	if value := os.Getenv(EnvClientSecret); value != "" {
		cfg.Auth.ClientSecret = value
	}

	return cfg, nil
}

// ValidateExport checks the export settings.
func (c *Config) ValidateExport() error {
	switch c.Export.Format {
	case FormatCSV:
		switch c.Export.Mode {
		case skeletonconv.ModeTruncate, skeletonconv.ModeExclusive, skeletonconv.ModeAppend:
		default:
			return fmt.Errorf("invalid export mode %q (can be one of: w, x, a)", c.Export.Mode)
		}
	case FormatSQLite:
	default:
		return fmt.Errorf("invalid export format %q (can be one of: csv, sqlite)", c.Export.Format)
	}
	if c.Export.Output == "" {
		return fmt.Errorf("missing export output")
	}
	return nil
}

// ClientConfig converts the configuration into an `altumview.Config` and validates it.
func (c *Config) ClientConfig() (altumview.Config, error) {
	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return altumview.Config{}, fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
	}
	retryInterval, err := time.ParseDuration(c.Fetch.RetryInterval)
	if err != nil {
		return altumview.Config{}, fmt.Errorf("invalid fetch.retry_interval %q: %w", c.Fetch.RetryInterval, err)
	}

	client := altumview.Config{
		ClientID:          c.Auth.ClientID,
		ClientSecret:      c.Auth.ClientSecret,
		TokenURL:          c.Auth.TokenURL,
		Scopes:            c.Auth.Scopes,
		BaseURL:           c.API.BaseURL,
		APIVersion:        c.API.Version,
		PageLength:        c.API.PageLength,
		Timeout:           timeout,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		Burst:             c.Fetch.Burst,
		MaxRetries:        c.Fetch.MaxRetries,
		RetryInterval:     retryInterval,
		Concurrency:       c.Fetch.Concurrency,
	}
	err = client.Validate()
	if err != nil {
		return altumview.Config{}, err
	}
	return client, nil
}
