package altumview

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// Defaults for the AltumView cloud.
const (
	DefaultTokenURL   = "https://canada-1.oauth.altumview.com/v1.0/token"
	DefaultBaseURL    = "https://api.altumview.ca"
	DefaultAPIVersion = "v1.0"
	DefaultPageLength = 200 // The largest page the API will return.
)

// DefaultScopes are the OAuth scopes requested for the access token.
var DefaultScopes = []string{"camera:write", "camera:read"}

// These are the API versions whose recording format this client understands.
var supportedAPIVersions = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

// Config configures a `Client`.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	BaseURL    string
	APIVersion string
	PageLength int
	Timeout    time.Duration // Per HTTP request.

	RequestsPerSecond float64 // Zero or less means unlimited.
	Burst             int
	MaxRetries        int
	RetryInterval     time.Duration // Initial backoff interval.
	Concurrency       int           // Recordings fetched at the same time.
}

// DefaultConfig returns the configuration for the public AltumView cloud, minus the credentials.
func DefaultConfig() Config {
	return Config{
		TokenURL:          DefaultTokenURL,
		Scopes:            append([]string{}, DefaultScopes...),
		BaseURL:           DefaultBaseURL,
		APIVersion:        DefaultAPIVersion,
		PageLength:        DefaultPageLength,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		MaxRetries:        4,
		RetryInterval:     500 * time.Millisecond,
		Concurrency:       4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("missing client ID")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("missing client secret")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("missing token URL")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("missing base URL")
	}
	apiVersion, err := version.NewVersion(c.APIVersion)
	if err != nil {
		return fmt.Errorf("could not parse API version %q: %w", c.APIVersion, err)
	}
	if !supportedAPIVersions.Check(apiVersion) {
		return fmt.Errorf("unsupported API version %s (need %s)", apiVersion, supportedAPIVersions)
	}
	if c.PageLength <= 0 || c.PageLength > DefaultPageLength {
		return fmt.Errorf("page length must be between 1 and %d: %d", DefaultPageLength, c.PageLength)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative: %d", c.MaxRetries)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %d", c.Concurrency)
	}
	return nil
}

// apiRoot returns the versioned API root, e.g., "https://api.altumview.ca/v1.0".
func (c Config) apiRoot() string {
	segments := version.Must(version.NewVersion(c.APIVersion)).Segments()
	return fmt.Sprintf("%s/v%d.%d", strings.TrimSuffix(c.BaseURL, "/"), segments[0], segments[1])
}
