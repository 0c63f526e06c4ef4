package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/ferrumweb/internal/tor"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ferrumweb"

	// DefaultMaxDepth is the default maximum discovery depth.
	// Depth 2 stores the seed, the links on the seed page and the links on those pages.
	DefaultMaxDepth = 2

	// DefaultWorkers of 1 fetches one page at a time, which reproduces the
	// strictly sequential depth-first traversal order.
	DefaultWorkers = 1

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies FerrumWeb in HTTP requests.
	// Using a descriptive User-Agent allows operators to identify crawler
	// traffic in their logs.
	DefaultUserAgent = "FerrumWeb/1.0 (+https://github.com/nao1215/ferrumweb)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for a crawl run.
// It is populated from defaults, the environment and CLI flags, in that
// order, and passed through the application rather than kept as global state.
//
// Design decision: We keep a single flat struct, as the number of options
// is small and every option is read by the crawl command only.
type Config struct {
	// SeedURL is the absolute http:// or https:// URL the crawl starts from.
	SeedURL string

	// MaxDepth is the greatest depth a stored link may have.
	// 0 stores only the seed; 1 also stores the links found on the seed page.
	MaxDepth int

	// DepthExplicit records that the operator chose MaxDepth on the command
	// line or at the prompt. A per-site depth never overrides it.
	DepthExplicit bool

	// Workers is the number of pages fetched concurrently.
	Workers int

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// MaxDuration bounds the wall-clock time of the whole crawl.
	// Zero means no limit.
	MaxDuration time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/ferrumweb on Linux).
	DBDir string

	// DatabaseURL selects PostgreSQL instead of SQLite when set.
	DatabaseURL string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseTor is true.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON.
	JSONLog bool

	// JSONSummary prints the crawl summary as JSON.
	JSONSummary bool

	// ConfigFilePath is the path to the site configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds per-host request settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		DBDir:             XDGDataDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for FerrumWeb.
// On Linux: ~/.local/share/ferrumweb
// On macOS: ~/Library/Application Support/ferrumweb
// On Windows: %LOCALAPPDATA%\ferrumweb
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for FerrumWeb.
// On Linux: ~/.config/ferrumweb
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found, wrapping one of the sentinel errors
// in errors.go so callers can use errors.Is.
//
// Design decision: We validate once after flag parsing so that every
// configuration error is reported before the database is reset or any
// request is sent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" {
		return ErrNoSeed
	}
	if err := ValidateSeedURL(c.SeedURL); err != nil {
		return err
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxDuration < 0 {
		return ErrInvalidMaxDuration
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}

// ValidateSeedURL checks that raw is an absolute http:// or https:// URL
// with a host. A .onion host must be a valid v3 address.
func ValidateSeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https: %s", ErrInvalidSeedURL, raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host: %s", ErrInvalidSeedURL, raw)
	}
	if tor.IsOnionHost(u.Hostname()) && !tor.IsValidV3Address(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrInvalidSeedURL, tor.ErrInvalidOnionAddress)
	}
	return nil
}

// EffectiveMaxDepth returns the depth bound for the seed host. A per-site
// depth from the config file applies only when the operator did not choose
// a depth explicitly.
func (c *Config) EffectiveMaxDepth() int {
	if c.DepthExplicit || c.SiteConfigs == nil {
		return c.MaxDepth
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil {
		return c.MaxDepth
	}
	if site := c.SiteConfigs.GetSiteConfig(u.Hostname()); site.Depth > 0 {
		return site.Depth
	}
	return c.MaxDepth
}
