package config

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitegrab/internal/crawler"
	"github.com/nao1215/sitegrab/internal/download"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitegrab"

	// DefaultFetchTimeout bounds every crawl fetch.
	DefaultFetchTimeout = crawler.DefaultFetchTimeout

	// DefaultCrawlDelay is the politeness pause after every crawl iteration.
	DefaultCrawlDelay = crawler.DefaultDelay

	// DefaultMaxPages of 0 means the crawl runs until the frontier is empty.
	DefaultMaxPages = 0

	// DefaultMaxBodySize limits how much of a response body is kept in memory
	// for link extraction. The full size is still counted.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultDownloadTimeout is how long a download may stall before it fails.
	DefaultDownloadTimeout = download.DefaultTimeout

	// DefaultChunkSize is the read buffer size of a download.
	DefaultChunkSize = download.DefaultChunkSize

	// DefaultUserAgent is a browser-like User-Agent. Many sites refuse
	// requests from unknown agents.
	DefaultUserAgent = crawler.DefaultUserAgent

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DBFileName is the session database file name inside DBDir.
	DBFileName = "sitegrab.db"
)

// Config holds all configuration options of a sitegrab command.
// It is populated from CLI flags and the config file and passed down
// explicitly rather than kept in global state.
//
// Design decision: A single flat struct like the crawl options it feeds.
// Each command only reads the fields it needs.
type Config struct {
	// Seed is the crawl start address. ValidateSeed normalizes it.
	Seed string

	// FetchTimeout bounds every single crawl fetch.
	FetchTimeout time.Duration

	// CrawlDelay is the pause after each crawl iteration.
	CrawlDelay time.Duration

	// MaxPages stops the crawl after this many fetches. 0 means no limit.
	MaxPages int

	// MaxBodySize is the number of body bytes kept for link extraction.
	MaxBodySize int64

	// UserAgent is sent with crawl and download requests.
	UserAgent string

	// DownloadTimeout is how long a download may go without data.
	DownloadTimeout time.Duration

	// ChunkSize is the download read buffer size.
	ChunkSize int

	// DownloadDir is the batch directory. Defaults to the user's download folder.
	DownloadDir string

	// Categories restricts which discovered resources are downloaded.
	// Empty means every downloadable category.
	Categories []string

	// ProxyAddress is a SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes traffic through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, receives a copy of the log in a rotated file.
	LogFile string

	// JSONReport, MarkdownReport and URLList select the report format.
	// At most one may be set; the default is the text report.
	JSONReport     bool
	MarkdownReport bool
	URLList        bool

	// ReportFile is the output file of the report. Empty means stdout.
	ReportFile string

	// SortKey and Reverse order the records of the report.
	SortKey string
	Reverse bool

	// SaveToDB stores sessions and download results in the database.
	SaveToDB bool

	// DBDir is the directory of the session database.
	DBDir string

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// SiteConfigs holds the loaded config file, or nil.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		FetchTimeout:      DefaultFetchTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		MaxPages:          DefaultMaxPages,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		DownloadTimeout:   DefaultDownloadTimeout,
		ChunkSize:         DefaultChunkSize,
		DownloadDir:       DefaultDownloadDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for sitegrab.
// On Linux: ~/.local/share/sitegrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitegrab.
// On Linux: ~/.config/sitegrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDownloadDir returns the user's download directory.
func DefaultDownloadDir() string {
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	return filepath.Join(xdg.Home, "Downloads")
}

// DBPath returns the session database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, DBFileName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 || c.DownloadTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}

	formats := 0
	for _, set := range []bool{c.JSONReport, c.MarkdownReport, c.URLList} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}

// ValidateSeed checks the crawl seed and replaces it with its normalized form.
// A seed without a scheme is treated as plain http.
func (c *Config) ValidateSeed() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	normalized, err := crawler.NormalizeAddress(c.Seed)
	if err != nil {
		if errors.Is(err, crawler.ErrInvalidSeed) {
			return ErrInvalidSeed
		}
		return err
	}
	c.Seed = normalized
	return nil
}

// SiteFor returns the merged site configuration for host.
// Without a config file it returns the zero SiteConfig.
func (c *Config) SiteFor(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
