package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and Config.ValidateSeed().
//
// Design decision: We use package-level sentinel errors so that callers can
// use errors.Is() while the messages stay readable on the command line.
var (
	// ErrNoSeed is returned when no seed address was given to the crawl command.
	ErrNoSeed = errors.New("no seed specified: provide a URL to crawl")

	// ErrInvalidSeed is returned when the seed is not an http or https address.
	ErrInvalidSeed = errors.New("invalid seed: expected an http or https URL")

	// ErrInvalidTimeout is returned when a fetch or download timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidChunkSize is returned when the download chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --urls is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown and --urls")

	// ErrConflictingProxy is returned when both --proxy and --tor are given.
	ErrConflictingProxy = errors.New("conflicting transports: --proxy and --tor cannot be used together")
)
