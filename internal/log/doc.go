// Package log provides the sitegrab logger: log/slog with automatic
// redaction of sensitive values and an optional rotated log file.
//
// # Security Features
//
// The SecureHandler sanitizes sensitive information before it is written:
//   - HTTP headers and cookies configured per site (Authorization, Cookie, X-Api-Key)
//   - values under keys that look like secrets (password, token, auth)
//   - values that look like secrets (JWTs, Bearer and Basic credentials, AWS keys)
//   - secret query parameters of logged URLs (?token=..., ?api_key=...)
//
// Crawled addresses are logged at debug level, and site configs often carry
// session cookies, so redaction stays on in verbose mode too.
//
// # Usage
//
//	logger, closeLog, err := log.New(os.Stderr, log.Options{Verbose: true, File: "sitegrab.log"})
//	if err != nil {
//	    return err
//	}
//	defer closeLog()
//
//	logger.Info("request sent", "cookie", "session=abc123") // cookie=***REDACTED***
package log
