package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitegrab/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "sitegrab.db"

// minIDPrefix is the shortest session ID prefix accepted by LoadSession.
const minIDPrefix = 4

var (
	// ErrSessionNotFound is returned when no stored session matches an ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAmbiguousID is returned when an ID prefix matches several sessions.
	ErrAmbiguousID = errors.New("session id prefix matches more than one session")
)

// CrawlDB provides SQLite-based storage for crawl sessions and downloads.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a command with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		state TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		diagnostic TEXT,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_seed ON sessions(seed);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Discovery records keep their fetch order in position
	CREATE TABLE IF NOT EXISTS discoveries (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		address TEXT NOT NULL,
		category TEXT NOT NULL,
		byte_size INTEGER NOT NULL,
		raw_content_type TEXT,
		discovered_at TEXT,
		PRIMARY KEY(session_id, address)
	);

	CREATE INDEX IF NOT EXISTS idx_discoveries_category ON discoveries(category);

	CREATE TABLE IF NOT EXISTS download_batches (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		directory TEXT NOT NULL,
		total INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		last_index INTEGER NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS downloads (
		batch_id TEXT NOT NULL REFERENCES download_batches(id) ON DELETE CASCADE,
		item_index INTEGER NOT NULL,
		address TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		digest TEXT,
		error TEXT,
		PRIMARY KEY(batch_id, item_index)
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_digest ON downloads(digest);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSession inserts or replaces a session and all of its records.
func (cdb *CrawlDB) SaveSession(ctx context.Context, session *model.CrawlSession) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO sessions (id, seed, state, started_at, finished_at, diagnostic)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		seed = excluded.seed,
		state = excluded.state,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		diagnostic = excluded.diagnostic,
		saved_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, query,
		session.ID,
		session.Seed,
		session.State,
		formatTimestamp(session.StartedAt),
		formatTimestamp(session.FinishedAt),
		session.Diagnostic,
	); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM discoveries WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO discoveries (session_id, position, address, category, byte_size, raw_content_type, discovered_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range session.Records {
		if _, err := stmt.ExecContext(ctx,
			session.ID, i, r.Address, string(r.Category), r.ByteSize, r.RawContentType,
			formatTimestamp(r.DiscoveredAt),
		); err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.Address, err)
		}
	}

	return tx.Commit()
}

// LoadSession loads a session by ID. A unique ID prefix of at least four
// characters is accepted as well.
func (cdb *CrawlDB) LoadSession(ctx context.Context, id string) (*model.CrawlSession, error) {
	fullID, err := cdb.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	session := &model.CrawlSession{ID: fullID}
	var startedAt, finishedAt, diagnostic sql.NullString
	err = cdb.db.QueryRowContext(ctx, `
	SELECT seed, state, started_at, finished_at, diagnostic FROM sessions WHERE id = ?
	`, fullID).Scan(&session.Seed, &session.State, &startedAt, &finishedAt, &diagnostic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.StartedAt = parseTimestamp(startedAt.String)
	session.FinishedAt = parseTimestamp(finishedAt.String)
	session.Diagnostic = diagnostic.String

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT address, category, byte_size, raw_content_type, discovered_at
	FROM discoveries WHERE session_id = ? ORDER BY position
	`, fullID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	session.Records = make([]model.DiscoveryRecord, 0)
	for rows.Next() {
		var r model.DiscoveryRecord
		var category string
		var rawContentType, discoveredAt sql.NullString
		if err := rows.Scan(&r.Address, &category, &r.ByteSize, &rawContentType, &discoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Category = model.Category(category)
		r.RawContentType = rawContentType.String
		r.DiscoveredAt = parseTimestamp(discoveredAt.String)
		session.Records = append(session.Records, r)
	}

	return session, rows.Err()
}

// resolveID expands an ID prefix to the full session ID.
func (cdb *CrawlDB) resolveID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrSessionNotFound
	}

	var exists int
	err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if exists == 1 {
		return id, nil
	}
	if len(id) < minIDPrefix {
		return "", ErrSessionNotFound
	}

	rows, err := cdb.db.QueryContext(ctx, `SELECT id FROM sessions WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var match string
		if err := rows.Scan(&match); err != nil {
			return "", fmt.Errorf("failed to scan session id: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", ErrSessionNotFound
	case 1:
		return matches[0], nil
	default:
		return "", ErrAmbiguousID
	}
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID          string    `json:"id"`
	Seed        string    `json:"seed"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	RecordCount int       `json:"record_count"`
	TotalBytes  int64     `json:"total_bytes"`
}

// ListSessions returns the most recently started sessions first.
// A limit of 0 or less returns every session.
func (cdb *CrawlDB) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `
	SELECT s.id, s.seed, s.state, s.started_at, s.finished_at,
		COUNT(d.address), COALESCE(SUM(d.byte_size), 0)
	FROM sessions s
	LEFT JOIN discoveries d ON d.session_id = s.id
	GROUP BY s.id
	ORDER BY s.started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	results := make([]SessionSummary, 0)
	for rows.Next() {
		var s SessionSummary
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.Seed, &s.State, &startedAt, &finishedAt, &s.RecordCount, &s.TotalBytes); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt.String)
		s.FinishedAt = parseTimestamp(finishedAt.String)
		results = append(results, s)
	}

	return results, rows.Err()
}

// DeleteSession removes a session and its records.
func (cdb *CrawlDB) DeleteSession(ctx context.Context, id string) error {
	fullID, err := cdb.resolveID(ctx, id)
	if err != nil {
		return err
	}
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discoveries WHERE session_id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

// SaveDownloads stores the outcome of a download batch. sessionID may be
// empty when the batch was not built from a stored session.
func (cdb *CrawlDB) SaveDownloads(ctx context.Context, batchID, sessionID string, record *model.CompletionRecord) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cancelled := 0
	if record.Cancelled {
		cancelled = 1
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO download_batches (id, session_id, directory, total, cancelled, last_index)
	VALUES (?, ?, ?, ?, ?, ?)
	`, batchID, sql.NullString{String: sessionID, Valid: sessionID != ""},
		record.Directory, record.Total, cancelled, record.LastIndex); err != nil {
		return fmt.Errorf("failed to save download batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("failed to clear download results: %w", err)
	}

	for _, r := range record.Results {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO downloads (batch_id, item_index, address, path, status, bytes, digest, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, batchID, r.Index, r.Address, r.Path, string(r.Status), r.Bytes, r.Digest, r.Error); err != nil {
			return fmt.Errorf("failed to save download result %s: %w", r.Address, err)
		}
	}

	return tx.Commit()
}

// LoadDownloads returns the item results of a stored batch in item order.
func (cdb *CrawlDB) LoadDownloads(ctx context.Context, batchID string) ([]model.ItemResult, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT item_index, address, path, status, bytes, digest, error
	FROM downloads WHERE batch_id = ? ORDER BY item_index
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load downloads: %w", err)
	}
	defer rows.Close()

	results := make([]model.ItemResult, 0)
	for rows.Next() {
		var r model.ItemResult
		var status string
		var digest, errText sql.NullString
		if err := rows.Scan(&r.Index, &r.Address, &r.Path, &status, &r.Bytes, &digest, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		r.Status = model.ItemStatus(status)
		r.Digest = digest.String
		r.Error = errText.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// FindByDigest returns the saved paths of successful downloads with digest.
func (cdb *CrawlDB) FindByDigest(ctx context.Context, digest string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT path FROM downloads WHERE digest = ? AND status = ? ORDER BY batch_id, item_index
	`, digest, string(model.ItemSucceeded))
	if err != nil {
		return nil, fmt.Errorf("failed to query digest: %w", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// formatTimestamp stores zero times as empty strings.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
