// Package history persists a summary of every completed page analysis
// to SQLite, giving the extension a "recent scans" view that survives
// restarts. Lookups always re-run; history is a record, not a cache.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pageguard/pageguard/internal/analysis"
)

// Store is a SQLite-backed scan log.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Entry is one recorded scan.
type Entry struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	RiskScore  int       `json:"risk_score"`
	IsSafe     bool      `json:"is_safe"`
	IsPhishing bool      `json:"is_phishing"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}

// Open opens or creates the scan-history database under dir.
func Open(dir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dir, "pageguard.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("check history database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// SQLite supports a single writer; multiple connections only add
	// lock contention for this workload.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		is_safe INTEGER NOT NULL,
		is_phishing INTEGER NOT NULL,
		summary TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url);
	CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Record appends one completed analysis to the log.
func (s *Store) Record(ctx context.Context, res analysis.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (url, risk_score, is_safe, is_phishing, summary) VALUES (?, ?, ?, ?, ?)`,
		res.URL, res.RiskScore, boolToInt(res.IsSafe), boolToInt(res.IsPhishing), res.Summary,
	)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// Recent returns the newest scans, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, risk_score, is_safe, is_phishing, COALESCE(summary, ''), created_at
		 FROM scans ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scans: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			safe      int
			phishing  int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.RiskScore, &safe, &phishing, &e.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.IsSafe = safe != 0
		e.IsPhishing = phishing != 0
		e.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// timestampFormats are the layouts SQLite may hand back depending on how
// the value was written.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999",
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
