package share

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Meta is the article information stored alongside a shared podcast.
type Meta struct {
	Title     string
	Author    string
	SourceURL string
	Duration  float64
}

// Record is one shared podcast reachable by its short public id.
type Record struct {
	ShareID   string
	Title     string
	Author    string
	SourceURL string
	Duration  float64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SQLiteStore keeps share records in a local SQLite database. Records expire
// after the configured TTL; expiry is enforced on every read and reclaimed by
// SweepExpired.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("share ttl must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, ttl: ttl}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores the audio under a fresh short share id and returns the record.
func (s *SQLiteStore) Put(ctx context.Context, audio []byte, meta Meta) (*Record, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio to share")
	}

	now := time.Now().UTC()
	rec := &Record{
		ShareID:   newShareID(),
		Title:     meta.Title,
		Author:    meta.Author,
		SourceURL: meta.SourceURL,
		Duration:  meta.Duration,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO shares
		(share_id, title, author, source_url, duration, audio, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ShareID, rec.Title, rec.Author, rec.SourceURL, rec.Duration, audio, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert share: %w", err)
	}
	return rec, nil
}

// Get returns the record for shareID, or (nil, nil) when it is unknown or
// has expired. Absence is not an error: callers surface it as exists=false.
func (s *SQLiteStore) Get(ctx context.Context, shareID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT share_id, title, author, source_url, duration, created_at, expires_at
		FROM shares WHERE share_id = ?`, shareID)

	rec := &Record{}
	err := row.Scan(&rec.ShareID, &rec.Title, &rec.Author, &rec.SourceURL, &rec.Duration, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query share: %w", err)
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, nil
	}
	return rec, nil
}

// GetAudio returns the stored audio bytes, or (nil, nil) when the record is
// unknown or expired.
func (s *SQLiteStore) GetAudio(ctx context.Context, shareID string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT audio, expires_at FROM shares WHERE share_id = ?`, shareID)

	var audio []byte
	var expiresAt time.Time
	err := row.Scan(&audio, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query share audio: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, nil
	}
	return audio, nil
}

// SweepExpired deletes expired rows and reports how many were removed.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep shares: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// newShareID returns a short URL-friendly id: the first 8 hex chars of a UUID.
func newShareID() string {
	return uuid.NewString()[:8]
}
