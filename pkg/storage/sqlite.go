package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteShortURLStorage persists short URLs in a local SQLite file. It is
// the zero-dependency deployment option and shares the database/sql plumbing
// with the MySQL adapter.
type SQLiteShortURLStorage struct {
	db    *sql.DB
	probe schemaProbe
}

// NewSQLiteShortURLStorage opens the SQLite file at dsn and creates the
// current schema when the tables do not exist yet. A pre-existing file
// created before the deep-link migration keeps its old columns; the probe
// handles that case at run time.
func NewSQLiteShortURLStorage(dsn string) (*SQLiteShortURLStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ensureSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteShortURLStorage{db: db}, nil
}

func ensureSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS short_urls (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		created_at_utc DATETIME NOT NULL,
		expires_at_utc DATETIME,
		deep_link_ios TEXT,
		deep_link_android TEXT,
		deep_link_desktop TEXT,
		deep_link_fallback TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_short_urls_code ON short_urls(code);

	CREATE TABLE IF NOT EXISTS short_url_analytics (
		code TEXT PRIMARY KEY,
		total_resolutions INTEGER NOT NULL DEFAULT 0,
		last_resolved_at_utc DATETIME
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteShortURLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM short_urls WHERE code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("code exists: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
	withDeepLinks, err := s.supportsDeepLinks(ctx)
	if err != nil {
		return err
	}

	if withDeepLinks {
		query := `INSERT INTO short_urls (id, code, original_url, created_at_utc, expires_at_utc,
			deep_link_ios, deep_link_android, deep_link_desktop, deep_link_fallback)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		ios, android, desktop, fallback := deepLinkFields(shortURL.DeepLinks)
		_, err = s.db.ExecContext(ctx, query,
			shortURL.ID.String(), shortURL.Code, shortURL.OriginalURL, shortURL.CreatedAt.UTC(), utcOrNil(shortURL.ExpiresAt),
			ios, android, desktop, fallback)
	} else {
		query := `INSERT INTO short_urls (id, code, original_url, created_at_utc, expires_at_utc)
			VALUES (?, ?, ?, ?, ?)`
		_, err = s.db.ExecContext(ctx, query,
			shortURL.ID.String(), shortURL.Code, shortURL.OriginalURL, shortURL.CreatedAt.UTC(), utcOrNil(shortURL.ExpiresAt))
	}
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (s *SQLiteShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
	withDeepLinks, err := s.supportsDeepLinks(ctx)
	if err != nil {
		return nil, err
	}

	link, err := scanShortURLRow(func(dest ...any) error {
		var query string
		if withDeepLinks {
			query = `SELECT id, code, original_url, created_at_utc, expires_at_utc,
				deep_link_ios, deep_link_android, deep_link_desktop, deep_link_fallback
				FROM short_urls WHERE code = ? LIMIT 1`
		} else {
			query = `SELECT id, code, original_url, created_at_utc, expires_at_utc
				FROM short_urls WHERE code = ? LIMIT 1`
		}
		return s.db.QueryRowContext(ctx, query, code).Scan(dest...)
	}, withDeepLinks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get by code: %w", err)
	}
	return link, nil
}

func (s *SQLiteShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	query := `INSERT INTO short_url_analytics (code, total_resolutions, last_resolved_at_utc)
		VALUES (?, 1, ?)
		ON CONFLICT(code) DO UPDATE SET
			total_resolutions = total_resolutions + 1,
			last_resolved_at_utc = excluded.last_resolved_at_utc`
	if _, err := s.db.ExecContext(ctx, query, code, resolvedAt.UTC()); err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (s *SQLiteShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
	query := `SELECT code, total_resolutions, last_resolved_at_utc
		FROM short_url_analytics WHERE code = ? LIMIT 1`
	var analytics ShortURLAnalytics
	var lastResolved sql.NullTime
	err := s.db.QueryRowContext(ctx, query, code).Scan(&analytics.Code, &analytics.TotalResolutions, &lastResolved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ShortURLAnalytics{Code: code}, nil
		}
		return ShortURLAnalytics{}, fmt.Errorf("get analytics: %w", err)
	}
	if lastResolved.Valid {
		t := lastResolved.Time.UTC()
		analytics.LastResolvedAt = &t
	}
	return analytics, nil
}

// supportsDeepLinks inspects the live table shape once per adapter instance.
// SQLite has no information_schema, so the probe walks PRAGMA table_info.
func (s *SQLiteShortURLStorage) supportsDeepLinks(ctx context.Context) (bool, error) {
	if present, known := s.probe.cached(); known {
		return present, nil
	}

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(short_urls)`)
	if err != nil {
		return false, fmt.Errorf("probe deep link columns: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(deepLinkColumns))
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, fmt.Errorf("probe deep link columns: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("probe deep link columns: %w", err)
	}

	present := true
	for _, col := range deepLinkColumns {
		if !found[col] {
			present = false
			break
		}
	}
	s.probe.store(present)
	return present, nil
}

// isSQLiteUniqueViolation matches the driver's constraint error without
// depending on its unexported error type.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
