package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLShortURLStorage persists short URLs in MySQL through database/sql.
type MySQLShortURLStorage struct {
	db    *sql.DB
	probe schemaProbe
}

func NewMySQLShortURLStorage(db *sql.DB) *MySQLShortURLStorage {
	return &MySQLShortURLStorage{db: db}
}

func (s *MySQLShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM short_urls WHERE code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("code exists: %w", err)
	}
	return count > 0, nil
}

func (s *MySQLShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (s *MySQLShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
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

func (s *MySQLShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	query := `INSERT INTO short_url_analytics (code, total_resolutions, last_resolved_at_utc)
		VALUES (?, 1, ?)
		ON DUPLICATE KEY UPDATE
			total_resolutions = total_resolutions + 1,
			last_resolved_at_utc = VALUES(last_resolved_at_utc)`
	if _, err := s.db.ExecContext(ctx, query, code, resolvedAt.UTC()); err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (s *MySQLShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
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

func (s *MySQLShortURLStorage) supportsDeepLinks(ctx context.Context) (bool, error) {
	if present, known := s.probe.cached(); known {
		return present, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = 'short_urls'
		AND column_name IN (?, ?, ?, ?)`
	err := s.db.QueryRowContext(ctx, query,
		deepLinkColumns[0], deepLinkColumns[1], deepLinkColumns[2], deepLinkColumns[3]).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("probe deep link columns: %w", err)
	}

	present := count == len(deepLinkColumns)
	s.probe.store(present)
	return present, nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
