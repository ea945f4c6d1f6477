package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresShortURLStorage persists short URLs in PostgreSQL via pgx.
type PostgresShortURLStorage struct {
	pool  *pgxpool.Pool
	probe schemaProbe
}

func NewPostgresShortURLStorage(pool *pgxpool.Pool) *PostgresShortURLStorage {
	return &PostgresShortURLStorage{pool: pool}
}

func (s *PostgresShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM short_urls WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("code exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
	withDeepLinks, err := s.supportsDeepLinks(ctx)
	if err != nil {
		return err
	}

	if withDeepLinks {
		query := `INSERT INTO short_urls (id, code, original_url, created_at_utc, expires_at_utc,
			deep_link_ios, deep_link_android, deep_link_desktop, deep_link_fallback)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		ios, android, desktop, fallback := deepLinkFields(shortURL.DeepLinks)
		_, err = s.pool.Exec(ctx, query,
			shortURL.ID, shortURL.Code, shortURL.OriginalURL, shortURL.CreatedAt, shortURL.ExpiresAt,
			ios, android, desktop, fallback)
	} else {
		query := `INSERT INTO short_urls (id, code, original_url, created_at_utc, expires_at_utc)
			VALUES ($1, $2, $3, $4, $5)`
		_, err = s.pool.Exec(ctx, query,
			shortURL.ID, shortURL.Code, shortURL.OriginalURL, shortURL.CreatedAt, shortURL.ExpiresAt)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (s *PostgresShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
	withDeepLinks, err := s.supportsDeepLinks(ctx)
	if err != nil {
		return nil, err
	}

	var link ShortURL
	if withDeepLinks {
		query := `SELECT id, code, original_url, created_at_utc, expires_at_utc,
			deep_link_ios, deep_link_android, deep_link_desktop, deep_link_fallback
			FROM short_urls WHERE code = $1 LIMIT 1`
		var ios, android, desktop, fallback *string
		err = s.pool.QueryRow(ctx, query, code).Scan(
			&link.ID, &link.Code, &link.OriginalURL, &link.CreatedAt, &link.ExpiresAt,
			&ios, &android, &desktop, &fallback)
		if err == nil {
			link.DeepLinks = deepLinksFromFields(ios, android, desktop, fallback)
		}
	} else {
		query := `SELECT id, code, original_url, created_at_utc, expires_at_utc
			FROM short_urls WHERE code = $1 LIMIT 1`
		err = s.pool.QueryRow(ctx, query, code).Scan(
			&link.ID, &link.Code, &link.OriginalURL, &link.CreatedAt, &link.ExpiresAt)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get by code: %w", err)
	}
	return &link, nil
}

func (s *PostgresShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	query := `INSERT INTO short_url_analytics (code, total_resolutions, last_resolved_at_utc)
		VALUES ($1, 1, $2)
		ON CONFLICT (code) DO UPDATE SET
			total_resolutions = short_url_analytics.total_resolutions + 1,
			last_resolved_at_utc = EXCLUDED.last_resolved_at_utc`
	if _, err := s.pool.Exec(ctx, query, code, resolvedAt); err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (s *PostgresShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
	query := `SELECT code, total_resolutions, last_resolved_at_utc
		FROM short_url_analytics WHERE code = $1 LIMIT 1`
	var analytics ShortURLAnalytics
	err := s.pool.QueryRow(ctx, query, code).Scan(&analytics.Code, &analytics.TotalResolutions, &analytics.LastResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ShortURLAnalytics{Code: code}, nil
		}
		return ShortURLAnalytics{}, fmt.Errorf("get analytics: %w", err)
	}
	return analytics, nil
}

// supportsDeepLinks checks the catalog once per adapter lifetime for the
// deep-link columns, so the same binary runs against both migrated and
// unmigrated schemas. Probe failures are returned, not cached.
func (s *PostgresShortURLStorage) supportsDeepLinks(ctx context.Context) (bool, error) {
	if present, known := s.probe.cached(); known {
		return present, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = 'short_urls' AND column_name = ANY($1)`
	if err := s.pool.QueryRow(ctx, query, deepLinkColumns).Scan(&count); err != nil {
		return false, fmt.Errorf("probe deep link columns: %w", err)
	}

	present := count == len(deepLinkColumns)
	s.probe.store(present)
	return present, nil
}
