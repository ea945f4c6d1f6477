package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// scanShortURLRow reads one short_urls row through a database/sql scan
// function, shared by the adapters that speak database/sql. The column order
// is fixed: id, code, original_url, created_at_utc, expires_at_utc, then the
// four deep-link columns when withDeepLinks is set.
func scanShortURLRow(scan func(dest ...any) error, withDeepLinks bool) (*ShortURL, error) {
	var (
		id      string
		link    ShortURL
		expires sql.NullTime
	)

	if withDeepLinks {
		var ios, android, desktop, fallback sql.NullString
		if err := scan(&id, &link.Code, &link.OriginalURL, &link.CreatedAt, &expires,
			&ios, &android, &desktop, &fallback); err != nil {
			return nil, err
		}
		link.DeepLinks = deepLinksFromFields(
			nullStringPtr(ios), nullStringPtr(android), nullStringPtr(desktop), nullStringPtr(fallback))
	} else {
		if err := scan(&id, &link.Code, &link.OriginalURL, &link.CreatedAt, &expires); err != nil {
			return nil, err
		}
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse short url id: %w", err)
	}
	link.ID = parsed
	link.CreatedAt = link.CreatedAt.UTC()
	if expires.Valid {
		t := expires.Time.UTC()
		link.ExpiresAt = &t
	}
	return &link, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
