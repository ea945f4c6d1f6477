package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgBaseSchema = `
	CREATE TABLE %[1]s.short_urls (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		created_at_utc TIMESTAMPTZ NOT NULL,
		expires_at_utc TIMESTAMPTZ
	);
	CREATE TABLE %[1]s.short_url_analytics (
		code TEXT PRIMARY KEY,
		total_resolutions BIGINT NOT NULL DEFAULT 0,
		last_resolved_at_utc TIMESTAMPTZ
	);
`

// The column probe must only look at the short_urls on the search path. A
// migrated copy of the table in another schema of the same database must not
// make an unmigrated deployment think it has deep-link columns.
func TestPostgresProbeScopedToCurrentSchema(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	legacy := "legacy_" + suffix
	migrated := "migrated_" + suffix

	for _, schema := range []string{legacy, migrated} {
		_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
		require.NoError(t, err)
		_, err = admin.Exec(ctx, fmt.Sprintf(pgBaseSchema, schema))
		require.NoError(t, err)
	}
	_, err = admin.Exec(ctx, fmt.Sprintf(`
		ALTER TABLE %[1]s.short_urls ADD COLUMN deep_link_ios TEXT;
		ALTER TABLE %[1]s.short_urls ADD COLUMN deep_link_android TEXT;
		ALTER TABLE %[1]s.short_urls ADD COLUMN deep_link_desktop TEXT;
		ALTER TABLE %[1]s.short_urls ADD COLUMN deep_link_fallback TEXT;
	`, migrated))
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA "+legacy+" CASCADE")
		admin.Exec(context.Background(), "DROP SCHEMA "+migrated+" CASCADE")
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = legacy
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresShortURLStorage(pool)

	link, err := NewShortURL("probe"+suffix[:4], "https://example.com", nil, &DeepLinkTargets{
		IOSURL:      "app://ios",
		FallbackURL: "https://fallback.example.com",
	})
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, link))

	got, err := store.GetByCode(ctx, link.Code)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.DeepLinks, "unmigrated schema must drop deep links instead of erroring")
}
