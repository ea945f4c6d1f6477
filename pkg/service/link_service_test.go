package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortener/pkg/logging"
	"shortener/pkg/storage"
)

func newTestService(t *testing.T) (*LinkService, *storage.MemoryShortURLStorage) {
	t.Helper()
	st := storage.NewMemoryShortURLStorage()
	gen := NewCodeGenerator(st, 8)
	logger := logging.NewLogger(logging.LevelError)
	return NewLinkService(st, gen, nil, logger, "https://sho.rt"), st
}

func TestCreateLink(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid urls", func(t *testing.T) {
		svc, _ := newTestService(t)
		for _, bad := range []string{
			"",
			"not a url",
			"ftp://example.com/file",
			"javascript:alert(1)",
			"http://localhost/admin",
			"http://127.0.0.1:8080/",
			"http://192.168.1.10/router",
		} {
			_, err := svc.CreateLink(ctx, &CreateLinkRequest{URL: bad})
			assert.ErrorIs(t, err, ErrInvalidURL, "url %q", bad)
		}
	})

	t.Run("creates and persists a link", func(t *testing.T) {
		svc, st := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{URL: "https://example.com/path"})
		require.NoError(t, err)

		assert.Len(t, resp.Code, 8)
		assert.Equal(t, "https://sho.rt/"+resp.Code, resp.ShortURL)
		assert.Nil(t, resp.DeepLinks)

		stored, err := st.GetByCode(ctx, resp.Code)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "https://example.com/path", stored.OriginalURL)
	})

	t.Run("all blank deep links are dropped", func(t *testing.T) {
		svc, st := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{
			URL:       "https://example.com",
			DeepLinks: &storage.DeepLinkTargets{IOSURL: "  "},
		})
		require.NoError(t, err)
		assert.Nil(t, resp.DeepLinks)

		stored, err := st.GetByCode(ctx, resp.Code)
		require.NoError(t, err)
		assert.Nil(t, stored.DeepLinks)
	})

	t.Run("blank fallback defaults to the original url", func(t *testing.T) {
		svc, _ := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{
			URL:       "https://example.com/landing",
			DeepLinks: &storage.DeepLinkTargets{IOSURL: "app://ios"},
		})
		require.NoError(t, err)
		require.NotNil(t, resp.DeepLinks)
		assert.Equal(t, "https://example.com/landing", resp.DeepLinks.FallbackURL)
	})

	t.Run("explicit fallback is kept", func(t *testing.T) {
		svc, _ := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{
			URL: "https://example.com",
			DeepLinks: &storage.DeepLinkTargets{
				IOSURL:      "app://ios",
				FallbackURL: "https://fallback.example.com",
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp.DeepLinks)
		assert.Equal(t, "https://fallback.example.com", resp.DeepLinks.FallbackURL)
	})

	t.Run("concurrent creates issue distinct codes", func(t *testing.T) {
		svc, _ := newTestService(t)
		const n = 20
		codes := make(chan string, n)
		for i := 0; i < n; i++ {
			go func() {
				resp, err := svc.CreateLink(ctx, &CreateLinkRequest{URL: "https://example.com"})
				if err != nil {
					codes <- ""
					return
				}
				codes <- resp.Code
			}()
		}
		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			code := <-codes
			require.NotEmpty(t, code)
			assert.False(t, seen[code])
			seen[code] = true
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown code returns empty target", func(t *testing.T) {
		svc, _ := newTestService(t)
		target, err := svc.Resolve(ctx, "nope1234", "curl/8.0")
		require.NoError(t, err)
		assert.Empty(t, target)
	})

	t.Run("expired link behaves like unknown and does not count", func(t *testing.T) {
		svc, st := newTestService(t)
		past := time.Now().UTC().Add(-time.Minute)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{URL: "https://example.com", ExpiresAt: &past})
		require.NoError(t, err)

		target, err := svc.Resolve(ctx, resp.Code, "curl/8.0")
		require.NoError(t, err)
		assert.Empty(t, target)

		analytics, err := st.GetAnalytics(ctx, resp.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(0), analytics.TotalResolutions)
	})

	t.Run("resolution returns target and counts", func(t *testing.T) {
		svc, st := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{URL: "https://example.com/target"})
		require.NoError(t, err)

		target, err := svc.Resolve(ctx, resp.Code, "curl/8.0")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/target", target)

		analytics, err := st.GetAnalytics(ctx, resp.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(1), analytics.TotalResolutions)
		assert.NotNil(t, analytics.LastResolvedAt)
	})

	t.Run("same code and signature resolve to the same target while counting up", func(t *testing.T) {
		svc, st := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{
			URL: "https://example.com",
			DeepLinks: &storage.DeepLinkTargets{
				IOSURL:     "app://ios",
				DesktopURL: "https://desktop.example.com",
			},
		})
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			target, err := svc.Resolve(ctx, resp.Code, "Mozilla/5.0 (iPhone)")
			require.NoError(t, err)
			assert.Equal(t, "app://ios", target)

			analytics, err := st.GetAnalytics(ctx, resp.Code)
			require.NoError(t, err)
			assert.Equal(t, int64(i), analytics.TotalResolutions)
		}
	})

	t.Run("platform routing follows the priority chain", func(t *testing.T) {
		svc, _ := newTestService(t)
		resp, err := svc.CreateLink(ctx, &CreateLinkRequest{
			URL: "https://example.com",
			DeepLinks: &storage.DeepLinkTargets{
				IOSURL:      "app://i",
				AndroidURL:  "app://a",
				DesktopURL:  "https://d",
				FallbackURL: "https://f",
			},
		})
		require.NoError(t, err)

		cases := map[string]string{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)": "app://i",
			"Mozilla/5.0 (Linux; Android 14)":          "app://a",
			"curl/8.0":                                 "https://d",
		}
		for signature, want := range cases {
			target, err := svc.Resolve(ctx, resp.Code, signature)
			require.NoError(t, err)
			assert.Equal(t, want, target, "signature %q", signature)
		}
	})

	t.Run("expired lookups respect cancellation during the delay", func(t *testing.T) {
		svc, _ := newTestService(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.Resolve(cancelled, "missing1", "curl/8.0")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetAnalytics(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	analytics, err := svc.GetAnalytics(ctx, "unknown1")
	require.NoError(t, err)
	assert.Equal(t, "unknown1", analytics.Code)
	assert.Equal(t, int64(0), analytics.TotalResolutions)

	require.NoError(t, st.RecordResolution(ctx, "known123", time.Now().UTC()))
	analytics, err = svc.GetAnalytics(ctx, "known123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.TotalResolutions)
}
