package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShortURL(t *testing.T) {
	t.Run("requires code", func(t *testing.T) {
		_, err := NewShortURL("  ", "https://example.com", nil, nil)
		assert.Error(t, err)
	})

	t.Run("requires original url", func(t *testing.T) {
		_, err := NewShortURL("abc", "", nil, nil)
		assert.Error(t, err)
	})

	t.Run("assigns id and utc creation time", func(t *testing.T) {
		link, err := NewShortURL("abc", "https://example.com", nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", link.ID.String())
		assert.Equal(t, time.UTC, link.CreatedAt.Location())
	})

	t.Run("all blank deep links become nil", func(t *testing.T) {
		link, err := NewShortURL("abc", "https://example.com", nil, &DeepLinkTargets{
			IOSURL: "   ",
		})
		require.NoError(t, err)
		assert.Nil(t, link.DeepLinks)
	})

	t.Run("non blank deep links are kept", func(t *testing.T) {
		link, err := NewShortURL("abc", "https://example.com", nil, &DeepLinkTargets{
			IOSURL: "app://i",
		})
		require.NoError(t, err)
		require.NotNil(t, link.DeepLinks)
		assert.Equal(t, "app://i", link.DeepLinks.IOSURL)
	})
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{"no expiry", nil, false},
		{"future expiry", &future, false},
		{"past expiry", &past, true},
		{"expiry exactly now", &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &ShortURL{Code: "abc", OriginalURL: "https://example.com", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, link.IsExpired(now))
		})
	}
}

func TestResolveTarget(t *testing.T) {
	full := &DeepLinkTargets{
		IOSURL:      "app://i",
		AndroidURL:  "app://a",
		DesktopURL:  "https://d",
		FallbackURL: "https://f",
	}

	tests := []struct {
		name      string
		deepLinks *DeepLinkTargets
		signature string
		expected  string
	}{
		{"iphone gets ios url", full, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "app://i"},
		{"ipad gets ios url", full, "Mozilla/5.0 (iPad; CPU OS 17_0)", "app://i"},
		{"android gets android url", full, "Mozilla/5.0 (Linux; Android 14)", "app://a"},
		{"unmatched signature gets desktop url", full, "curl/8.0", "https://d"},
		{"empty signature gets desktop url", full, "", "https://d"},
		{"ios beats android on double match", full, "iphone android", "app://i"},
		{
			"double match without ios url uses android url",
			&DeepLinkTargets{AndroidURL: "app://a", FallbackURL: "https://f"},
			"iphone android",
			"app://a",
		},
		{
			"fallback only set wins for any signature",
			&DeepLinkTargets{FallbackURL: "https://f"},
			"curl/8.0",
			"https://f",
		},
		{
			"ios signature without ios url falls to fallback",
			&DeepLinkTargets{AndroidURL: "app://a", FallbackURL: "https://f"},
			"iPhone",
			"https://f",
		},
		{
			"blank fallback falls through to original",
			&DeepLinkTargets{AndroidURL: "app://a"},
			"iPhone",
			"https://original",
		},
		{"nil deep links return original", nil, "iPhone", "https://original"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &ShortURL{Code: "abc", OriginalURL: "https://original", DeepLinks: tt.deepLinks}
			assert.Equal(t, tt.expected, link.ResolveTarget(tt.signature))
		})
	}
}

func TestHasAny(t *testing.T) {
	var nilTargets *DeepLinkTargets
	assert.False(t, nilTargets.HasAny())
	assert.False(t, (&DeepLinkTargets{}).HasAny())
	assert.False(t, (&DeepLinkTargets{IOSURL: "  "}).HasAny())
	assert.True(t, (&DeepLinkTargets{DesktopURL: "https://d"}).HasAny())
}
