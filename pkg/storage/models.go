package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShortURL is a shortened-link record. Instances are immutable after
// creation: retention is handled out of band and entities are never updated
// in place.
type ShortURL struct {
	ID          uuid.UUID        `json:"id"`
	Code        string           `json:"code"`
	OriginalURL string           `json:"original_url"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	DeepLinks   *DeepLinkTargets `json:"deep_links,omitempty"`
}

// DeepLinkTargets holds platform-specific destinations for a short URL.
// A blank field means "no target for that platform". A ShortURL either has
// no deep links at all (nil) or a set with at least one non-blank target;
// NewShortURL enforces that.
type DeepLinkTargets struct {
	IOSURL      string `json:"ios_url,omitempty" bson:"deepLinkIos,omitempty"`
	AndroidURL  string `json:"android_url,omitempty" bson:"deepLinkAndroid,omitempty"`
	DesktopURL  string `json:"desktop_url,omitempty" bson:"deepLinkDesktop,omitempty"`
	FallbackURL string `json:"fallback_url,omitempty" bson:"deepLinkFallback,omitempty"`
}

// HasAny reports whether at least one target is non-blank.
func (d *DeepLinkTargets) HasAny() bool {
	if d == nil {
		return false
	}
	return strings.TrimSpace(d.IOSURL) != "" ||
		strings.TrimSpace(d.AndroidURL) != "" ||
		strings.TrimSpace(d.DesktopURL) != "" ||
		strings.TrimSpace(d.FallbackURL) != ""
}

// ShortURLAnalytics is the per-code resolution counter. It is derived state:
// the first recorded resolution creates it, creating the link does not.
type ShortURLAnalytics struct {
	Code             string     `json:"code"`
	TotalResolutions int64      `json:"total_resolutions"`
	LastResolvedAt   *time.Time `json:"last_resolved_at,omitempty"`
}

// NewShortURL builds a ShortURL, assigning a fresh ID and creation time.
// An all-blank deep-link set is normalized to nil so storage never sees an
// empty struct.
func NewShortURL(code, originalURL string, expiresAt *time.Time, deepLinks *DeepLinkTargets) (*ShortURL, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("short code is required")
	}
	if strings.TrimSpace(originalURL) == "" {
		return nil, errors.New("original URL is required")
	}
	if !deepLinks.HasAny() {
		deepLinks = nil
	}
	return &ShortURL{
		ID:          uuid.New(),
		Code:        code,
		OriginalURL: originalURL,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
		DeepLinks:   deepLinks,
	}, nil
}

// IsExpired reports whether the link is logically deleted at the given
// instant. Expiry at exactly now counts as expired.
func (s *ShortURL) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// ResolveTarget picks the destination for a client platform signature
// (typically a User-Agent header). The chain is a strict priority order:
// iOS match, Android match, desktop for unmatched signatures, fallback,
// then original URL. The first applicable non-blank target wins; a
// signature matching both platforms takes the iOS target when set and
// otherwise falls through to the Android arm.
func (s *ShortURL) ResolveTarget(clientSignature string) string {
	d := s.DeepLinks
	if d == nil {
		return s.OriginalURL
	}

	sig := strings.ToLower(clientSignature)
	isIOS := strings.Contains(sig, "iphone") || strings.Contains(sig, "ipad") || strings.Contains(sig, "ipod")
	isAndroid := strings.Contains(sig, "android")

	switch {
	case isIOS && strings.TrimSpace(d.IOSURL) != "":
		return d.IOSURL
	case isAndroid && strings.TrimSpace(d.AndroidURL) != "":
		return d.AndroidURL
	case !isIOS && !isAndroid && strings.TrimSpace(d.DesktopURL) != "":
		return d.DesktopURL
	case strings.TrimSpace(d.FallbackURL) != "":
		return d.FallbackURL
	default:
		return s.OriginalURL
	}
}
