package service

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/url"
	"strings"
	"time"

	"shortener/pkg/cache"
	"shortener/pkg/logging"
	"shortener/pkg/storage"
)

// ErrInvalidURL rejects a creation request whose primary URL is not an
// absolute HTTP/HTTPS URL. The transport layer pre-validates too; this is
// the engine's own defensive check.
var ErrInvalidURL = errors.New("invalid URL")

// LinkService is the short-URL lifecycle engine: creation flow, resolution,
// and analytics lookups. It holds no mutable state of its own; uniqueness
// and counter correctness are delegated to the storage backend.
type LinkService struct {
	storage   storage.ShortURLStorage
	generator *CodeGenerator
	cache     cache.LinkCacheInterface
	logger    *logging.Logger
	baseURL   string
	now       func() time.Time
}

func NewLinkService(st storage.ShortURLStorage, generator *CodeGenerator, linkCache cache.LinkCacheInterface, logger *logging.Logger, baseURL string) *LinkService {
	return &LinkService{
		storage:   st,
		generator: generator,
		cache:     linkCache,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateLinkRequest struct {
	URL       string                   `json:"url"`
	ExpiresAt *time.Time               `json:"expires_at,omitempty"`
	DeepLinks *storage.DeepLinkTargets `json:"deep_links,omitempty"`
}

type CreateLinkResponse struct {
	Code      string                   `json:"code"`
	ShortURL  string                   `json:"short_url"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt *time.Time               `json:"expires_at,omitempty"`
	DeepLinks *storage.DeepLinkTargets `json:"deep_links,omitempty"`
}

// CreateLink validates the target URL, generates a unique code, and persists
// the new entity. A deep-link set with a blank fallback gets the original
// URL as its fallback, so every stored set resolves to something.
func (s *LinkService) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	if err := s.validateURL(ctx, req.URL); err != nil {
		return nil, err
	}

	deepLinks := req.DeepLinks
	if !deepLinks.HasAny() {
		deepLinks = nil
	} else if strings.TrimSpace(deepLinks.FallbackURL) == "" {
		withFallback := *deepLinks
		withFallback.FallbackURL = req.URL
		deepLinks = &withFallback
	}

	code, err := s.generator.GenerateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	link, err := storage.NewShortURL(code, req.URL, req.ExpiresAt, deepLinks)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Create(ctx, link); err != nil {
		s.logger.LogLinkOperation(ctx, "create", code, false)
		return nil, err
	}
	s.logger.LogLinkOperation(ctx, "create", code, true)

	return &CreateLinkResponse{
		Code:      link.Code,
		ShortURL:  s.baseURL + "/" + link.Code,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
		DeepLinks: link.DeepLinks,
	}, nil
}

// Resolve translates a code into a destination URL for the given client
// platform signature, recording the resolution. Unknown and expired codes
// both return "" with no error and are indistinguishable to the caller.
func (s *LinkService) Resolve(ctx context.Context, code, clientSignature string) (string, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return "", err
	}

	now := s.now()
	if link == nil || link.IsExpired(now) {
		s.logger.LogResolution(ctx, code, false)
		// Randomized delay so expired and never-existed codes are not
		// distinguishable by response timing.
		if err := s.notFoundDelay(ctx); err != nil {
			return "", err
		}
		return "", nil
	}

	// Best effort: a lost count is acceptable, a failed redirect is not.
	if err := s.storage.RecordResolution(ctx, code, now); err != nil {
		s.logger.Warn(ctx, "record resolution failed", "code", code, "error", err.Error())
	}

	s.logger.LogResolution(ctx, code, true)
	return link.ResolveTarget(clientSignature), nil
}

// GetAnalytics returns the resolution counters for a code. Codes that were
// never resolved (or never existed) yield a zero-valued record.
func (s *LinkService) GetAnalytics(ctx context.Context, code string) (storage.ShortURLAnalytics, error) {
	return s.storage.GetAnalytics(ctx, code)
}

// getLink reads through the optional cache. Only positive results are
// cached; expiry is re-checked by the caller, so a cached entity past its
// expiry still resolves to nothing.
func (s *LinkService) getLink(ctx context.Context, code string) (*storage.ShortURL, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, code); err == nil && cached != nil {
			return cached, nil
		}
	}

	link, err := s.storage.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, nil
	}

	if s.cache != nil {
		ttl := 24 * time.Hour
		if link.ExpiresAt != nil {
			remaining := link.ExpiresAt.Sub(s.now())
			if remaining <= 0 {
				return link, nil
			}
			if remaining < ttl {
				ttl = remaining
			}
		}
		s.cache.Set(ctx, code, link, ttl)
	}
	return link, nil
}

func (s *LinkService) validateURL(ctx context.Context, raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		s.logger.LogURLValidation(ctx, false, "")
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		s.logger.LogURLValidation(ctx, false, parsed.Scheme)
		return ErrInvalidURL
	}

	// SSRF prevention: refuse targets that point back into the network the
	// service runs on.
	host := parsed.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
			ip.IsMulticast() || ip.IsUnspecified() {
			s.logger.LogURLValidation(ctx, false, parsed.Scheme)
			return ErrInvalidURL
		}
	} else if strings.Contains(strings.ToLower(host), "localhost") {
		s.logger.LogURLValidation(ctx, false, parsed.Scheme)
		return ErrInvalidURL
	}

	s.logger.LogURLValidation(ctx, true, parsed.Scheme)
	return nil
}

// notFoundDelay sleeps 15-45 ms, honoring cancellation.
func (s *LinkService) notFoundDelay(ctx context.Context) error {
	delay := time.Duration(15+rand.Intn(30)) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
