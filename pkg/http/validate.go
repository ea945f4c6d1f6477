package http

import (
	"net/url"
	"strings"
	"time"

	"shortener/pkg/service"
)

// validateCreateRequest is the transport layer's syntactic check. The link
// service re-validates the primary URL itself; this layer also rejects past
// expiries and malformed deep-link targets before the engine sees them.
func validateCreateRequest(req *service.CreateLinkRequest, now time.Time) map[string]string {
	problems := make(map[string]string)

	if strings.TrimSpace(req.URL) == "" {
		problems["url"] = "URL is required"
	} else if !isAbsoluteWebURL(req.URL) {
		problems["url"] = "URL must be a valid HTTP/HTTPS absolute URL"
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		problems["expires_at"] = "expiration date must be in the future"
	}

	if d := req.DeepLinks; d != nil {
		if !d.HasAny() {
			problems["deep_links"] = "at least one deep link target must be provided"
		} else {
			// App URIs (custom schemes) are fine for iOS/Android; desktop
			// and fallback must be ordinary web URLs.
			checkDeepLinkTarget(problems, "deep_links.ios_url", d.IOSURL, false)
			checkDeepLinkTarget(problems, "deep_links.android_url", d.AndroidURL, false)
			checkDeepLinkTarget(problems, "deep_links.desktop_url", d.DesktopURL, true)
			checkDeepLinkTarget(problems, "deep_links.fallback_url", d.FallbackURL, true)
		}
	}

	return problems
}

func checkDeepLinkTarget(problems map[string]string, key, raw string, requireWebScheme bool) {
	if strings.TrimSpace(raw) == "" {
		return
	}

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		problems[key] = "value must be a valid absolute URL"
		return
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "javascript" || scheme == "data" {
		problems[key] = "URL scheme is not allowed"
		return
	}
	if requireWebScheme && scheme != "http" && scheme != "https" {
		problems[key] = "URL must use HTTP or HTTPS"
	}
}

func isAbsoluteWebURL(raw string) bool {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
