package storage

import "sync/atomic"

// deepLinkColumns lists the optional columns the SQL adapters probe for.
// They arrive together in one migration, so all four must be present before
// an adapter persists or reads deep-link targets.
var deepLinkColumns = []string{
	"deep_link_ios",
	"deep_link_android",
	"deep_link_desktop",
	"deep_link_fallback",
}

const (
	probeUnknown int32 = iota
	probePresent
	probeAbsent
)

// schemaProbe caches a per-adapter schema detection result. It is written at
// most once per adapter instance; a racing double probe is harmless because
// probing is idempotent, so no lock is taken.
type schemaProbe struct {
	state atomic.Int32
}

func (p *schemaProbe) cached() (present, known bool) {
	switch p.state.Load() {
	case probePresent:
		return true, true
	case probeAbsent:
		return false, true
	default:
		return false, false
	}
}

func (p *schemaProbe) store(present bool) {
	if present {
		p.state.Store(probePresent)
	} else {
		p.state.Store(probeAbsent)
	}
}

// deepLinkFields maps a deep-link set to nullable column values.
func deepLinkFields(d *DeepLinkTargets) (ios, android, desktop, fallback *string) {
	if d == nil {
		return nil, nil, nil, nil
	}
	return nullable(d.IOSURL), nullable(d.AndroidURL), nullable(d.DesktopURL), nullable(d.FallbackURL)
}

// deepLinksFromFields rebuilds a deep-link set from nullable column values,
// collapsing an all-blank set back to nil.
func deepLinksFromFields(ios, android, desktop, fallback *string) *DeepLinkTargets {
	d := &DeepLinkTargets{
		IOSURL:      deref(ios),
		AndroidURL:  deref(android),
		DesktopURL:  deref(desktop),
		FallbackURL: deref(fallback),
	}
	if !d.HasAny() {
		return nil
	}
	return d
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
