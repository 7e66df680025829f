package filter

import (
	"strings"
	"unicode"

	"github.com/flagged-dev/flagged/pkg/country"
)

// Mode selects how a list match turns into a hide decision.
type Mode string

const (
	ModeBlocklist Mode = "blocklist"
	ModeAllowlist Mode = "allowlist"
	ModeFlagOnly  Mode = "flag_only"
)

// ParseMode maps a settings value to a Mode, defaulting to blocklist.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAllowlist:
		return ModeAllowlist
	case ModeFlagOnly:
		return ModeFlagOnly
	default:
		return ModeBlocklist
	}
}

// Decide returns whether an account should be hidden given whether its
// location matched the list.
func Decide(matches bool, mode Mode) bool {
	switch mode {
	case ModeAllowlist:
		return !matches
	case ModeFlagOnly:
		return false
	default:
		return matches
	}
}

// CanonicalHandle lower-cases a handle and strips surrounding whitespace and
// any leading '@'. Applying it twice gives the same result.
func CanonicalHandle(raw string) string {
	h := strings.TrimLeftFunc(raw, func(r rune) bool { return r == '@' || unicode.IsSpace(r) })
	h = strings.TrimRightFunc(h, unicode.IsSpace)
	return strings.ToLower(h)
}

type listEntry struct {
	normalized string
	code       string
}

// List is a compiled block/allow list. Build it once per settings change.
type List struct {
	entries    []listEntry
	hasUnknown bool
}

// NewList normalizes every entry and resolves its region code up front.
func NewList(values []string) *List {
	l := &List{}
	for _, v := range values {
		n := country.NormalizeName(v)
		if n == "" {
			continue
		}
		if country.IsUnknownTerm(n) {
			l.hasUnknown = true
		}
		l.entries = append(l.entries, listEntry{normalized: n, code: country.Code(v)})
	}
	return l
}

// Matches reports whether a raw location is selected by the list. An empty
// location matches only when the list carries an "unknown" sentinel term.
// Otherwise the location matches on equal normalized text or on equal
// resolved region codes.
func (l *List) Matches(raw string) bool {
	if l == nil {
		return false
	}
	normalized := country.NormalizeName(raw)
	if normalized == "" {
		return l.hasUnknown
	}
	code := country.Code(raw)
	for _, e := range l.entries {
		if e.normalized == normalized {
			return true
		}
		if code != "" && e.code != "" && code == e.code {
			return true
		}
	}
	return false
}

// Matches is a convenience wrapper around NewList(values).Matches(raw).
func Matches(raw string, values []string) bool {
	return NewList(values).Matches(raw)
}
