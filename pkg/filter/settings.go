package filter

import (
	"strings"

	"github.com/flagged-dev/flagged/pkg/country"
)

// Hide modes understood by renderers.
const (
	HideModeBlur = "blur"
	HideModeHide = "hide"
)

// Settings is the user-facing configuration snapshot. It is replaced
// wholesale on every change.
type Settings struct {
	Enabled               bool     `mapstructure:"enabled" json:"enabled"`
	BlockList             []string `mapstructure:"blocklist" json:"blockList"`
	FilterMode            Mode     `mapstructure:"filter_mode" json:"filterMode"`
	AllowHandles          []string `mapstructure:"allow_handles" json:"allowHandles"`
	DenyHandles           []string `mapstructure:"deny_handles" json:"denyHandles"`
	FetchEnabled          bool     `mapstructure:"fetch_enabled" json:"fetchEnabled"`
	HideMode              string   `mapstructure:"hide_mode" json:"hideMode"`
	ShowFlags             bool     `mapstructure:"show_flags" json:"showFlags"`
	ShowFlagsFilteredOnly bool     `mapstructure:"show_flags_filtered_only" json:"showFlagsFilteredOnly"`
}

// DefaultSettings mirrors a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      true,
		BlockList:    []string{"India"},
		FilterMode:   ModeBlocklist,
		FetchEnabled: true,
		HideMode:     HideModeBlur,
		ShowFlags:    true,
	}
}

// ParseList turns multi-line user input into list entries: one value per
// line, flag emoji expanded to region names, blanks and duplicates dropped.
func ParseList(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, v := range country.ExpandFlags(line) {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// ParseHandles canonicalizes handles and drops blanks and duplicates.
func ParseHandles(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		h := CanonicalHandle(v)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Policy is the compiled, immutable form of Settings used on the hot path.
type Policy struct {
	Settings Settings
	list     *List
	allow    map[string]struct{}
	deny     map[string]struct{}
}

// Compile builds a Policy from a settings snapshot.
func Compile(s Settings) *Policy {
	s.FilterMode = ParseMode(string(s.FilterMode))
	if s.HideMode != HideModeHide {
		s.HideMode = HideModeBlur
	}
	p := &Policy{
		Settings: s,
		list:     NewList(s.BlockList),
		allow:    make(map[string]struct{}),
		deny:     make(map[string]struct{}),
	}
	for _, h := range ParseHandles(s.AllowHandles) {
		p.allow[h] = struct{}{}
	}
	for _, h := range ParseHandles(s.DenyHandles) {
		p.deny[h] = struct{}{}
	}
	return p
}

// FetchEnabled reports whether unknown accounts may be looked up.
func (p *Policy) FetchEnabled() bool {
	return p.Settings.Enabled && p.Settings.FetchEnabled
}

// Decision is the location-derived part of a verdict.
type Decision struct {
	MatchesList bool
	ShouldHide  bool
}

// Decide evaluates a raw location against the list and mode.
func (p *Policy) Decide(raw string) Decision {
	m := p.list.Matches(raw)
	return Decision{MatchesList: m, ShouldHide: Decide(m, p.Settings.FilterMode)}
}

// Allowed reports whether a handle is on the allow list.
func (p *Policy) Allowed(handle string) bool {
	_, ok := p.allow[CanonicalHandle(handle)]
	return ok
}

// Denied reports whether a handle is on the deny list.
func (p *Policy) Denied(handle string) bool {
	_, ok := p.deny[CanonicalHandle(handle)]
	return ok
}
