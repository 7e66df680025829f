package filter

import (
	"fmt"

	"github.com/flagged-dev/flagged/pkg/country"
)

// Reason explains why a verdict hides an account.
type Reason string

const (
	ReasonNone     Reason = "none"
	ReasonLocation Reason = "location"
	ReasonDenyList Reason = "deny_list"
)

// Verdict is what the rendering layer receives for one account.
type Verdict struct {
	Handle      string `json:"handle"`
	Known       bool   `json:"known"`
	Country     string `json:"country,omitempty"`
	Code        string `json:"code,omitempty"`
	Flag        string `json:"flag,omitempty"`
	Continent   string `json:"continent,omitempty"`
	MatchesList bool   `json:"matchesList"`
	Hide        bool   `json:"hide"`
	Reason      Reason `json:"reason"`
	AllowListed bool   `json:"allowListed"`
	DenyListed  bool   `json:"denyListed"`
	ShowFlag    bool   `json:"showFlag"`
	HideMode    string `json:"hideMode,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Evaluate combines the location decision with the handle lists.
// known is false when no lookup result exists yet; such accounts are only
// hidden when deny-listed. location is nil when the account reports none.
func (p *Policy) Evaluate(handle string, location *string, known bool) Verdict {
	v := Verdict{
		Handle:      CanonicalHandle(handle),
		Known:       known,
		AllowListed: p.Allowed(handle),
		DenyListed:  p.Denied(handle),
		Reason:      ReasonNone,
	}

	raw := ""
	if location != nil {
		raw = *location
		v.Country = raw
	}
	if known {
		loc := country.Normalize(raw)
		v.Code, v.Flag, v.Continent = loc.Code, loc.Flag, loc.Continent
		d := p.Decide(raw)
		v.MatchesList = d.MatchesList
		if d.ShouldHide {
			v.Hide, v.Reason = true, ReasonLocation
		}
		v.ShowFlag = p.Settings.ShowFlags && v.Flag != "" &&
			(!p.Settings.ShowFlagsFilteredOnly || v.MatchesList)
	}

	// Handle lists override the location result in both directions.
	if v.DenyListed {
		v.Hide, v.Reason = true, ReasonDenyList
	}
	if v.AllowListed {
		v.Hide, v.Reason = false, ReasonNone
	}
	if !p.Settings.Enabled {
		v.Hide, v.Reason = false, ReasonNone
	}

	if v.Hide {
		v.HideMode = p.Settings.HideMode
		v.Label = label(v)
	}
	return v
}

func label(v Verdict) string {
	if v.Reason == ReasonDenyList {
		return "user is on your deny list"
	}
	name := v.Country
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("user is from %s", name)
}
