package country

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Location is the normalized view of a free-text account location.
type Location struct {
	Code      string // two-letter region code, empty when unresolved
	Continent string // continent symbol, empty when unresolved
	Flag      string // display glyph; UnknownFlag when nothing resolves
}

var (
	regionSet = func() map[string]struct{} {
		m := make(map[string]struct{}, len(regionCodes))
		for _, c := range regionCodes {
			m[c] = struct{}{}
		}
		return m
	}()

	namesOnce    sync.Once
	nameToCode   map[string]string
	codeToName   map[string]string
	regionsNamer = display.English.Regions()
)

// NormalizeName trims, strips combining diacritics and lower-cases s.
// All comparisons in this package and in list matching use this form.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036f
}

// IsRegion reports whether code is in the canonical region set.
func IsRegion(code string) bool {
	_, ok := regionSet[strings.ToUpper(code)]
	return ok
}

// Code resolves a location string to a region code: a verbatim two-letter
// code first, then the alias table, then English region display names.
// It returns "" when nothing matches.
func Code(s string) string {
	normalized := NormalizeName(s)
	if normalized == "" {
		return ""
	}
	if len(normalized) == 2 && IsRegion(normalized) {
		return strings.ToUpper(normalized)
	}
	if code, ok := aliases[normalized]; ok {
		return code
	}
	loadNames()
	return nameToCode[normalized]
}

// Name returns the English display name for a region code, or the code
// itself when no name is known.
func Name(code string) string {
	code = strings.ToUpper(code)
	loadNames()
	if name, ok := codeToName[code]; ok {
		return name
	}
	return code
}

// loadNames builds the reverse display-name table once per process. The
// region list is static so the table is never invalidated.
func loadNames() {
	namesOnce.Do(func() {
		nameToCode = make(map[string]string, len(regionCodes))
		codeToName = make(map[string]string, len(regionCodes))
		for _, code := range regionCodes {
			region, err := language.ParseRegion(code)
			if err != nil {
				continue
			}
			name := regionsNamer.Name(region)
			if name == "" {
				continue
			}
			codeToName[code] = name
			key := NormalizeName(name)
			if _, taken := nameToCode[key]; !taken {
				nameToCode[key] = code
			}
		}
	})
}

// FlagEmoji composes the regional-indicator pair for a two-letter code.
// It returns "" for anything that is not two ASCII letters.
func FlagEmoji(code string) string {
	if len(code) != 2 {
		return ""
	}
	upper := strings.ToUpper(code)
	a, b := upper[0], upper[1]
	if a < 'A' || a > 'Z' || b < 'A' || b > 'Z' {
		return ""
	}
	return string([]rune{regionalIndicatorA + rune(a-'A'), regionalIndicatorA + rune(b-'A')})
}

const (
	regionalIndicatorA = 0x1F1E6
	regionalIndicatorZ = 0x1F1FF
)

// ContinentOf returns the continent group for a region code, or "".
func ContinentOf(code string) string {
	upper := strings.ToUpper(code)
	for _, group := range groupOrder {
		for _, c := range continentGroups[group] {
			if c == upper {
				return group
			}
		}
	}
	return ""
}

// ContinentSymbol returns the display symbol of a continent group. Unknown
// groups are echoed back upper-cased.
func ContinentSymbol(group string) string {
	if group == "" {
		return ""
	}
	upper := strings.ToUpper(group)
	if sym, ok := continentSymbols[upper]; ok {
		return sym
	}
	return upper
}

// IsUnknownTerm reports whether a normalized string is one of the sentinel
// words that stand for "no reported location".
func IsUnknownTerm(normalized string) bool {
	_, ok := unknownTerms[normalized]
	return ok
}

// isNonEUEurope matches the "non-EU" family of phrases. These resolve to the
// Africa symbol; existing caches and block lists depend on that mapping.
func isNonEUEurope(normalized string) bool {
	for _, marker := range []string{"non eu", "non-eu", "non european", "non-european"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func europeFlag() string {
	if f := FlagEmoji("EU"); f != "" {
		return f
	}
	return continentSymbols[Europe]
}

// Normalize converts a raw location into its Location. It has no side
// effects beyond the one-time display-name table.
func Normalize(raw string) Location {
	normalized := NormalizeName(raw)
	if normalized == "" {
		return Location{Flag: UnknownFlag}
	}

	loc := Location{Code: Code(raw)}
	if loc.Code != "" {
		loc.Continent = ContinentSymbol(ContinentOf(loc.Code))
	} else {
		switch {
		case isNonEUEurope(normalized):
			loc.Continent = ContinentSymbol(Africa)
		case strings.Contains(normalized, "europe"):
			loc.Continent = europeFlag()
		default:
			if group, ok := regionKeywords[normalized]; ok {
				loc.Continent = ContinentSymbol(group)
			}
		}
	}

	switch {
	case IsUnknownTerm(normalized):
		loc.Flag = UnknownFlag
	case isNonEUEurope(normalized):
		loc.Flag = ContinentSymbol(Africa)
	case strings.Contains(normalized, "europe"):
		loc.Flag = europeFlag()
	case regionKeywords[normalized] != "":
		loc.Flag = ContinentSymbol(regionKeywords[normalized])
	case loc.Code != "":
		loc.Flag = FlagEmoji(loc.Code)
		if loc.Flag == "" {
			loc.Flag = loc.Code
		}
	default:
		loc.Flag = UnknownFlag
	}
	return loc
}
