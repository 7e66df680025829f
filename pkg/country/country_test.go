package country

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  India ", "india"},
		{"Côte d'Ivoire", "cote d'ivoire"},
		{"TÜRKIYE", "turkiye"},
		{"", ""},
		{"   ", ""},
		{"São Tomé", "sao tome"},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEveryRegionCodeResolvesToItself(t *testing.T) {
	for _, code := range regionCodes {
		if got := Normalize(code).Code; got != code {
			t.Fatalf("Normalize(%q).Code = %q", code, got)
		}
		if got := Normalize(strings.ToLower(code)).Code; got != code {
			t.Fatalf("Normalize(%q).Code = %q", strings.ToLower(code), got)
		}
	}
}

func TestEveryAliasResolves(t *testing.T) {
	for alias, want := range aliases {
		got := Normalize(alias).Code
		// Two-letter aliases that are also canonical codes keep the verbatim code.
		if len(alias) == 2 && IsRegion(alias) {
			want = strings.ToUpper(alias)
		}
		if got != want {
			t.Fatalf("Normalize(%q).Code = %q, want %q", alias, got, want)
		}
	}
}

func TestAliasesAreManyToOne(t *testing.T) {
	for _, in := range []string{"congo", "Congo-Brazzaville", "Republic of the Congo"} {
		if got := Code(in); got != "CG" {
			t.Fatalf("Code(%q) = %q, want CG", in, got)
		}
	}
	for _, in := range []string{"DR Congo", "congo-kinshasa", "DRC"} {
		if got := Code(in); got != "CD" {
			t.Fatalf("Code(%q) = %q, want CD", in, got)
		}
	}
}

func TestNormalizeIsIdempotentOnCodes(t *testing.T) {
	inputs := []string{"India", "korea", "United States of America", "Côte d’Ivoire", "germany", "uk", "Laos"}
	for _, in := range inputs {
		first := Normalize(in).Code
		if first == "" {
			t.Fatalf("expected %q to resolve", in)
		}
		if again := Normalize(first).Code; again != first {
			t.Fatalf("Normalize(Normalize(%q).Code) = %q, want %q", in, again, first)
		}
	}
}

func TestContinentGroupsReferenceKnownCodes(t *testing.T) {
	for group, codes := range continentGroups {
		if _, ok := continentSymbols[group]; !ok {
			t.Fatalf("group %s has no symbol", group)
		}
		for _, c := range codes {
			if !IsRegion(c) {
				t.Fatalf("group %s lists unknown code %s", group, c)
			}
		}
	}
	for alias, code := range aliases {
		if !IsRegion(code) {
			t.Fatalf("alias %q maps to unknown code %s", alias, code)
		}
	}
}

func TestDisplayNameFallback(t *testing.T) {
	for in, want := range map[string]string{
		"India":   "IN",
		"Germany": "DE",
		"france":  "FR",
		"Japan":   "JP",
	} {
		if got := Code(in); got != want {
			t.Fatalf("Code(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Name("IN"); got != "India" {
		t.Fatalf("Name(IN) = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Location
	}{
		{
			name: "empty",
			in:   "",
			want: Location{Flag: UnknownFlag},
		},
		{
			name: "country name",
			in:   "India",
			want: Location{Code: "IN", Continent: ContinentSymbol(Asia), Flag: "🇮🇳"},
		},
		{
			name: "alias",
			in:   "Korea",
			want: Location{Code: "KR", Continent: ContinentSymbol(Asia), Flag: "🇰🇷"},
		},
		{
			name: "region keyword",
			in:   "Sub Saharan Africa",
			want: Location{Continent: ContinentSymbol(Africa), Flag: ContinentSymbol(Africa)},
		},
		{
			name: "middle east",
			in:   "Middle East",
			want: Location{Continent: ContinentSymbol(Asia), Flag: ContinentSymbol(Asia)},
		},
		{
			name: "non eu maps to africa symbol",
			in:   "Non-EU country",
			want: Location{Continent: ContinentSymbol(Africa), Flag: ContinentSymbol(Africa)},
		},
		{
			name: "europe (non eu)",
			in:   "Europe (non EU)",
			want: Location{Continent: ContinentSymbol(Africa), Flag: ContinentSymbol(Africa)},
		},
		{
			name: "generic europe",
			in:   "Eastern Europe",
			want: Location{Continent: "🇪🇺", Flag: "🇪🇺"},
		},
		{
			name: "unresolved",
			in:   "Atlantis",
			want: Location{Flag: UnknownFlag},
		},
		{
			name: "unknown sentinel",
			in:   "unknown",
			want: Location{Flag: UnknownFlag},
		},
		{
			name: "eu code has no continent",
			in:   "EU",
			want: Location{Code: "EU", Flag: "🇪🇺"},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize(%q)\nwant: %#v\ngot:  %#v", tc.in, tc.want, got)
			}
		})
	}
}

func TestFlagEmoji(t *testing.T) {
	if got := FlagEmoji("in"); got != "🇮🇳" {
		t.Fatalf("FlagEmoji(in) = %q", got)
	}
	for _, bad := range []string{"", "I", "IND", "1N", "é1"} {
		if got := FlagEmoji(bad); got != "" {
			t.Fatalf("FlagEmoji(%q) = %q, want empty", bad, got)
		}
	}
	if got := CodeFromFlag("🇵🇰"); got != "PK" {
		t.Fatalf("CodeFromFlag = %q", got)
	}
	if got := CodeFromFlag("PK"); got != "" {
		t.Fatalf("CodeFromFlag(PK) = %q, want empty", got)
	}
}

func TestContinentOf(t *testing.T) {
	for code, want := range map[string]string{
		"IN": Asia,
		"ng": Africa,
		"BR": SouthAmerica,
		"AQ": Antarctica,
		"AM": Europe,
		"EU": "",
	} {
		if got := ContinentOf(code); got != want {
			t.Fatalf("ContinentOf(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestExpandFlags(t *testing.T) {
	if got := ExpandFlags("🇮🇳"); !reflect.DeepEqual(got, []string{"India"}) {
		t.Fatalf("ExpandFlags single = %v", got)
	}
	if got := ExpandFlags("Pakistan"); !reflect.DeepEqual(got, []string{"Pakistan"}) {
		t.Fatalf("ExpandFlags passthrough = %v", got)
	}
	if got := ExpandFlags("🇮🇳 🇯🇵"); len(got) != 2 || got[1] != "Japan" {
		t.Fatalf("ExpandFlags pair = %v", got)
	}
}
