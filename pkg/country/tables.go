package country

// regionCodes is the canonical set of two-letter region codes accepted verbatim.
// It includes the EU/UK/XK user-assigned codes people commonly type.
var regionCodes = []string{
	"AC", "AD", "AE", "AF", "AG", "AI", "AL", "AM", "AO", "AQ", "AR", "AS", "AT", "AU", "AW", "AX", "AZ",
	"BA", "BB", "BD", "BE", "BF", "BG", "BH", "BI", "BJ", "BL", "BM", "BN", "BO", "BQ", "BR", "BS", "BT", "BV", "BW", "BY", "BZ",
	"CA", "CC", "CD", "CF", "CG", "CH", "CI", "CK", "CL", "CM", "CN", "CO", "CR", "CU", "CV", "CW", "CX", "CY", "CZ",
	"DE", "DJ", "DK", "DM", "DO", "DZ",
	"EC", "EE", "EG", "EH", "ER", "ES", "ET", "EU",
	"FI", "FJ", "FK", "FM", "FO", "FR",
	"GA", "GB", "GD", "GE", "GF", "GG", "GH", "GI", "GL", "GM", "GN", "GP", "GQ", "GR", "GS", "GT", "GU", "GW", "GY",
	"HK", "HM", "HN", "HR", "HT", "HU",
	"ID", "IE", "IL", "IM", "IN", "IO", "IQ", "IR", "IS", "IT",
	"JE", "JM", "JO", "JP",
	"KE", "KG", "KH", "KI", "KM", "KN", "KP", "KR", "KW", "KY", "KZ",
	"LA", "LB", "LC", "LI", "LK", "LR", "LS", "LT", "LU", "LV", "LY",
	"MA", "MC", "MD", "ME", "MF", "MG", "MH", "MK", "ML", "MM", "MN", "MO", "MP", "MQ", "MR", "MS", "MT", "MU", "MV", "MW", "MX", "MY", "MZ",
	"NA", "NC", "NE", "NF", "NG", "NI", "NL", "NO", "NP", "NR", "NU", "NZ",
	"OM",
	"PA", "PE", "PF", "PG", "PH", "PK", "PL", "PM", "PN", "PR", "PS", "PT", "PW", "PY",
	"QA",
	"RE", "RO", "RS", "RU", "RW",
	"SA", "SB", "SC", "SD", "SE", "SG", "SH", "SI", "SJ", "SK", "SL", "SM", "SN", "SO", "SR", "SS", "ST", "SV", "SX", "SY", "SZ",
	"TC", "TD", "TF", "TG", "TH", "TJ", "TK", "TL", "TM", "TN", "TO", "TR", "TT", "TV", "TW", "TZ",
	"UA", "UG", "UM", "US", "UY", "UZ",
	"VA", "VC", "VE", "VG", "VI", "VN", "VU",
	"WF", "WS",
	"XK",
	"YE", "YT",
	"ZA", "ZM", "ZW",
	"UK",
}

// aliases maps normalized free text to a region code. Entries are curated:
// colloquial names, punctuation variants and the official long forms the
// display-name table does not produce.
var aliases = map[string]string{
	"united states":                      "US",
	"usa":                                "US",
	"us":                                 "US",
	"united states of america":           "US",
	"america":                            "US",
	"united kingdom":                     "GB",
	"uk":                                 "GB",
	"england":                            "GB",
	"scotland":                           "GB",
	"wales":                              "GB",
	"great britain":                      "GB",
	"uae":                                "AE",
	"uae (dubai)":                        "AE",
	"north korea":                        "KP",
	"south korea":                        "KR",
	"korea":                              "KR",
	"south sudan":                        "SS",
	"russia":                             "RU",
	"russian federation":                 "RU",
	"viet nam":                           "VN",
	"vatican city":                       "VA",
	"palestine":                          "PS",
	"kosovo":                             "XK",
	"czech republic":                     "CZ",
	"congo":                              "CG",
	"republic of the congo":              "CG",
	"congo republic":                     "CG",
	"congo-brazzaville":                  "CG",
	"congo brazzaville":                  "CG",
	"democratic republic of the congo":   "CD",
	"dr congo":                           "CD",
	"drc":                                "CD",
	"congo-kinshasa":                     "CD",
	"congo kinshasa":                     "CD",
	"cote d'ivoire":                      "CI",
	"cote d\u2019ivoire":                 "CI",
	"cote divoire":                       "CI",
	"bolivia":                            "BO",
	"bolivia (plurinational state of)":   "BO",
	"bosnia & herzegovina":               "BA",
	"bosnia and herzegovina":             "BA",
	"bosnia":                             "BA",
	"iran":                               "IR",
	"lao":                                "LA",
	"laos":                               "LA",
	"lao people's democratic republic":   "LA",
	"syria":                              "SY",
	"syrian arab republic":               "SY",
	"swaziland":                          "SZ",
	"eswatini":                           "SZ",
	"tanzania":                           "TZ",
	"venezuela":                          "VE",
	"venezuela (bolivarian republic of)": "VE",
	"moldova":                            "MD",
	"taiwan":                             "TW",
	"macau":                              "MO",
	"macao":                              "MO",
	"hongkong":                           "HK",
	"hong kong":                          "HK",
	"turkey":                             "TR",
	"turkiye":                            "TR",
	"bangladesh":                         "BD",
	"us virgin islands":                  "VI",
	"u.s. virgin islands":                "VI",
	"virgin islands, u.s.":               "VI",
	"virgin islands (u.s.)":              "VI",
	"virgin islands":                     "VI",
	"macedonia":                          "MK",
	"north macedonia":                    "MK",
	"turks and caicos islands":           "TC",
	"trinidad and tobago":                "TT",
	"martinique":                         "MQ",
	"saint lucia":                        "LC",
	"curacao":                            "CW",
	"sint maarten (dutch part)":          "SX",
	"antigua and barbuda":                "AG",
	"guadeloupe":                         "GP",
	"brunei darussalam":                  "BN",
	"brunei":                             "BN",
	"saint vincent and the grenadines":   "VC",
	"saint vincent":                      "VC",
	"st vincent and the grenadines":      "VC",
	"st vincent":                         "VC",
	"saint kitts and nevis":              "KN",
	"saint kitts":                        "KN",
	"st kitts and nevis":                 "KN",
	"st kitts":                           "KN",
}

// Continent groups.
const (
	Africa       = "AFR"
	Europe       = "EUR"
	Asia         = "AS"
	Oceania      = "OC"
	NorthAmerica = "NA"
	SouthAmerica = "SA"
	Antarctica   = "ANT"
)

// groupOrder fixes lookup order for codes listed in more than one group
// (e.g. transcontinental AM, AZ, CY, GE, KZ resolve to Europe first).
var groupOrder = []string{Africa, Europe, Asia, Oceania, NorthAmerica, SouthAmerica, Antarctica}

var continentGroups = map[string][]string{
	Africa: {
		"DZ", "AO", "BJ", "BW", "BF", "BI", "CM", "CV", "CF", "TD", "KM", "CG", "CD", "CI", "DJ", "EG", "GQ", "ER", "ET", "GA",
		"GM", "GH", "GN", "GW", "KE", "LS", "LR", "LY", "MG", "MW", "ML", "MR", "MU", "YT", "MA", "MZ", "NA", "NE", "NG", "RE",
		"RW", "ST", "SN", "SC", "SL", "SO", "ZA", "SS", "SD", "SZ", "TZ", "TG", "TN", "UG", "EH", "ZM", "ZW",
	},
	Europe: {
		"AL", "AD", "AM", "AT", "AZ", "BY", "BE", "BA", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "GE", "DE", "GI", "GR",
		"HU", "IS", "IE", "IT", "KZ", "XK", "LV", "LI", "LT", "LU", "MT", "MD", "MC", "ME", "NL", "MK", "NO", "PL", "PT", "RO",
		"RU", "SM", "RS", "SK", "SI", "ES", "SE", "CH", "TR", "UA", "GB", "UK", "VA",
	},
	Asia: {
		"AF", "AE", "AM", "AZ", "BH", "BD", "BT", "BN", "KH", "CN", "CY", "GE", "IN", "ID", "IR", "IQ", "IL", "JP", "JO", "KZ",
		"KW", "KG", "LA", "LB", "MO", "MY", "MV", "MN", "MM", "NP", "KP", "OM", "PK", "PS", "PH", "QA", "SA", "SG", "KR", "LK",
		"SY", "TJ", "TH", "TM", "UZ", "VN", "YE", "HK", "TW",
	},
	Oceania: {
		"AU", "NZ", "FJ", "PG", "SB", "VU", "FM", "MH", "MP", "GU", "PW", "NR", "KI", "TV", "WS", "TO", "NU", "CK", "PF", "NC",
		"WF", "TK",
	},
	NorthAmerica: {
		"US", "CA", "MX", "BZ", "CR", "SV", "GT", "HN", "NI", "PA", "GL", "PM", "HT", "DO", "PR", "BS", "BB", "JM", "TT", "VC",
		"LC", "GD", "AG", "DM", "KN", "KY", "BM", "AI", "VG", "VI", "TC", "AW", "CW", "SX", "BQ", "MQ", "GP", "BL", "MF",
	},
	SouthAmerica: {
		"AR", "BO", "BR", "CL", "CO", "EC", "FK", "GF", "GY", "PY", "PE", "SR", "UY", "VE",
	},
	Antarctica: {"AQ", "BV", "TF", "GS", "HM"},
}

// regionKeywords maps generic region phrases to a continent group.
var regionKeywords = map[string]string{
	"africa":                Africa,
	"north africa":          Africa,
	"sub saharan africa":    Africa,
	"sub-saharan africa":    Africa,
	"western africa":        Africa,
	"eastern africa":        Africa,
	"southern africa":       Africa,
	"central africa":        Africa,
	"europe":                Europe,
	"asia":                  Asia,
	"east asia":             Asia,
	"east asia pacific":     Asia,
	"east asia & pacific":   Asia,
	"east asia and pacific": Asia,
	"west asia":             Asia,
	"western asia":          Asia,
	"central asia":          Asia,
	"south asia":            Asia,
	"southeast asia":        Asia,
	"south-east asia":       Asia,
	"south east asia":       Asia,
	"middle east":           Asia,
	"north america":         NorthAmerica,
	"central america":       NorthAmerica,
	"caribbean":             NorthAmerica,
	"south america":         SouthAmerica,
	"latin america":         SouthAmerica,
	"oceania":               Oceania,
	"australasia":           Oceania,
	"pacific islands":       Oceania,
	"antarctica":            Antarctica,
}

var continentSymbols = map[string]string{
	Africa:       "\U0001F30D",
	Europe:       "\U0001F1EA\U0001F1FA",
	Asia:         "\U0001F30F",
	Oceania:      "\U0001F30F",
	NorthAmerica: "\U0001F30E",
	SouthAmerica: "\U0001F30E",
	Antarctica:   "❄️",
}

// UnknownFlag marks an account with no usable location.
const UnknownFlag = "\U0001F310"

// unknownTerms are list entries that select accounts without a reported location.
var unknownTerms = map[string]struct{}{
	"unknown": {},
	"null":    {},
	"none":    {},
	"missing": {},
	"n/a":     {},
	"na":      {},
}
