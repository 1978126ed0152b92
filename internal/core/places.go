package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceKey identifies a zip lookup: normalized city and state plus ISO2 country.
type PlaceKey struct {
	City    string
	State   string
	Country string
}

// NewPlaceKey normalizes raw city, state and country values into a key.
// Country is expected to already be ISO2.
func NewPlaceKey(city, state, country string) PlaceKey {
	country = strings.ToUpper(strings.TrimSpace(country))
	return PlaceKey{
		City:    NormalizePlace(city),
		State:   NormalizeState(state, country),
		Country: country,
	}
}

// Empty reports whether the key lacks the city or state needed for a lookup.
func (k PlaceKey) Empty() bool {
	return k.City == "" || k.State == ""
}

func (k PlaceKey) String() string {
	return k.Country + "/" + k.State + "/" + k.City
}

// id is an unambiguous identity for k. NormalizePlace never yields NUL, so
// no two keys share an id.
func (k PlaceKey) id() string {
	return k.Country + "\x00" + k.State + "\x00" + k.City
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizePlace trims, lowercases, strips accents and collapses inner
// whitespace: "  Saint-Étienne " -> "saint-etienne".
func NormalizePlace(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeState folds a state value for lookups. For the US, full state
// names become their two-letter code so "New Jersey" and "NJ" share a key.
func NormalizeState(s, country string) string {
	s = NormalizePlace(s)
	if country == "" || country == "US" {
		if code, ok := UsStates[s]; ok {
			return strings.ToLower(code)
		}
	}
	return s
}

// UsStates maps US state and territory names to their abbreviations.
var UsStates = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
	"puerto rico":          "PR",
	"guam":                 "GU",
	"american samoa":       "AS",
	"us virgin islands":    "VI",
}
